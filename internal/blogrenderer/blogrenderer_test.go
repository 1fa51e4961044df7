// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package blogrenderer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tomtom215/cartographus/internal/models"
)

func TestRenderIncludesFrontMatterAndSections(t *testing.T) {
	m := models.Manifest{
		Title:   "Daily Dev Recap",
		Tags:    []string{"backend", "go"},
		Summary: "Today's stream covered a flaky CI fix.",
		Sections: []models.Section{
			{
				Title:       "Fixing Flaky CI",
				Bullets:     []string{"Found the race", "Added a retry"},
				Paragraph:   "We tracked down the flake.",
				ClipURL:     "https://clips.twitch.tv/clip_abc",
				Repo:        "org/repo",
				DeepLinkURL: "https://github.com/org/repo/pull/42",
				PRLinks:     []string{"https://github.com/org/repo/pull/42"},
			},
		},
	}

	out := string(Render(m, "2026-07-30", "2026-07-30T00:00:00Z", "https://example.com/recap", false))

	assert.Contains(t, out, `title: "Daily Dev Recap"`)
	assert.Contains(t, out, "## Fixing Flaky CI")
	assert.Contains(t, out, "- Found the race")
	assert.Contains(t, out, "https://clips.twitch.tv/clip_abc")
	assert.Contains(t, out, "[View the linked GitHub activity](https://github.com/org/repo/pull/42)")
	assert.Contains(t, out, "**Related:**")
	assert.Contains(t, out, "- https://github.com/org/repo/pull/42")
}

func TestRenderOmitsGitHubLinksWhenAbsent(t *testing.T) {
	m := models.Manifest{
		Title: "No links today",
		Sections: []models.Section{
			{Title: "Just chatting", Paragraph: "Nothing to link here."},
		},
	}

	out := string(Render(m, "2026-07-30", "2026-07-30T00:00:00Z", "https://example.com/recap", true))
	assert.NotContains(t, out, "View the linked GitHub activity")
	assert.NotContains(t, out, "**Related:**")
	assert.Contains(t, out, "draft: true")
}

func TestRenderEscapesYAMLSpecialCharacters(t *testing.T) {
	m := models.Manifest{Title: `A "quoted" title with \backslash`}
	out := string(Render(m, "2026-07-30", "2026-07-30T00:00:00Z", "", false))
	assert.Contains(t, out, `title: "A \"quoted\" title with \\backslash"`)
}

func TestBranchNameAndFilePath(t *testing.T) {
	assert.Equal(t, "auto/daily-recap-2026-07-30", BranchName("2026-07-30"))
	assert.Equal(t, "content/blog/development/2026-07-30-daily-dev-recap.md", FilePath("2026-07-30"))
}

func TestFirstTagFallback(t *testing.T) {
	assert.Equal(t, "development", firstTag(nil, "development"))
	assert.Equal(t, "backend", firstTag([]string{"backend", "go"}, "development"))
}
