// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package sectioner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseInput() Input {
	return Input{
		ClipID:      "clip_abc123",
		Title:       "Fixing the flaky CI job",
		DurationS:   120,
		Transcript:  "we spent the stream chasing a flaky test",
		ClipURL:     "https://clips.twitch.tv/clip_abc123",
		Repo:        "org/repo",
		DeepLinkURL: "https://github.com/org/repo/pull/42",
		PRLinks:     []string{"https://github.com/org/repo/pull/42"},
	}
}

func TestParseSectionWellFormedResponse(t *testing.T) {
	raw := `{"h2":"Fixing Flaky CI","bullets":["Found the race","Added a retry"],"paragraph":"` +
		`This clip walks through tracking down a flaky CI failure and landing a fix for it today.","repo":"org/other"}`

	s := parseSection(raw, baseInput())
	assert.Equal(t, "Fixing Flaky CI", s.Title)
	assert.Equal(t, []string{"Found the race", "Added a retry"}, s.Bullets)
	assert.Equal(t, "org/other", s.Repo)
	assert.Equal(t, "https://clips.twitch.tv/clip_abc123", s.ClipURL)
	// DeepLinkURL/PRLinks are a deterministic passthrough, never AI-derived.
	assert.Equal(t, baseInput().DeepLinkURL, s.DeepLinkURL)
	assert.Equal(t, baseInput().PRLinks, s.PRLinks)
}

func TestParseSectionFencedResponse(t *testing.T) {
	raw := "```json\n" +
		`{"h2":"Title","bullets":["one bullet here","two bullet here"],"paragraph":"` +
		`A sufficiently long paragraph describing the clip in more than fifty characters total.","repo":"org/repo"}` +
		"\n```"

	s := parseSection(raw, baseInput())
	assert.Equal(t, "Title", s.Title)
	assert.Len(t, s.Bullets, 2)
}

func TestParseSectionMalformedJSONFallsBack(t *testing.T) {
	s := parseSection("not even close to json", baseInput())
	assert.Equal(t, truncate(baseInput().Title, 60), s.Title)
	assert.Equal(t, baseInput().Repo, s.Repo)
	assert.Equal(t, baseInput().DeepLinkURL, s.DeepLinkURL)
}

func TestParseSectionEmptyStringFallsBack(t *testing.T) {
	s := parseSection("", baseInput())
	assert.Equal(t, defaultParagraph(baseInput()), s.Paragraph)
}

func TestParseSectionWrongBulletCountFallsBack(t *testing.T) {
	raw := `{"h2":"Title","bullets":["only one"],"paragraph":"` +
		`A sufficiently long paragraph describing the clip in more than fifty characters total.","repo":"org/repo"}`
	s := parseSection(raw, baseInput())
	assert.Equal(t, defaultBullets(baseInput()), s.Bullets)
}

func TestParseSectionShortParagraphFallsBack(t *testing.T) {
	raw := `{"h2":"Title","bullets":["one bullet here","two bullet here"],"paragraph":"too short","repo":"org/repo"}`
	s := parseSection(raw, baseInput())
	assert.Equal(t, defaultParagraph(baseInput()), s.Paragraph)
}

func TestParseSectionRepoWithoutSlashFallsBackToInput(t *testing.T) {
	raw := `{"h2":"Title","bullets":["one bullet here","two bullet here"],"paragraph":"` +
		`A sufficiently long paragraph describing the clip in more than fifty characters total.","repo":"notarepo"}`
	s := parseSection(raw, baseInput())
	assert.Equal(t, baseInput().Repo, s.Repo)
}

func TestFallbackAlwaysWellFormed(t *testing.T) {
	in := baseInput()
	s := fallback(in)
	require.NotEmpty(t, s.Title)
	require.NotEmpty(t, s.Paragraph)
	require.NotEmpty(t, s.Bullets)
	assert.Equal(t, in.ClipURL, s.ClipURL)
	assert.Equal(t, in.DeepLinkURL, s.DeepLinkURL)
	assert.Equal(t, in.PRLinks, s.PRLinks)
}

func TestExtractJSONObjectFindsFirstBalancedBraces(t *testing.T) {
	assert.Equal(t, `{"a":1}`, extractJSONObject(`garbage {"a":1} trailing`))
	assert.Equal(t, "", extractJSONObject("no braces here"))
	assert.Equal(t, `{"a":{"b":1}}`, extractJSONObject(`{"a":{"b":1}}`))
}

func TestTruncateRespectsRuneBoundaries(t *testing.T) {
	assert.Equal(t, "hello", truncate("hello", 10))
	assert.Equal(t, "he", truncate("hello", 2))
}
