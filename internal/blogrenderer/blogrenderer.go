// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package blogrenderer renders a Manifest into a Markdown document with
// YAML front matter. Rendering is a pure function of its input: no
// clock reads, no I/O, no randomness (§4.14).
package blogrenderer

import (
	"fmt"
	"strings"

	"github.com/tomtom215/cartographus/internal/models"
)

// mediaEmbedTemplate matches §6's wire-exact embed attribute set.
const mediaEmbedTemplate = `<iframe src="%s" height="378" width="620" frameborder="0" scrolling="no" allowfullscreen="true" sandbox="allow-scripts allow-same-origin allow-presentation"></iframe>`

// escapeYAMLString escapes backslash, double-quote, CR, and LF for a
// double-quoted YAML scalar.
func escapeYAMLString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\r", `\r`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return s
}

func yamlQuoted(s string) string {
	return `"` + escapeYAMLString(s) + `"`
}

func yamlStringList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = yamlQuoted(item)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// Render renders the manifest to a complete blog Markdown document.
// date and updated are the RFC3339 date strings the caller stamps in
// (the renderer itself never reads a clock, per §4.14/§9).
func Render(m models.Manifest, date, updated, canonical string, draft bool) []byte {
	var b strings.Builder

	b.WriteString("---\n")
	fmt.Fprintf(&b, "title: %s\n", yamlQuoted(m.Title))
	fmt.Fprintf(&b, "category: %s\n", yamlQuoted(firstTag(m.Tags, "development")))
	fmt.Fprintf(&b, "tags: %s\n", yamlStringList(m.Tags))
	fmt.Fprintf(&b, "description: %s\n", yamlQuoted(m.Summary))
	fmt.Fprintf(&b, "date: %s\n", yamlQuoted(date))
	fmt.Fprintf(&b, "updated: %s\n", yamlQuoted(updated))
	fmt.Fprintf(&b, "canonical: %s\n", yamlQuoted(canonical))
	fmt.Fprintf(&b, "draft: %t\n", draft)
	b.WriteString("---\n\n")

	if m.Summary != "" {
		b.WriteString(m.Summary)
		b.WriteString("\n\n")
	}

	for _, section := range m.Sections {
		fmt.Fprintf(&b, "## %s\n\n", section.Title)
		for _, bullet := range section.Bullets {
			fmt.Fprintf(&b, "- %s\n", bullet)
		}
		b.WriteString("\n")
		if section.Paragraph != "" {
			b.WriteString(section.Paragraph)
			b.WriteString("\n\n")
		}
		if section.ClipURL != "" {
			fmt.Fprintf(&b, mediaEmbedTemplate, section.ClipURL)
			b.WriteString("\n\n")
		}
		if section.DeepLinkURL != "" {
			fmt.Fprintf(&b, "[View the linked GitHub activity](%s)\n\n", section.DeepLinkURL)
		}
		if len(section.PRLinks) > 0 {
			b.WriteString("**Related:**\n")
			for _, link := range section.PRLinks {
				fmt.Fprintf(&b, "- %s\n", link)
			}
			b.WriteString("\n")
		}
	}

	fmt.Fprintf(&b, "*Generated from Twitch clips on %s*\n", date)

	return []byte(b.String())
}

func firstTag(tags []string, fallback string) string {
	if len(tags) == 0 {
		return fallback
	}
	return tags[0]
}

// BranchName returns the auto/daily-recap-{date} branch name for date
// (an already-formatted YYYY-MM-DD string).
func BranchName(date string) string {
	return fmt.Sprintf("auto/daily-recap-%s", date)
}

// FilePath returns the blog artifact's path inside the target repo for
// date (an already-formatted YYYY-MM-DD string).
func FilePath(date string) string {
	return fmt.Sprintf("content/blog/development/%s-daily-dev-recap.md", date)
}
