// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package validation

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	htmlTagPattern    = regexp.MustCompile(`<[^>]*>`)
	controlCharPattern = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
)

// SanitizeString strips HTML-ish tags and control characters from s, for
// any free-text field written to or read from the object store.
func SanitizeString(s string) string {
	s = htmlTagPattern.ReplaceAllString(s, "")
	s = controlCharPattern.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// StripForbiddenFields removes any key in forbidden from patch, returning
// a new map; patch itself is left untouched.
func StripForbiddenFields(patch map[string]interface{}, forbidden []string) map[string]interface{} {
	blocked := make(map[string]struct{}, len(forbidden))
	for _, f := range forbidden {
		blocked[f] = struct{}{}
	}
	clean := make(map[string]interface{}, len(patch))
	for k, v := range patch {
		if _, ok := blocked[k]; ok {
			continue
		}
		clean[k] = v
	}
	return clean
}

// CollapseNewlines replaces runs of more than max consecutive newlines
// with exactly max, used by the Judge to normalize prompt content.
func CollapseNewlines(s string, max int) string {
	if max < 1 {
		max = 1
	}
	pattern := regexp.MustCompile(`\n{` + strconv.Itoa(max+1) + `,}`)
	return pattern.ReplaceAllString(s, strings.Repeat("\n", max))
}

// StripBackticks removes backtick characters, used by the Judge to
// prevent prompt-structure confusion from user-authored transcript text.
func StripBackticks(s string) string {
	return strings.ReplaceAll(s, "`", "")
}

// TruncateRunes truncates s to at most n runes, preserving rune
// boundaries (never splitting a multi-byte character).
func TruncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
