// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package sectioner builds per-clip Sections by prompting the AI
// inference model and tolerantly parsing its response. A malformed
// response never aborts the pipeline: parseSection always returns a
// well-formed Section (§4.12).
package sectioner

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cartographus/internal/aiclient"
	"github.com/tomtom215/cartographus/internal/models"
	"github.com/tomtom215/cartographus/internal/retry"
)

// Sectioner runs the per-clip sectioning stage.
type Sectioner struct {
	ai     *aiclient.Client
	model  string
	policy retry.Policy
}

// New builds a Sectioner invoking modelID for each clip.
func New(ai *aiclient.Client, modelID string, policy retry.Policy) *Sectioner {
	return &Sectioner{ai: ai, model: modelID, policy: policy}
}

// Input is the Sectioner's per-clip prompt material.
type Input struct {
	ClipID      string
	Title       string
	DurationS   int
	Transcript  string
	ClipURL     string
	Repo        string
	// DeepLinkURL and PRLinks come straight from the TemporalMatcher's
	// GitHubContext, not the AI response — the model is never asked to
	// invent source-control URLs.
	DeepLinkURL string
	PRLinks     []string
}

func buildPrompt(in Input) string {
	return fmt.Sprintf(
		"Summarize this development clip into a blog section.\nTitle: %s\nDuration: %ds\nTranscript: %s\n"+
			"Respond with JSON only: {\"h2\":string,\"bullets\":[string,string,string],\"paragraph\":string,\"repo\":string}",
		in.Title, in.DurationS, in.Transcript,
	)
}

// Section runs the stage for one clip. A retryable failure still never
// propagates past this call: on exhaustion it falls back to a default
// Section rather than failing the run (§4.12, §8.8).
func (s *Sectioner) Section(ctx context.Context, in Input) models.Section {
	var raw string
	err := retry.Do(ctx, s.policy, func(ctx context.Context) error {
		out, err := s.ai.Complete(ctx, s.model, buildPrompt(in))
		if err != nil {
			return err
		}
		raw = out
		return nil
	})
	if err != nil {
		return fallback(in)
	}
	return parseSection(raw, in)
}

type rawSection struct {
	H2        interface{} `json:"h2"`
	Bullets   interface{} `json:"bullets"`
	Paragraph interface{} `json:"paragraph"`
	Repo      interface{} `json:"repo"`
}

// parseSection implements the tolerant four-step parse from §4.12:
// strip fences, extract the first balanced {...}, JSON-parse, then
// defensively coerce each field. Never returns an error; always
// produces a well-formed Section.
func parseSection(raw string, in Input) models.Section {
	body := extractJSONObject(stripFences(raw))
	if body == "" {
		return fallback(in)
	}

	var rs rawSection
	if err := json.Unmarshal([]byte(body), &rs); err != nil {
		return fallback(in)
	}

	return models.Section{
		Title:       coerceH2(rs.H2, in.Title),
		Bullets:     coerceBullets(rs.Bullets, in),
		Paragraph:   coerceParagraph(rs.Paragraph, in),
		ClipURL:     in.ClipURL,
		Repo:        coerceRepo(rs.Repo, in.Repo),
		DeepLinkURL: in.DeepLinkURL,
		PRLinks:     in.PRLinks,
	}
}

func fallback(in Input) models.Section {
	return models.Section{
		Title:       truncate(in.Title, 60),
		Bullets:     defaultBullets(in),
		Paragraph:   defaultParagraph(in),
		ClipURL:     in.ClipURL,
		Repo:        in.Repo,
		DeepLinkURL: in.DeepLinkURL,
		PRLinks:     in.PRLinks,
	}
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// extractJSONObject returns the first balanced {...} substring, or ""
// if none is found.
func extractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start == -1 {
		return ""
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

func coerceH2(v interface{}, title string) string {
	s, ok := v.(string)
	if !ok || s == "" {
		return truncate(title, 60)
	}
	return truncate(s, 60)
}

func coerceBullets(v interface{}, in Input) []string {
	raw, ok := v.([]interface{})
	if !ok {
		return defaultBullets(in)
	}
	var bullets []string
	for _, item := range raw {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			bullets = append(bullets, s)
		}
	}
	if len(bullets) < 2 || len(bullets) > 3 {
		return defaultBullets(in)
	}
	return bullets
}

func coerceParagraph(v interface{}, in Input) string {
	s, ok := v.(string)
	if !ok || len(s) < 50 {
		return defaultParagraph(in)
	}
	return s
}

func coerceRepo(v interface{}, fallback string) string {
	s, ok := v.(string)
	if !ok || !strings.Contains(s, "/") {
		return fallback
	}
	return s
}

func defaultBullets(in Input) []string {
	return []string{
		fmt.Sprintf("Clip: %s", truncate(in.Title, 60)),
		fmt.Sprintf("Duration: %ds", in.DurationS),
	}
}

func defaultParagraph(in Input) string {
	return fmt.Sprintf("This development clip (%s, %ds) could not be automatically summarized in detail; review the linked clip for context.", truncate(in.Title, 60), in.DurationS)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
