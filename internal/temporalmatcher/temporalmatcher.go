// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package temporalmatcher joins a clip's timestamp against the event
// stream within a bounded window, producing a confidence-scored
// GitHubContext (§4.8).
package temporalmatcher

import (
	"context"
	"math"
	"time"

	"github.com/tomtom215/cartographus/internal/models"
)

// EventRanger returns events in [start, end], optionally filtered by repo.
type EventRanger interface {
	GetEvents(ctx context.Context, start, end time.Time, repo string) ([]models.GitHubEvent, error)
}

// Matcher computes GitHubContext for a clip.
type Matcher struct {
	events EventRanger
	window time.Duration
}

// New builds a Matcher using the given event range source and window
// (applied symmetrically around the clip's timestamp).
func New(events EventRanger, window time.Duration) *Matcher {
	return &Matcher{events: events, window: window}
}

// Match joins clipTime against the event stream and returns the
// resulting GitHubContext. repo is an optional filter.
func (m *Matcher) Match(ctx context.Context, clipID string, clipTime time.Time, repo string) (*models.GitHubContext, error) {
	start := clipTime.Add(-m.window)
	end := clipTime.Add(m.window)

	events, err := m.events.GetEvents(ctx, start, end, repo)
	if err != nil {
		return nil, err
	}

	refs := models.LinkedRefs{
		LinkedPRs:     []models.LinkedPR{},
		LinkedCommits: []models.LinkedCommit{},
		LinkedIssues:  []models.LinkedIssue{},
	}

	minDelta := m.window // no match in window => confidence 0
	haveMatch := false

	for _, ev := range events {
		ts, err := time.Parse(time.RFC3339, ev.Timestamp)
		if err != nil {
			continue
		}
		delta := ts.Sub(clipTime)
		if delta < 0 {
			delta = -delta
		}
		if delta > m.window {
			continue
		}

		confidence := models.ConfidenceMedium
		if delta <= m.window/4 {
			confidence = models.ConfidenceHigh
		}

		switch ev.EventType {
		case "pull_request":
			pr, ok := extractPR(ev.Payload, confidence)
			if !ok {
				continue
			}
			refs.LinkedPRs = append(refs.LinkedPRs, pr)
		case "push":
			commits := extractCommits(ev.Payload, confidence)
			refs.LinkedCommits = append(refs.LinkedCommits, commits...)
			if len(commits) == 0 {
				continue
			}
		case "issues":
			issue, ok := extractIssue(ev.Payload, confidence)
			if !ok {
				continue
			}
			refs.LinkedIssues = append(refs.LinkedIssues, issue)
		default:
			continue
		}

		haveMatch = true
		if delta < minDelta {
			minDelta = delta
		}
	}

	score := 0.0
	reason := models.ReasonNone
	if haveMatch {
		score = math.Max(0, 1-float64(minDelta)/float64(m.window))
		reason = models.ReasonTemporalProximity
	}

	return &models.GitHubContext{
		ClipID:          clipID,
		Refs:            refs,
		ConfidenceScore: score,
		DominantReason:  reason,
	}, nil
}

func extractPR(payload map[string]interface{}, confidence models.MatchConfidence) (models.LinkedPR, bool) {
	pr, ok := payload["pull_request"].(map[string]interface{})
	if !ok {
		return models.LinkedPR{}, false
	}
	url, _ := pr["html_url"].(string)
	if url == "" {
		return models.LinkedPR{}, false
	}
	title, _ := pr["title"].(string)
	number := intField(pr["number"])
	return models.LinkedPR{
		Number:     number,
		URL:        url,
		Title:      title,
		Confidence: confidence,
		Reason:     models.ReasonTemporalProximity,
	}, true
}

func extractCommits(payload map[string]interface{}, confidence models.MatchConfidence) []models.LinkedCommit {
	raw, ok := payload["commits"].([]interface{})
	if !ok {
		return nil
	}
	var commits []models.LinkedCommit
	for _, item := range raw {
		c, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		url, _ := c["url"].(string)
		if url == "" {
			continue
		}
		sha, _ := c["id"].(string)
		message, _ := c["message"].(string)
		commits = append(commits, models.LinkedCommit{
			SHA:        sha,
			URL:        url,
			Message:    message,
			Confidence: confidence,
			Reason:     models.ReasonTemporalProximity,
		})
	}
	return commits
}

func extractIssue(payload map[string]interface{}, confidence models.MatchConfidence) (models.LinkedIssue, bool) {
	issue, ok := payload["issue"].(map[string]interface{})
	if !ok {
		return models.LinkedIssue{}, false
	}
	url, _ := issue["html_url"].(string)
	if url == "" {
		return models.LinkedIssue{}, false
	}
	title, _ := issue["title"].(string)
	number := intField(issue["number"])
	return models.LinkedIssue{
		Number:     number,
		URL:        url,
		Title:      title,
		Confidence: confidence,
		Reason:     models.ReasonTemporalProximity,
	}, true
}

func intField(v interface{}) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}
