// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package temporalmatcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/cartographus/internal/models"
)

type fakeRanger struct {
	events []models.GitHubEvent
}

func (f *fakeRanger) GetEvents(ctx context.Context, start, end time.Time, repo string) ([]models.GitHubEvent, error) {
	return f.events, nil
}

func prEvent(ts time.Time, url string) models.GitHubEvent {
	return models.GitHubEvent{
		EventType: "pull_request",
		Timestamp: ts.Format(time.RFC3339),
		Payload: map[string]interface{}{
			"pull_request": map[string]interface{}{
				"html_url": url,
				"title":    "Fix the bug",
				"number":   float64(42),
			},
		},
	}
}

func TestMatchNoEventsYieldsZeroConfidenceAndNoneReason(t *testing.T) {
	clipTime := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	m := New(&fakeRanger{}, time.Hour)

	ctx, err := m.Match(context.Background(), "clip_1", clipTime, "")
	require.NoError(t, err)
	assert.Equal(t, 0.0, ctx.ConfidenceScore)
	assert.Equal(t, models.ReasonNone, ctx.DominantReason)
	assert.Empty(t, ctx.Refs.LinkedPRs)
}

func TestMatchExactTimestampYieldsConfidenceOne(t *testing.T) {
	clipTime := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	ranger := &fakeRanger{events: []models.GitHubEvent{prEvent(clipTime, "https://github.com/org/repo/pull/42")}}
	m := New(ranger, time.Hour)

	ctx, err := m.Match(context.Background(), "clip_1", clipTime, "")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, ctx.ConfidenceScore, 1e-9)
	assert.Equal(t, models.ReasonTemporalProximity, ctx.DominantReason)
	require.Len(t, ctx.Refs.LinkedPRs, 1)
	assert.Equal(t, "https://github.com/org/repo/pull/42", ctx.Refs.LinkedPRs[0].URL)
	assert.Equal(t, models.ConfidenceHigh, ctx.Refs.LinkedPRs[0].Confidence)
}

func TestMatchEventOutsideWindowIsIgnored(t *testing.T) {
	clipTime := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	farAway := clipTime.Add(2 * time.Hour)
	ranger := &fakeRanger{events: []models.GitHubEvent{prEvent(farAway, "https://github.com/org/repo/pull/1")}}
	m := New(ranger, time.Hour)

	ctx, err := m.Match(context.Background(), "clip_1", clipTime, "")
	require.NoError(t, err)
	assert.Equal(t, 0.0, ctx.ConfidenceScore)
	assert.Empty(t, ctx.Refs.LinkedPRs)
}

func TestMatchConfidenceSplitAtQuarterWindow(t *testing.T) {
	clipTime := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	window := time.Hour

	// delta = window/4 exactly => high confidence
	highDelta := clipTime.Add(window / 4)
	ranger := &fakeRanger{events: []models.GitHubEvent{prEvent(highDelta, "https://github.com/org/repo/pull/1")}}
	m := New(ranger, window)
	ctx, err := m.Match(context.Background(), "clip_1", clipTime, "")
	require.NoError(t, err)
	require.Len(t, ctx.Refs.LinkedPRs, 1)
	assert.Equal(t, models.ConfidenceHigh, ctx.Refs.LinkedPRs[0].Confidence)

	// delta just past window/4 => medium confidence
	mediumDelta := clipTime.Add(window/4 + time.Second)
	ranger2 := &fakeRanger{events: []models.GitHubEvent{prEvent(mediumDelta, "https://github.com/org/repo/pull/1")}}
	m2 := New(ranger2, window)
	ctx2, err := m2.Match(context.Background(), "clip_1", clipTime, "")
	require.NoError(t, err)
	require.Len(t, ctx2.Refs.LinkedPRs, 1)
	assert.Equal(t, models.ConfidenceMedium, ctx2.Refs.LinkedPRs[0].Confidence)
}

func TestMatchPullRequestMissingHTMLURLIsSkipped(t *testing.T) {
	clipTime := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	ev := models.GitHubEvent{
		EventType: "pull_request",
		Timestamp: clipTime.Format(time.RFC3339),
		Payload:   map[string]interface{}{"pull_request": map[string]interface{}{"title": "no url"}},
	}
	m := New(&fakeRanger{events: []models.GitHubEvent{ev}}, time.Hour)

	ctx, err := m.Match(context.Background(), "clip_1", clipTime, "")
	require.NoError(t, err)
	assert.Empty(t, ctx.Refs.LinkedPRs)
	assert.Equal(t, 0.0, ctx.ConfidenceScore)
}

func TestMatchPushEventExtractsCommits(t *testing.T) {
	clipTime := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	ev := models.GitHubEvent{
		EventType: "push",
		Timestamp: clipTime.Format(time.RFC3339),
		Payload: map[string]interface{}{
			"commits": []interface{}{
				map[string]interface{}{"id": "abc123", "url": "https://github.com/org/repo/commit/abc123", "message": "fix it"},
			},
		},
	}
	m := New(&fakeRanger{events: []models.GitHubEvent{ev}}, time.Hour)

	ctx, err := m.Match(context.Background(), "clip_1", clipTime, "")
	require.NoError(t, err)
	require.Len(t, ctx.Refs.LinkedCommits, 1)
	assert.Equal(t, "abc123", ctx.Refs.LinkedCommits[0].SHA)
}

func TestMatchUnknownEventTypeIsIgnored(t *testing.T) {
	clipTime := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	ev := models.GitHubEvent{EventType: "fork", Timestamp: clipTime.Format(time.RFC3339)}
	m := New(&fakeRanger{events: []models.GitHubEvent{ev}}, time.Hour)

	ctx, err := m.Match(context.Background(), "clip_1", clipTime, "")
	require.NoError(t, err)
	assert.Equal(t, 0.0, ctx.ConfidenceScore)
}
