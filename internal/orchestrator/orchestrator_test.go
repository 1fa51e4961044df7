// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package orchestrator

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/cartographus/internal/contentitem"
	"github.com/tomtom215/cartographus/internal/models"
	"github.com/tomtom215/cartographus/internal/notifier"
	"github.com/tomtom215/cartographus/internal/objectstore"
	"github.com/tomtom215/cartographus/internal/perr"
)

func newTestOrchestrator(t *testing.T) (*Orchestrator, *objectstore.Store) {
	t.Helper()
	os, err := objectstore.Open(filepath.Join(t.TempDir(), "badger"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Close() })

	items := contentitem.New(os)
	o := New(os, items, nil, nil, nil, nil, nil, nil, nil, notifier.New(""), Options{})
	return o, os
}

func TestNewRunIDIsSortableAndUnique(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	a := NewRunID(now)
	b := NewRunID(now)
	assert.True(t, strings.HasPrefix(a, "20260730T120000-"))
	assert.NotEqual(t, a, b, "run IDs must not collide even for the same timestamp")
}

func TestKeyHelpersNamespaceByKind(t *testing.T) {
	assert.Equal(t, "runs/r1.json", runKey("r1"))
	assert.Equal(t, "clips/c1.json", clipKey("c1"))
	assert.Equal(t, "github-context/c1.json", githubContextKey("c1"))
}

func TestPerrIsFatalClassification(t *testing.T) {
	assert.True(t, perrIsFatal(perr.Validation("op", "bad input", nil)))
	assert.True(t, perrIsFatal(perr.FatalConfig("op", "bad config", nil)))
	assert.True(t, perrIsFatal(perr.UpstreamPermanent("op", "403", nil)))
	assert.False(t, perrIsFatal(perr.UpstreamTemporary("op", "503", nil)))
	assert.False(t, perrIsFatal(perr.State("op", "illegal transition", nil)))
}

func TestTruncateASCIIRespectsRuneBoundaries(t *testing.T) {
	s := "héllo wörld"
	got := truncateASCII(s, 3)
	assert.Equal(t, "hél", got)
	assert.Equal(t, s, truncateASCII(s, 100))
}

func TestAdvanceEnforcesForwardOnlyTransition(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	ctx := context.Background()

	item := models.ContentItem{
		ClipID:           "clip_abc123",
		ClipCreatedAt:    "2026-07-01T12:00:00Z",
		ProcessingStatus: models.StatusTranscribed,
	}
	stored, err := o.items.Put(ctx, item)
	require.NoError(t, err)

	err = o.advance(ctx, stored, models.StatusPending, nil)
	assert.Error(t, err, "backward transition must be rejected")

	err = o.advance(ctx, stored, models.StatusEnhanced, func(i *models.ContentItem) {
		i.EnhancedAt = "2026-07-01T13:00:00Z"
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusEnhanced, stored.ProcessingStatus)

	fetched, err := o.items.Get(ctx, "clip_abc123", time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, models.StatusEnhanced, fetched.ProcessingStatus)
}

func TestGetRunStatusRoundTripsThroughProgressAndFail(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	ctx := context.Background()

	rs := &models.RunStatus{RunID: "run1", Status: models.RunRunning}
	o.progress(ctx, rs, "ingest", 1)

	got, err := o.GetRunStatus(ctx, "run1")
	require.NoError(t, err)
	assert.Equal(t, "ingest", got.Progress.Step)
	assert.Equal(t, totalStages, got.Progress.Total)

	returnedErr := o.fail(ctx, rs, "score_promote", assert.AnError)
	assert.Equal(t, assert.AnError, returnedErr)

	got, err = o.GetRunStatus(ctx, "run1")
	require.NoError(t, err)
	assert.Equal(t, models.RunFailed, got.Status)
	assert.Contains(t, got.Error, "score_promote")
}

func TestLinkedGitHubURLsNilRefReturnsEmpty(t *testing.T) {
	_, os := newTestOrchestrator(t)
	deepLink, links := linkedGitHubURLs(context.Background(), os, nil)
	assert.Empty(t, deepLink)
	assert.Empty(t, links)
}

func TestLinkedGitHubURLsMissingKeyReturnsEmpty(t *testing.T) {
	_, os := newTestOrchestrator(t)
	deepLink, links := linkedGitHubURLs(context.Background(), os, &models.ArtifactRef{URL: "github-context/missing.json"})
	assert.Empty(t, deepLink)
	assert.Empty(t, links)
}

func TestLinkedGitHubURLsPrefersPRsThenFlattensCommitsAndIssues(t *testing.T) {
	_, os := newTestOrchestrator(t)
	ctx := context.Background()

	ghCtx := models.GitHubContext{
		ClipID: "clip_abc123",
		Refs: models.LinkedRefs{
			LinkedPRs:     []models.LinkedPR{{Number: 1, URL: "https://github.com/org/repo/pull/1"}},
			LinkedCommits: []models.LinkedCommit{{SHA: "abc", URL: "https://github.com/org/repo/commit/abc"}},
			LinkedIssues:  []models.LinkedIssue{{Number: 2, URL: "https://github.com/org/repo/issues/2"}},
		},
		ConfidenceScore: 0.9,
	}
	encoded, err := json.Marshal(ghCtx)
	require.NoError(t, err)
	require.NoError(t, os.Put(ctx, "github-context/clip_abc123.json", encoded, map[string]string{"clip-id": "clip_abc123"}))

	deepLink, links := linkedGitHubURLs(ctx, os, &models.ArtifactRef{URL: "github-context/clip_abc123.json"})
	assert.Equal(t, "https://github.com/org/repo/pull/1", deepLink)
	require.Len(t, links, 3)
	assert.Equal(t, "https://github.com/org/repo/pull/1", links[0])
	assert.Equal(t, "https://github.com/org/repo/commit/abc", links[1])
	assert.Equal(t, "https://github.com/org/repo/issues/2", links[2])
}
