// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package contentitem

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/cartographus/internal/models"
	"github.com/tomtom215/cartographus/internal/objectstore"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	os, err := objectstore.Open(filepath.Join(t.TempDir(), "badger"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Close() })
	return New(os)
}

func TestKeyPartitionsByUTCCreationMonth(t *testing.T) {
	key, err := Key("clip_abc123", time.Date(2026, 7, 30, 23, 59, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "recaps/content-items/2026/07/clip_abc123.json", key)
}

func TestKeyRejectsInvalidClipID(t *testing.T) {
	_, err := Key("../escape", time.Now())
	assert.Error(t, err)
}

func TestPutGetRoundTripSanitizesOnBothSides(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	item := models.ContentItem{
		ClipID:           "clip_abc123",
		ClipTitle:        "Title with \x00 control char",
		ClipCreatedAt:    "2026-07-01T12:00:00Z",
		ProcessingStatus: models.StatusPending,
	}
	stored, err := s.Put(ctx, item)
	require.NoError(t, err)
	assert.NotContains(t, stored.ClipTitle, "\x00")
	assert.Equal(t, models.CurrentSchemaVersion, stored.SchemaVersion)

	got, err := s.Get(ctx, "clip_abc123", time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, stored.ClipTitle, got.ClipTitle)
}

func TestPutRejectsInvalidProcessingStatus(t *testing.T) {
	s := newTestService(t)
	_, err := s.Put(context.Background(), models.ContentItem{
		ClipID:           "clip_abc123",
		ClipCreatedAt:    "2026-07-01T12:00:00Z",
		ProcessingStatus: "not-a-real-status",
	})
	assert.Error(t, err)
}

func TestUpdateEnforcesForwardOnlyStatusTransitions(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	createdAt := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	_, err := s.Put(ctx, models.ContentItem{
		ClipID:           "clip_abc123",
		ClipCreatedAt:    "2026-07-01T12:00:00Z",
		ProcessingStatus: models.StatusTranscribed,
	})
	require.NoError(t, err)

	// Backward transition is rejected.
	_, err = s.Update(ctx, "clip_abc123", createdAt, map[string]interface{}{
		"processing_status": string(models.StatusPending),
	})
	assert.Error(t, err)

	// Forward transition succeeds.
	updated, err := s.Update(ctx, "clip_abc123", createdAt, map[string]interface{}{
		"processing_status": string(models.StatusEnhanced),
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusEnhanced, updated.ProcessingStatus)
}

func TestUpdateStripsForbiddenFields(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	createdAt := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	_, err := s.Put(ctx, models.ContentItem{
		ClipID:           "clip_abc123",
		ClipTitle:        "Original Title",
		ClipCreatedAt:    "2026-07-01T12:00:00Z",
		ProcessingStatus: models.StatusPending,
	})
	require.NoError(t, err)

	updated, err := s.Update(ctx, "clip_abc123", createdAt, map[string]interface{}{
		"clip_title": "Attempted Override",
	})
	require.NoError(t, err)
	assert.Equal(t, "Original Title", updated.ClipTitle)
}

func TestListFiltersByProcessingStatusWithoutReturningOthers(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	for i, status := range []models.ProcessingStatus{models.StatusPending, models.StatusTranscribed, models.StatusPending} {
		clipID := "clip_" + string(rune('a'+i)) + "23456"
		_, err := s.Put(ctx, models.ContentItem{
			ClipID:           clipID,
			ClipCreatedAt:    "2026-07-01T12:00:00Z",
			ProcessingStatus: status,
		})
		require.NoError(t, err)
	}

	page, err := s.List(ctx, Query{
		Start:            time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
		End:              time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC),
		ProcessingStatus: models.StatusPending,
		Limit:            10,
	})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	for _, item := range page.Items {
		assert.Equal(t, models.StatusPending, item.ProcessingStatus)
	}
}

func TestListFiltersByContentCategory(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	_, err := s.Put(ctx, models.ContentItem{
		ClipID:           "clip_abc123",
		ClipCreatedAt:    "2026-07-01T12:00:00Z",
		ProcessingStatus: models.StatusEnhanced,
		ContentCategory:  "backend",
	})
	require.NoError(t, err)
	_, err = s.Put(ctx, models.ContentItem{
		ClipID:           "clip_def456",
		ClipCreatedAt:    "2026-07-01T12:00:00Z",
		ProcessingStatus: models.StatusEnhanced,
		ContentCategory:  "frontend",
	})
	require.NoError(t, err)

	page, err := s.List(ctx, Query{
		Start:           time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
		End:             time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC),
		ContentCategory: "backend",
		Limit:           10,
	})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "clip_abc123", page.Items[0].ClipID)
}

func TestCountsByStatusNeverReadsBodies(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	for i, status := range []models.ProcessingStatus{models.StatusPending, models.StatusPending, models.StatusEnhanced} {
		clipID := "clip_" + string(rune('a'+i)) + "99999"
		_, err := s.Put(ctx, models.ContentItem{
			ClipID:           clipID,
			ClipCreatedAt:    "2026-07-01T12:00:00Z",
			ProcessingStatus: status,
		})
		require.NoError(t, err)
	}

	counts, err := s.CountsByStatus(ctx, time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 2, counts[models.StatusPending])
	assert.Equal(t, 1, counts[models.StatusEnhanced])
}
