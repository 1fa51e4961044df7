// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package objectstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "badger"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "clips/abc.json", []byte(`{"clip_id":"abc"}`), map[string]string{"clip-id": "abc"}))

	obj, err := s.Get(ctx, "clips/abc.json")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"clip_id":"abc"}`), obj.Value)
	assert.Equal(t, "abc", obj.CustomMetadata["clip-id"])
}

func TestGetMissingKeyReturnsStateError(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "does/not/exist")
	assert.Error(t, err)
}

func TestHeadNeverExposesValueAndMatchesPutMetadata(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "recaps/content-items/2026/07/abc.json", []byte(`{"huge":"body"}`), map[string]string{"processing-status": "transcribed"}))

	meta, err := s.Head(ctx, "recaps/content-items/2026/07/abc.json")
	require.NoError(t, err)
	assert.Equal(t, "transcribed", meta["processing-status"])
}

func TestHeadOnMissingKeyIsAnError(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Head(context.Background(), "nope")
	assert.Error(t, err)
}

func TestDeleteRemovesBothValueAndMetadata(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "k", []byte("v"), map[string]string{"a": "b"}))
	require.NoError(t, s.Delete(ctx, "k"))

	_, err := s.Get(ctx, "k")
	assert.Error(t, err)
	_, err = s.Head(ctx, "k")
	assert.Error(t, err)
}

func TestListKeysOnlyNeverPopulatesObjects(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "a/1", []byte("v1"), map[string]string{"x": "1"}))
	require.NoError(t, s.Put(ctx, "a/2", []byte("v2"), map[string]string{"x": "2"}))

	page, err := s.List(ctx, "a/", "", 10, ListKeysOnly)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a/1", "a/2"}, page.Keys)
	assert.Empty(t, page.Objects)
}

func TestListMetadataOnlyPopulatesMetadataButNotValue(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "a/1", []byte("large-body-bytes"), map[string]string{"status": "ready"}))
	require.NoError(t, s.Put(ctx, "a/2", []byte("another-body"), map[string]string{"status": "pending"}))

	page, err := s.List(ctx, "a/", "", 10, ListMetadataOnly)
	require.NoError(t, err)
	require.Len(t, page.Objects, 2)
	for _, obj := range page.Objects {
		assert.Empty(t, obj.Value, "metadata-only listing must never populate Value")
		assert.NotEmpty(t, obj.CustomMetadata)
	}
}

func TestListFullPopulatesBothValueAndMetadata(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "a/1", []byte("the-body"), map[string]string{"status": "ready"}))

	page, err := s.List(ctx, "a/", "", 10, ListFull)
	require.NoError(t, err)
	require.Len(t, page.Objects, 1)
	assert.Equal(t, []byte("the-body"), page.Objects[0].Value)
	assert.Equal(t, "ready", page.Objects[0].CustomMetadata["status"])
}

func TestListPaginationIsOpaqueAndExhaustive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		key := "p/" + string(rune('a'+i))
		require.NoError(t, s.Put(ctx, key, []byte("v"), nil))
	}

	var seen []string
	cursor := ""
	for {
		page, err := s.List(ctx, "p/", cursor, 2, ListKeysOnly)
		require.NoError(t, err)
		seen = append(seen, page.Keys...)
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	assert.Len(t, seen, 5)
	assert.Equal(t, []string{"p/a", "p/b", "p/c", "p/d", "p/e"}, seen)
}

func TestListByMetadataFiltersByPredicateWithoutReadingBodies(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "q/1", []byte("body1"), map[string]string{"status": "ready"}))
	require.NoError(t, s.Put(ctx, "q/2", []byte("body2"), map[string]string{"status": "pending"}))

	matched, err := s.ListByMetadata(ctx, "q/", func(meta map[string]string) bool {
		return meta["status"] == "ready"
	})
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, "q/1", matched[0].Key)
	assert.Empty(t, matched[0].Value)
}

func TestHasPrefix(t *testing.T) {
	assert.True(t, HasPrefix("clips/abc.json", "clips/"))
	assert.False(t, HasPrefix("clips/abc.json", "audio/"))
}

func TestPutEmptyKeyIsValidationError(t *testing.T) {
	s := newTestStore(t)
	err := s.Put(context.Background(), "", []byte("v"), nil)
	assert.Error(t, err)
}
