// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package eventstore indexes source-control GitHubEvents under
// time-partitioned keys so a range query can narrow to the day
// partitions that intersect it without scanning the whole corpus.
package eventstore

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cartographus/internal/models"
	"github.com/tomtom215/cartographus/internal/objectstore"
	"github.com/tomtom215/cartographus/internal/perr"
)

// Store persists and queries GitHubEvents.
type Store struct {
	os *objectstore.Store
}

// New wraps an object store as an EventStore.
func New(os *objectstore.Store) *Store {
	return &Store{os: os}
}

// dayPrefix returns the UTC YYYY/MM/DD prefix for t.
func dayPrefix(t time.Time) string {
	u := t.UTC()
	return fmt.Sprintf("github-events/%04d/%02d/%02d/", u.Year(), u.Month(), u.Day())
}

// Key returns the object-store key for an event at timestamp t with the
// given delivery id.
func Key(t time.Time, deliveryID string) string {
	return fmt.Sprintf("%s%d-%s.json", dayPrefix(t), t.UTC().UnixMilli(), deliveryID)
}

// Put appends an event under its time-partitioned key, with
// customMetadata carrying event_type and repo so range queries can
// filter without reading bodies.
func (s *Store) Put(ctx context.Context, t time.Time, event models.GitHubEvent) error {
	encoded, err := json.Marshal(event)
	if err != nil {
		return perr.Validation("eventstore.Put", "failed to encode event", err)
	}
	meta := map[string]string{
		"event_type": event.EventType,
		"repo":       event.Repository,
	}
	return s.os.Put(ctx, Key(t, event.DeliveryID), encoded, meta)
}

// GetEvents returns every event stored between start and end (inclusive)
// optionally filtered to repo, by narrowing to the UTC day partitions
// the range intersects and then filtering on customMetadata before
// fetching bodies for hits.
func (s *Store) GetEvents(ctx context.Context, start, end time.Time, repo string) ([]models.GitHubEvent, error) {
	var events []models.GitHubEvent

	for day := start.UTC().Truncate(24 * time.Hour); !day.After(end.UTC()); day = day.Add(24 * time.Hour) {
		prefix := dayPrefix(day)
		objs, err := s.os.ListByMetadata(ctx, prefix, func(meta map[string]string) bool {
			if repo != "" && meta["repo"] != repo {
				return false
			}
			return true
		})
		if err != nil {
			return nil, err
		}
		for _, obj := range objs {
			full, err := s.os.Get(ctx, obj.Key)
			if err != nil {
				continue
			}
			var ev models.GitHubEvent
			if err := json.Unmarshal(full.Value, &ev); err != nil {
				continue
			}
			ts, err := time.Parse(time.RFC3339, ev.Timestamp)
			if err != nil {
				continue
			}
			if ts.Before(start) || ts.After(end) {
				continue
			}
			events = append(events, ev)
		}
	}
	return events, nil
}
