// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package contentitem implements CRUD over the central ContentItem
// record: status-partitioned listing via cursor pagination, forward-only
// status transitions, and sanitization at every read and write boundary
// (§4.9).
package contentitem

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cartographus/internal/models"
	"github.com/tomtom215/cartographus/internal/objectstore"
	"github.com/tomtom215/cartographus/internal/perr"
	"github.com/tomtom215/cartographus/internal/validation"
)

// Service is the ContentItem CRUD service.
type Service struct {
	os *objectstore.Store
}

// New wraps an object store as a ContentItem service.
func New(os *objectstore.Store) *Service {
	return &Service{os: os}
}

// Key returns the time-partitioned key for a ContentItem whose clip was
// created at createdAt (UTC components of clip_created_at, per §4.9/§8.2).
func Key(clipID string, createdAt time.Time) (string, error) {
	if !models.ClipIDPattern.MatchString(clipID) {
		return "", perr.Validation("contentitem.Key", "invalid clip_id", nil)
	}
	u := createdAt.UTC()
	return fmt.Sprintf("recaps/content-items/%04d/%02d/%s.json", u.Year(), u.Month(), clipID), nil
}

func sanitize(item *models.ContentItem) {
	item.ClipTitle = validation.SanitizeString(item.ClipTitle)
	item.ContentCategory = validation.SanitizeString(item.ContentCategory)
	for i, tag := range item.ContentTags {
		item.ContentTags[i] = validation.SanitizeString(tag)
	}
}

// Put validates and sanitizes item, stamps server-side fields, and
// writes it to its partitioned key. schema_version is set if absent.
func (s *Service) Put(ctx context.Context, item models.ContentItem) (*models.ContentItem, error) {
	if !models.ClipIDPattern.MatchString(item.ClipID) {
		return nil, perr.Validation("contentitem.Put", "invalid clip_id", nil)
	}
	if item.ProcessingStatus == "" {
		item.ProcessingStatus = models.StatusPending
	}
	if !item.ProcessingStatus.Valid() {
		return nil, perr.Validation("contentitem.Put", "invalid processing_status", nil)
	}
	if item.SchemaVersion == 0 {
		item.SchemaVersion = models.CurrentSchemaVersion
	}

	createdAt, err := time.Parse(time.RFC3339, item.ClipCreatedAt)
	if err != nil {
		return nil, perr.Validation("contentitem.Put", "invalid clip_created_at", err)
	}

	sanitize(&item)
	item.StoredAt = time.Now().UTC().Format(time.RFC3339)
	if item.ProcessingStatus == models.StatusReadyForContent {
		if item.ContentReadyAt == "" {
			item.ContentReadyAt = item.StoredAt
		}
	} else {
		item.ContentReadyAt = ""
	}

	key, err := Key(item.ClipID, createdAt)
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(item)
	if err != nil {
		return nil, perr.Validation("contentitem.Put", "failed to encode item", err)
	}

	meta := map[string]string{
		"schema-version":    fmt.Sprintf("%d", item.SchemaVersion),
		"clip-id":           item.ClipID,
		"created-at":        item.ClipCreatedAt,
		"processing-status": string(item.ProcessingStatus),
	}
	if err := s.os.Put(ctx, key, encoded, meta); err != nil {
		return nil, err
	}
	return &item, nil
}

// Get fetches and re-sanitizes the ContentItem for clipID/createdAt.
func (s *Service) Get(ctx context.Context, clipID string, createdAt time.Time) (*models.ContentItem, error) {
	key, err := Key(clipID, createdAt)
	if err != nil {
		return nil, err
	}
	obj, err := s.os.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var item models.ContentItem
	if err := json.Unmarshal(obj.Value, &item); err != nil {
		return nil, perr.State("contentitem.Get", "failed to decode stored item", err)
	}
	sanitize(&item)
	return &item, nil
}

// Update performs a read-modify-write: forbidden fields are preserved
// from the existing record, and processing_status may only move
// forward.
func (s *Service) Update(ctx context.Context, clipID string, createdAt time.Time, patch map[string]interface{}) (*models.ContentItem, error) {
	existing, err := s.Get(ctx, clipID, createdAt)
	if err != nil {
		return nil, err
	}

	clean := validation.StripForbiddenFields(patch, models.ForbiddenPatchFields)

	if rawStatus, ok := clean["processing_status"]; ok {
		newStatus, ok := rawStatus.(string)
		if !ok {
			return nil, perr.Validation("contentitem.Update", "processing_status must be a string", nil)
		}
		next := models.ProcessingStatus(newStatus)
		if !existing.ProcessingStatus.CanTransition(next) {
			return nil, perr.State("contentitem.Update", fmt.Sprintf("illegal transition %s -> %s", existing.ProcessingStatus, next), nil)
		}
		existing.ProcessingStatus = next
	}
	if v, ok := clean["audio_file_url"].(string); ok {
		existing.AudioFileURL = v
	}
	if v, ok := clean["content_category"].(string); ok {
		existing.ContentCategory = v
	}
	if v, ok := clean["enhanced_at"].(string); ok {
		existing.EnhancedAt = v
	}
	if v, ok := clean["content_score"].(float64); ok {
		existing.ContentScore = &v
	}

	return s.Put(ctx, *existing)
}

// Query parameterizes List.
type Query struct {
	Start            time.Time
	End              time.Time
	ProcessingStatus models.ProcessingStatus
	ContentCategory  string
	Limit            int
	Cursor           string
}

// Page is one page of a List call.
type Page struct {
	Items      []models.ContentItem
	NextCursor string
}

// List iterates ContentItems matching q. For a date-range query it walks
// month partitions in UTC order using the cursor's {year,month,
// continuation} shape; the processing_status filter applies to
// customMetadata from a metadata-only listing, so a page's body fetches
// (getFiltered) only happen for entries that already passed the status
// filter.
func (s *Service) List(ctx context.Context, q Query) (*Page, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}

	cursor := validation.DecodeContentCursor(q.Cursor)
	start, end := q.Start, q.End
	if start.IsZero() {
		start = time.Unix(0, 0)
	}
	if end.IsZero() {
		end = time.Now()
	}

	year, month := start.UTC().Year(), int(start.UTC().Month())
	if cursor.Year != 0 {
		year, month = cursor.Year, cursor.Month
	}

	page := &Page{}
	for {
		if year > end.UTC().Year() || (year == end.UTC().Year() && month > int(end.UTC().Month())) {
			break
		}

		prefix := fmt.Sprintf("recaps/content-items/%04d/%02d/", year, month)
		osPage, err := s.os.List(ctx, prefix, cursor.Continuation, limit-len(page.Items), objectstore.ListMetadataOnly)
		if err != nil {
			return nil, err
		}

		for _, obj := range osPage.Objects {
			if q.ProcessingStatus != "" && obj.CustomMetadata["processing-status"] != string(q.ProcessingStatus) {
				continue
			}
			item, err := s.getFiltered(ctx, obj.Key, q.ContentCategory)
			if err != nil || item == nil {
				continue
			}
			page.Items = append(page.Items, *item)
		}

		if len(page.Items) >= limit {
			page.NextCursor = validation.EncodeContentCursor(validation.ContentCursor{
				Year: year, Month: month, Continuation: osPage.NextCursor,
			})
			return page, nil
		}

		if osPage.NextCursor != "" {
			cursor.Continuation = osPage.NextCursor
			continue
		}

		cursor.Continuation = ""
		month++
		if month > 12 {
			month = 1
			year++
		}
	}

	return page, nil
}

// getFiltered fetches and decodes the body at key only once the
// metadata pre-filter in List has already passed, then applies the
// content_category filter (which needs the body) before sanitizing.
// A nil, nil result means key exists but failed the category filter.
func (s *Service) getFiltered(ctx context.Context, key, category string) (*models.ContentItem, error) {
	obj, err := s.os.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var item models.ContentItem
	if err := json.Unmarshal(obj.Value, &item); err != nil {
		return nil, err
	}
	if category != "" && item.ContentCategory != category {
		return nil, nil
	}
	sanitize(&item)
	return &item, nil
}

// CountsByStatus scans every partition in [start,end], reading only
// customMetadata, and returns per-status counts without fetching bodies.
func (s *Service) CountsByStatus(ctx context.Context, start, end time.Time) (map[models.ProcessingStatus]int, error) {
	counts := make(map[models.ProcessingStatus]int)

	year, month := start.UTC().Year(), int(start.UTC().Month())
	for {
		if year > end.UTC().Year() || (year == end.UTC().Year() && month > int(end.UTC().Month())) {
			break
		}
		prefix := fmt.Sprintf("recaps/content-items/%04d/%02d/", year, month)
		cursor := ""
		for {
			osPage, err := s.os.List(ctx, prefix, cursor, 500, objectstore.ListMetadataOnly)
			if err != nil {
				return nil, err
			}
			for _, obj := range osPage.Objects {
				counts[models.ProcessingStatus(obj.CustomMetadata["processing-status"])]++
			}
			if osPage.NextCursor == "" {
				break
			}
			cursor = osPage.NextCursor
		}
		month++
		if month > 12 {
			month = 1
			year++
		}
	}
	return counts, nil
}
