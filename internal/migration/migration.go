// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package migration converts legacy flat clip records into ContentItems,
// deriving processing_status from whatever artifacts already exist for
// each clip. Re-running is safe: a record is only overwritten when the
// freshly-derived one is strictly more complete (§4.10).
package migration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cartographus/internal/contentitem"
	"github.com/tomtom215/cartographus/internal/models"
	"github.com/tomtom215/cartographus/internal/objectstore"
	"github.com/tomtom215/cartographus/internal/perr"
)

// FailureCode is a typed per-clip migration failure reason.
type FailureCode string

const (
	FailureJSONParse      FailureCode = "json_parse_failed"
	FailureClipValidation FailureCode = "clip_validation_failed"
	FailureStorage        FailureCode = "storage_failed"
)

// Failure records one clip's migration failure.
type Failure struct {
	ClipID string      `json:"clip_id"`
	Code   FailureCode `json:"code"`
	Detail string      `json:"detail"`
}

// Report summarizes one migration run.
type Report struct {
	Scanned  int       `json:"scanned"`
	Migrated int       `json:"migrated"`
	Skipped  int       `json:"skipped"`
	Failures []Failure `json:"failures"`
}

// Migrator reads legacy clip records and writes ContentItems.
type Migrator struct {
	os    *objectstore.Store
	items *contentitem.Service
}

// New builds a Migrator over os, writing through items.
func New(os *objectstore.Store, items *contentitem.Service) *Migrator {
	return &Migrator{os: os, items: items}
}

// legacyPrefix is the root of the two known on-disk shapes for a legacy
// clip record (§9 Open Question 1): flat `clips/{id}.json` and nested
// `clips/{id}/meta.json`. New writes stay flat; migration reads both.
const legacyPrefix = "clips/"

// Run scans every legacy clip record under clips/, derives and writes a
// ContentItem for each, and returns a summary report. It never aborts
// on a single clip's failure — that clip is recorded in Failures and
// the scan continues.
func (m *Migrator) Run(ctx context.Context) (*Report, error) {
	report := &Report{}

	cursor := ""
	for {
		page, err := m.os.List(ctx, legacyPrefix, cursor, 100, objectstore.ListFull)
		if err != nil {
			return report, err
		}

		for _, obj := range page.Objects {
			if !isLegacyClipKey(obj.Key) {
				continue
			}
			report.Scanned++

			migrated, err := m.migrateOne(ctx, obj.Key, obj.Value)
			if err != nil {
				report.Failures = append(report.Failures, toFailure(obj.Key, err))
				continue
			}
			if migrated {
				report.Migrated++
			} else {
				report.Skipped++
			}
		}

		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	return report, nil
}

// isLegacyClipKey matches either clips/{id}.json or clips/{id}/meta.json.
func isLegacyClipKey(key string) bool {
	if !objectstore.HasPrefix(key, legacyPrefix) {
		return false
	}
	rest := key[len(legacyPrefix):]
	return rest != "" && (hasJSONSuffix(rest) || hasMetaSuffix(rest))
}

func hasJSONSuffix(s string) bool {
	return len(s) > 5 && s[len(s)-5:] == ".json" && indexByte(s, '/') == -1
}

func hasMetaSuffix(s string) bool {
	return len(s) > 10 && s[len(s)-10:] == "/meta.json"
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

func clipIDFromKey(key string) string {
	rest := key[len(legacyPrefix):]
	if hasMetaSuffix(rest) {
		return rest[:len(rest)-len("/meta.json")]
	}
	return rest[:len(rest)-len(".json")]
}

// migrateOne returns (true, nil) when it writes a ContentItem, (false,
// nil) when an existing record is already at least as complete and the
// write is skipped, or a non-nil error on failure.
func (m *Migrator) migrateOne(ctx context.Context, key string, raw []byte) (bool, error) {
	var clip models.Clip
	if err := json.Unmarshal(raw, &clip); err != nil {
		return false, perr.Validation("migration.migrateOne", string(FailureJSONParse), err)
	}
	if !models.ClipIDPattern.MatchString(clip.ClipID) || clip.Title == "" || clip.CreatedAt == "" {
		return false, perr.Validation("migration.migrateOne", string(FailureClipValidation), nil)
	}

	status := deriveStatus(ctx, m.os, clip.ClipID)

	item := models.ContentItem{
		ClipID:           clip.ClipID,
		ClipTitle:        clip.Title,
		ClipURL:          clip.URL,
		ClipDuration:     clip.DurationSec,
		ClipCreatedAt:    clip.CreatedAt,
		ProcessingStatus: status,
	}

	createdAt, err := time.Parse(time.RFC3339, clip.CreatedAt)
	if err != nil {
		return false, perr.Validation("migration.migrateOne", string(FailureClipValidation), err)
	}

	existing, err := m.items.Get(ctx, clip.ClipID, createdAt)
	if err == nil && !isMoreComplete(item, *existing) {
		return false, nil // existing record is at least as complete; skip overwrite
	}

	if _, err := m.items.Put(ctx, item); err != nil {
		return false, perr.State("migration.migrateOne", string(FailureStorage), err)
	}
	return true, nil
}

// deriveStatus infers processing_status from whichever downstream
// artifacts already exist for clipID, without trusting any stored
// status field (§4.10/§9's "never trust in-memory casts" guidance).
func deriveStatus(ctx context.Context, os *objectstore.Store, clipID string) models.ProcessingStatus {
	if _, err := os.Head(ctx, fmt.Sprintf("audio/%s.wav", clipID)); err != nil {
		return models.StatusPending
	}
	if _, err := os.Head(ctx, fmt.Sprintf("transcripts/%s.json", clipID)); err != nil {
		return models.StatusAudioReady
	}
	return models.StatusTranscribed
}

func isMoreComplete(fresh, existing models.ContentItem) bool {
	return fresh.ProcessingStatus.Rank() > existing.ProcessingStatus.Rank()
}

// toFailure recovers the FailureCode stamped as the perr.Error's
// Message by each constructor call above.
func toFailure(key string, err error) Failure {
	clipID := clipIDFromKey(key)
	code := FailureStorage
	var pe *perr.Error
	if errors.As(err, &pe) {
		code = FailureCode(pe.Message)
	}
	return Failure{ClipID: clipID, Code: code, Detail: err.Error()}
}

