// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package models

// ProcessingStatus is the ContentItem processing-status lattice. Values
// are ordered; a transition is legal only if it moves strictly forward
// (or stays put) in this order.
type ProcessingStatus string

const (
	StatusPending         ProcessingStatus = "pending"
	StatusAudioReady       ProcessingStatus = "audio_ready"
	StatusTranscribed      ProcessingStatus = "transcribed"
	StatusEnhanced         ProcessingStatus = "enhanced"
	StatusReadyForContent  ProcessingStatus = "ready_for_content"
)

// statusRank gives the lattice's total order; higher ranks are "later".
var statusRank = map[ProcessingStatus]int{
	StatusPending:        0,
	StatusAudioReady:      1,
	StatusTranscribed:     2,
	StatusEnhanced:        3,
	StatusReadyForContent: 4,
}

// Rank returns the status's position in the lattice, or -1 if unknown.
func (s ProcessingStatus) Rank() int {
	if r, ok := statusRank[s]; ok {
		return r
	}
	return -1
}

// Valid reports whether s is a recognized status.
func (s ProcessingStatus) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// CanTransition reports whether moving from s to next is legal: next
// must be a known status with rank >= s's rank (monotone forward,
// staying put allowed for idempotent re-writes).
func (s ProcessingStatus) CanTransition(next ProcessingStatus) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	return next.Rank() >= s.Rank()
}

// ArtifactRef is a reference to an artifact owned by another stage:
// downstream code holds this, never an embedded copy.
type ArtifactRef struct {
	URL     string `json:"url"`
	Size    int64  `json:"size"`
	Summary string `json:"summary"`
}

// ContentItem is the canonical, status-tracked record for one clip —
// the central table of the system. Exactly one exists per clip_id.
type ContentItem struct {
	SchemaVersion int    `json:"schema_version"`
	ClipID        string `json:"clip_id"`
	ClipTitle     string `json:"clip_title"`
	ClipURL       string `json:"clip_url"`
	ClipDuration  int    `json:"clip_duration"`
	ClipCreatedAt string `json:"clip_created_at"`

	ProcessingStatus ProcessingStatus `json:"processing_status"`
	AudioFileURL     string           `json:"audio_file_url,omitempty"`

	Transcript    *ArtifactRef `json:"transcript,omitempty"`
	GitHubContext *ArtifactRef `json:"github_context,omitempty"`

	ContentScore    *float64 `json:"content_score,omitempty"`
	ContentTags     []string `json:"content_tags,omitempty"`
	ContentCategory string   `json:"content_category,omitempty"`

	StoredAt       string `json:"stored_at"`
	EnhancedAt     string `json:"enhanced_at,omitempty"`
	ContentReadyAt string `json:"content_ready_at,omitempty"`
}

// CurrentSchemaVersion is stamped onto every ContentItem written fresh.
const CurrentSchemaVersion = 1

// ForbiddenPatchFields lists ContentItem fields that update() must always
// preserve from the existing record rather than accept from a caller's
// patch, per §4.9.
var ForbiddenPatchFields = []string{
	"schema_version", "clip_id", "clip_title", "clip_url",
	"clip_duration", "clip_created_at", "stored_at",
}
