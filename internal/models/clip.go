// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package models

import "regexp"

// ClipIDPattern is the allowed character class for a clip identifier.
var ClipIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,50}$`)

// Clip is an immutable short broadcast-video highlight as returned by the
// upstream clip catalog. Once ingested, none of its fields are mutated.
type Clip struct {
	ClipID      string `json:"clip_id" validate:"required"`
	Title       string `json:"title" validate:"required"`
	URL         string `json:"url" validate:"required,url"`
	EmbedURL    string `json:"embed_url" validate:"required,url"`
	ThumbnailURL string `json:"thumbnail_url" validate:"omitempty,url"`
	DurationSec int     `json:"duration_seconds" validate:"min=0,max=3600"`
	ViewCount   int64   `json:"view_count" validate:"min=0"`
	CreatedAt   string  `json:"created_at" validate:"required"` // ISO UTC
	Broadcaster string  `json:"broadcaster"`
	Creator     string  `json:"creator"`
}

// AudioArtifact records where a clip's extracted audio lives. Created once
// by the AudioProcessor client; referenced, never mutated, by Transcriber.
type AudioArtifact struct {
	ClipID   string `json:"clip_id"`
	Key      string `json:"key"`
	SizeBytes int64 `json:"size_bytes"`
	Format   string `json:"format"`
}

// TranscriptSegment is one ordered chunk of a Transcript's timed text.
type TranscriptSegment struct {
	StartS float64 `json:"start_s"`
	EndS   float64 `json:"end_s"`
	Text   string  `json:"text"`
}

// Transcript is the speech-to-text result for one clip. At most one
// exists per clip_id; re-transcription (admin-only) overwrites it.
type Transcript struct {
	ClipID   string              `json:"clip_id"`
	Language string              `json:"language"` // BCP-47
	Redacted bool                `json:"redacted"`
	Text     string              `json:"text"`
	Segments []TranscriptSegment `json:"segments"`
}

// WordCount is an approximate whitespace-delimited word count of the
// transcript text, used by the scorer's transcript-length component.
func (t *Transcript) WordCount() int {
	if t == nil {
		return 0
	}
	count := 0
	inWord := false
	for _, r := range t.Text {
		isSpace := r == ' ' || r == '\n' || r == '\t' || r == '\r'
		if !isSpace && !inWord {
			count++
			inWord = true
		} else if isSpace {
			inWord = false
		}
	}
	return count
}
