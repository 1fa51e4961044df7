// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package transcriber invokes the AI inference model for speech-to-text,
// normalizes its output, and stores the resulting Transcript artifact.
// A failed transcription leaves the owning ContentItem at audio_ready;
// the stage is idempotent and safe to re-run (§4.6).
package transcriber

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cartographus/internal/aiclient"
	"github.com/tomtom215/cartographus/internal/models"
	"github.com/tomtom215/cartographus/internal/objectstore"
	"github.com/tomtom215/cartographus/internal/perr"
	"github.com/tomtom215/cartographus/internal/retry"
)

// TranscriptKey returns the object-store key for a clip's transcript.
func TranscriptKey(clipID string) string {
	return fmt.Sprintf("transcripts/%s.json", clipID)
}

// AudioKey returns the object-store key for a clip's audio artifact.
func AudioKey(clipID string) string {
	return fmt.Sprintf("audio/%s.wav", clipID)
}

// Transcriber runs the speech-to-text stage.
type Transcriber struct {
	ai     *aiclient.Client
	store  *objectstore.Store
	model  string
	policy retry.Policy
}

// New builds a Transcriber using modelID for inference calls and policy
// for its per-call retry/backoff.
func New(ai *aiclient.Client, store *objectstore.Store, modelID string, policy retry.Policy) *Transcriber {
	return &Transcriber{ai: ai, store: store, model: modelID, policy: policy}
}

type rawTranscript struct {
	Language string                     `json:"language"`
	Text     string                     `json:"text"`
	Segments []models.TranscriptSegment `json:"segments"`
}

// Transcribe runs the stage for clipID. Preconditions: the audio
// artifact exists and no transcript does; callers are expected to check
// both before invoking (the orchestrator does, per Stage 3 in §4.17).
func (t *Transcriber) Transcribe(ctx context.Context, clipID string) (*models.Transcript, error) {
	if _, err := t.store.Head(ctx, AudioKey(clipID)); err != nil {
		return nil, perr.State("transcriber.Transcribe", "no audio artifact for clip", err)
	}
	if _, err := t.store.Get(ctx, TranscriptKey(clipID)); err == nil {
		return nil, perr.State("transcriber.Transcribe", "transcript already exists", nil)
	}

	prompt := fmt.Sprintf("Transcribe the audio for clip %s to plain text with timed segments as JSON.", clipID)

	var transcript *models.Transcript
	err := retry.Do(ctx, t.policy, func(ctx context.Context) error {
		raw, err := t.ai.Complete(ctx, t.model, prompt)
		if err != nil {
			return err
		}
		parsed, err := parseTranscript(clipID, raw)
		if err != nil {
			return err
		}
		transcript = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(transcript)
	if err != nil {
		return nil, perr.Validation("transcriber.Transcribe", "failed to encode transcript", err)
	}
	if err := t.store.Put(ctx, TranscriptKey(clipID), encoded, map[string]string{"clip-id": clipID}); err != nil {
		return nil, err
	}
	return transcript, nil
}

func parseTranscript(clipID, raw string) (*models.Transcript, error) {
	var rt rawTranscript
	if err := json.Unmarshal([]byte(raw), &rt); err != nil {
		return nil, perr.Contract("transcriber.parseTranscript", "malformed inference response", err)
	}
	if rt.Language == "" {
		rt.Language = "en"
	}
	rt.Text = strings.TrimSpace(rt.Text)

	prevEnd := 0.0
	for i, seg := range rt.Segments {
		if seg.StartS > seg.EndS || seg.StartS < prevEnd {
			return nil, perr.Contract("transcriber.parseTranscript", fmt.Sprintf("segment %d is not monotonic", i), nil)
		}
		prevEnd = seg.EndS
	}

	return &models.Transcript{
		ClipID:   clipID,
		Language: rt.Language,
		Text:     rt.Text,
		Segments: rt.Segments,
	}, nil
}
