// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package orchestrator is the pipeline's state machine: the only
// component allowed to advance a ContentItem's processing_status. A run
// is a strict sequence of six idempotent stages — ingest, dedup+audio,
// transcribe, enhance, score+promote, assemble — each safe to re-enter
// (§4.17).
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/cartographus/internal/audioprocessor"
	"github.com/tomtom215/cartographus/internal/clipcatalog"
	"github.com/tomtom215/cartographus/internal/contentitem"
	"github.com/tomtom215/cartographus/internal/judge"
	"github.com/tomtom215/cartographus/internal/logging"
	"github.com/tomtom215/cartographus/internal/metrics"
	"github.com/tomtom215/cartographus/internal/models"
	"github.com/tomtom215/cartographus/internal/notifier"
	"github.com/tomtom215/cartographus/internal/objectstore"
	"github.com/tomtom215/cartographus/internal/scmpublisher"
	"github.com/tomtom215/cartographus/internal/scorer"
	"github.com/tomtom215/cartographus/internal/sectioner"
	"github.com/tomtom215/cartographus/internal/temporalmatcher"
	"github.com/tomtom215/cartographus/internal/transcriber"
)

// Options carries the orchestrator's tunables, layered from config.Config
// at wiring time.
type Options struct {
	BroadcasterID  string
	Repo           string // org/repo
	BaseBranch     string
	Canonical      string // canonical URL base for the rendered post
	LookbackHours  int
	MaxClipsPerRun int
	Weights        scorer.Weights
	Normalizations scorer.Normalizations
	Thresholds     judge.Thresholds
	Timezone       *time.Location
}

// Orchestrator wires every stage dependency together and drives runs.
type Orchestrator struct {
	os          *objectstore.Store
	items       *contentitem.Service
	clips       *clipcatalog.Client
	audio       *audioprocessor.Client
	transcriber *transcriber.Transcriber
	matcher     *temporalmatcher.Matcher
	sectioner   *sectioner.Sectioner
	judge       *judge.Judge
	publisher   *scmpublisher.Client
	notifier    *notifier.Notifier

	opts Options
}

// New builds an Orchestrator from its stage dependencies and options.
func New(
	os *objectstore.Store,
	items *contentitem.Service,
	clips *clipcatalog.Client,
	audio *audioprocessor.Client,
	tr *transcriber.Transcriber,
	matcher *temporalmatcher.Matcher,
	sec *sectioner.Sectioner,
	jdg *judge.Judge,
	publisher *scmpublisher.Client,
	ntf *notifier.Notifier,
	opts Options,
) *Orchestrator {
	if opts.Timezone == nil {
		opts.Timezone = time.UTC
	}
	if opts.LookbackHours <= 0 {
		opts.LookbackHours = 24
	}
	return &Orchestrator{
		os:          os,
		items:       items,
		clips:       clips,
		audio:       audio,
		transcriber: tr,
		matcher:     matcher,
		sectioner:   sec,
		judge:       jdg,
		publisher:   publisher,
		notifier:    ntf,
		opts:        opts,
	}
}

// NewRunID returns a lexicographically sortable, time-prefixed run
// identifier.
func NewRunID(now time.Time) string {
	return fmt.Sprintf("%s-%s", now.UTC().Format("20060102T150405"), uuid.New().String()[:8])
}

func runKey(runID string) string {
	return fmt.Sprintf("runs/%s.json", runID)
}

func clipKey(clipID string) string {
	return fmt.Sprintf("clips/%s.json", clipID)
}

func githubContextKey(clipID string) string {
	return fmt.Sprintf("github-context/%s.json", clipID)
}

// GetRunStatus fetches the RunStatus for runID.
func (o *Orchestrator) GetRunStatus(ctx context.Context, runID string) (*models.RunStatus, error) {
	obj, err := o.os.Get(ctx, runKey(runID))
	if err != nil {
		return nil, err
	}
	var rs models.RunStatus
	if err := json.Unmarshal(obj.Value, &rs); err != nil {
		return nil, err
	}
	return &rs, nil
}

func (o *Orchestrator) putRunStatus(ctx context.Context, rs *models.RunStatus) error {
	rs.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	encoded, err := json.Marshal(rs)
	if err != nil {
		return err
	}
	return o.os.Put(ctx, runKey(rs.RunID), encoded, map[string]string{"status": string(rs.Status)})
}

const totalStages = 6

func (o *Orchestrator) progress(ctx context.Context, rs *models.RunStatus, step string, current int) {
	rs.Progress = models.RunProgress{Step: step, Current: current, Total: totalStages}
	if err := o.putRunStatus(ctx, rs); err != nil {
		logging.Error().Err(err).Str("run_id", rs.RunID).Msg("failed to persist run progress")
	}
}

// Run executes one full orchestrator invocation for runID, writing
// RunStatus at start and at every stage boundary (§4.17).
func (o *Orchestrator) Run(ctx context.Context, runID string) error {
	now := time.Now().UTC()
	rs := &models.RunStatus{
		RunID:     runID,
		Status:    models.RunQueued,
		CreatedAt: now.Format(time.RFC3339),
	}
	if err := o.putRunStatus(ctx, rs); err != nil {
		return err
	}

	rs.Status = models.RunRunning
	o.progress(ctx, rs, "ingest", 1)

	stageStart := time.Now()
	ingestErr := o.stage1Ingest(ctx)
	metrics.RecordStageDuration("ingest", time.Since(stageStart))
	if ingestErr != nil {
		if perrIsFatal(ingestErr) {
			metrics.RecordOrchestratorRun("failed")
			return o.fail(ctx, rs, "ingest", ingestErr)
		}
		// Transient and retries exhausted: skip this run without
		// marking it failed (§4.17's failure table).
		logging.Warn().Err(ingestErr).Str("run_id", runID).Msg("ingest failed after retries, skipping run")
		rs.Status = models.RunSucceeded
		metrics.RecordOrchestratorRun("succeeded")
		return o.putRunStatus(ctx, rs)
	}

	o.progress(ctx, rs, "dedup_audio", 2)
	stageStart = time.Now()
	o.stage2DedupAudio(ctx) // partial success is acceptable; logs internally
	metrics.RecordStageDuration("dedup_audio", time.Since(stageStart))

	o.progress(ctx, rs, "transcribe", 3)
	stageStart = time.Now()
	o.stage3Transcribe(ctx) // per-clip failures leave items at audio_ready
	metrics.RecordStageDuration("transcribe", time.Since(stageStart))

	o.progress(ctx, rs, "enhance", 4)
	stageStart = time.Now()
	o.stage4Enhance(ctx) // per-clip failures leave items at transcribed
	metrics.RecordStageDuration("enhance", time.Since(stageStart))

	o.progress(ctx, rs, "score_promote", 5)
	stageStart = time.Now()
	selected, err := o.stage5ScoreAndPromote(ctx)
	metrics.RecordStageDuration("score_promote", time.Since(stageStart))
	if err != nil {
		o.notifier.NotifyError(ctx, runID, "score_promote", err)
		metrics.RecordOrchestratorRun("failed")
		return o.fail(ctx, rs, "score_promote", err)
	}
	metrics.RecordClipsSelected(len(selected))

	o.progress(ctx, rs, "assemble", 6)
	if len(selected) > 0 {
		stageStart = time.Now()
		err := o.stage6Assemble(ctx, selected, now)
		metrics.RecordStageDuration("assemble", time.Since(stageStart))
		if err != nil {
			o.notifier.NotifyError(ctx, runID, "assemble", err)
			metrics.RecordOrchestratorRun("failed")
			return o.fail(ctx, rs, "assemble", err)
		}
	}

	rs.Status = models.RunSucceeded
	metrics.RecordOrchestratorRun("succeeded")
	return o.putRunStatus(ctx, rs)
}

func (o *Orchestrator) fail(ctx context.Context, rs *models.RunStatus, stage string, err error) error {
	rs.Status = models.RunFailed
	rs.Error = fmt.Sprintf("%s: %v", stage, err)
	if putErr := o.putRunStatus(ctx, rs); putErr != nil {
		logging.Error().Err(putErr).Str("run_id", rs.RunID).Msg("failed to persist failed run status")
	}
	return err
}
