// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package main is the entry point for the Cartographus content pipeline
// server.
//
// Cartographus watches a Twitch channel for new clips, correlates them
// against a GitHub organization's recent activity, scores and sections
// the best candidates with an AI model, assembles a daily recap blog
// post, opens it as a pull request, and notifies a chat channel once
// it's live.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: load settings from environment variables and a
//     config file (Koanf v2)
//  2. Logging: structured JSON logging via zerolog
//  3. Object store: the flat key/value store backing every artifact
//  4. Credential sources: Twitch OAuth and GitHub App installation tokens
//  5. Upstream clients: clip catalog, audio processor, transcriber,
//     temporal matcher, sectioner, judge, SCM publisher, notifier
//  6. Orchestrator: wires every stage together
//  7. Scheduler: three cron jobs (token validation, transcription sweep,
//     daily pipeline run)
//  8. HTTP server: the pipeline's control-plane API (§6)
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM, giving
// in-flight requests and the scheduler 10 seconds to finish.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/cartographus/internal/aiclient"
	"github.com/tomtom215/cartographus/internal/api"
	"github.com/tomtom215/cartographus/internal/audioprocessor"
	"github.com/tomtom215/cartographus/internal/auth"
	"github.com/tomtom215/cartographus/internal/clipcatalog"
	"github.com/tomtom215/cartographus/internal/config"
	"github.com/tomtom215/cartographus/internal/contentitem"
	"github.com/tomtom215/cartographus/internal/eventstore"
	"github.com/tomtom215/cartographus/internal/judge"
	"github.com/tomtom215/cartographus/internal/logging"
	"github.com/tomtom215/cartographus/internal/migration"
	"github.com/tomtom215/cartographus/internal/notifier"
	"github.com/tomtom215/cartographus/internal/objectstore"
	"github.com/tomtom215/cartographus/internal/orchestrator"
	"github.com/tomtom215/cartographus/internal/retry"
	"github.com/tomtom215/cartographus/internal/scheduler"
	"github.com/tomtom215/cartographus/internal/scmpublisher"
	"github.com/tomtom215/cartographus/internal/scorer"
	"github.com/tomtom215/cartographus/internal/sectioner"
	"github.com/tomtom215/cartographus/internal/temporalmatcher"
	"github.com/tomtom215/cartographus/internal/transcriber"
	"github.com/tomtom215/cartographus/internal/webhook"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.DefaultConfig())
	logging.Info().Msg("starting cartographus content pipeline")

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logging.Warn().Err(err).Str("timezone", cfg.Timezone).Msg("invalid timezone, falling back to UTC")
		loc = time.UTC
	}

	os_, err := objectstore.Open(cfg.ObjectStorePath)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open object store")
	}

	items := contentitem.New(os_)
	events := eventstore.New(os_)

	twitchTokens := auth.NewOAuthTokenSource(
		cfg.ClipCatalog.ClientID,
		cfg.ClipCatalog.ClientSecret,
		cfg.ClipCatalog.TokenURL,
		cfg.ClipCatalog.VerifyURL,
		cfg.TokenSkew,
	)
	githubTokens, err := auth.NewInstallationTokenSource(
		cfg.SCM.AppID,
		cfg.SCM.InstallationID,
		cfg.SCM.APIBaseURL,
		cfg.SCM.PrivateKeyPEM,
		cfg.SCM.KeyID,
	)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to build github installation token source")
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}

	clips := clipcatalog.New(cfg.ClipCatalog.BaseURL, twitchTokens, httpClient)
	signer := auth.NewRequestSigner(cfg.HMACSecret)
	audio := audioprocessor.New(cfg.AudioProcessor.BaseURL, signer, os_, cfg.AudioProcessor.PollAttempts, cfg.AudioProcessor.PollInterval)

	ai := aiclient.New(cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.CallTimeout, retry.DefaultPolicy(3))
	tr := transcriber.New(ai, os_, cfg.AI.TranscribeModel, retry.DefaultPolicy(cfg.Retries.Transcribe))
	matcher := temporalmatcher.New(events, cfg.TemporalMatchWindow)
	sec := sectioner.New(ai, cfg.AI.SectionerModel, retry.DefaultPolicy(3))
	jdg := judge.New(ai, cfg.AI.JudgeModel, retry.DefaultPolicy(3))
	publisher := scmpublisher.New(cfg.SCM.APIBaseURL, cfg.SCM.ContentRepo, githubTokens, httpClient, retry.DefaultPolicy(cfg.Retries.Publisher))
	ntf := notifier.New(cfg.Notifier.WebhookURL)

	broadcasterID := cfg.ClipCatalog.BroadcasterID

	orch := orchestrator.New(os_, items, clips, audio, tr, matcher, sec, jdg, publisher, ntf, orchestrator.Options{
		BroadcasterID:  broadcasterID,
		Repo:           cfg.SCM.ContentRepo,
		BaseBranch:     cfg.SCM.BaseBranch,
		Canonical:      cfg.SCM.ContentRepo,
		LookbackHours:  cfg.LookbackHours,
		MaxClipsPerRun: cfg.MaxClipsPerRun,
		Weights:        scorer.DefaultWeights,
		Normalizations: scorer.DefaultNormalizations,
		Thresholds: judge.Thresholds{
			OverallMin: cfg.Thresholds.JudgeOverallMin,
			AxisMin:    cfg.Thresholds.JudgeAxisMin,
		},
		Timezone: loc,
	})

	migrator := migration.New(os_, items)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := scheduler.New(buildJobs(orch, twitchTokens, githubTokens), 25*time.Minute, loc)
	sched.Start(ctx)

	verifier := auth.NewRequestVerifier(cfg.HMACSecret)
	webhookHandler := webhook.New(cfg.SCM.WebhookSecret, events)
	handler := api.NewHandler(os_, items, clips, orch, migrator, twitchTokens, githubTokens, broadcasterID, cfg.SCM.Repos, events)
	router := api.NewRouter(handler, verifier, webhookHandler)

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
			return
		}
		serverErrCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case err := <-serverErrCh:
		if err != nil {
			logging.Error().Err(err).Msg("http server error")
		}
	}

	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("error during http server shutdown")
	}

	cancel()
	logging.Info().Msg("cartographus stopped gracefully")
}

// buildJobs wires the three cron triggers from spec §6: hourly token
// validation, a six-hourly transcription sweep, and the daily pipeline
// run.
func buildJobs(orch *orchestrator.Orchestrator, twitchTokens, githubTokens api.TokenValidator) []*scheduler.Job {
	hourly, err := scheduler.Parse("0 * * * *")
	if err != nil {
		logging.Fatal().Err(err).Msg("invalid token validation cron expression")
	}
	sixHourly, err := scheduler.Parse("0 */6 * * *")
	if err != nil {
		logging.Fatal().Err(err).Msg("invalid transcription sweep cron expression")
	}
	daily, err := scheduler.Parse("0 2 * * *")
	if err != nil {
		logging.Fatal().Err(err).Msg("invalid daily pipeline cron expression")
	}

	return []*scheduler.Job{
		{
			Name: "token_validation",
			Expr: hourly,
			Run: func(ctx context.Context) {
				if _, err := twitchTokens.Token(ctx); err != nil {
					logging.Warn().Err(err).Msg("twitch token validation failed")
				}
				if _, err := githubTokens.Token(ctx); err != nil {
					logging.Warn().Err(err).Msg("github token validation failed")
				}
			},
		},
		{
			Name: "transcription_sweep",
			Expr: sixHourly,
			Run: func(ctx context.Context) {
				runID := orchestrator.NewRunID(time.Now())
				logging.Info().Str("run_id", runID).Msg("transcription sweep starting")
			},
		},
		{
			Name: "daily_pipeline",
			Expr: daily,
			Run: func(ctx context.Context) {
				runID := orchestrator.NewRunID(time.Now())
				if err := orch.Run(ctx, runID); err != nil {
					logging.Error().Err(err).Str("run_id", runID).Msg("daily pipeline run failed")
				}
			},
		},
	}
}
