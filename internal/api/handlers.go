// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package api exposes the pipeline's HTTP surface (§6): health, upstream
// credential validation, clip CRUD, run dispatch and status, ContentItem
// listing, legacy migration, and the inbound SCM webhook.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/cartographus/internal/clipcatalog"
	"github.com/tomtom215/cartographus/internal/contentitem"
	"github.com/tomtom215/cartographus/internal/logging"
	"github.com/tomtom215/cartographus/internal/migration"
	"github.com/tomtom215/cartographus/internal/models"
	"github.com/tomtom215/cartographus/internal/objectstore"
	"github.com/tomtom215/cartographus/internal/orchestrator"
	"github.com/tomtom215/cartographus/internal/validation"
)

const maxBulkClips = 100
const maxClipsBodyBytes = 10 << 20 // 10 MiB

// TokenValidator is satisfied by auth.OAuthTokenSource and
// auth.InstallationTokenSource: both expose Token as their credential
// health check.
type TokenValidator interface {
	Token(ctx context.Context) (string, error)
}

// Handler holds every dependency the HTTP surface calls into.
type Handler struct {
	os           *objectstore.Store
	items        *contentitem.Service
	clips        *clipcatalog.Client
	orchestrator *orchestrator.Orchestrator
	migrator     *migration.Migrator

	twitchTokens TokenValidator
	githubTokens TokenValidator

	broadcasterID string
	repos         []string
	activity      ActivityReader
}

// ActivityReader is satisfied by eventstore.Store.
type ActivityReader interface {
	GetEvents(ctx context.Context, start, end time.Time, repo string) ([]models.GitHubEvent, error)
}

// NewHandler wires every handler dependency.
func NewHandler(
	os *objectstore.Store,
	items *contentitem.Service,
	clips *clipcatalog.Client,
	orch *orchestrator.Orchestrator,
	migrator *migration.Migrator,
	twitchTokens, githubTokens TokenValidator,
	broadcasterID string,
	repos []string,
	activity ActivityReader,
) *Handler {
	return &Handler{
		os:            os,
		items:         items,
		clips:         clips,
		orchestrator:  orch,
		migrator:      migrator,
		twitchTokens:  twitchTokens,
		githubTokens:  githubTokens,
		broadcasterID: broadcasterID,
		repos:         repos,
		activity:      activity,
	}
}

func clipKey(clipID string) string {
	return "clips/" + clipID + ".json"
}

// Health reports liveness with no auth required.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, map[string]string{"status": "ok"})
}

// ValidateTwitch exercises the upstream clip catalog's credentials.
func (h *Handler) ValidateTwitch(w http.ResponseWriter, r *http.Request) {
	if _, err := h.twitchTokens.Token(r.Context()); err != nil {
		NewResponseWriter(w, r).BadRequestWithDetails("twitch credential validation failed", err.Error())
		return
	}
	WriteSuccess(w, r, map[string]bool{"valid": true})
}

// ValidateGitHub exercises the SCM app's installation-token credentials.
func (h *Handler) ValidateGitHub(w http.ResponseWriter, r *http.Request) {
	if _, err := h.githubTokens.Token(r.Context()); err != nil {
		NewResponseWriter(w, r).BadRequestWithDetails("github credential validation failed", err.Error())
		return
	}
	WriteSuccess(w, r, map[string]bool{"valid": true})
}

// ListClips returns clips created in the last 24 hours.
func (h *Handler) ListClips(w http.ResponseWriter, r *http.Request) {
	until := time.Now().UTC()
	since := until.Add(-24 * time.Hour)
	clips, err := h.clips.ListRecentClips(r.Context(), h.broadcasterID, since.Format(time.RFC3339), until.Format(time.RFC3339), maxBulkClips)
	if err != nil {
		NewResponseWriter(w, r).ExternalServiceError("clipcatalog", err)
		return
	}
	WriteSuccess(w, r, clips)
}

// StoreClips bulk-stores up to maxBulkClips clip records.
func (h *Handler) StoreClips(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxClipsBodyBytes)

	var clips []models.Clip
	if err := json.NewDecoder(r.Body).Decode(&clips); err != nil {
		NewResponseWriter(w, r).BadRequest("invalid request body")
		return
	}
	if len(clips) > maxBulkClips {
		NewResponseWriter(w, r).Error(http.StatusRequestEntityTooLarge, ErrCodeBadRequest, "too many clips in one request")
		return
	}

	stored := 0
	var failures []string
	for _, clip := range clips {
		if ve := validation.ValidateStruct(clip); ve != nil {
			failures = append(failures, clip.ClipID+": "+ve.Error())
			continue
		}
		if err := h.storeClip(r.Context(), clip); err != nil {
			failures = append(failures, clip.ClipID+": "+err.Error())
			continue
		}
		stored++
	}

	NewResponseWriter(w, r).Success(map[string]interface{}{
		"stored":   stored,
		"failures": failures,
	})
}

func (h *Handler) storeClip(ctx context.Context, clip models.Clip) error {
	encoded, err := json.Marshal(clip)
	if err != nil {
		return err
	}
	if err := h.os.Put(ctx, clipKey(clip.ClipID), encoded, map[string]string{"clip-id": clip.ClipID}); err != nil {
		return err
	}

	createdAt, err := time.Parse(time.RFC3339, clip.CreatedAt)
	if err != nil {
		return err
	}
	if _, err := h.items.Get(ctx, clip.ClipID, createdAt); err == nil {
		return nil // already tracked
	}

	item := models.ContentItem{
		ClipID:           clip.ClipID,
		ClipTitle:        clip.Title,
		ClipURL:          clip.URL,
		ClipDuration:     clip.DurationSec,
		ClipCreatedAt:    clip.CreatedAt,
		ProcessingStatus: models.StatusPending,
	}
	_, err = h.items.Put(ctx, item)
	return err
}

type updateClipRequest struct {
	ClipID    string                 `json:"clip_id"`
	CreatedAt string                 `json:"created_at"`
	Patch     map[string]interface{} `json:"patch"`
}

// UpdateClip patches a ContentItem's editable fields (processing_status,
// audio_file_url, content_category, enhanced_at, content_score) — never
// the immutable Clip record.
func (h *Handler) UpdateClip(w http.ResponseWriter, r *http.Request) {
	var req updateClipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		NewResponseWriter(w, r).BadRequest("invalid request body")
		return
	}
	createdAt, err := time.Parse(time.RFC3339, req.CreatedAt)
	if err != nil {
		NewResponseWriter(w, r).BadRequest("invalid created_at")
		return
	}

	updated, err := h.items.Update(r.Context(), req.ClipID, createdAt, req.Patch)
	if err != nil {
		NewResponseWriter(w, r).BadRequestWithDetails("update failed", err.Error())
		return
	}
	WriteSuccess(w, r, updated)
}

// GetStoredClip fetches one immutable clip record by id.
func (h *Handler) GetStoredClip(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		NewResponseWriter(w, r).BadRequest("id is required")
		return
	}
	obj, err := h.os.Get(r.Context(), clipKey(id))
	if err != nil {
		NewResponseWriter(w, r).NotFound("clip not found")
		return
	}
	var clip models.Clip
	if err := json.Unmarshal(obj.Value, &clip); err != nil {
		NewResponseWriter(w, r).InternalError("failed to decode stored clip")
		return
	}
	WriteSuccess(w, r, clip)
}

// GitHubActivity aggregates event counts across every configured repo
// over the last 24 hours.
func (h *Handler) GitHubActivity(w http.ResponseWriter, r *http.Request) {
	until := time.Now().UTC()
	since := until.Add(-24 * time.Hour)

	counts := make(map[string]int, len(h.repos))
	total := 0
	for _, repo := range h.repos {
		events, err := h.activity.GetEvents(r.Context(), since, until, repo)
		if err != nil {
			NewResponseWriter(w, r).ExternalServiceError("eventstore", err)
			return
		}
		counts[repo] = len(events)
		total += len(events)
	}
	WriteSuccess(w, r, map[string]interface{}{
		"since":       since.Format(time.RFC3339),
		"until":       until.Format(time.RFC3339),
		"total":       total,
		"by_repo":     counts,
	})
}

// GenerateContent kicks off an orchestrator run asynchronously and
// returns its run_id immediately.
func (h *Handler) GenerateContent(w http.ResponseWriter, r *http.Request) {
	runID := orchestrator.NewRunID(time.Now())

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 25*time.Minute)
		defer cancel()
		if err := h.orchestrator.Run(ctx, runID); err != nil {
			logging.Error().Err(err).Str("run_id", runID).Msg("orchestrator run failed")
		}
	}()

	rw := NewResponseWriter(w, r)
	rw.writeJSON(http.StatusAccepted, APIResponse{
		Success: true,
		Data:    map[string]string{"run_id": runID},
	})
}

// RunStatus fetches a run's current status.
func (h *Handler) RunStatus(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "run_id")
	if runID == "" {
		NewResponseWriter(w, r).BadRequest("run_id is required")
		return
	}
	status, err := h.orchestrator.GetRunStatus(r.Context(), runID)
	if err != nil {
		NewResponseWriter(w, r).NotFound("run not found")
		return
	}
	WriteSuccess(w, r, status)
}

// ContentItems lists ContentItems with optional status/cursor filters.
func (h *Handler) ContentItems(w http.ResponseWriter, r *http.Request) {
	q := contentitem.Query{
		Start:            time.Unix(0, 0),
		End:              time.Now(),
		ProcessingStatus: models.ProcessingStatus(r.URL.Query().Get("status")),
		ContentCategory:  r.URL.Query().Get("category"),
		Cursor:           r.URL.Query().Get("cursor"),
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			q.Limit = limit
		}
	}

	page, err := h.items.List(r.Context(), q)
	if err != nil {
		NewResponseWriter(w, r).InternalError("failed to list content items")
		return
	}
	NewResponseWriter(w, r).SuccessWithPagination(page.Items, &PaginationMeta{
		Count:      len(page.Items),
		NextCursor: page.NextCursor,
		HasMore:    page.NextCursor != "",
	})
}

// MigrateContent runs the legacy-clip backfill.
func (h *Handler) MigrateContent(w http.ResponseWriter, r *http.Request) {
	report, err := h.migrator.Run(r.Context())
	if err != nil {
		NewResponseWriter(w, r).InternalError("migration run failed")
		return
	}
	WriteSuccess(w, r, report)
}
