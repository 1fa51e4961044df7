// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package webhook implements the inbound source-control webhook
// receiver: verify HMAC, parse, respond quickly, persist the event
// without blocking the response (§4.7).
package webhook

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cartographus/internal/auth"
	"github.com/tomtom215/cartographus/internal/logging"
	"github.com/tomtom215/cartographus/internal/models"
)

// EventStore persists received events.
type EventStore interface {
	Put(ctx context.Context, t time.Time, event models.GitHubEvent) error
}

// Handler serves POST /webhook/github.
type Handler struct {
	secret string
	store  EventStore
}

// New builds a Handler verifying inbound webhooks against secret.
func New(secret string, store EventStore) *Handler {
	return &Handler{secret: secret, store: store}
}

// ServeHTTP reads the raw body first (required for HMAC verification),
// verifies the signature, parses the event, and responds before the
// event is durably persisted.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	eventType := r.Header.Get("X-GitHub-Event")
	if eventType == "" {
		respondError(w, http.StatusBadRequest, "MISSING_EVENT_TYPE", "X-GitHub-Event header required")
		return
	}

	signature := r.Header.Get("X-Hub-Signature-256")
	if signature == "" {
		respondError(w, http.StatusUnauthorized, "MISSING_SIGNATURE", "X-Hub-Signature-256 header required")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "failed to read request body")
		return
	}
	defer r.Body.Close()

	if !auth.VerifyWebhookSignature(body, signature, h.secret) {
		respondError(w, http.StatusUnauthorized, "INVALID_SIGNATURE", "webhook signature verification failed")
		return
	}

	if eventType == "ping" {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Pong"))
		return
	}

	deliveryID := r.Header.Get("X-GitHub-Delivery")
	payload, repo, err := parsePayload(r.Header.Get("Content-Type"), body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PAYLOAD", "failed to parse webhook payload")
		return
	}

	event := models.GitHubEvent{
		DeliveryID: deliveryID,
		EventType:  eventType,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Repository: repo,
		Payload:    payload,
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"success":true}`))

	// Persist after responding; the object store write is the only
	// blocking work left, and the orchestrator tolerates its async
	// visibility (§5 epsilon).
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := h.store.Put(ctx, time.Now(), event); err != nil {
			logging.Error().Err(err).Str("delivery_id", deliveryID).Str("event_type", eventType).Msg("failed to persist webhook event")
		}
	}()
}

func parsePayload(contentType string, body []byte) (map[string]interface{}, string, error) {
	var payload map[string]interface{}

	if strings.Contains(contentType, "application/x-www-form-urlencoded") {
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, "", err
		}
		raw := values.Get("payload")
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return nil, "", err
		}
	} else {
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, "", err
		}
	}

	repo := ""
	if r, ok := payload["repository"].(map[string]interface{}); ok {
		if fullName, ok := r["full_name"].(string); ok {
			repo = fullName
		}
	}
	return payload, repo, nil
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body, _ := json.Marshal(models.APIResponse{
		Success: false,
		Error:   &models.APIError{Code: code, Message: message},
	})
	_, _ = w.Write(body)
}
