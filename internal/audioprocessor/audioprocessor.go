// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package audioprocessor classifies clips by audio-acquisition status
// and hands the missing ones to the external audio extraction service,
// polling boundedly for completion before returning control to the
// orchestrator. Partial success is expected and allowed (§4.5).
package audioprocessor

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cartographus/internal/auth"
	"github.com/tomtom215/cartographus/internal/logging"
	"github.com/tomtom215/cartographus/internal/objectstore"
	"github.com/tomtom215/cartographus/internal/perr"
)

// AudioKey returns the object-store key for a clip's audio artifact.
func AudioKey(clipID string) string {
	return fmt.Sprintf("audio/%s.wav", clipID)
}

// Classification partitions a set of clip ids by audio presence.
type Classification struct {
	HaveAudio    []string
	NeedDownload []string
}

// Classify issues a head for each clip's audio key and partitions the
// ids by presence, without reading any artifact body.
func Classify(ctx context.Context, store *objectstore.Store, clipIDs []string) (Classification, error) {
	var c Classification
	for _, id := range clipIDs {
		_, err := store.Head(ctx, AudioKey(id))
		if err != nil {
			c.NeedDownload = append(c.NeedDownload, id)
			continue
		}
		c.HaveAudio = append(c.HaveAudio, id)
	}
	return c, nil
}

// Client requests audio extraction from the external processor and
// polls the object store for results.
type Client struct {
	baseURL      string
	signer       *auth.RequestSigner
	httpClient   *http.Client
	store        *objectstore.Store
	pollAttempts int
	pollInterval time.Duration
}

// New builds a Client. pollAttempts/pollInterval bound how long
// RequestAndWait waits for artifacts before returning partial results.
func New(baseURL string, signer *auth.RequestSigner, store *objectstore.Store, pollAttempts int, pollInterval time.Duration) *Client {
	if pollAttempts <= 0 {
		pollAttempts = 6
	}
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	return &Client{
		baseURL:      baseURL,
		signer:       signer,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		store:        store,
		pollAttempts: pollAttempts,
		pollInterval: pollInterval,
	}
}

type processingRequest struct {
	ClipIDs []string `json:"clip_ids"`
}

// requestProcessing issues a single HMAC-signed POST asking the external
// service to extract audio for needDownload. It does not block on
// completion.
func (c *Client) requestProcessing(ctx context.Context, needDownload []string) error {
	if len(needDownload) == 0 {
		return nil
	}
	body, err := json.Marshal(processingRequest{ClipIDs: needDownload})
	if err != nil {
		return perr.Validation("audioprocessor.requestProcessing", "failed to encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/process", bytes.NewReader(body))
	if err != nil {
		return perr.FatalConfig("audioprocessor.requestProcessing", "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if err := c.signer.Sign(req, body); err != nil {
		return perr.FatalConfig("audioprocessor.requestProcessing", "failed to sign request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return perr.UpstreamTemporary("audioprocessor.requestProcessing", "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return perr.UpstreamTemporary("audioprocessor.requestProcessing", fmt.Sprintf("processor returned %d", resp.StatusCode), nil)
	}
	if resp.StatusCode >= 400 {
		return perr.UpstreamPermanent("audioprocessor.requestProcessing", fmt.Sprintf("processor returned %d", resp.StatusCode), nil)
	}
	logging.Info().Int("requested", len(needDownload)).Msg("audio processing requested")
	return nil
}

// RequestAndWait requests processing for needDownload, then polls
// head(audio/{id}.wav) up to pollAttempts times before returning,
// reporting whichever ids became available. Callers re-queue the rest
// on a later run.
func (c *Client) RequestAndWait(ctx context.Context, needDownload []string) ([]string, error) {
	if err := c.requestProcessing(ctx, needDownload); err != nil {
		return nil, err
	}

	pending := make(map[string]struct{}, len(needDownload))
	for _, id := range needDownload {
		pending[id] = struct{}{}
	}
	var ready []string

	for attempt := 0; attempt < c.pollAttempts && len(pending) > 0; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ready, ctx.Err()
			case <-time.After(c.pollInterval):
			}
		}
		for id := range pending {
			if _, err := c.store.Head(ctx, AudioKey(id)); err == nil {
				ready = append(ready, id)
				delete(pending, id)
			}
		}
	}
	return ready, nil
}
