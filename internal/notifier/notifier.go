// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package notifier sends a single chat-webhook embed summarizing a run
// outcome, grounded on the same webhook-embed shape as the teacher's
// Discord delivery channel, generalized to this pipeline's at-most-5-field
// embed and single 429 retry (§4.16).
package notifier

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cartographus/internal/logging"
)

// Embed is a chat-webhook embed payload, trimmed to this pipeline's
// fixed field set.
type embedPayload struct {
	Username string  `json:"username,omitempty"`
	Embeds   []embed `json:"embeds"`
}

type embed struct {
	Title     string        `json:"title,omitempty"`
	Color     int           `json:"color,omitempty"`
	Fields    []embedField  `json:"fields,omitempty"`
	Footer    *embedFooter  `json:"footer,omitempty"`
	Timestamp string        `json:"timestamp,omitempty"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type embedFooter struct {
	Text string `json:"text,omitempty"`
}

const (
	colorSuccess = 0x2ECC71
	colorError   = 0xE74C3C
)

// Notifier sends run-outcome notifications to a single chat webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
}

// New builds a Notifier posting to webhookURL.
func New(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 15 * time.Second},
	}
}

// Summary is the at-most-5-field content a successful run reports
// (§4.16): score, clip count, status summary, PR link, footer/timestamp.
type Summary struct {
	OverallScore int
	ClipCount    int
	StatusText   string
	PRURL        string
}

// NotifySuccess sends the success embed for a completed run.
func (n *Notifier) NotifySuccess(ctx context.Context, s Summary) {
	e := embed{
		Title: "Daily content recap published",
		Color: colorSuccess,
		Fields: []embedField{
			{Name: "Quality score", Value: fmt.Sprintf("%d/100", s.OverallScore), Inline: true},
			{Name: "Clips included", Value: fmt.Sprintf("%d", s.ClipCount), Inline: true},
			{Name: "Status", Value: s.StatusText, Inline: true},
			{Name: "Pull request", Value: s.PRURL},
		},
		Footer:    &embedFooter{Text: "cartographus"},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	n.send(ctx, e)
}

// NotifyError sends the error-variant embed for a failed run.
func (n *Notifier) NotifyError(ctx context.Context, runID, stage string, cause error) {
	e := embed{
		Title: "Content run failed",
		Color: colorError,
		Fields: []embedField{
			{Name: "Run", Value: runID, Inline: true},
			{Name: "Stage", Value: stage, Inline: true},
			{Name: "Error", Value: cause.Error()},
		},
		Footer:    &embedFooter{Text: "cartographus"},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	n.send(ctx, e)
}

// send posts e to the webhook, honoring a single Retry-After-driven
// retry on 429. Any further failure is logged but never returned — the
// notifier is always non-fatal to the run (§4.16/§8's S6).
func (n *Notifier) send(ctx context.Context, e embed) {
	payload := embedPayload{Username: "cartographus", Embeds: []embed{e}}
	body, err := json.Marshal(payload)
	if err != nil {
		logging.Error().Err(err).Msg("failed to encode notifier payload")
		return
	}

	resp, retryAfter, err := n.post(ctx, body)
	if err != nil {
		logging.Warn().Err(err).Msg("notifier delivery failed")
		return
	}
	if resp != 200 && resp != 429 {
		logging.Warn().Int("status", resp).Msg("notifier delivery rejected")
		return
	}
	if resp != 429 {
		return
	}

	select {
	case <-time.After(retryAfter):
	case <-ctx.Done():
		return
	}

	resp, _, err = n.post(ctx, body)
	if err != nil {
		logging.Warn().Err(err).Msg("notifier retry failed")
		return
	}
	if resp != 200 {
		logging.Warn().Int("status", resp).Msg("notifier retry rejected, giving up")
	}
}

func (n *Notifier) post(ctx context.Context, body []byte) (int, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	retryAfter := time.Second
	if resp.StatusCode == http.StatusTooManyRequests {
		if seconds := resp.Header.Get("Retry-After"); seconds != "" {
			if d, err := time.ParseDuration(seconds + "s"); err == nil {
				retryAfter = d
			}
		}
	}
	return resp.StatusCode, retryAfter, nil
}
