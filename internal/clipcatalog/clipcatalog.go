// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package clipcatalog fetches recent clips from the upstream broadcast
// catalog API using a cached client-credentials OAuth token.
package clipcatalog

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cartographus/internal/models"
	"github.com/tomtom215/cartographus/internal/perr"
)

// TokenSource supplies a bearer token for catalog requests.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client lists recent clips for a broadcaster.
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
}

// New builds a Client against baseURL, authenticating via tokens.
func New(baseURL string, tokens TokenSource, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: baseURL, tokens: tokens, httpClient: httpClient}
}

type listClipsResponse struct {
	Data []models.Clip `json:"data"`
}

// ListRecentClips returns up to max clips for broadcasterID created in
// [sinceISO, untilISO]. Fails with an UpstreamTemporary error on 5xx or
// network failure, UpstreamPermanent on 4xx.
func (c *Client) ListRecentClips(ctx context.Context, broadcasterID, sinceISO, untilISO string, max int) ([]models.Clip, error) {
	if max <= 0 || max > 100 {
		max = 100
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("broadcaster_id", broadcasterID)
	q.Set("started_at", sinceISO)
	q.Set("ended_at", untilISO)
	q.Set("first", fmt.Sprintf("%d", max))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/clips?"+q.Encode(), nil)
	if err != nil {
		return nil, perr.FatalConfig("clipcatalog.ListRecentClips", "failed to build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, perr.UpstreamTemporary("clipcatalog.ListRecentClips", "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, perr.UpstreamTemporary("clipcatalog.ListRecentClips", fmt.Sprintf("catalog returned %d", resp.StatusCode), nil)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, perr.UpstreamPermanent("clipcatalog.ListRecentClips", fmt.Sprintf("catalog returned %d", resp.StatusCode), nil)
	}

	var out listClipsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, perr.UpstreamPermanent("clipcatalog.ListRecentClips", "malformed catalog response", err)
	}
	return out.Data, nil
}
