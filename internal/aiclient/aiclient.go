// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package aiclient is the single HTTP boundary the Transcriber,
// Sectioner and Judge all call through to reach the pluggable AI
// inference service. Each caller differs only in model id, prompt
// construction and response parsing; the transport, retry and timeout
// plumbing is shared.
package aiclient

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cartographus/internal/perr"
	"github.com/tomtom215/cartographus/internal/retry"
)

// Client invokes the AI inference service's chat-completion endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
	policy     retry.Policy
	breaker    *retry.Breaker
}

// New builds a Client against baseURL, authenticating with apiKey.
func New(baseURL, apiKey string, timeout time.Duration, policy retry.Policy) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
		policy:     policy,
		breaker:    retry.NewBreaker("aiclient", 5, 30*time.Second, 60*time.Second),
	}
}

type completionRequest struct {
	Model    string              `json:"model"`
	Messages []completionMessage `json:"messages"`
}

type completionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionResponse struct {
	Choices []struct {
		Message completionMessage `json:"message"`
	} `json:"choices"`
}

// Complete sends prompt to modelID and returns the model's raw text
// response, retrying transient failures under the client's policy and
// circuit breaker.
func (c *Client) Complete(ctx context.Context, modelID, prompt string) (string, error) {
	var result string
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return retry.Do(ctx, c.policy, func(ctx context.Context) error {
			out, err := c.complete(ctx, modelID, prompt)
			if err != nil {
				return err
			}
			result = out
			return nil
		})
	})
	if err != nil {
		return "", err
	}
	return result, nil
}

func (c *Client) complete(ctx context.Context, modelID, prompt string) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(completionRequest{
		Model: modelID,
		Messages: []completionMessage{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", perr.Validation("aiclient.Complete", "failed to encode request", err)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", perr.FatalConfig("aiclient.Complete", "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", perr.UpstreamTemporary("aiclient.Complete", "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return "", perr.UpstreamTemporary("aiclient.Complete", fmt.Sprintf("inference service returned %d", resp.StatusCode), nil)
	}
	if resp.StatusCode != http.StatusOK {
		return "", perr.UpstreamPermanent("aiclient.Complete", fmt.Sprintf("inference service returned %d", resp.StatusCode), nil)
	}

	var out completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", perr.Contract("aiclient.Complete", "malformed inference response", err)
	}
	if len(out.Choices) == 0 {
		return "", perr.Contract("aiclient.Complete", "inference response had no choices", nil)
	}
	return out.Choices[0].Message.Content, nil
}
