// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package scmpublisher publishes the rendered blog artifact to the
// content repository: branch, file, pull request, and check-run, each
// operation tolerant of re-entry so Stage 6 is idempotent (§4.15).
//
// No go-github SDK is available in this module's dependency set, so the
// client is a small hand-rolled net/http wrapper over the REST surface,
// matching the teacher's own preference for direct HTTP clients over
// generated SDKs elsewhere in the codebase.
package scmpublisher

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cartographus/internal/models"
	"github.com/tomtom215/cartographus/internal/perr"
	"github.com/tomtom215/cartographus/internal/retry"
)

// TokenSource yields a short-lived installation token.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client publishes content to one SCM repository.
type Client struct {
	baseURL    string
	repo       string // org/repo
	tokens     TokenSource
	httpClient *http.Client
	policy     retry.Policy
}

// New builds an SCM publisher client targeting repo ("org/repo") at
// baseURL.
func New(baseURL, repo string, tokens TokenSource, httpClient *http.Client, policy retry.Policy) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: baseURL, repo: repo, tokens: tokens, httpClient: httpClient, policy: policy}
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}) (*http.Response, []byte, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, nil, err
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, nil, perr.Validation("scmpublisher.do", "failed to encode request body", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, nil, perr.Validation("scmpublisher.do", "failed to build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.scm.v3+json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, perr.UpstreamTemporary("scmpublisher.do", "request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, perr.UpstreamTemporary("scmpublisher.do", "failed to read response", err)
	}
	return resp, respBody, nil
}

type refResponse struct {
	Object struct {
		SHA string `json:"sha"`
	} `json:"object"`
}

// EnsureBranch creates branch pointing at the repo's default branch
// head, treating "reference already exists" as success (§4.15.1).
func (c *Client) EnsureBranch(ctx context.Context, branch, defaultBranch string) error {
	var sha string
	err := retry.Do(ctx, c.policy, func(ctx context.Context) error {
		resp, body, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/git/ref/heads/%s", c.repo, defaultBranch), nil)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			return classifyStatus("scmpublisher.EnsureBranch", resp.StatusCode, body)
		}
		var ref refResponse
		if err := json.Unmarshal(body, &ref); err != nil {
			return perr.Contract("scmpublisher.EnsureBranch", "malformed ref response", err)
		}
		sha = ref.Object.SHA
		return nil
	})
	if err != nil {
		return err
	}

	return retry.Do(ctx, c.policy, func(ctx context.Context) error {
		createReq := map[string]string{"ref": "refs/heads/" + branch, "sha": sha}
		resp, body, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/repos/%s/git/refs", c.repo), createReq)
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusCreated {
			return nil
		}
		if resp.StatusCode == http.StatusUnprocessableEntity && referenceAlreadyExists(body) {
			return nil
		}
		return classifyStatus("scmpublisher.EnsureBranch", resp.StatusCode, body)
	})
}

func referenceAlreadyExists(body []byte) bool {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return false
	}
	return payload.Message == "Reference already exists"
}

type fileContentResponse struct {
	SHA string `json:"sha"`
}

// UpsertFile creates path on branch, or updates it in place if it
// already exists, encoding content as UTF-8-then-base64 (§4.15.2).
func (c *Client) UpsertFile(ctx context.Context, branch, path, message string, content []byte) error {
	encoded := base64.StdEncoding.EncodeToString(content)

	return retry.Do(ctx, c.policy, func(ctx context.Context) error {
		putReq := map[string]interface{}{
			"message": message,
			"content": encoded,
			"branch":  branch,
		}
		resp, body, err := c.do(ctx, http.MethodPut, fmt.Sprintf("/repos/%s/contents/%s", c.repo, path), putReq)
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
			return nil
		}
		if resp.StatusCode != http.StatusUnprocessableEntity {
			return classifyStatus("scmpublisher.UpsertFile", resp.StatusCode, body)
		}

		getResp, getBody, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/contents/%s?ref=%s", c.repo, path, branch), nil)
		if err != nil {
			return err
		}
		if getResp.StatusCode != http.StatusOK {
			return classifyStatus("scmpublisher.UpsertFile", getResp.StatusCode, getBody)
		}
		var existing fileContentResponse
		if err := json.Unmarshal(getBody, &existing); err != nil {
			return perr.Contract("scmpublisher.UpsertFile", "malformed file response", err)
		}

		putReq["sha"] = existing.SHA
		updateResp, updateBody, err := c.do(ctx, http.MethodPut, fmt.Sprintf("/repos/%s/contents/%s", c.repo, path), putReq)
		if err != nil {
			return err
		}
		if updateResp.StatusCode != http.StatusOK {
			return classifyStatus("scmpublisher.UpsertFile", updateResp.StatusCode, updateBody)
		}
		return nil
	})
}

// PullRequest is the subset of the opened/looked-up PR's fields this
// publisher needs.
type PullRequest struct {
	Number int    `json:"number"`
	HeadSHA string `json:"-"`
	Head   struct {
		SHA string `json:"sha"`
	} `json:"head"`
}

type prListEntry struct {
	Number int `json:"number"`
	Head   struct {
		SHA string `json:"sha"`
	} `json:"head"`
}

// OpenPR opens a non-draft PR for branch against base, or returns the
// existing open PR for that branch if one is already present
// (idempotent publish, §4.15.3/§8.7).
func (c *Client) OpenPR(ctx context.Context, branch, title, body, base string) (*PullRequest, error) {
	var pr *PullRequest
	err := retry.Do(ctx, c.policy, func(ctx context.Context) error {
		createReq := map[string]interface{}{
			"title": title,
			"body":  body,
			"head":  branch,
			"base":  base,
			"draft": false,
		}
		resp, respBody, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/repos/%s/pulls", c.repo), createReq)
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusCreated {
			var created PullRequest
			if err := json.Unmarshal(respBody, &created); err != nil {
				return perr.Contract("scmpublisher.OpenPR", "malformed PR response", err)
			}
			created.HeadSHA = created.Head.SHA
			pr = &created
			return nil
		}
		if resp.StatusCode != http.StatusUnprocessableEntity {
			return classifyStatus("scmpublisher.OpenPR", resp.StatusCode, respBody)
		}

		listResp, listBody, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/pulls?head=%s&base=%s&state=open", c.repo, branch, base), nil)
		if err != nil {
			return err
		}
		if listResp.StatusCode != http.StatusOK {
			return classifyStatus("scmpublisher.OpenPR", listResp.StatusCode, listBody)
		}
		var existing []prListEntry
		if err := json.Unmarshal(listBody, &existing); err != nil {
			return perr.Contract("scmpublisher.OpenPR", "malformed PR list response", err)
		}
		if len(existing) == 0 {
			return perr.Contract("scmpublisher.OpenPR", "PR create returned 422 but no open PR exists for branch", nil)
		}
		pr = &PullRequest{Number: existing[0].Number, HeadSHA: existing[0].Head.SHA}
		return nil
	})
	return pr, err
}

// PostCheckRun creates a check-run against headSHA reflecting eval,
// matching §6's check-run contract exactly.
func (c *Client) PostCheckRun(ctx context.Context, headSHA string, eval models.JudgeEvaluation, thresholdOverall int, now time.Time) error {
	conclusion := "neutral"
	if eval.Overall >= thresholdOverall {
		conclusion = "success"
	}

	return retry.Do(ctx, c.policy, func(ctx context.Context) error {
		checkReq := map[string]interface{}{
			"name":         "Content Quality Judge",
			"head_sha":     headSHA,
			"status":       "completed",
			"completed_at": now.UTC().Format(time.RFC3339),
			"conclusion":   conclusion,
			"output": map[string]string{
				"title": fmt.Sprintf("Content Quality Score: %d/100", eval.Overall),
				"text":  checkRunText(eval),
			},
		}
		resp, body, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/repos/%s/check-runs", c.repo), checkReq)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusCreated {
			return classifyStatus("scmpublisher.PostCheckRun", resp.StatusCode, body)
		}
		return nil
	})
}

func checkRunText(eval models.JudgeEvaluation) string {
	text := fmt.Sprintf(
		"Coherence: %d\nCorrectness: %d\nDev signal: %d\nNarrative flow: %d\n\n%s\n",
		eval.PerAxis.Coherence, eval.PerAxis.Correctness, eval.PerAxis.DevSignal, eval.PerAxis.NarrativeFlow, eval.Reasoning,
	)
	if len(eval.Recommendations) > 0 {
		text += "\nRecommendations:\n"
		for _, r := range eval.Recommendations {
			text += "- " + r + "\n"
		}
	}
	return text
}

func classifyStatus(op string, status int, body []byte) error {
	if status >= 500 || status == http.StatusTooManyRequests {
		return perr.UpstreamTemporary(op, fmt.Sprintf("SCM returned %d", status), nil)
	}
	return perr.UpstreamPermanent(op, fmt.Sprintf("SCM returned %d: %s", status, string(body)), nil)
}
