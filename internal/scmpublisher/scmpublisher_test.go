// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package scmpublisher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/cartographus/internal/models"
	"github.com/tomtom215/cartographus/internal/perr"
	"github.com/tomtom215/cartographus/internal/retry"
)

type fakeTokens struct{}

func (fakeTokens) Token(ctx context.Context) (string, error) { return "test-token", nil }

func noRetryPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, "org/repo", fakeTokens{}, srv.Client(), noRetryPolicy())
}

func TestEnsureBranchCreatesNewBranch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/repos/org/repo/git/ref/heads/main":
			w.WriteHeader(http.StatusOK)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"object": map[string]string{"sha": "headsha"}})
		case r.Method == http.MethodPost && r.URL.Path == "/repos/org/repo/git/refs":
			w.WriteHeader(http.StatusCreated)
		default:
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	})

	err := c.EnsureBranch(context.Background(), "auto/daily-recap-2026-07-30", "main")
	assert.NoError(t, err)
}

func TestEnsureBranchToleratesAlreadyExists(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/repos/org/repo/git/ref/heads/main":
			w.WriteHeader(http.StatusOK)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"object": map[string]string{"sha": "headsha"}})
		case r.Method == http.MethodPost && r.URL.Path == "/repos/org/repo/git/refs":
			w.WriteHeader(http.StatusUnprocessableEntity)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "Reference already exists"})
		default:
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	})

	err := c.EnsureBranch(context.Background(), "auto/daily-recap-2026-07-30", "main")
	assert.NoError(t, err)
}

func TestUpsertFileCreatesWhenAbsent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		w.WriteHeader(http.StatusCreated)
	})

	err := c.UpsertFile(context.Background(), "auto/daily-recap-2026-07-30", "content/blog/development/x.md", "publish recap", []byte("body"))
	assert.NoError(t, err)
}

func TestUpsertFileUpdatesInPlaceWhenPresent(t *testing.T) {
	var putCalls int
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && putCalls == 0:
			putCalls++
			w.WriteHeader(http.StatusUnprocessableEntity)
		case r.Method == http.MethodGet:
			w.WriteHeader(http.StatusOK)
			_ = json.NewEncoder(w).Encode(fileContentResponse{SHA: "existingsha"})
		case r.Method == http.MethodPut:
			w.WriteHeader(http.StatusOK)
		default:
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	})

	err := c.UpsertFile(context.Background(), "auto/daily-recap-2026-07-30", "content/blog/development/x.md", "publish recap", []byte("body"))
	assert.NoError(t, err)
}

func TestOpenPRCreatesNewPR(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"number": 7, "head": map[string]string{"sha": "prsha"}})
	})

	pr, err := c.OpenPR(context.Background(), "auto/daily-recap-2026-07-30", "Daily recap", "body", "main")
	require.NoError(t, err)
	assert.Equal(t, 7, pr.Number)
	assert.Equal(t, "prsha", pr.HeadSHA)
}

func TestOpenPRReturnsExistingOpenPRIdempotently(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			w.WriteHeader(http.StatusUnprocessableEntity)
		case http.MethodGet:
			w.WriteHeader(http.StatusOK)
			_ = json.NewEncoder(w).Encode([]map[string]interface{}{
				{"number": 9, "head": map[string]string{"sha": "existingsha"}},
			})
		default:
			t.Fatalf("unexpected method %s", r.Method)
		}
	})

	pr, err := c.OpenPR(context.Background(), "auto/daily-recap-2026-07-30", "Daily recap", "body", "main")
	require.NoError(t, err)
	assert.Equal(t, 9, pr.Number)
	assert.Equal(t, "existingsha", pr.HeadSHA)
}

func TestOpenPRFailsWhenNoExistingPRFoundAfter422(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			w.WriteHeader(http.StatusUnprocessableEntity)
		case http.MethodGet:
			w.WriteHeader(http.StatusOK)
			_ = json.NewEncoder(w).Encode([]map[string]interface{}{})
		}
	})

	_, err := c.OpenPR(context.Background(), "auto/daily-recap-2026-07-30", "Daily recap", "body", "main")
	assert.Error(t, err)
}

func TestPostCheckRunSuccessConclusionAboveThreshold(t *testing.T) {
	var sentConclusion string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		sentConclusion, _ = payload["conclusion"].(string)
		w.WriteHeader(http.StatusCreated)
	})

	eval := models.JudgeEvaluation{Overall: 85, PerAxis: models.JudgeAxes{Coherence: 80, Correctness: 80, DevSignal: 80, NarrativeFlow: 80}}
	err := c.PostCheckRun(context.Background(), "headsha", eval, 70, time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "success", sentConclusion)
}

func TestPostCheckRunNeutralConclusionBelowThreshold(t *testing.T) {
	var sentConclusion string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		sentConclusion, _ = payload["conclusion"].(string)
		w.WriteHeader(http.StatusCreated)
	})

	eval := models.JudgeEvaluation{Overall: 40}
	err := c.PostCheckRun(context.Background(), "headsha", eval, 70, time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "neutral", sentConclusion)
}

func TestClassifyStatusDistinguishesTransientFromPermanent(t *testing.T) {
	assert.True(t, perr.Is(classifyStatus("op", http.StatusServiceUnavailable, nil), perr.KindUpstreamTemporary))
	assert.True(t, perr.Is(classifyStatus("op", http.StatusTooManyRequests, nil), perr.KindUpstreamTemporary))
	assert.True(t, perr.Is(classifyStatus("op", http.StatusForbidden, nil), perr.KindUpstreamPermanent))
}
