// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package api

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/tomtom215/cartographus/internal/auth"
	"github.com/tomtom215/cartographus/internal/middleware"
)

// chiMiddleware adapts the package's http.HandlerFunc-style middleware
// (RequestID, Compression, PrometheusMetrics) to chi's func(http.Handler)
// http.Handler shape.
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// hmacVerify wraps an http.HandlerFunc requiring a valid
// X-Request-Signature/-Timestamp/-Nonce triple, verified against body.
// The raw body is restored onto the request so downstream handlers can
// still decode it.
func hmacVerify(verifier *auth.RequestVerifier, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxClipsBodyBytes))
		if err != nil {
			NewResponseWriter(w, r).BadRequest("failed to read request body")
			return
		}
		r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))

		if err := verifier.Verify(r, body); err != nil {
			NewResponseWriter(w, r).Unauthorized(err.Error())
			return
		}
		next(w, r)
	}
}

// NewRouter builds the pipeline's HTTP surface (§6): health is open,
// every other route requires the service-to-service HMAC scheme, and
// the GitHub webhook uses its own SCM-HMAC verification internally.
func NewRouter(h *Handler, verifier *auth.RequestVerifier, webhookHandler http.Handler) http.Handler {
	r := chi.NewRouter()
	perf := middleware.NewPerformanceMonitor(1000)

	r.Use(chimiddleware.Recoverer)
	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chiMiddleware(middleware.PrometheusMetrics))
	r.Use(chiMiddleware(middleware.Compression))
	r.Use(perf.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
		AllowedHeaders: []string{"*"},
	}))
	r.Use(httprate.LimitByIP(100, time.Minute))

	withAuth := func(next http.HandlerFunc) http.HandlerFunc {
		return hmacVerify(verifier, next)
	}

	r.Get("/health", h.Health)
	r.Get("/validate-twitch", withAuth(h.ValidateTwitch))
	r.Get("/validate-github", withAuth(h.ValidateGitHub))

	r.Get("/clips", withAuth(h.ListClips))
	r.Post("/clips", withAuth(h.StoreClips))
	r.Put("/clips", withAuth(h.UpdateClip))
	r.Get("/clips/stored", withAuth(h.GetStoredClip))

	r.Route("/api", func(api chi.Router) {
		api.Get("/github/activity", withAuth(h.GitHubActivity))
		api.Post("/content/generate", withAuth(h.GenerateContent))
		api.Get("/runs/{run_id}", withAuth(h.RunStatus))
		api.Get("/content/items", withAuth(h.ContentItems))
		api.Post("/content/migrate", withAuth(h.MigrateContent))
	})

	r.Get("/debug/performance", withAuth(func(w http.ResponseWriter, r *http.Request) {
		WriteSuccess(w, r, perf.GetStats())
	}))

	r.Handle("/webhook/github", webhookHandler)

	return r
}
