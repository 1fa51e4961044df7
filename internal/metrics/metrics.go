// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the content pipeline's HTTP surface and
// orchestrator runs.

var (
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cartographus_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cartographus_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cartographus_api_active_requests",
			Help: "Current number of in-flight API requests",
		},
	)

	OrchestratorRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cartographus_orchestrator_runs_total",
			Help: "Total orchestrator runs by terminal status",
		},
		[]string{"status"}, // succeeded, failed
	)

	OrchestratorStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cartographus_orchestrator_stage_duration_seconds",
			Help:    "Duration of each orchestrator stage in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	ClipsSelectedPerRun = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cartographus_clips_selected_per_run",
			Help:    "Number of clips promoted to ready_for_content per run",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 12},
		},
	)
)

// RecordAPIRequest records an API request's outcome and latency.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the in-flight request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordOrchestratorRun records one run's terminal status.
func RecordOrchestratorRun(status string) {
	OrchestratorRunsTotal.WithLabelValues(status).Inc()
}

// RecordStageDuration records how long one orchestrator stage took.
func RecordStageDuration(stage string, duration time.Duration) {
	OrchestratorStageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordClipsSelected records how many clips a run promoted.
func RecordClipsSelected(count int) {
	ClipsSelectedPerRun.Observe(float64(count))
}
