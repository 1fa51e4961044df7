// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

/*
Package metrics provides Prometheus instrumentation for the content
pipeline's HTTP surface and orchestrator runs.

# Metrics Endpoint

Metrics are exposed in Prometheus text format wherever the server mounts
promhttp.Handler().

# Available Metrics

HTTP metrics:
  - cartographus_api_requests_total: total API requests (counter)
    Labels: method, endpoint, status_code
  - cartographus_api_request_duration_seconds: request latency (histogram)
    Labels: method, endpoint
  - cartographus_api_active_requests: in-flight requests (gauge)

Orchestrator metrics:
  - cartographus_orchestrator_runs_total: runs by terminal status (counter)
    Labels: status (succeeded, failed)
  - cartographus_orchestrator_stage_duration_seconds: per-stage duration (histogram)
    Labels: stage
  - cartographus_clips_selected_per_run: clips promoted per run (histogram)
*/
package metrics
