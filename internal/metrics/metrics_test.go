// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/health", "200"))
	RecordAPIRequest("GET", "/health", "200", 5*time.Millisecond)
	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/health", "200"))
	if after != before+1 {
		t.Fatalf("expected counter to increment by 1, got %v -> %v", before, after)
	}
}

func TestTrackActiveRequest(t *testing.T) {
	before := testutil.ToFloat64(APIActiveRequests)
	TrackActiveRequest(true)
	mid := testutil.ToFloat64(APIActiveRequests)
	if mid != before+1 {
		t.Fatalf("expected gauge to increment, got %v -> %v", before, mid)
	}
	TrackActiveRequest(false)
	after := testutil.ToFloat64(APIActiveRequests)
	if after != before {
		t.Fatalf("expected gauge to return to baseline, got %v", after)
	}
}

func TestRecordOrchestratorRun(t *testing.T) {
	before := testutil.ToFloat64(OrchestratorRunsTotal.WithLabelValues("succeeded"))
	RecordOrchestratorRun("succeeded")
	after := testutil.ToFloat64(OrchestratorRunsTotal.WithLabelValues("succeeded"))
	if after != before+1 {
		t.Fatalf("expected counter to increment by 1, got %v -> %v", before, after)
	}
}

func TestRecordClipsSelected(t *testing.T) {
	RecordClipsSelected(3) // exercises the histogram path without panicking
}
