// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package models

// Section is a per-selected-clip record assembled by the Sectioner.
type Section struct {
	Title       string   `json:"title"` // <=60 chars
	Bullets     []string `json:"bullets"` // 2-3 entries
	Paragraph   string   `json:"paragraph"`
	ClipURL     string   `json:"clip_url"`
	DeepLinkURL string   `json:"deep_link_url,omitempty"`
	Repo        string   `json:"repo,omitempty"`
	PRLinks     []string `json:"pr_links,omitempty"`
}

// JudgeAxes holds the per-dimension quality scores a JudgeEvaluation
// assigns, each in [0,100].
type JudgeAxes struct {
	Coherence     int  `json:"coherence"`
	Correctness   int  `json:"correctness"`
	DevSignal     int  `json:"dev_signal"`
	NarrativeFlow int  `json:"narrative_flow"`
	SubAxisA      *int `json:"sub_axis_a,omitempty"`
	SubAxisB      *int `json:"sub_axis_b,omitempty"`
}

// JudgeEvaluation is the Judge's multi-axis quality assessment of a
// rendered manifest.
type JudgeEvaluation struct {
	Overall         int       `json:"overall"` // [0,100]
	PerAxis         JudgeAxes `json:"per_axis"`
	Reasoning       string    `json:"reasoning"`
	Recommendations []string  `json:"recommendations"`
	Version         string    `json:"version"`
}

// Manifest is the per-day in-memory assembly of sections prior to
// rendering. Built fresh each run; optionally persisted for auditability.
type Manifest struct {
	PostID    string            `json:"post_id"` // date, e.g. 2026-07-30
	TZ        string            `json:"tz"`
	Title     string            `json:"title"`
	Summary   string            `json:"summary"`
	Tags      []string          `json:"tags"`
	Sections  []Section         `json:"sections"`
	Judge     *JudgeEvaluation  `json:"judge,omitempty"`
	AIModels  map[string]string `json:"ai_models,omitempty"` // task -> model id
}

// RunProgress tracks a run's position within the orchestrator's stage
// sequence.
type RunProgress struct {
	Step    string `json:"step"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
}

// RunPhase is the lifecycle state of an orchestrator run.
type RunPhase string

const (
	RunQueued    RunPhase = "queued"
	RunRunning   RunPhase = "running"
	RunSucceeded RunPhase = "succeeded"
	RunFailed    RunPhase = "failed"
)

// RunStatus is keyed by run_id — a lexicographically sortable,
// time-prefixed identifier — and tracks one orchestrator invocation.
type RunStatus struct {
	RunID     string      `json:"run_id"`
	Status    RunPhase    `json:"status"`
	CreatedAt string      `json:"created_at"`
	UpdatedAt string      `json:"updated_at"`
	Progress  RunProgress `json:"progress"`
	Error     string      `json:"error,omitempty"`
}
