// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package models

// GitHubEvent is a single webhook delivery from the source-control
// platform, appended on receipt and retained for the temporal join
// horizon. Identity is the pair (delivery_id, event_type).
type GitHubEvent struct {
	DeliveryID string                 `json:"delivery_id"`
	EventType  string                 `json:"event_type"`
	Timestamp  string                 `json:"timestamp"` // ISO UTC
	Repository string                 `json:"repository"`
	Payload    map[string]interface{} `json:"payload"`
}

// MatchConfidence is the per-item confidence a TemporalMatcher assigns to
// a linked reference.
type MatchConfidence string

const (
	ConfidenceHigh   MatchConfidence = "high"
	ConfidenceMedium MatchConfidence = "medium"
	ConfidenceLow    MatchConfidence = "low"
)

// MatchReason names why an item was linked.
type MatchReason string

const (
	ReasonTemporalProximity MatchReason = "temporal_proximity"
	ReasonNone              MatchReason = "none"
)

// LinkedPR is a pull request temporally correlated with a clip.
type LinkedPR struct {
	Number     int             `json:"number"`
	URL        string          `json:"url"`
	Title      string          `json:"title"`
	Confidence MatchConfidence `json:"confidence"`
	Reason     MatchReason     `json:"reason"`
}

// LinkedCommit is a commit temporally correlated with a clip.
type LinkedCommit struct {
	SHA        string          `json:"sha"`
	URL        string          `json:"url"`
	Message    string          `json:"message"`
	Confidence MatchConfidence `json:"confidence"`
	Reason     MatchReason     `json:"reason"`
}

// LinkedIssue is an issue temporally correlated with a clip.
type LinkedIssue struct {
	Number     int             `json:"number"`
	URL        string          `json:"url"`
	Title      string          `json:"title"`
	Confidence MatchConfidence `json:"confidence"`
	Reason     MatchReason     `json:"reason"`
}

// LinkedRefs holds the (possibly empty, never nil once produced) arrays
// of correlated source-control objects. The matcher always yields empty
// slices rather than nil so the JSON shape stays stable (spec §9).
type LinkedRefs struct {
	LinkedPRs     []LinkedPR     `json:"linked_prs"`
	LinkedCommits []LinkedCommit `json:"linked_commits"`
	LinkedIssues  []LinkedIssue  `json:"linked_issues"`
}

// GitHubContext is the TemporalMatcher's output for one clip: its linked
// references plus an overall confidence score and dominant reason.
type GitHubContext struct {
	ClipID          string      `json:"clip_id"`
	Refs            LinkedRefs  `json:"refs"`
	ConfidenceScore float64     `json:"confidence_score"`
	DominantReason  MatchReason `json:"dominant_reason"`
}
