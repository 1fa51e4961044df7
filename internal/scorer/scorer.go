// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package scorer ranks enhanced ContentItems with a weighted, clamped
// sum of normalized signals and selects the top slice for publication
// (§4.11).
package scorer

import (
	"sort"
	"strings"

	"github.com/tomtom215/cartographus/internal/perr"
)

// Weights are the scorer's per-component weights; they must sum to 1.0.
type Weights struct {
	ContentScore     float64
	GitHubConfidence float64
	Views            float64
	TranscriptLength float64
	Duration         float64
}

// DefaultWeights matches §4.11's default weighting.
var DefaultWeights = Weights{
	ContentScore:     0.40,
	GitHubConfidence: 0.25,
	Views:            0.15,
	TranscriptLength: 0.10,
	Duration:         0.10,
}

// Normalizations are the denominators each raw signal is divided by
// before clamping to [0,1].
type Normalizations struct {
	MaxDurationSeconds int
	MaxViewCount       int64
	MaxTranscriptWords int
}

// DefaultNormalizations matches §4.11's defaults.
var DefaultNormalizations = Normalizations{
	MaxDurationSeconds: 600,
	MaxViewCount:       1000,
	MaxTranscriptWords: 200,
}

// devSignalTokens are substrings whose presence in a transcript nudges
// the score upward (§4.11).
var devSignalTokens = []string{"test pass", "commit", "fix", "deploy"}

// Sum returns the weight total; callers validate it is 1 ± 1e-3.
func (w Weights) Sum() float64 {
	return w.ContentScore + w.GitHubConfidence + w.Views + w.TranscriptLength + w.Duration
}

// Validate enforces §8.9: weights sum to 1 within tolerance and are
// each non-negative.
func (w Weights) Validate() error {
	const tolerance = 1e-3
	sum := w.Sum()
	if sum < 1-tolerance || sum > 1+tolerance {
		return perr.FatalConfig("scorer.Validate", "scorer weights must sum to 1.0", nil)
	}
	for _, v := range []float64{w.ContentScore, w.GitHubConfidence, w.Views, w.TranscriptLength, w.Duration} {
		if v < 0 {
			return perr.FatalConfig("scorer.Validate", "scorer weights must be non-negative", nil)
		}
	}
	return nil
}

// Candidate is the scorer's input: the signals needed to compute one
// ContentItem's score, already extracted from its ContentItem/Transcript/
// GitHubContext.
type Candidate struct {
	ClipID           string
	CreatedAt        string // RFC3339, used only as a tie-break key
	ContentScore     float64
	GitHubConfidence float64
	ViewCount        int64
	TranscriptWords  int
	TranscriptText   string
	DurationSeconds  int
}

// Scored is a Candidate with its computed score attached.
type Scored struct {
	Candidate
	Score float64
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func normalize(value float64, max float64) float64 {
	if max <= 0 {
		return 0
	}
	return clamp01(value / max)
}

// devSignalBonus returns up to +0.1 if the transcript text contains any
// of the configured dev-signal tokens (case-insensitive).
func devSignalBonus(text string) float64 {
	lower := strings.ToLower(text)
	for _, token := range devSignalTokens {
		if strings.Contains(lower, token) {
			return 0.1
		}
	}
	return 0
}

// Score computes one candidate's weighted, clamped score.
func Score(c Candidate, w Weights, n Normalizations) float64 {
	contentScore := clamp01(c.ContentScore)
	githubConfidence := clamp01(c.GitHubConfidence)
	views := normalize(float64(c.ViewCount), float64(n.MaxViewCount))
	transcriptLength := normalize(float64(c.TranscriptWords), float64(n.MaxTranscriptWords))
	duration := normalize(float64(c.DurationSeconds), float64(n.MaxDurationSeconds))

	weighted := contentScore*w.ContentScore +
		githubConfidence*w.GitHubConfidence +
		views*w.Views +
		transcriptLength*w.TranscriptLength +
		duration*w.Duration

	weighted += devSignalBonus(c.TranscriptText)
	return clamp01(weighted)
}

// Select scores every candidate, stable-sorts descending by score (ties
// broken by created_at ascending), and returns the top
// clamp(len(candidates), 5, 12) entries.
func Select(candidates []Candidate, w Weights, n Normalizations) []Scored {
	scored := make([]Scored, len(candidates))
	for i, c := range candidates {
		scored[i] = Scored{Candidate: c, Score: Score(c, w, n)}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].CreatedAt < scored[j].CreatedAt
	})

	count := clampCount(len(scored), 5, 12)
	return scored[:count]
}

// clampCount returns n clamped to [lo,hi], except it never exceeds n
// itself — a corpus smaller than lo yields all of it, per §4.11.
func clampCount(n, lo, hi int) int {
	if n <= lo {
		return n
	}
	if n >= hi {
		return hi
	}
	return n
}
