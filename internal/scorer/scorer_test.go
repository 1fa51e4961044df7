// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeightsValidate(t *testing.T) {
	require.NoError(t, DefaultWeights.Validate())

	tooLow := Weights{ContentScore: 0.1, GitHubConfidence: 0.1, Views: 0.1, TranscriptLength: 0.1, Duration: 0.1}
	assert.Error(t, tooLow.Validate())

	tooHigh := Weights{ContentScore: 0.5, GitHubConfidence: 0.5, Views: 0.5, TranscriptLength: 0.5, Duration: 0.5}
	assert.Error(t, tooHigh.Validate())

	negative := Weights{ContentScore: 1.1, GitHubConfidence: -0.1, Views: 0, TranscriptLength: 0, Duration: 0}
	assert.Error(t, negative.Validate())

	withinTolerance := Weights{ContentScore: 0.4005, GitHubConfidence: 0.25, Views: 0.15, TranscriptLength: 0.1, Duration: 0.1}
	assert.NoError(t, withinTolerance.Validate())
}

func TestScoreClampedToUnitInterval(t *testing.T) {
	c := Candidate{
		ContentScore:     5,   // out-of-range input
		GitHubConfidence: -5,  // out-of-range input
		ViewCount:        1e9, // far past MaxViewCount
		TranscriptWords:  1e6,
		DurationSeconds:  1e6,
	}
	score := Score(c, DefaultWeights, DefaultNormalizations)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)
}

func TestScoreDevSignalBonus(t *testing.T) {
	base := Candidate{TranscriptText: "just chatting about nothing in particular"}
	withSignal := Candidate{TranscriptText: "ran the test pass before deploy"}

	baseScore := Score(base, DefaultWeights, DefaultNormalizations)
	signalScore := Score(withSignal, DefaultWeights, DefaultNormalizations)
	assert.Greater(t, signalScore, baseScore)
}

func TestScoreZeroNormalizationNeverDividesByZero(t *testing.T) {
	c := Candidate{ViewCount: 100, TranscriptWords: 50, DurationSeconds: 60}
	n := Normalizations{} // all zero
	assert.NotPanics(t, func() {
		score := Score(c, DefaultWeights, n)
		assert.GreaterOrEqual(t, score, 0.0)
	})
}

func TestSelectStableSortDescendingWithTieBreak(t *testing.T) {
	candidates := []Candidate{
		{ClipID: "a", CreatedAt: "2026-01-02T00:00:00Z", ContentScore: 0.5},
		{ClipID: "b", CreatedAt: "2026-01-01T00:00:00Z", ContentScore: 0.5},
		{ClipID: "c", CreatedAt: "2026-01-03T00:00:00Z", ContentScore: 0.9},
	}

	selected := Select(candidates, DefaultWeights, DefaultNormalizations)
	require.Len(t, selected, 3)
	assert.Equal(t, "c", selected[0].ClipID)
	// a and b tie on score; earlier created_at (b) must sort first.
	assert.Equal(t, "b", selected[1].ClipID)
	assert.Equal(t, "a", selected[2].ClipID)
}

func TestSelectClampsCountBetweenFiveAndTwelve(t *testing.T) {
	three := make([]Candidate, 3)
	for i := range three {
		three[i] = Candidate{ClipID: string(rune('a' + i)), CreatedAt: "2026-01-01T00:00:00Z"}
	}
	assert.Len(t, Select(three, DefaultWeights, DefaultNormalizations), 3)

	twenty := make([]Candidate, 20)
	for i := range twenty {
		twenty[i] = Candidate{ClipID: string(rune('a' + i)), CreatedAt: "2026-01-01T00:00:00Z"}
	}
	assert.Len(t, Select(twenty, DefaultWeights, DefaultNormalizations), 12)
}

func TestClampCount(t *testing.T) {
	assert.Equal(t, 3, clampCount(3, 5, 12))
	assert.Equal(t, 12, clampCount(20, 5, 12))
	assert.Equal(t, 7, clampCount(7, 5, 12))
}
