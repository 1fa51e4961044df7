// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package judge

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/cartographus/internal/models"
)

func TestParseEvaluationWellFormed(t *testing.T) {
	raw := `{"overall":88,"per_axis":{"coherence":90,"correctness":85,"dev_signal":80,"narrative_flow":92},` +
		`"reasoning":"solid recap","recommendations":["tighten the intro"]}`

	eval := parseEvaluation(raw)
	assert.Equal(t, 88, eval.Overall)
	assert.Equal(t, 90, eval.PerAxis.Coherence)
	assert.Equal(t, "v1", eval.Version)
	assert.Equal(t, []string{"tighten the intro"}, eval.Recommendations)
}

func TestParseEvaluationFencedResponse(t *testing.T) {
	raw := "```json\n" +
		`{"overall":70,"per_axis":{"coherence":70,"correctness":70,"dev_signal":70,"narrative_flow":70},"reasoning":"ok","recommendations":[]}` +
		"\n```"
	eval := parseEvaluation(raw)
	assert.Equal(t, 70, eval.Overall)
}

func TestParseEvaluationClampsOutOfRangeScores(t *testing.T) {
	raw := `{"overall":150,"per_axis":{"coherence":-10,"correctness":999,"dev_signal":0,"narrative_flow":100},"reasoning":"x","recommendations":[]}`
	eval := parseEvaluation(raw)
	assert.Equal(t, 100, eval.Overall)
	assert.Equal(t, 0, eval.PerAxis.Coherence)
	assert.Equal(t, 100, eval.PerAxis.Correctness)
}

func TestParseEvaluationMalformedJSONYieldsNeutralDefault(t *testing.T) {
	eval := parseEvaluation("not json at all")
	assert.Equal(t, neutralEvaluation(), eval)
}

func TestParseEvaluationMissingPerAxisYieldsNeutralDefault(t *testing.T) {
	eval := parseEvaluation(`{"overall":80,"reasoning":"no axes"}`)
	assert.Equal(t, neutralEvaluation(), eval)
}

func TestNeutralEvaluationFlagsManualReview(t *testing.T) {
	eval := neutralEvaluation()
	assert.Equal(t, 50, eval.Overall)
	require.Len(t, eval.Recommendations, 1)
	assert.Contains(t, strings.ToLower(eval.Recommendations[0]), "manually review")
}

func TestMeetsThresholdAllPass(t *testing.T) {
	eval := models.JudgeEvaluation{
		Overall: 80,
		PerAxis: models.JudgeAxes{Coherence: 80, Correctness: 80, DevSignal: 80, NarrativeFlow: 80},
	}
	ok, reasons := MeetsThreshold(eval, Thresholds{OverallMin: 70, AxisMin: 70})
	assert.True(t, ok)
	assert.Empty(t, reasons)
}

func TestMeetsThresholdReportsEveryFailingAxis(t *testing.T) {
	eval := models.JudgeEvaluation{
		Overall: 60,
		PerAxis: models.JudgeAxes{Coherence: 40, Correctness: 90, DevSignal: 40, NarrativeFlow: 90},
	}
	ok, reasons := MeetsThreshold(eval, Thresholds{OverallMin: 70, AxisMin: 70})
	assert.False(t, ok)
	// overall + coherence + dev_signal all fail => 3 reasons, in a stable order.
	require.Len(t, reasons, 3)
	assert.Contains(t, reasons[0], "overall")
	assert.Contains(t, reasons[1], "coherence")
	assert.Contains(t, reasons[2], "dev_signal")
}

func TestSanitizeContentStripsBackticksAndTruncates(t *testing.T) {
	content := "`inline code` and a normal sentence.\n\n\n\nextra blank lines"
	got := sanitizeContent(content)
	assert.NotContains(t, got, "`")

	long := strings.Repeat("a", 5000)
	assert.LessOrEqual(t, len(sanitizeContent(long)), 4000)
}
