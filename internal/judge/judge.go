// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package judge scores a rendered manifest's quality via the AI
// inference model. A malformed response never aborts the pipeline: it
// yields a neutral default evaluation flagged for manual review (§4.13).
package judge

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cartographus/internal/aiclient"
	"github.com/tomtom215/cartographus/internal/models"
	"github.com/tomtom215/cartographus/internal/retry"
	"github.com/tomtom215/cartographus/internal/validation"
)

// Thresholds gates approval: the overall score and every axis must meet
// their respective minimums.
type Thresholds struct {
	OverallMin int
	AxisMin    int
}

// Judge runs the quality-evaluation stage.
type Judge struct {
	ai     *aiclient.Client
	model  string
	policy retry.Policy
}

// New builds a Judge invoking modelID for each evaluation.
func New(ai *aiclient.Client, modelID string, policy retry.Policy) *Judge {
	return &Judge{ai: ai, model: modelID, policy: policy}
}

// sanitizeContent collapses repeated newlines, strips backticks, and
// truncates to 4000 chars before it enters the evaluation prompt (§4.13).
func sanitizeContent(content string) string {
	content = validation.CollapseNewlines(content, 2)
	content = validation.StripBackticks(content)
	return validation.TruncateRunes(content, 4000)
}

func buildPrompt(content string) string {
	return fmt.Sprintf(
		"Evaluate the quality of this blog content.\n%s\n"+
			"Respond with JSON only: {\"overall\":int,\"per_axis\":{\"coherence\":int,\"correctness\":int,\"dev_signal\":int,\"narrative_flow\":int},\"reasoning\":string,\"recommendations\":[string]}",
		sanitizeContent(content),
	)
}

type rawEvaluation struct {
	Overall         int             `json:"overall"`
	PerAxis         json.RawMessage `json:"per_axis"`
	Reasoning       string          `json:"reasoning"`
	Recommendations []string        `json:"recommendations"`
}

type rawAxes struct {
	Coherence     int `json:"coherence"`
	Correctness   int `json:"correctness"`
	DevSignal     int `json:"dev_signal"`
	NarrativeFlow int `json:"narrative_flow"`
}

// neutralEvaluation is the fallback returned for any malformed response.
func neutralEvaluation() models.JudgeEvaluation {
	return models.JudgeEvaluation{
		Overall: 50,
		PerAxis: models.JudgeAxes{
			Coherence:     50,
			Correctness:   50,
			DevSignal:     50,
			NarrativeFlow: 50,
		},
		Reasoning:       "evaluation response was malformed; defaulting to neutral scores",
		Recommendations: []string{"manually review this content before publishing"},
		Version:         "v1",
	}
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Evaluate invokes the AI service and parses its response into a
// JudgeEvaluation, clamping out-of-range scores, or returns
// neutralEvaluation on any parse failure.
func (j *Judge) Evaluate(ctx context.Context, content string) models.JudgeEvaluation {
	var raw string
	err := retry.Do(ctx, j.policy, func(ctx context.Context) error {
		out, err := j.ai.Complete(ctx, j.model, buildPrompt(content))
		if err != nil {
			return err
		}
		raw = out
		return nil
	})
	if err != nil {
		return neutralEvaluation()
	}
	return parseEvaluation(raw)
}

func parseEvaluation(raw string) models.JudgeEvaluation {
	body := strings.TrimSpace(raw)
	body = strings.TrimPrefix(body, "```json")
	body = strings.TrimPrefix(body, "```")
	body = strings.TrimSuffix(body, "```")
	body = strings.TrimSpace(body)

	var re rawEvaluation
	if err := json.Unmarshal([]byte(body), &re); err != nil {
		return neutralEvaluation()
	}

	var axes rawAxes
	if err := json.Unmarshal(re.PerAxis, &axes); err != nil {
		return neutralEvaluation()
	}

	return models.JudgeEvaluation{
		Overall: clampScore(re.Overall),
		PerAxis: models.JudgeAxes{
			Coherence:     clampScore(axes.Coherence),
			Correctness:   clampScore(axes.Correctness),
			DevSignal:     clampScore(axes.DevSignal),
			NarrativeFlow: clampScore(axes.NarrativeFlow),
		},
		Reasoning:       re.Reasoning,
		Recommendations: re.Recommendations,
		Version:         "v1",
	}
}

// MeetsThreshold returns approved=true iff overall and every axis meet
// their thresholds, along with the reasons for any failure (§4.13).
func MeetsThreshold(eval models.JudgeEvaluation, t Thresholds) (bool, []string) {
	var reasons []string

	if eval.Overall < t.OverallMin {
		reasons = append(reasons, fmt.Sprintf("overall score %d below minimum %d", eval.Overall, t.OverallMin))
	}
	type axis struct {
		name  string
		score int
	}
	axes := []axis{
		{"coherence", eval.PerAxis.Coherence},
		{"correctness", eval.PerAxis.Correctness},
		{"dev_signal", eval.PerAxis.DevSignal},
		{"narrative_flow", eval.PerAxis.NarrativeFlow},
	}
	for _, a := range axes {
		if a.score < t.AxisMin {
			reasons = append(reasons, fmt.Sprintf("%s score %d below minimum %d", a.name, a.score, t.AxisMin))
		}
	}

	return len(reasons) == 0, reasons
}
