// Package engine implements the reflective optimization loop: a judge scores
// serialized candidates against weighted rubrics, and the optimizer feeds the
// resulting critique back into targeted rewrites until the candidate clears a
// quality bar or the iteration budget runs out.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vampirenirmal/storyloom/internal/core"
	"github.com/vampirenirmal/storyloom/internal/extract"
	"github.com/vampirenirmal/storyloom/internal/prompt"
)

// Judge scores serialized candidates against a weighted rubric and returns
// the structured Reflection the optimizer consumes.
type Judge struct {
	service core.TextService
	prompts *prompt.Library
	logger  *slog.Logger
}

// NewJudge creates a judge over the given text service. prompts and logger
// may be nil.
func NewJudge(service core.TextService, prompts *prompt.Library, logger *slog.Logger) *Judge {
	if prompts == nil {
		prompts = prompt.NewLibrary("")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Judge{
		service: service,
		prompts: prompts,
		logger:  logger.With("component", "judge"),
	}
}

type evaluateData struct {
	Dimensions []core.Dimension
	Context    string
	Candidate  string
}

// Evaluate runs one scoring pass over an already-serialized candidate.
//
// A service failure returns a ServiceError. An unusable model response (no
// JSON block, or JSON that does not match the Reflection shape) degrades to a
// zero Reflection with a nil error, so a single bad evaluation never aborts
// the caller's loop.
func (j *Judge) Evaluate(ctx context.Context, candidate string, dims []core.Dimension, evalContext string) (core.Reflection, error) {
	userPrompt, err := j.prompts.Render(evaluateTemplateName, evaluateTemplate, evaluateData{
		Dimensions: dims,
		Context:    evalContext,
		Candidate:  candidate,
	})
	if err != nil {
		return core.Reflection{}, fmt.Errorf("rendering evaluate prompt: %w", err)
	}

	start := time.Now()
	response, err := j.service.Complete(ctx, judgeSystemPrompt, userPrompt)
	if err != nil {
		return core.Reflection{}, core.NewServiceError("evaluate", err)
	}

	reflection, ok := parseReflection(response)
	if !ok {
		j.logger.Warn("discarding unparseable evaluation",
			"response_preview", core.Truncate(response, 160),
			"duration_ms", time.Since(start).Milliseconds())
		return core.Reflection{}, nil
	}

	// Some models leave overallScore at 0 even with populated traces;
	// recompute from the rubric weights rather than treating it as a zero.
	if reflection.OverallScore == 0 && len(reflection.Traces) > 0 {
		reflection.OverallScore = reflection.WeightedScore(dims)
	}

	j.logger.Debug("evaluation parsed",
		"overall_score", reflection.OverallScore,
		"traces", len(reflection.Traces),
		"mutations", len(reflection.Mutations),
		"duration_ms", time.Since(start).Milliseconds())

	return reflection, nil
}

// parseReflection pulls the first structured block out of a raw model
// response and decodes it. It reports false for anything it cannot use.
func parseReflection(response string) (core.Reflection, bool) {
	block, ok := extract.Block(response)
	if !ok {
		return core.Reflection{}, false
	}
	if !strings.HasPrefix(block, "{") {
		return core.Reflection{}, false
	}
	var reflection core.Reflection
	if err := json.Unmarshal([]byte(block), &reflection); err != nil {
		return core.Reflection{}, false
	}
	return reflection, true
}
