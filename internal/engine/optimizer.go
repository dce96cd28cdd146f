package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vampirenirmal/storyloom/internal/core"
	"github.com/vampirenirmal/storyloom/internal/extract"
	"github.com/vampirenirmal/storyloom/internal/prompt"
)

const (
	// DefaultMaxIterations bounds the evaluate/improve loop when the caller
	// does not set a budget.
	DefaultMaxIterations = 2

	// DefaultTargetScore is the normalized (0..1) score at which the loop
	// stops early.
	DefaultTargetScore = 0.85
)

// Config controls one optimize run over candidates of type T.
type Config[T any] struct {
	Dimensions    []core.Dimension
	Codec         core.Codec[T]
	Context       string  // optional background handed to the judge
	MaxIterations int     // defaults to DefaultMaxIterations
	TargetScore   float64 // normalized 0..1, defaults to DefaultTargetScore
}

func (c Config[T]) withDefaults() Config[T] {
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.TargetScore <= 0 {
		c.TargetScore = DefaultTargetScore
	}
	return c
}

func (c Config[T]) validate() error {
	if c.Codec.Serialize == nil || c.Codec.Parse == nil {
		return errors.New("optimize config requires a codec with both Serialize and Parse")
	}
	if len(c.Dimensions) == 0 {
		return errors.New("optimize config requires at least one rubric dimension")
	}
	return nil
}

// Engine drives reflective optimization over any serializable candidate. The
// candidate type stays opaque: the engine only ever sees the codec's
// serialized form and the judge's structured critique of it.
type Engine struct {
	service core.TextService
	judge   *Judge
	prompts *prompt.Library
	logger  *slog.Logger
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger sets the logger used by the engine and its judge.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithPrompts sets the template library, enabling file-based overrides of the
// built-in prompts.
func WithPrompts(lib *prompt.Library) Option {
	return func(e *Engine) {
		if lib != nil {
			e.prompts = lib
		}
	}
}

// New creates an optimization engine over the given text service.
func New(service core.TextService, opts ...Option) *Engine {
	e := &Engine{
		service: service,
		prompts: prompt.NewLibrary(""),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.judge = NewJudge(service, e.prompts, e.logger)
	e.logger = e.logger.With("component", "optimizer")
	return e
}

// Judge exposes the engine's judge for standalone scoring.
func (e *Engine) Judge() *Judge {
	return e.judge
}

// Optimize runs the evaluate / stop-or-improve loop until the candidate
// clears the target score or the iteration budget runs out.
//
// Each iteration scores the current candidate, records the reflection, and —
// when the normalized score is still below target — requests a rewrite built
// from the critique. A rewrite that cannot be parsed back into T ends the
// loop with the last good candidate and a nil error. Service failures
// propagate immediately as ServiceError.
func Optimize[T any](ctx context.Context, e *Engine, candidate T, cfg Config[T]) (core.OptimizationResult[T], error) {
	cfg = cfg.withDefaults()
	result := core.OptimizationResult[T]{Original: candidate, Improved: candidate}
	if err := cfg.validate(); err != nil {
		return result, err
	}

	current := candidate
	e.logger.Info("starting optimization",
		"max_iterations", cfg.MaxIterations,
		"target_score", cfg.TargetScore,
		"dimensions", len(cfg.Dimensions))

	for iteration := 1; iteration <= cfg.MaxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			result.Improved = current
			return result, err
		}

		serialized := cfg.Codec.Serialize(current)
		reflection, err := e.judge.Evaluate(ctx, serialized, cfg.Dimensions, cfg.Context)
		if err != nil {
			result.Improved = current
			return result, err
		}

		result.Iterations = iteration
		result.Reflections = append(result.Reflections, reflection)
		result.FinalScore = reflection.OverallScore / 10

		e.logger.Info("evaluation pass finished",
			"iteration", iteration,
			"overall_score", reflection.OverallScore,
			"final_score", result.FinalScore,
			"target_score", cfg.TargetScore)

		if result.FinalScore >= cfg.TargetScore {
			e.logger.Info("target score reached",
				"iterations", iteration,
				"final_score", result.FinalScore)
			result.Improved = current
			return result, nil
		}

		improved, ok, err := improveCandidate(ctx, e, serialized, reflection, cfg.Codec)
		if err != nil {
			result.Improved = current
			return result, err
		}
		if !ok {
			e.logger.Warn("rewrite unusable, keeping last good candidate",
				"iteration", iteration)
			break
		}
		current = improved
		result.Improved = current
	}

	result.Improved = current
	return result, nil
}

// EvaluateOnce runs a single judge pass without the improvement loop, for
// inspection-only use.
func EvaluateOnce[T any](ctx context.Context, e *Engine, candidate T, cfg Config[T]) (core.Reflection, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return core.Reflection{}, err
	}
	return e.judge.Evaluate(ctx, cfg.Codec.Serialize(candidate), cfg.Dimensions, cfg.Context)
}

type improveData struct {
	OverallScore float64
	Traces       []core.Trace
	PriorityFix  string
	Mutations    []core.Mutation
	Candidate    string
}

// improveCandidate sends the improvement directive and parses the rewrite
// back into a candidate. ok is false when the response is empty or cannot be
// parsed; callers treat that as "stop, keep the last good candidate".
func improveCandidate[T any](ctx context.Context, e *Engine, serialized string, reflection core.Reflection, codec core.Codec[T]) (T, bool, error) {
	var zero T

	directive, err := e.prompts.Render(improveTemplateName, improveTemplate, improveData{
		OverallScore: reflection.OverallScore,
		Traces:       reflection.Traces,
		PriorityFix:  reflection.PriorityFix,
		Mutations:    reflection.Mutations,
		Candidate:    serialized,
	})
	if err != nil {
		return zero, false, fmt.Errorf("rendering improve prompt: %w", err)
	}

	response, err := e.service.Complete(ctx, improveSystemPrompt, directive)
	if err != nil {
		return zero, false, core.NewServiceError("improve", err)
	}

	parsed, err := parseCandidate(response, codec)
	if err != nil {
		e.logger.Warn("discarding unparseable rewrite",
			"response_preview", core.Truncate(response, 160),
			"error", err)
		return zero, false, nil
	}
	return parsed, true, nil
}

// parseCandidate tries the raw (unfenced, trimmed) response first so prose
// codecs keep the whole text, then falls back to the first extracted
// structured block for JSON candidates that arrive wrapped in commentary.
func parseCandidate[T any](response string, codec core.Codec[T]) (T, error) {
	var zero T
	trimmed := strings.TrimSpace(extract.Unfence(response))
	if trimmed == "" {
		return zero, core.ErrEmptyResponse
	}
	parsed, err := codec.Parse(trimmed)
	if err == nil {
		return parsed, nil
	}
	if block, ok := extract.Block(trimmed); ok {
		if fromBlock, blockErr := codec.Parse(block); blockErr == nil {
			return fromBlock, nil
		}
	}
	return zero, err
}
