// Package pipeline sequences the hierarchical build: story-state extraction,
// skeleton planning, skeleton validation, then strictly sequential per-unit
// drafting over rolling context. The first three stages fail fast; drafting
// fails soft per unit so one bad generation never abandons the batch.
package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vampirenirmal/storyloom/internal/core"
	"github.com/vampirenirmal/storyloom/internal/engine"
	"github.com/vampirenirmal/storyloom/internal/prompt"
	"github.com/vampirenirmal/storyloom/internal/rolling"
)

const (
	stageExtract  = "extract_state"
	stagePlan     = "plan_skeleton"
	stageValidate = "validate_skeleton"
	stageDraft    = "draft"
)

// Pipeline owns one store and one text service and drives builds over them.
// It is not safe for concurrent use; a build mutates units between awaited
// calls on a single control thread.
type Pipeline struct {
	store      core.Store
	service    core.TextService
	engine     *engine.Engine
	summarizer *rolling.Summarizer
	tracker    *rolling.Tracker
	prompts    *prompt.Library
	logger     *slog.Logger
	sink       func(string) error
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithPrompts sets the template library, enabling file-based overrides of
// every stage prompt.
func WithPrompts(lib *prompt.Library) Option {
	return func(p *Pipeline) {
		if lib != nil {
			p.prompts = lib
		}
	}
}

// WithStreamSink attaches a consumer for incremental draft output. The sink
// only receives plain drafting output; reflective drafting buffers instead,
// since rewrite passes would interleave garbage into a live stream.
func WithStreamSink(sink func(string) error) Option {
	return func(p *Pipeline) { p.sink = sink }
}

// New wires a pipeline over the given store and service.
func New(store core.Store, service core.TextService, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:   store,
		service: service,
		prompts: prompt.NewLibrary(""),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.engine = engine.New(service, engine.WithPrompts(p.prompts), engine.WithLogger(p.logger))
	p.summarizer = rolling.NewSummarizer(service, p.prompts, p.logger)
	p.tracker = rolling.NewTracker(store, p.logger)
	p.logger = p.logger.With("component", "pipeline")
	return p
}

// Request parameterizes one auto-build run.
type Request struct {
	Premise   string
	UnitCount int  // units to plan; <= 0 keeps an existing skeleton's count
	Overwrite bool // redraft units that already have bodies
	Reflect   bool // route drafting through the optimization engine

	// Reflective drafting knobs; zero values fall back to engine defaults.
	MaxIterations int
	TargetScore   float64
}

// AutoBuild runs the full sequence: extract, plan, validate, draft. The
// returned report always covers whatever completed, even when err is a
// fail-fast StageError from the structural stages.
func (p *Pipeline) AutoBuild(ctx context.Context, req Request) (report Report, err error) {
	report = Report{
		RunID:     uuid.New().String(),
		StartedAt: time.Now(),
	}
	logger := p.logger.With("run_id", report.RunID)
	defer func() { report.Duration = time.Since(report.StartedAt) }()

	if strings.TrimSpace(req.Premise) == "" {
		return report, core.NewStageError(stageExtract, core.ErrNoPremise)
	}

	logger.Info("auto-build started",
		"unit_count", req.UnitCount,
		"overwrite", req.Overwrite,
		"reflect", req.Reflect)

	state, err := p.ExtractState(ctx, req.Premise)
	if err != nil {
		return report, err
	}

	if _, err := p.PlanSkeleton(ctx, req.Premise, state, req.UnitCount); err != nil {
		return report, err
	}

	if _, err := p.ValidateSkeleton(ctx); err != nil {
		return report, err
	}

	outcomes, err := p.DraftAll(ctx, req)
	report.Units = outcomes
	if err != nil {
		return report, err
	}

	logger.Info("auto-build finished",
		"drafted", report.Drafted(),
		"skipped", report.Skipped(),
		"failed", report.Failed(),
		"duration_ms", time.Since(report.StartedAt).Milliseconds())
	return report, nil
}
