package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vampirenirmal/storyloom/internal/core"
	"github.com/vampirenirmal/storyloom/internal/engine"
	"github.com/vampirenirmal/storyloom/internal/extract"
	"github.com/vampirenirmal/storyloom/internal/rolling"
)

type draftData struct {
	Title   string
	Context string
}

// DraftAll drafts every eligible unit in order. Drafting is strictly
// sequential: unit i+1's context needs unit i's dense summary, so there is no
// fan-out here by design. Per-unit failures are recorded in the outcomes and
// the batch continues; only store failures and context cancellation abort.
func (p *Pipeline) DraftAll(ctx context.Context, req Request) ([]UnitOutcome, error) {
	units, err := p.store.ListUnits(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing units: %w", err)
	}
	if len(units) == 0 {
		return nil, core.ErrNoUnits
	}

	state, err := p.store.GetState(ctx)
	if err != nil && !errors.Is(err, core.ErrNoStoryState) {
		return nil, fmt.Errorf("loading story state: %w", err)
	}

	outcomes := make([]UnitOutcome, 0, len(units))
	var predecessorID string
	for _, unit := range units {
		// Cancellation is coarse: finish nothing mid-unit, just stop
		// scheduling the next one.
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, p.draftUnit(ctx, unit.ID, predecessorID, state, req))
		predecessorID = unit.ID
	}
	return outcomes, nil
}

// draftUnit drafts one unit against its freshly assembled context. Failures
// are folded into the outcome, never returned.
func (p *Pipeline) draftUnit(ctx context.Context, unitID, predecessorID string, state core.StoryState, req Request) UnitOutcome {
	start := time.Now()
	logger := p.logger.With("unit_id", unitID)

	fail := func(out UnitOutcome, reason string, err error) UnitOutcome {
		out.Status = OutcomeFailed
		out.Reason = fmt.Sprintf("%s: %v", reason, err)
		out.Duration = time.Since(start)
		logger.Error("unit drafting failed", "reason", reason, "error", err)
		return out
	}

	unit, err := p.store.GetUnit(ctx, unitID)
	out := UnitOutcome{UnitID: unitID}
	if err != nil {
		return fail(out, "loading unit", err)
	}
	out.Title = unit.Title

	if strings.TrimSpace(unit.Synopsis) == "" {
		out.Status = OutcomeSkipped
		out.Reason = "no synopsis"
		out.Duration = time.Since(start)
		logger.Info("unit skipped", "reason", out.Reason)
		return out
	}
	if strings.TrimSpace(unit.Body) != "" && !req.Overwrite {
		out.Status = OutcomeSkipped
		out.Reason = "body exists"
		out.Duration = time.Since(start)
		logger.Info("unit skipped", "reason", out.Reason)
		return out
	}

	predecessor, err := p.ensurePredecessorSummary(ctx, predecessorID)
	if err != nil {
		return fail(out, "preparing predecessor summary", err)
	}

	participants, err := rolling.LoadParticipants(ctx, p.store, unit.ParticipantIDs)
	if err != nil {
		return fail(out, "loading participants", err)
	}

	blocks := rolling.BuildBlocks(unit, state, predecessor, participants)
	contextText := rolling.Snapshot(blocks)

	body, score, err := p.generateBody(ctx, unit, contextText, req)
	if err != nil {
		return fail(out, "generating body", err)
	}

	unit.Body = body
	if unit.DraftStatus.Before(core.StatusDraft) {
		unit.DraftStatus = core.StatusDraft
	}
	if err := p.store.PutUnit(ctx, unit); err != nil {
		return fail(out, "persisting body", err)
	}

	// The body is already persisted; a summarization failure costs this
	// unit's outcome but not its prose.
	summary, err := p.summarizer.Summarize(ctx, body, unit.Title)
	if err != nil {
		return fail(out, "summarizing body", err)
	}
	unit.DenseSummary = summary
	if err := p.store.PutUnit(ctx, unit); err != nil {
		return fail(out, "persisting summary", err)
	}

	// Metadata refresh is observability, not canon; a failure here only
	// means the staleness scan over-reports until the next run.
	if _, err := p.tracker.UpdateContextMetadata(ctx, unit.ID); err != nil {
		logger.Warn("context metadata refresh failed", "error", err)
	}

	out.Status = OutcomeDrafted
	out.Score = score
	out.Duration = time.Since(start)
	logger.Info("unit drafted",
		"body_chars", len(body),
		"score", score,
		"duration_ms", out.Duration.Milliseconds())
	return out
}

// ensurePredecessorSummary loads the predecessor and, when it has a body but
// no dense summary yet, summarizes and persists it first. This self-heals
// summaries lost to earlier failures. A missing predecessor id yields nil.
func (p *Pipeline) ensurePredecessorSummary(ctx context.Context, predecessorID string) (*core.ContentUnit, error) {
	if predecessorID == "" {
		return nil, nil
	}

	predecessor, err := p.store.GetUnit(ctx, predecessorID)
	if err != nil {
		return nil, fmt.Errorf("loading predecessor %s: %w", predecessorID, err)
	}

	if strings.TrimSpace(predecessor.Body) != "" && strings.TrimSpace(predecessor.DenseSummary) == "" {
		summary, err := p.summarizer.Summarize(ctx, predecessor.Body, predecessor.Title)
		if err != nil {
			return nil, fmt.Errorf("summarizing predecessor %s: %w", predecessorID, err)
		}
		predecessor.DenseSummary = summary
		if err := p.store.PutUnit(ctx, predecessor); err != nil {
			return nil, fmt.Errorf("persisting predecessor summary: %w", err)
		}
		p.logger.Info("predecessor summary backfilled", "unit_id", predecessorID)
	}

	return &predecessor, nil
}

// generateBody produces the prose for one unit: a plain completion, a
// streaming completion when a sink is attached, or a draft-then-optimize pass
// when reflective drafting is requested.
func (p *Pipeline) generateBody(ctx context.Context, unit core.ContentUnit, contextText string, req Request) (string, float64, error) {
	userPrompt, err := p.prompts.Render(draftTemplateName, draftTemplate, draftData{
		Title:   unit.Title,
		Context: contextText,
	})
	if err != nil {
		return "", 0, err
	}

	if req.Reflect {
		return p.generateReflective(ctx, userPrompt, contextText, req)
	}

	var response string
	if p.sink != nil {
		response, err = p.service.CompleteStream(ctx, draftSystemPrompt, userPrompt, p.sink)
	} else {
		response, err = p.service.Complete(ctx, draftSystemPrompt, userPrompt)
	}
	if err != nil {
		return "", 0, core.NewServiceError(stageDraft, err)
	}

	body := strings.TrimSpace(extract.Unfence(response))
	if body == "" {
		return "", 0, core.NewServiceError(stageDraft, core.ErrEmptyResponse)
	}
	return body, 0, nil
}

// generateReflective drafts once, then routes the draft through the
// optimization engine against the chapter rubric. The optimizer's fail-soft
// semantics apply: an unparseable rewrite keeps the last good draft.
func (p *Pipeline) generateReflective(ctx context.Context, userPrompt, contextText string, req Request) (string, float64, error) {
	response, err := p.service.Complete(ctx, draftSystemPrompt, userPrompt)
	if err != nil {
		return "", 0, core.NewServiceError(stageDraft, err)
	}
	draft := strings.TrimSpace(extract.Unfence(response))
	if draft == "" {
		return "", 0, core.NewServiceError(stageDraft, core.ErrEmptyResponse)
	}

	result, err := engine.Optimize(ctx, p.engine, draft, engine.Config[string]{
		Dimensions:    core.ChapterQualityDimensions(),
		Codec:         core.StringCodec(),
		Context:       contextText,
		MaxIterations: req.MaxIterations,
		TargetScore:   req.TargetScore,
	})
	if err != nil {
		return "", 0, err
	}

	improved := strings.TrimSpace(result.Improved)
	if improved == "" {
		// The optimizer should never hand back an empty candidate, but a
		// draft is too expensive to discard on a degenerate rewrite.
		return draft, result.FinalScore, nil
	}
	return improved, result.FinalScore, nil
}
