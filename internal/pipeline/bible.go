package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vampirenirmal/storyloom/internal/core"
	"github.com/vampirenirmal/storyloom/internal/extract"
)

type bibleData struct {
	Premise string
}

// ExtractState distills the premise into a story bible and persists it,
// replacing any previously extracted state wholesale. Parse failures here are
// fail-fast: every later stage depends on this output.
func (p *Pipeline) ExtractState(ctx context.Context, premise string) (core.StoryState, error) {
	userPrompt, err := p.prompts.Render(bibleTemplateName, bibleTemplate, bibleData{Premise: premise})
	if err != nil {
		return core.StoryState{}, core.NewStageError(stageExtract, err)
	}

	response, err := p.service.Complete(ctx, bibleSystemPrompt, userPrompt)
	if err != nil {
		return core.StoryState{}, core.NewStageError(stageExtract, core.NewServiceError(stageExtract, err))
	}

	block, ok := extract.Block(response)
	if !ok {
		return core.StoryState{}, core.NewStageError(stageExtract,
			core.NewParseError(stageExtract, response, errors.New("no JSON object in response")))
	}

	var state core.StoryState
	if err := json.Unmarshal([]byte(block), &state); err != nil {
		return core.StoryState{}, core.NewStageError(stageExtract, core.NewParseError(stageExtract, block, err))
	}
	if state.IsZero() {
		return core.StoryState{}, core.NewStageError(stageExtract,
			core.NewParseError(stageExtract, block, errors.New("extracted state carries no content")))
	}

	if err := p.store.PutState(ctx, state); err != nil {
		return core.StoryState{}, core.NewStageError(stageExtract, fmt.Errorf("persisting story state: %w", err))
	}

	p.logger.Info("story state extracted",
		"themes", len(state.CoreThemes),
		"terminologies", len(state.Terminologies),
		"world_rules", len(state.WorldRules))
	return state, nil
}
