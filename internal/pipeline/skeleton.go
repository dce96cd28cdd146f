package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/vampirenirmal/storyloom/internal/core"
	"github.com/vampirenirmal/storyloom/internal/extract"
	"github.com/vampirenirmal/storyloom/internal/rolling"
)

type architectData struct {
	Premise   string
	UnitCount int
	Digest    string
	Existing  string
}

// skeletonEntry is one planned unit as the architect returns it.
type skeletonEntry struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Placeholder string `json:"placeholder"`
	Summary     string `json:"summary"`
}

// PlanSkeleton asks the architect for unitCount sequenced units and upserts
// them positionally: entry i lands on the existing unit with OrderIndex i,
// preserving ids across re-runs, and new units are created past the end.
// Units that already carry a drafted body are never clobbered. unitCount <= 0
// reuses the existing skeleton's size (default 8 on an empty store).
func (p *Pipeline) PlanSkeleton(ctx context.Context, premise string, state core.StoryState, unitCount int) ([]core.ContentUnit, error) {
	existing, err := p.store.ListUnits(ctx)
	if err != nil {
		return nil, core.NewStageError(stagePlan, fmt.Errorf("listing units: %w", err))
	}

	if unitCount <= 0 {
		if unitCount = len(existing); unitCount == 0 {
			unitCount = 8
		}
	}

	data := architectData{
		Premise:   premise,
		UnitCount: unitCount,
		Digest:    rolling.StateDigest(state),
		Existing:  describeUnits(existing),
	}
	userPrompt, err := p.prompts.Render(architectTemplateName, architectTemplate, data)
	if err != nil {
		return nil, core.NewStageError(stagePlan, err)
	}

	response, err := p.service.Complete(ctx, architectSystemPrompt, userPrompt)
	if err != nil {
		return nil, core.NewStageError(stagePlan, core.NewServiceError(stagePlan, err))
	}

	block, ok := extract.Block(response)
	if !ok {
		return nil, core.NewStageError(stagePlan,
			core.NewParseError(stagePlan, response, errors.New("no JSON array in response")))
	}
	var entries []skeletonEntry
	if err := json.Unmarshal([]byte(block), &entries); err != nil {
		return nil, core.NewStageError(stagePlan, core.NewParseError(stagePlan, block, err))
	}
	if len(entries) == 0 {
		return nil, core.NewStageError(stagePlan,
			core.NewParseError(stagePlan, block, errors.New("architect returned no units")))
	}
	if len(entries) != unitCount {
		p.logger.Warn("architect returned a different unit count",
			"requested", unitCount,
			"returned", len(entries))
	}

	planned := make([]core.ContentUnit, 0, len(entries))
	for i, entry := range entries {
		var unit core.ContentUnit
		if i < len(existing) {
			unit = existing[i]
		} else {
			unit = core.ContentUnit{
				ID:          uuid.New().String(),
				OrderIndex:  i,
				DraftStatus: core.StatusSkeleton,
			}
		}

		// Re-planning never clobbers drafted work.
		if strings.TrimSpace(unit.Body) == "" {
			unit.Title = strings.TrimSpace(entry.Title)
			unit.Placeholder = strings.TrimSpace(entry.Placeholder)
			unit.Synopsis = strings.TrimSpace(entry.Summary)
			if unit.DraftStatus.Before(core.StatusSkeleton) {
				unit.DraftStatus = core.StatusSkeleton
			}
		}
		unit.OrderIndex = i

		if err := p.store.PutUnit(ctx, unit); err != nil {
			return nil, core.NewStageError(stagePlan, fmt.Errorf("persisting unit %s: %w", unit.ID, err))
		}
		planned = append(planned, unit)
	}

	p.logger.Info("skeleton planned",
		"units", len(planned),
		"reused", min(len(existing), len(planned)))
	return planned, nil
}

type validateData struct {
	Digest string
	Units  string
}

// validationEntry is one audit line as the validator returns it.
type validationEntry struct {
	ID             string `json:"id"`
	ValidatorNotes string `json:"validatorNotes"`
	DraftStatus    string `json:"draftStatus"`
}

// ValidateSkeleton audits the current skeleton against the stored state and
// applies notes and status promotions. Entries are matched to units by id;
// entries whose id matches nothing fall back to matching by array position,
// and entries beyond the unit count are dropped with a warning. Statuses only
// ever advance.
func (p *Pipeline) ValidateSkeleton(ctx context.Context) ([]core.ContentUnit, error) {
	units, err := p.store.ListUnits(ctx)
	if err != nil {
		return nil, core.NewStageError(stageValidate, fmt.Errorf("listing units: %w", err))
	}
	if len(units) == 0 {
		return nil, core.NewStageError(stageValidate, core.ErrNoUnits)
	}

	state, err := p.store.GetState(ctx)
	if err != nil && !errors.Is(err, core.ErrNoStoryState) {
		return nil, core.NewStageError(stageValidate, fmt.Errorf("loading story state: %w", err))
	}

	payload, err := plannedUnitsJSON(units)
	if err != nil {
		return nil, core.NewStageError(stageValidate, err)
	}
	userPrompt, err := p.prompts.Render(validateTemplateName, validateTemplate, validateData{
		Digest: rolling.StateDigest(state),
		Units:  payload,
	})
	if err != nil {
		return nil, core.NewStageError(stageValidate, err)
	}

	response, err := p.service.Complete(ctx, validateSystemPrompt, userPrompt)
	if err != nil {
		return nil, core.NewStageError(stageValidate, core.NewServiceError(stageValidate, err))
	}

	block, ok := extract.Block(response)
	if !ok {
		return nil, core.NewStageError(stageValidate,
			core.NewParseError(stageValidate, response, errors.New("no JSON array in response")))
	}
	var entries []validationEntry
	if err := json.Unmarshal([]byte(block), &entries); err != nil {
		return nil, core.NewStageError(stageValidate, core.NewParseError(stageValidate, block, err))
	}

	byID := make(map[string]int, len(units))
	for i, unit := range units {
		byID[unit.ID] = i
	}

	applied := 0
	for i, entry := range entries {
		idx, ok := byID[entry.ID]
		if !ok {
			if i >= len(units) {
				p.logger.Warn("validation entry dropped: unknown id past unit count",
					"entry_id", entry.ID,
					"position", i)
				continue
			}
			idx = i
			if entry.ID != "" {
				p.logger.Warn("validation entry matched by position",
					"entry_id", entry.ID,
					"position", i,
					"unit_id", units[idx].ID)
			}
		}

		unit := units[idx]
		if notes := strings.TrimSpace(entry.ValidatorNotes); notes != "" {
			unit.ValidatorNotes = notes
		}
		status := core.DraftStatus(strings.TrimSpace(entry.DraftStatus))
		if (status == core.StatusSkeleton || status == core.StatusValidated) && unit.DraftStatus.Before(status) {
			unit.DraftStatus = status
		}

		if err := p.store.PutUnit(ctx, unit); err != nil {
			return nil, core.NewStageError(stageValidate, fmt.Errorf("persisting unit %s: %w", unit.ID, err))
		}
		units[idx] = unit
		applied++
	}

	p.logger.Info("skeleton validated",
		"units", len(units),
		"entries", len(entries),
		"applied", applied)
	return units, nil
}

// describeUnits renders the existing skeleton for the architect prompt.
func describeUnits(units []core.ContentUnit) string {
	if len(units) == 0 {
		return ""
	}
	var b strings.Builder
	for i, unit := range units {
		title := unit.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Fprintf(&b, "%d. %s [%s]\n", i+1, title, unit.DraftStatus)
	}
	return strings.TrimRight(b.String(), "\n")
}

// plannedUnitsJSON renders the validator's view of the skeleton.
func plannedUnitsJSON(units []core.ContentUnit) (string, error) {
	type plannedUnit struct {
		ID          string `json:"id"`
		Title       string `json:"title"`
		Placeholder string `json:"placeholder"`
		Synopsis    string `json:"synopsis"`
	}
	view := make([]plannedUnit, 0, len(units))
	for _, u := range units {
		view = append(view, plannedUnit{
			ID:          u.ID,
			Title:       u.Title,
			Placeholder: u.Placeholder,
			Synopsis:    u.Synopsis,
		})
	}
	data, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding planned units: %w", err)
	}
	return string(data), nil
}
