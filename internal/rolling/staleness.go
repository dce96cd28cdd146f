package rolling

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vampirenirmal/storyloom/internal/core"
)

// blockSeparator joins context blocks into the snapshot that gets hashed and
// sent. Changing it invalidates every stored hash.
const blockSeparator = "\n\n---\n\n"

// Snapshot joins assembled blocks with the fixed separator.
func Snapshot(blocks []string) string {
	return strings.Join(blocks, blockSeparator)
}

// HashSnapshot returns a stable hex digest of a snapshot, suitable for
// equality comparison across process restarts.
func HashSnapshot(snapshot string) string {
	sum := sha256.Sum256([]byte(snapshot))
	return hex.EncodeToString(sum[:])
}

// EstimateTokens approximates the token cost of text as ceil(len/4).
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// LoadParticipants fetches the named participants in id order, skipping ids
// the store does not know.
func LoadParticipants(ctx context.Context, store core.Store, ids []string) ([]core.Participant, error) {
	participants := make([]core.Participant, 0, len(ids))
	for _, id := range ids {
		p, err := store.GetParticipant(ctx, id)
		if errors.Is(err, core.ErrParticipantNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("loading participant %s: %w", id, err)
		}
		participants = append(participants, p)
	}
	return participants, nil
}

// Tracker detects when a unit's composed context has drifted from the hash
// recorded at its last generation, and refreshes the persisted metadata.
type Tracker struct {
	store  core.Store
	logger *slog.Logger
}

// NewTracker creates a tracker over the given store. logger may be nil.
func NewTracker(store core.Store, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		store:  store,
		logger: logger.With("component", "staleness_tracker"),
	}
}

// UpdateContextMetadata recomposes the unit's context blocks and persists the
// joined snapshot, its hash, and the token estimate onto the unit. It returns
// the updated unit.
func (t *Tracker) UpdateContextMetadata(ctx context.Context, unitID string) (core.ContentUnit, error) {
	unit, err := t.store.GetUnit(ctx, unitID)
	if err != nil {
		return core.ContentUnit{}, fmt.Errorf("loading unit %s: %w", unitID, err)
	}

	state, units, err := t.loadInputs(ctx)
	if err != nil {
		return core.ContentUnit{}, err
	}

	snapshot, err := t.snapshotFor(ctx, unit, state, units)
	if err != nil {
		return core.ContentUnit{}, err
	}

	unit.ContextSnapshot = snapshot
	unit.LastPromptHash = HashSnapshot(snapshot)
	unit.ContextTokenEstimate = EstimateTokens(snapshot)

	if err := t.store.PutUnit(ctx, unit); err != nil {
		return core.ContentUnit{}, fmt.Errorf("persisting context metadata for %s: %w", unitID, err)
	}

	t.logger.Debug("context metadata refreshed",
		"unit_id", unitID,
		"prompt_hash", core.Truncate(unit.LastPromptHash, 12),
		"token_estimate", unit.ContextTokenEstimate)

	return unit, nil
}

// NeedsRefresh recomputes the would-be context hash without persisting and
// compares it to the unit's stored LastPromptHash. A unit that has never had
// its metadata updated always reports true.
func (t *Tracker) NeedsRefresh(ctx context.Context, unit core.ContentUnit) (bool, error) {
	state, units, err := t.loadInputs(ctx)
	if err != nil {
		return false, err
	}
	snapshot, err := t.snapshotFor(ctx, unit, state, units)
	if err != nil {
		return false, err
	}
	return HashSnapshot(snapshot) != unit.LastPromptHash, nil
}

// loadInputs fetches the shared assembly inputs. A store with no extracted
// bible yet yields a zero state rather than an error.
func (t *Tracker) loadInputs(ctx context.Context) (core.StoryState, []core.ContentUnit, error) {
	state, err := t.store.GetState(ctx)
	if errors.Is(err, core.ErrNoStoryState) {
		state = core.StoryState{}
	} else if err != nil {
		return core.StoryState{}, nil, fmt.Errorf("loading story state: %w", err)
	}

	units, err := t.store.ListUnits(ctx)
	if err != nil {
		return core.StoryState{}, nil, fmt.Errorf("listing units: %w", err)
	}
	return state, units, nil
}

func (t *Tracker) snapshotFor(ctx context.Context, unit core.ContentUnit, state core.StoryState, units []core.ContentUnit) (string, error) {
	participants, err := LoadParticipants(ctx, t.store, unit.ParticipantIDs)
	if err != nil {
		return "", err
	}
	blocks := BuildBlocks(unit, state, predecessorOf(units, unit), participants)
	return Snapshot(blocks), nil
}
