package store

import (
	"context"
	"sort"
	"sync"

	"github.com/vampirenirmal/storyloom/internal/core"
)

// Memory is an in-memory core.Store. The refresh scan reads concurrently, so
// access is guarded even though the pipeline itself is single-threaded.
type Memory struct {
	mu           sync.RWMutex
	units        map[string]core.ContentUnit
	state        *core.StoryState
	participants map[string]core.Participant
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		units:        make(map[string]core.ContentUnit),
		participants: make(map[string]core.Participant),
	}
}

func (m *Memory) GetUnit(ctx context.Context, id string) (core.ContentUnit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	unit, ok := m.units[id]
	if !ok {
		return core.ContentUnit{}, core.ErrUnitNotFound
	}
	return unit, nil
}

func (m *Memory) PutUnit(ctx context.Context, unit core.ContentUnit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.units[unit.ID] = unit
	return nil
}

func (m *Memory) ListUnits(ctx context.Context) ([]core.ContentUnit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	units := make([]core.ContentUnit, 0, len(m.units))
	for _, unit := range m.units {
		units = append(units, unit)
	}
	sort.Slice(units, func(i, j int) bool {
		if units[i].OrderIndex != units[j].OrderIndex {
			return units[i].OrderIndex < units[j].OrderIndex
		}
		return units[i].ID < units[j].ID
	})
	return units, nil
}

func (m *Memory) DeleteUnit(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.units[id]; !ok {
		return core.ErrUnitNotFound
	}
	delete(m.units, id)
	return nil
}

func (m *Memory) GetState(ctx context.Context) (core.StoryState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state == nil {
		return core.StoryState{}, core.ErrNoStoryState
	}
	return *m.state, nil
}

func (m *Memory) PutState(ctx context.Context, state core.StoryState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = &state
	return nil
}

func (m *Memory) GetParticipant(ctx context.Context, id string) (core.Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.participants[id]
	if !ok {
		return core.Participant{}, core.ErrParticipantNotFound
	}
	return p, nil
}

func (m *Memory) PutParticipant(ctx context.Context, p core.Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.participants[p.ID] = p
	return nil
}

func (m *Memory) ListParticipants(ctx context.Context) ([]core.Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	participants := make([]core.Participant, 0, len(m.participants))
	for _, p := range m.participants {
		participants = append(participants, p)
	}
	sort.Slice(participants, func(i, j int) bool {
		if participants[i].Name != participants[j].Name {
			return participants[i].Name < participants[j].Name
		}
		return participants[i].ID < participants[j].ID
	})
	return participants, nil
}
