package rolling

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// defaultScanLimit bounds concurrent staleness checks during a scan.
const defaultScanLimit = 4

// RefreshScan reports the ids of units whose composed context no longer
// matches their stored hash, ordered by unit order. The scan only reads, so
// checks fan out concurrently; limit caps the fan-out (values below 1 use the
// default).
func (t *Tracker) RefreshScan(ctx context.Context, limit int) ([]string, error) {
	if limit < 1 {
		limit = defaultScanLimit
	}

	state, units, err := t.loadInputs(ctx)
	if err != nil {
		return nil, err
	}

	order := make(map[string]int, len(units))
	for _, u := range units {
		order[u.ID] = u.OrderIndex
	}

	var mu sync.Mutex
	stale := make([]string, 0)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, unit := range units {
		g.Go(func() error {
			snapshot, err := t.snapshotFor(gctx, unit, state, units)
			if err != nil {
				return err
			}
			if HashSnapshot(snapshot) == unit.LastPromptHash {
				return nil
			}
			mu.Lock()
			stale = append(stale, unit.ID)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(stale, func(i, j int) bool {
		return order[stale[i]] < order[stale[j]]
	})

	t.logger.Info("staleness scan finished",
		"units_checked", len(units),
		"stale_units", len(stale))

	return stale, nil
}
