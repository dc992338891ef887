// Package position implements the per-symbol trailing-stop state machine:
// the tiered adjustment-table lookup, the individual Position ratchet, and
// the per-symbol PositionBook that drives every resident Position on a tick.
package position

import (
	"fmt"
	"sync"

	"tradestop/pkg/types"
)

// Lookup returns the tightening factor for a leveraged-profit percentage
// against a per-position band list, and prunes bands that can never fire
// again.
//
// It returns the adjustment of the first band where percentage falls in
// [min, max) — or [min, +inf) when max is nil — and 0.0 if no band matches
// (e.g. percentage below the first min).
//
// Before searching, any band whose max is finite and strictly less than
// percentage is discarded from *bands. This is a one-way ratchet: once a
// position has observed a given leveraged profit, a lower band can never
// fire again even if profit retraces. The pruning is intentional here, not
// an incidental side effect — see AdjustmentTableRegistry for the
// never-pruned tables new positions snapshot from.
func Lookup(percentage float64, bands *[]types.Adjustment) float64 {
	kept := (*bands)[:0]
	for _, b := range *bands {
		if b.Max != nil && *b.Max < percentage {
			continue
		}
		kept = append(kept, b)
	}
	*bands = kept

	for _, b := range *bands {
		if percentage >= b.Min && (b.Max == nil || percentage < *b.Max) {
			return b.Adjustment
		}
	}
	return 0.0
}

// AdjustmentTableRegistry holds named AdjustmentTables keyed by a small
// integer id selected by the client when opening a position. Each id has
// its own exclusive lock, matching the per-slot locking used for PriceBook
// and PositionBook — edits to one table never contend with another.
//
// New positions snapshot a table's band list at creation (via Snapshot);
// later edits via Put never affect already-open positions.
type AdjustmentTableRegistry struct {
	mu     sync.RWMutex
	tables map[int]*namedTable
}

type namedTable struct {
	mu    sync.Mutex
	bands []types.Adjustment
}

// NewAdjustmentTableRegistry builds a registry pre-seeded with the given
// named tables (Engine startup step 4).
func NewAdjustmentTableRegistry(seed map[int][]types.Adjustment) *AdjustmentTableRegistry {
	tables := make(map[int]*namedTable, len(seed))
	for id, bands := range seed {
		tables[id] = &namedTable{bands: types.CloneAdjustments(bands)}
	}
	return &AdjustmentTableRegistry{tables: tables}
}

// Get returns a copy of the named table's bands.
func (r *AdjustmentTableRegistry) Get(id int) ([]types.Adjustment, error) {
	r.mu.RLock()
	t, ok := r.tables[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("adjustment table %d: %w", id, ErrNotFound)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return types.CloneAdjustments(t.bands), nil
}

// Put replaces the named table's band list wholesale. In-flight positions,
// which hold their own snapshot, are unaffected.
func (r *AdjustmentTableRegistry) Put(id int, bands []types.Adjustment) {
	r.mu.Lock()
	t, ok := r.tables[id]
	if !ok {
		t = &namedTable{}
		r.tables[id] = t
	}
	r.mu.Unlock()

	t.mu.Lock()
	t.bands = types.CloneAdjustments(bands)
	t.mu.Unlock()
}

// Snapshot returns a fresh per-position copy of the named table with the
// sentinel band appended — ready to be installed on a new Position.
func (r *AdjustmentTableRegistry) Snapshot(id int) ([]types.Adjustment, error) {
	bands, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	return append(bands, types.SentinelAdjustment()), nil
}

// ErrNotFound is returned by Get/Snapshot for an unregistered adjustment id.
var ErrNotFound = fmt.Errorf("not found")
