package position

import (
	"sync"

	"github.com/shopspring/decimal"

	"tradestop/pkg/types"
)

// slot is one symbol's live Position list, independently locked so that
// cross-symbol operations never contend with each other.
type slot struct {
	mu   sync.Mutex
	live []*Position
}

// Book is the per-symbol collection of live Positions (C6). The key set is
// fixed at construction from the configured symbol list and never grows or
// shrinks afterward, mirroring PriceBook's pre-allocated-slots contract.
type Book struct {
	slots map[types.Symbol]*slot
}

// NewBook pre-allocates one locked slot per configured symbol.
func NewBook(symbols []types.Symbol) *Book {
	slots := make(map[types.Symbol]*slot, len(symbols))
	for _, sym := range symbols {
		slots[sym] = &slot{}
	}
	return &Book{slots: slots}
}

// Insert appends a new Position to its symbol's slot.
func (b *Book) Insert(pos *Position) {
	s, ok := b.slots[pos.Symbol()]
	if !ok {
		return
	}
	s.mu.Lock()
	s.live = append(s.live, pos)
	s.mu.Unlock()
}

// RemoveByID removes and returns the Position with the given id from a
// symbol's slot via linear scan.
func (b *Book) RemoveByID(symbol types.Symbol, id int64) (*Position, bool) {
	s, ok := b.slots[symbol]
	if !ok {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, p := range s.live {
		if p.ID() == id {
			s.live = append(s.live[:i], s.live[i+1:]...)
			return p, true
		}
	}
	return nil, false
}

// CloseFunc performs the REST close + journal append for a Position whose
// stop was crossed on this tick. It is invoked while the symbol's slot lock
// is held, per the spec's deliberate per-symbol-lock-across-REST-close
// contract (§5, §9): tick processing for that symbol serializes behind the
// closing network call. Implementations must call pos.MarkClosed() once the
// close protocol (successful or not) has run to completion.
type CloseFunc func(pos *Position, exitPrice decimal.Decimal)

// Drive runs one tick for a symbol: first sweep drops every Position with
// IsClosed already set, second sweep ratchets every remaining Position and
// invokes closeFn for any whose stop crossed. Sweep order does not matter
// because Positions are independent (§4.6).
func (b *Book) Drive(symbol types.Symbol, tick types.BookTick, closeFn CloseFunc) {
	s, ok := b.slots[symbol]
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.live[:0]
	for _, p := range s.live {
		if !p.IsClosed() {
			kept = append(kept, p)
		}
	}
	s.live = kept

	for _, p := range s.live {
		crossed, exitPrice := p.Ratchet(tick)
		if crossed {
			closeFn(p, exitPrice)
		}
	}
}

// Snapshot returns a copy of every live Position across all symbols.
func (b *Book) Snapshot() []types.Position {
	out := make([]types.Position, 0)
	for _, s := range b.slots {
		s.mu.Lock()
		for _, p := range s.live {
			out = append(out, p.Snapshot())
		}
		s.mu.Unlock()
	}
	return out
}

// SnapshotSymbol returns a copy of every live Position for one symbol.
func (b *Book) SnapshotSymbol(symbol types.Symbol) []types.Position {
	s, ok := b.slots[symbol]
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]types.Position, 0, len(s.live))
	for _, p := range s.live {
		out = append(out, p.Snapshot())
	}
	return out
}
