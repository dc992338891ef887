// Package market provides the PriceBook (C3): a fixed-key, per-symbol
// mirror of the latest observed best-bid/best-ask, independently lockable
// per symbol so that readers and the MarketFeed writer for one symbol never
// contend with another symbol's slot.
package market

import (
	"sync"

	"github.com/shopspring/decimal"

	"tradestop/pkg/types"
)

type bookSlot struct {
	mu   sync.RWMutex
	tick types.BookTick
}

// Book is the process-wide PriceBook. Its key set is fixed at construction
// from the configured symbol list and never grows or shrinks afterward.
type Book struct {
	slots map[types.Symbol]*bookSlot
}

// NewBook pre-allocates one slot per configured symbol, initialized to
// zero ask/bid per §4.3.
func NewBook(symbols []types.Symbol) *Book {
	slots := make(map[types.Symbol]*bookSlot, len(symbols))
	for _, sym := range symbols {
		slots[sym] = &bookSlot{tick: types.BookTick{Ask: decimal.Zero, Bid: decimal.Zero}}
	}
	return &Book{slots: slots}
}

// Update overwrites a symbol's last-seen tick. No-op for an unconfigured symbol.
func (b *Book) Update(symbol types.Symbol, tick types.BookTick) {
	s, ok := b.slots[symbol]
	if !ok {
		return
	}
	s.mu.Lock()
	s.tick = tick
	s.mu.Unlock()
}

// Get returns a symbol's last-seen tick and whether the symbol is configured.
// The returned ask/bid pair is always internally consistent — a reader never
// observes one field from one update and the other from a different one.
func (b *Book) Get(symbol types.Symbol) (types.BookTick, bool) {
	s, ok := b.slots[symbol]
	if !ok {
		return types.BookTick{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tick, true
}

// Symbols returns the fixed, configured symbol set.
func (b *Book) Symbols() []types.Symbol {
	out := make([]types.Symbol, 0, len(b.slots))
	for sym := range b.slots {
		out = append(out, sym)
	}
	return out
}
