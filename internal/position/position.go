package position

import (
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"tradestop/pkg/types"
)

// highProfitThreshold is the leveraged-profit boundary (literally 1.09, not
// 1.10) at which the ratchet switches from tightening off the entry price
// to tightening off the running extreme. It is deliberately asymmetric with
// the sentinel band boundary at 1.1.
const highProfitThreshold = 1.09

// Position is the live, mutex-protected trailing-stop state machine for a
// single open trade. All fields are established at creation and mutated
// only through Ratchet/MarkClosed, mirroring the inventory.Inventory
// wrapper-around-plain-data shape this package is adapted from.
type Position struct {
	mu   sync.Mutex
	data types.Position
}

// idSeq is the process-wide, monotonically increasing position id counter.
var idSeq int64

// NextID allocates a process-unique Position id.
func NextID() int64 {
	return atomic.AddInt64(&idSeq, 1)
}

// New creates a Position with its initial stop already computed:
// entry_price * (1 -/+ stopLossPercent/leverage), minus for Long, plus for
// Short. adjustmentTable must already carry the sentinel band (see
// AdjustmentTableRegistry.Snapshot).
func New(id int64, exchangeOrderID string, symbol types.Symbol, dir types.Direction, entryPrice, quantity decimal.Decimal, leverage, stopLossPercent float64, adjustmentTable []types.Adjustment) *Position {
	sign := 1.0
	if dir == types.Short {
		sign = -1.0
	}
	stop := entryPrice.Mul(decimal.NewFromFloat(1 - sign*stopLossPercent/leverage))

	return &Position{
		data: types.Position{
			ID:              id,
			ExchangeOrderID: exchangeOrderID,
			Symbol:          symbol,
			Direction:       dir,
			EntryPrice:      entryPrice,
			Quantity:        quantity,
			Leverage:        leverage,
			StopLoss:        stop,
			HighestPrice:    entryPrice,
			LowestPrice:     entryPrice,
			AdjustmentTable: adjustmentTable,
			IsClosed:        false,
		},
	}
}

// ID returns the position's process-unique id.
func (p *Position) ID() int64 {
	return p.data.ID
}

// Symbol returns the position's symbol.
func (p *Position) Symbol() types.Symbol {
	return p.data.Symbol
}

// Snapshot returns a copy of the current position state.
func (p *Position) Snapshot() types.Position {
	p.mu.Lock()
	defer p.mu.Unlock()
	snap := p.data
	snap.AdjustmentTable = types.CloneAdjustments(p.data.AdjustmentTable)
	return snap
}

// IsClosed reports whether the position has already been closed.
func (p *Position) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.data.IsClosed
}

// MarkClosed sets the terminal flag. Once set the position is never
// mutated again (invariant I3) and is dropped by PositionBook on its next
// sweep.
func (p *Position) MarkClosed() {
	p.mu.Lock()
	p.data.IsClosed = true
	p.mu.Unlock()
}

// Ratchet runs one tick of the trailing-stop algorithm: it updates the
// running extreme and, if it moved, recomputes the stop via the adjustment
// table (§4.5 steps 1-2), then tests the exit condition (step 3) using the
// same field read in step 1.
//
// It returns whether the stop was crossed this tick and, if so, the price
// at which the close should be recorded. It does not itself place any
// order or mutate IsClosed — callers (PositionBook.drive) own the decision
// of when to perform the REST close and call MarkClosed, so the pure
// ratchet math stays independently testable.
func (p *Position) Ratchet(tick types.BookTick) (crossed bool, exitPrice decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.data.IsClosed {
		return false, decimal.Zero
	}

	switch p.data.Direction {
	case types.Long:
		if tick.Bid.GreaterThan(p.data.HighestPrice) {
			p.data.HighestPrice = tick.Bid
			p.recomputeStopLocked()
		}
		if tick.Bid.LessThanOrEqual(p.data.StopLoss) {
			return true, tick.Bid
		}
	case types.Short:
		if tick.Ask.LessThan(p.data.LowestPrice) {
			p.data.LowestPrice = tick.Ask
			p.recomputeStopLocked()
		}
		if tick.Ask.GreaterThanOrEqual(p.data.StopLoss) {
			return true, tick.Ask
		}
	}
	return false, decimal.Zero
}

// recomputeStopLocked implements §4.5 step 2. Caller must hold p.mu.
func (p *Position) recomputeStopLocked() {
	var profit float64
	switch p.data.Direction {
	case types.Long:
		profit, _ = p.data.HighestPrice.Sub(p.data.EntryPrice).Div(p.data.EntryPrice).Float64()
	case types.Short:
		profit, _ = p.data.EntryPrice.Sub(p.data.LowestPrice).Div(p.data.EntryPrice).Float64()
	}

	leveraged := profit * p.data.Leverage
	factor := Lookup(leveraged, &p.data.AdjustmentTable)
	if factor == 0 {
		return
	}

	ratio := factor / p.data.Leverage
	switch p.data.Direction {
	case types.Long:
		if leveraged >= highProfitThreshold {
			p.data.StopLoss = p.data.HighestPrice.Mul(decimal.NewFromFloat(1 - ratio))
		} else {
			p.data.StopLoss = p.data.EntryPrice.Mul(decimal.NewFromFloat(1 + ratio))
		}
	case types.Short:
		if leveraged >= highProfitThreshold {
			p.data.StopLoss = p.data.LowestPrice.Mul(decimal.NewFromFloat(1 + ratio))
		} else {
			p.data.StopLoss = p.data.EntryPrice.Mul(decimal.NewFromFloat(1 - ratio))
		}
	}
}
