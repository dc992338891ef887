package position

import (
	"testing"

	"github.com/shopspring/decimal"

	"tradestop/pkg/types"
)

func TestBookInsertAndRemoveByID(t *testing.T) {
	t.Parallel()

	b := NewBook([]types.Symbol{"adausdt"})
	pos := New(NextID(), "ord-1", "adausdt", types.Long, dec("100"), dec("10"), 10, 0.5, standardTable())
	b.Insert(pos)

	if got := b.SnapshotSymbol("adausdt"); len(got) != 1 {
		t.Fatalf("len(SnapshotSymbol) = %d, want 1", len(got))
	}

	removed, ok := b.RemoveByID("adausdt", pos.ID())
	if !ok || removed.ID() != pos.ID() {
		t.Fatalf("RemoveByID did not return the inserted position")
	}
	if got := b.SnapshotSymbol("adausdt"); len(got) != 0 {
		t.Fatalf("len(SnapshotSymbol) after remove = %d, want 0", len(got))
	}
}

func TestBookRemoveByIDUnknownSymbolOrID(t *testing.T) {
	t.Parallel()

	b := NewBook([]types.Symbol{"adausdt"})
	if _, ok := b.RemoveByID("dogeusdt", 1); ok {
		t.Error("RemoveByID on unconfigured symbol should fail")
	}
	if _, ok := b.RemoveByID("adausdt", 999); ok {
		t.Error("RemoveByID on unknown id should fail")
	}
}

func TestBookDriveDropsClosedBeforeRatcheting(t *testing.T) {
	t.Parallel()

	b := NewBook([]types.Symbol{"adausdt"})
	closedPos := New(NextID(), "ord-closed", "adausdt", types.Long, dec("100"), dec("10"), 10, 0.5, standardTable())
	closedPos.MarkClosed()
	livePos := New(NextID(), "ord-live", "adausdt", types.Long, dec("100"), dec("10"), 10, 0.5, standardTable())

	b.Insert(closedPos)
	b.Insert(livePos)

	var closedCalls int
	b.Drive("adausdt", types.BookTick{Bid: dec("103"), Ask: dec("103.1")}, func(p *Position, exitPrice decimal.Decimal) {
		closedCalls++
	})

	if closedCalls != 0 {
		t.Errorf("closeFn called %d times, want 0 (price rose, no cross)", closedCalls)
	}
	if got := b.SnapshotSymbol("adausdt"); len(got) != 1 {
		t.Fatalf("len(SnapshotSymbol) after drive = %d, want 1 (closed position dropped)", len(got))
	}
}

func TestBookDriveInvokesCloseFnOnCross(t *testing.T) {
	t.Parallel()

	b := NewBook([]types.Symbol{"adausdt"})
	pos := New(NextID(), "ord-1", "adausdt", types.Long, dec("100"), dec("10"), 10, 0.5, standardTable())
	b.Insert(pos)

	var closed *Position
	var gotExit decimal.Decimal
	b.Drive("adausdt", types.BookTick{Bid: dec("90"), Ask: dec("90.1")}, func(p *Position, exitPrice decimal.Decimal) {
		closed = p
		gotExit = exitPrice
		p.MarkClosed()
	})

	if closed == nil || closed.ID() != pos.ID() {
		t.Fatal("closeFn was not invoked for the crossed position")
	}
	if !gotExit.Equal(dec("90")) {
		t.Errorf("exitPrice = %v, want 90", gotExit)
	}

	// next drive should see it already dropped by the first sweep
	var secondCall bool
	b.Drive("adausdt", types.BookTick{Bid: dec("1"), Ask: dec("1")}, func(p *Position, exitPrice decimal.Decimal) {
		secondCall = true
	})
	if secondCall {
		t.Error("closeFn should not be invoked again for an already-closed position")
	}
	if got := b.SnapshotSymbol("adausdt"); len(got) != 0 {
		t.Errorf("len(SnapshotSymbol) = %d, want 0 after close sweep", len(got))
	}
}

func TestBookDriveUnconfiguredSymbolIsNoOp(t *testing.T) {
	t.Parallel()

	b := NewBook([]types.Symbol{"adausdt"})
	called := false
	b.Drive("dogeusdt", types.BookTick{Bid: dec("1"), Ask: dec("1")}, func(p *Position, exitPrice decimal.Decimal) {
		called = true
	})
	if called {
		t.Error("Drive on unconfigured symbol should not invoke closeFn")
	}
}

func TestBookSnapshotAcrossSymbols(t *testing.T) {
	t.Parallel()

	b := NewBook([]types.Symbol{"adausdt", "dogeusdt"})
	b.Insert(New(NextID(), "ord-1", "adausdt", types.Long, dec("100"), dec("10"), 10, 0.5, standardTable()))
	b.Insert(New(NextID(), "ord-2", "dogeusdt", types.Short, dec("1"), dec("100"), 5, 0.5, standardTable()))

	all := b.Snapshot()
	if len(all) != 2 {
		t.Fatalf("len(Snapshot()) = %d, want 2", len(all))
	}
}
