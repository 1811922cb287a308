package fabric

import (
	"testing"

	"go.uber.org/zap"

	"github.com/axiomquant/tradecore/pkg/fixedpoint"
	"github.com/axiomquant/tradecore/pkg/types"
)

func testSymbol() types.QualifiedSymbol {
	return types.NewQualifiedSymbol("BINANCE", "BTC-USDT")
}

// TestSnapshotThenDeltaSequence implements spec §8 scenario 4: snapshot
// last_update_id=100; deltas [101,102] then [105,106] arrive. The first is
// applied (last_update_id becomes 102); the second is rejected with the
// symbol flagged out-of-sync, and is buffered for a later resync.
func TestSnapshotThenDeltaSequence(t *testing.T) {
	f := NewFabric(16, zap.NewNop())
	sym := testSymbol()

	f.ApplySnapshot(Snapshot{
		Symbol:       sym,
		LastUpdateID: 100,
		Bids:         []Level{{Price: fixedpoint.Price(1), Qty: fixedpoint.Quantity(1)}},
	})

	ok, err := f.ApplyDelta(Delta{Symbol: sym, FirstUpdateID: 101, FinalUpdateID: 102})
	if !ok || err != nil {
		t.Fatalf("first delta should apply cleanly: ok=%v err=%v", ok, err)
	}
	depth, found := f.Get(sym)
	if !found || depth.LastUpdateID != 102 {
		t.Fatalf("expected last_update_id=102, got %+v found=%v", depth, found)
	}

	ok, err = f.ApplyDelta(Delta{Symbol: sym, FirstUpdateID: 105, FinalUpdateID: 106})
	if ok || err == nil {
		t.Fatalf("gapped delta should be rejected, got ok=%v err=%v", ok, err)
	}
	if !f.IsOutOfSync(sym) {
		t.Fatalf("expected symbol to be flagged out-of-sync")
	}

	// Resync: a fresh snapshot at 106 lets the buffered gap resolve on its
	// own (nothing further to drain since the new snapshot already covers
	// it), clearing the out-of-sync flag.
	f.ApplySnapshot(Snapshot{Symbol: sym, LastUpdateID: 106})
	if f.IsOutOfSync(sym) {
		t.Fatalf("expected out-of-sync flag cleared after fresh snapshot")
	}
}

func TestDeltaBeforeSnapshotIsBuffered(t *testing.T) {
	f := NewFabric(4, zap.NewNop())
	sym := testSymbol()

	ok, err := f.ApplyDelta(Delta{Symbol: sym, FirstUpdateID: 1, FinalUpdateID: 2})
	if ok || err != ErrNotInitialized {
		t.Fatalf("expected ErrNotInitialized before any snapshot, got ok=%v err=%v", ok, err)
	}
	if _, found := f.Get(sym); found {
		t.Fatalf("expected no depth before first snapshot")
	}

	f.ApplySnapshot(Snapshot{Symbol: sym, LastUpdateID: 0})
	depth, found := f.Get(sym)
	if !found || depth.LastUpdateID != 2 {
		t.Fatalf("expected buffered delta to drain to last_update_id=2, got %+v found=%v", depth, found)
	}
}

func TestSnapshotIsAtomicUnderConcurrentReads(t *testing.T) {
	f := NewFabric(4, zap.NewNop())
	sym := testSymbol()
	f.ApplySnapshot(Snapshot{Symbol: sym, LastUpdateID: 1, Bids: []Level{{Price: 100, Qty: 5}}})

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			f.ApplySnapshot(Snapshot{Symbol: sym, LastUpdateID: int64(i + 2), Bids: []Level{{Price: 100, Qty: fixedpoint.Quantity(i)}}})
		}
		close(done)
	}()
	for i := 0; i < 1000; i++ {
		if _, found := f.Get(sym); !found {
			t.Fatalf("reader observed a missing snapshot mid-swap")
		}
	}
	<-done
}
