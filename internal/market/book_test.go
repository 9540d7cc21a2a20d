package market

import (
	"testing"

	"github.com/rickgao/kalshi-hedger/internal/model"
)

func snapshotBook(t *testing.T) *Book {
	t.Helper()
	b := NewBook()
	b.Reset(10,
		[]model.PriceLevel{{Price: 40, Qty: 100}, {Price: 38, Qty: 50}},
		[]model.PriceLevel{{Price: 55, Qty: 200}, {Price: 52, Qty: 75}},
	)
	return b
}

func TestBookReset(t *testing.T) {
	b := snapshotBook(t)

	if !b.Initialized() {
		t.Fatal("book not initialized after Reset")
	}
	if got := b.LastSeq(); got != 10 {
		t.Errorf("LastSeq = %d, want 10", got)
	}
	if got := b.QtyAt(model.Yes, 40); got != 100 {
		t.Errorf("yes qty at 40 = %d, want 100", got)
	}
	if got := b.QtyAt(model.No, 55); got != 200 {
		t.Errorf("no qty at 55 = %d, want 200", got)
	}
}

func TestBookApplyDeltaSequence(t *testing.T) {
	b := snapshotBook(t)

	if !b.ApplyDelta(11, model.Yes, 40, -30) {
		t.Fatal("in-sequence delta rejected")
	}
	if got := b.QtyAt(model.Yes, 40); got != 70 {
		t.Errorf("yes qty at 40 = %d, want 70", got)
	}

	// Gap: seq 13 after 11 must be rejected without mutation.
	if b.ApplyDelta(13, model.Yes, 40, -30) {
		t.Fatal("gapped delta accepted")
	}
	if got := b.QtyAt(model.Yes, 40); got != 70 {
		t.Errorf("book mutated on rejected delta: qty = %d, want 70", got)
	}
	if got := b.LastSeq(); got != 11 {
		t.Errorf("LastSeq = %d, want 11 after rejected delta", got)
	}
}

func TestBookQuantitiesClampAtZero(t *testing.T) {
	b := snapshotBook(t)

	if !b.ApplyDelta(11, model.No, 52, -500) {
		t.Fatal("delta rejected")
	}
	if got := b.QtyAt(model.No, 52); got != 0 {
		t.Errorf("qty = %d, want 0 (clamped)", got)
	}
}

func TestBookUninitializedAcceptsAnySeq(t *testing.T) {
	b := NewBook()
	if !b.ApplyDelta(42, model.Yes, 30, 10) {
		t.Fatal("delta on uninitialized book rejected")
	}
	if got := b.LastSeq(); got != 42 {
		t.Errorf("LastSeq = %d, want 42", got)
	}
}

func TestBookBestBidAndImpliedAsk(t *testing.T) {
	b := snapshotBook(t)

	tests := []struct {
		name string
		side model.Side
		bid  int
		ask  int
	}{
		{"yes", model.Yes, 40, 45}, // 100 - 55
		{"no", model.No, 55, 60},   // 100 - 40
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bid, ok := b.BestBid(tt.side)
			if !ok || bid != tt.bid {
				t.Errorf("BestBid = %d (%v), want %d", bid, ok, tt.bid)
			}
			ask, ok := b.ImpliedAsk(tt.side)
			if !ok || ask != tt.ask {
				t.Errorf("ImpliedAsk = %d (%v), want %d", ask, ok, tt.ask)
			}
			// Identity: implied_ask(s) == 100 - best_bid(other(s)).
			otherBid, _ := b.BestBid(tt.side.Other())
			if ask != MaxPrice-otherBid {
				t.Errorf("implied-ask identity broken: %d != 100-%d", ask, otherBid)
			}
		})
	}
}

func TestBookEmptySideQueries(t *testing.T) {
	b := NewBook()
	if _, ok := b.BestBid(model.Yes); ok {
		t.Error("BestBid on empty book reported ok")
	}
	if _, ok := b.ImpliedAsk(model.Yes); ok {
		t.Error("ImpliedAsk on empty book reported ok")
	}
	if b.CrossesAsk(model.Yes, 99) {
		t.Error("CrossesAsk true with no ask")
	}
}

func TestBookCrossesAsk(t *testing.T) {
	b := snapshotBook(t)

	// Implied yes ask is 45.
	if b.CrossesAsk(model.Yes, 44) {
		t.Error("44 should not cross ask 45")
	}
	if !b.CrossesAsk(model.Yes, 45) {
		t.Error("45 should cross ask 45")
	}
}

func TestBookInvalidate(t *testing.T) {
	b := snapshotBook(t)
	b.Invalidate()

	if b.Initialized() {
		t.Error("book still initialized after Invalidate")
	}
	if _, ok := b.BestBid(model.Yes); ok {
		t.Error("depth survived Invalidate")
	}
}

func TestBookWeightedTopDepth(t *testing.T) {
	b := NewBook()
	b.Reset(1,
		[]model.PriceLevel{{Price: 40, Qty: 10}, {Price: 39, Qty: 10}, {Price: 38, Qty: 10}},
		nil,
	)

	// 10*1.0 + 10*0.8 + 10*0.6 = 24
	got := b.WeightedTopDepth(model.Yes, 5)
	if got != 24.0 {
		t.Errorf("WeightedTopDepth = %v, want 24.0", got)
	}
}
