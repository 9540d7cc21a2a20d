package market

import "github.com/rickgao/kalshi-hedger/internal/model"

// MaxPrice is the highest valid contract price in cents.
const MaxPrice = 100

// Book reconstructs per-market resting-bid depth for both sides from a
// snapshot plus a sequence-guarded delta stream. Index is price in cents.
type Book struct {
	yesBids [MaxPrice + 1]int64
	noBids  [MaxPrice + 1]int64

	// lastSeq is the sequence of the last applied message, -1 before the
	// first snapshot.
	lastSeq int64
}

// NewBook returns an empty, uninitialized book.
func NewBook() *Book {
	return &Book{lastSeq: -1}
}

// Initialized reports whether a snapshot has been applied.
func (b *Book) Initialized() bool {
	return b.lastSeq >= 0
}

// LastSeq returns the last applied sequence number, -1 if uninitialized.
func (b *Book) LastSeq() int64 {
	return b.lastSeq
}

// Reset replaces both sides wholesale from a snapshot.
func (b *Book) Reset(seq int64, yes, no []model.PriceLevel) {
	b.yesBids = [MaxPrice + 1]int64{}
	b.noBids = [MaxPrice + 1]int64{}
	for _, l := range yes {
		if l.Price >= 0 && l.Price <= MaxPrice {
			b.yesBids[l.Price] = max(l.Qty, 0)
		}
	}
	for _, l := range no {
		if l.Price >= 0 && l.Price <= MaxPrice {
			b.noBids[l.Price] = max(l.Qty, 0)
		}
	}
	b.lastSeq = seq
}

// Invalidate discards the book so it must be rebuilt from a fresh snapshot.
func (b *Book) Invalidate() {
	b.yesBids = [MaxPrice + 1]int64{}
	b.noBids = [MaxPrice + 1]int64{}
	b.lastSeq = -1
}

// ApplyDelta applies one incremental change. It returns false without
// mutating state when seq does not directly follow the last applied sequence;
// the caller must then resynchronize from a snapshot. Quantities clamp at
// zero.
func (b *Book) ApplyDelta(seq int64, side model.Side, price int, delta int64) bool {
	if b.lastSeq >= 0 && seq != b.lastSeq+1 {
		return false
	}
	if price < 0 || price > MaxPrice {
		// Out-of-range levels are not tracked, but the stream stays in sync.
		b.lastSeq = seq
		return true
	}

	arr := b.side(side)
	arr[price] = max(arr[price]+delta, 0)
	b.lastSeq = seq
	return true
}

// BestBid returns the highest price with positive resting quantity.
func (b *Book) BestBid(side model.Side) (int, bool) {
	arr := b.side(side)
	for p := MaxPrice; p >= 0; p-- {
		if arr[p] > 0 {
			return p, true
		}
	}
	return 0, false
}

// ImpliedAsk derives the effective offer for a side from the opposite side's
// best bid: yes_ask = 100 - best_no_bid, and symmetrically.
func (b *Book) ImpliedAsk(side model.Side) (int, bool) {
	bid, ok := b.BestBid(side.Other())
	if !ok {
		return 0, false
	}
	return MaxPrice - bid, true
}

// CrossesAsk reports whether a buy at price would execute immediately.
// Used to keep post-only orders from being rejected at entry.
func (b *Book) CrossesAsk(side model.Side, price int) bool {
	ask, ok := b.ImpliedAsk(side)
	return ok && price >= ask
}

// Spread returns implied ask minus best bid for a side.
func (b *Book) Spread(side model.Side) (int, bool) {
	bid, ok := b.BestBid(side)
	if !ok {
		return 0, false
	}
	ask, ok := b.ImpliedAsk(side)
	if !ok {
		return 0, false
	}
	return ask - bid, true
}

// QtyAt returns the resting quantity at an exact price level.
func (b *Book) QtyAt(side model.Side, price int) int64 {
	if price < 0 || price > MaxPrice {
		return 0
	}
	return b.side(side)[price]
}

// WeightedTopDepth sums the top n occupied bid levels with decaying weights
// (1.0, 0.8, 0.6, ... floored at 0.2). A snapshot liquidity-pressure measure.
func (b *Book) WeightedTopDepth(side model.Side, n int) float64 {
	arr := b.side(side)
	var acc float64
	found := 0
	for p := MaxPrice; p >= 0 && found < n; p-- {
		q := arr[p]
		if q <= 0 {
			continue
		}
		w := max(1.0-0.2*float64(found), 0.2)
		acc += float64(q) * w
		found++
	}
	return acc
}

// TopOfBookDepth returns the quantity resting at the best bid.
func (b *Book) TopOfBookDepth(side model.Side) int64 {
	p, ok := b.BestBid(side)
	if !ok {
		return 0
	}
	return b.QtyAt(side, p)
}

func (b *Book) side(side model.Side) *[MaxPrice + 1]int64 {
	if side == model.Yes {
		return &b.yesBids
	}
	return &b.noBids
}
