package market

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/kalshi-hedger/internal/model"
)

// Mode is the current phase of a trading window, governing risk posture.
type Mode int

const (
	// Accumulate is the early phase near window open.
	Accumulate Mode = iota
	// Hedge is the mid-window working phase.
	Hedge
	// Balance is the late phase that forces hedging.
	Balance
)

func (m Mode) String() string {
	switch m {
	case Accumulate:
		return "accumulate"
	case Hedge:
		return "hedge"
	default:
		return "balance"
	}
}

// RestingHint caches the one resting order we believe is live on a side,
// so the engine can avoid duplicates, decide when to requote, and avoid
// churn. At most one hint per side per market.
type RestingHint struct {
	Side      model.Side
	Price     int // cents
	Qty       int64
	CreatedAt time.Time

	// CancelRequestedAt is set when a cancel was sent, so we don't re-send
	// one every tick. Zero when no cancel is outstanding.
	CancelRequestedAt time.Time

	ClientOrderID uuid.UUID
	OrderID       string // empty until acked

	// QueueAhead is the paper-mode estimate of quantity resting in front of
	// this order at its price level.
	QueueAhead int64
}

// CancelOutstanding reports whether a cancel request has been sent.
func (h *RestingHint) CancelOutstanding() bool {
	return !h.CancelRequestedAt.IsZero()
}

// Market is the mutable state of one traded instrument. All access goes
// through the owning TickerState lock.
type Market struct {
	// Window bounds, epoch seconds. Zero when unknown.
	OpenTS  int64
	CloseTS int64

	Book   *Book
	Pos    Position
	Orders *Orders
	Flow   *FlowState

	restingYes *RestingHint
	restingNo  *RestingHint

	// Taker cooldowns, per side.
	LastTakerYes time.Time
	LastTakerNo  time.Time

	Mode Mode

	// WindowID identifies the current trading window (open timestamp when
	// known). Per-window counters reset when it changes.
	WindowID int64

	// FlowBuysUsed counts extra flow-follow taker buys spent this window.
	FlowBuysUsed int64
}

// NewMarket returns fresh instrument state.
func NewMarket() *Market {
	return &Market{
		Book:   NewBook(),
		Orders: NewOrders(),
		Flow:   NewFlowState(),
		Mode:   Accumulate,
	}
}

// RestingHint returns the hint for a side, nil when none.
func (m *Market) RestingHint(side model.Side) *RestingHint {
	if side == model.Yes {
		return m.restingYes
	}
	return m.restingNo
}

// SetRestingHint installs or clears (nil) the hint for a side.
func (m *Market) SetRestingHint(side model.Side, h *RestingHint) {
	if side == model.Yes {
		m.restingYes = h
	} else {
		m.restingNo = h
	}
}

// LastTaker returns the last taker time for a side (zero when never).
func (m *Market) LastTaker(side model.Side) time.Time {
	if side == model.Yes {
		return m.LastTakerYes
	}
	return m.LastTakerNo
}

// SetLastTaker records a taker submission time for a side.
func (m *Market) SetLastTaker(side model.Side, t time.Time) {
	if side == model.Yes {
		m.LastTakerYes = t
	} else {
		m.LastTakerNo = t
	}
}

// TickerState pairs one Market with its lock and dirty flag. The RWMutex is
// the sole synchronization primitive for this instrument; the dirty flag is
// edge-triggered via TakeDirty.
type TickerState struct {
	Ticker string

	mu  sync.RWMutex
	mkt *Market

	dirty atomic.Bool
}

// NewTickerState creates state for one instrument, initially dirty so the
// first decision pass visits it.
func NewTickerState(ticker string) *TickerState {
	ts := &TickerState{
		Ticker: ticker,
		mkt:    NewMarket(),
	}
	ts.dirty.Store(true)
	return ts
}

// WithWrite runs fn holding the write lock.
func (t *TickerState) WithWrite(fn func(m *Market)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(t.mkt)
}

// WithRead runs fn holding the read lock.
func (t *TickerState) WithRead(fn func(m *Market)) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	fn(t.mkt)
}

// MarkDirty flags the instrument for the next decision pass.
func (t *TickerState) MarkDirty() {
	t.dirty.Store(true)
}

// TakeDirty clears and returns the dirty flag.
func (t *TickerState) TakeDirty() bool {
	return t.dirty.Swap(false)
}

// Shared is the instrument-keyed state map plus the cross-task wake
// primitive. Insert-on-first-use; no global lock is held during per-market
// mutation.
type Shared struct {
	mu      sync.RWMutex
	tickers map[string]*TickerState

	// wake is a capacity-1 notification channel: senders never block,
	// coalescing bursts into one wakeup.
	wake chan struct{}
}

// NewShared builds the map with an initial instrument set.
func NewShared(tickers []string) *Shared {
	s := &Shared{
		tickers: make(map[string]*TickerState, len(tickers)),
		wake:    make(chan struct{}, 1),
	}
	for _, t := range tickers {
		s.tickers[t] = NewTickerState(t)
	}
	return s
}

// Get returns the state for a ticker if present.
func (s *Shared) Get(ticker string) (*TickerState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ts, ok := s.tickers[ticker]
	return ts, ok
}

// Ensure returns the state for a ticker, creating it on first use.
func (s *Shared) Ensure(ticker string) *TickerState {
	s.mu.RLock()
	ts, ok := s.tickers[ticker]
	s.mu.RUnlock()
	if ok {
		return ts
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ts, ok = s.tickers[ticker]; ok {
		return ts
	}
	ts = NewTickerState(ticker)
	s.tickers[ticker] = ts
	return ts
}

// Remove drops an instrument's state; the decision driver stops visiting it.
func (s *Shared) Remove(ticker string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tickers, ticker)
}

// Snapshot returns the current instrument states.
func (s *Shared) Snapshot() []*TickerState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*TickerState, 0, len(s.tickers))
	for _, ts := range s.tickers {
		out = append(out, ts)
	}
	return out
}

// Notify wakes the decision driver without blocking.
func (s *Shared) Notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Wake exposes the wake channel for the decision driver's select.
func (s *Shared) Wake() <-chan struct{} {
	return s.wake
}
