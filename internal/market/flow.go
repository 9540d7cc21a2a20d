package market

import (
	"math"
	"time"
)

// EMA is an exponential moving average over irregularly-spaced samples.
//
// Update: alpha = 1 - exp(-dt/tau); value += alpha * (x - value).
// A small tau reacts quickly, a large tau slowly. The first sample seeds the
// value directly.
type EMA struct {
	Value       float64
	Initialized bool
}

// Update folds one sample in, weighting by the wall-clock gap dt.
func (e *EMA) Update(x float64, dt, tau time.Duration) {
	if !e.Initialized {
		e.Value = x
		e.Initialized = true
		return
	}
	dtS := math.Max(dt.Seconds(), 1e-6)
	tauS := math.Max(tau.Seconds(), 1e-6)
	alpha := 1.0 - math.Exp(-dtS/tauS)
	e.Value += alpha * (x - e.Value)
}

// flowEvent is one entry of a rolling time-windowed event log.
type flowEvent struct {
	at time.Time
	v  float64 // signed contribution
}

// eventLog keeps recent events for activity/consensus statistics.
type eventLog struct {
	events []flowEvent
}

func (l *eventLog) push(at time.Time, v float64, window time.Duration) {
	l.events = append(l.events, flowEvent{at: at, v: v})
	l.prune(at, window)
}

func (l *eventLog) prune(now time.Time, window time.Duration) {
	cut := 0
	for cut < len(l.events) && now.Sub(l.events[cut].at) > window {
		cut++
	}
	if cut > 0 {
		l.events = l.events[cut:]
	}
}

func (l *eventLog) count(now time.Time, window time.Duration) int {
	l.prune(now, window)
	return len(l.events)
}

func (l *eventLog) signedSum(now time.Time, window time.Duration) float64 {
	l.prune(now, window)
	var s float64
	for _, e := range l.events {
		s += e.v
	}
	return s
}

func (l *eventLog) absSum(now time.Time, window time.Duration) float64 {
	l.prune(now, window)
	var s float64
	for _, e := range l.events {
		s += math.Abs(e.v)
	}
	return s
}

// FlowTaus holds the time constants and fallback gap for flow updates.
type FlowTaus struct {
	Book  time.Duration
	Trade time.Duration
	Delta time.Duration
	Score time.Duration

	// FallbackDt seeds dt for a feature's very first gap, typically the
	// engine tick period.
	FallbackDt time.Duration

	// RateWindow bounds the rolling event logs.
	RateWindow time.Duration
}

// FlowState holds the smoothed microstructure-pressure features for one
// market: resting-depth lean, executed-trade pressure, and bid add/pull
// pressure, each independently time-decayed, plus a smoothing EMA over the
// fused score. Each EMA's dt is wall-clock since that feature's own last
// update so slow-arriving features are not over-weighted.
type FlowState struct {
	BookImbEMA   EMA
	TradeFlowEMA EMA
	DeltaFlowEMA EMA
	ScoreEMA     EMA

	lastBookAt  time.Time
	lastTradeAt time.Time
	lastDeltaAt time.Time
	lastScoreAt time.Time

	trades eventLog
	deltas eventLog
}

// NewFlowState returns zeroed flow state.
func NewFlowState() *FlowState {
	return &FlowState{}
}

func gap(last, now time.Time, fallback time.Duration) time.Duration {
	if last.IsZero() {
		return fallback
	}
	return now.Sub(last)
}

// OnBookImbalance folds a raw depth-imbalance sample in [-1,1].
func (f *FlowState) OnBookImbalance(taus FlowTaus, raw float64, now time.Time) {
	f.BookImbEMA.Update(clamp(raw, -1, 1), gap(f.lastBookAt, now, taus.FallbackDt), taus.Book)
	f.lastBookAt = now
}

// OnTradeFlow folds a signed trade-pressure sample and logs the event.
func (f *FlowState) OnTradeFlow(taus FlowTaus, raw float64, now time.Time) {
	f.TradeFlowEMA.Update(clamp(raw, -1, 1), gap(f.lastTradeAt, now, taus.FallbackDt), taus.Trade)
	f.lastTradeAt = now
	f.trades.push(now, raw, taus.RateWindow)
}

// OnDeltaFlow folds a signed bid add/pull sample and logs the event.
func (f *FlowState) OnDeltaFlow(taus FlowTaus, raw float64, now time.Time) {
	f.DeltaFlowEMA.Update(clamp(raw, -1, 1), gap(f.lastDeltaAt, now, taus.FallbackDt), taus.Delta)
	f.lastDeltaAt = now
	f.deltas.push(now, raw, taus.RateWindow)
}

// OnScore smooths the fused score so side choices don't jitter.
func (f *FlowState) OnScore(taus FlowTaus, raw float64, now time.Time) {
	f.ScoreEMA.Update(clamp(raw, -1, 1), gap(f.lastScoreAt, now, taus.FallbackDt), taus.Score)
	f.lastScoreAt = now
}

// TradeCountRecent counts trade events inside the rate window.
func (f *FlowState) TradeCountRecent(now time.Time, window time.Duration) int {
	return f.trades.count(now, window)
}

// DeltaCountRecent counts delta events inside the rate window.
func (f *FlowState) DeltaCountRecent(now time.Time, window time.Duration) int {
	return f.deltas.count(now, window)
}

// TradeConsensus is signedSum/absSum over recent trades in [-1,1]:
// +1 when every recent print pushed the same (yes) way.
func (f *FlowState) TradeConsensus(now time.Time, window time.Duration) float64 {
	abs := f.trades.absSum(now, window)
	if abs <= 0 {
		return 0
	}
	return f.trades.signedSum(now, window) / abs
}

// DeltaConsensus is signedSum/absSum over recent deltas in [-1,1].
func (f *FlowState) DeltaConsensus(now time.Time, window time.Duration) float64 {
	abs := f.deltas.absSum(now, window)
	if abs <= 0 {
		return 0
	}
	return f.deltas.signedSum(now, window) / abs
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
