package engine

import (
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/kalshi-hedger/internal/config"
	"github.com/rickgao/kalshi-hedger/internal/market"
	"github.com/rickgao/kalshi-hedger/internal/model"
)

// Decider is the per-tick decision state machine. One invocation picks a
// mode from time remaining, picks a working side, and emits at most one
// action: cancel a stale order, cross the spread, or post a maker quote.
//
// Callers must hold the instrument's write lock for the whole invocation.
type Decider struct {
	strat config.StrategyConfig
	sig   config.SignalConfig
	tick  time.Duration

	// windowLen is the fallback window length when the instrument's
	// open/close timestamps are unknown.
	windowLen time.Duration

	logger *slog.Logger
}

// NewDecider creates a decision engine from strategy and signal config.
func NewDecider(strat config.StrategyConfig, sig config.SignalConfig, tick, windowLen time.Duration, logger *slog.Logger) *Decider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decider{
		strat:     strat,
		sig:       sig,
		tick:      tick,
		windowLen: windowLen,
		logger:    logger.With("component", "decider"),
	}
}

// Decide runs one tick for one instrument. Returns nil when there is
// nothing to do; missing book levels are "cannot act this tick", never an
// error. A window whose close has passed yields nil unconditionally.
func (d *Decider) Decide(ticker string, m *market.Market, nowUnix int64, now time.Time) *model.ExecCommand {
	if m.CloseTS > 0 && nowUnix >= m.CloseTS {
		return nil
	}

	windowS := d.effectiveWindowS(m)
	tRem := d.effectiveTimeRemaining(m, nowUnix, windowS)

	wid := m.OpenTS
	if wid == 0 {
		wid = nowUnix / windowS
	}
	if m.WindowID != wid {
		m.WindowID = wid
		m.FlowBuysUsed = 0
	}

	m.Mode = d.pickMode(tRem, windowS)

	score, conf := computeSignal(d.sig, d.tick, m, now)

	// With no usable book the taker/maker paths all decline on their own,
	// but stale cancels must still go out.
	side, ok := d.chooseWorkingSide(m, tRem)
	if !ok {
		side = model.Yes
	}

	if cmd := d.cancelStale(ticker, m, now); cmd != nil {
		return cmd
	}
	if cmd := d.opportunisticTaker(ticker, m, now, tRem, windowS, side); cmd != nil {
		return cmd
	}
	if cmd := d.momentumTaker(ticker, m, now, tRem, windowS, score, conf); cmd != nil {
		return cmd
	}
	return d.makerQuote(ticker, m, now, tRem, windowS, side)
}

// -----------------------------------------------------------------------------
// Time and mode
// -----------------------------------------------------------------------------

func (d *Decider) effectiveWindowS(m *market.Market) int64 {
	if m.OpenTS > 0 && m.CloseTS > m.OpenTS {
		return m.CloseTS - m.OpenTS
	}
	return max(int64(d.windowLen/time.Second), 1)
}

func (d *Decider) effectiveTimeRemaining(m *market.Market, nowUnix, windowS int64) int64 {
	switch {
	case m.CloseTS > 0:
		return max(m.CloseTS-nowUnix, 0)
	case m.OpenTS > 0:
		return max(m.OpenTS+windowS-nowUnix, 0)
	default:
		// Epoch-bucket fallback: windows align to UTC boundaries.
		start := (nowUnix / windowS) * windowS
		return max(start+windowS-nowUnix, 0)
	}
}

// pickMode is recomputed every tick from the actual window length; it is
// not sticky.
func (d *Decider) pickMode(tRem, windowS int64) market.Mode {
	balanceS := int64(d.strat.BalanceLen / time.Second)
	accumulateS := int64(d.strat.AccumulateLen / time.Second)

	switch {
	case tRem <= balanceS:
		return market.Balance
	case tRem > windowS-accumulateS:
		return market.Accumulate
	default:
		return market.Hedge
	}
}

// taperFactor goes from 1.0 early to 0.0 at window close.
func taperFactor(tRem, windowS int64) float64 {
	return clamp(float64(tRem)/float64(max(windowS, 1)), 0, 1)
}

func (d *Decider) allowedImbalance(tRem int64) float64 {
	if tRem <= int64(d.strat.BalanceLen/time.Second) {
		return d.strat.LateImbalanceCap
	}
	return d.strat.EarlyImbalanceCap
}

func (d *Decider) mustBalance(m *market.Market, tRem int64) bool {
	return m.Mode == market.Balance || m.Pos.ImbalanceRatio() > d.allowedImbalance(tRem)
}

// -----------------------------------------------------------------------------
// Side selection
// -----------------------------------------------------------------------------

// chooseWorkingSide picks the side to work this tick. Two regimes:
//
// Bootstrap (no pair held yet): flat picks the cheaper implied ask;
// one-sided prefers completing the missing side while its ask stays under
// the bootstrap price cap, otherwise rescue-buys the held side only when it
// improves the average enough; Balance mode always forces the missing side.
//
// Paired: forced balancing picks the under-weighted side; otherwise both
// sides are evaluated by the pair cost a fill at their best reachable maker
// price would produce, lower wins, ties broken by tighter spread. The
// directional signal does not participate here; it only gates the momentum
// taker.
func (d *Decider) chooseWorkingSide(m *market.Market, tRem int64) (model.Side, bool) {
	if _, paired := m.Pos.PairCostCC(); !paired {
		return d.bootstrapSide(m)
	}

	if d.mustBalance(m, tRem) {
		return underWeightedSide(m), true
	}

	var (
		bestSide model.Side
		bestPC   int64
		found    bool
	)
	for _, side := range []model.Side{model.Yes, model.No} {
		p, ok := d.bestMakerPrice(m, side, d.strat.TargetPairCC, true)
		if !ok {
			continue
		}
		pc, ok := m.Pos.SimulateBuy(side, p, 1).PairCostCC()
		if !ok {
			continue
		}
		if !found || pc < bestPC || (pc == bestPC && tighterSpread(m, side, bestSide)) {
			bestSide, bestPC, found = side, pc, true
		}
	}
	if found {
		return bestSide, true
	}
	// Nothing fits the target cap; keep working the under-weighted side so
	// the safe-cap maker path still has a side to try.
	return underWeightedSide(m), true
}

func (d *Decider) bootstrapSide(m *market.Market) (model.Side, bool) {
	yesQty, noQty := m.Pos.YesQty, m.Pos.NoQty

	if yesQty == 0 && noQty == 0 {
		return cheaperAskSide(m)
	}

	held := model.Yes
	if noQty > yesQty {
		held = model.No
	}
	missing := held.Other()

	if m.Mode == market.Balance {
		return missing, true
	}

	if ask, ok := m.Book.ImpliedAsk(missing); ok {
		if capCents, capOK := d.bootstrapPriceCap(m, held); capOK && ask <= capCents {
			return missing, true
		}
	}

	// Missing side is too expensive right now. Rescue-buy the held side only
	// if it meaningfully improves the average and the one-sided exposure cap
	// allows it.
	if m.Pos.Qty(held) < d.strat.BootstrapMaxOneSideQty {
		if ask, ok := m.Book.ImpliedAsk(held); ok {
			if avg, avgOK := m.Pos.AvgCC(held); avgOK {
				newAvg, _ := m.Pos.SimulateBuy(held, ask, 1).AvgCC(held)
				if avg-newAvg >= d.strat.BootstrapRescueMinImproveCC {
					return held, true
				}
			}
		}
	}

	// Keep waiting on the missing side; the maker path will quote it when a
	// price under the cap becomes reachable.
	return missing, true
}

// bootstrapPriceCap is the most we may pay for the missing side while still
// establishing the first pair under the bootstrap pair cap, given the held
// side's current average.
func (d *Decider) bootstrapPriceCap(m *market.Market, held model.Side) (int, bool) {
	avg, ok := m.Pos.AvgCC(held)
	if !ok {
		return 0, false
	}
	capCC := (d.strat.BootstrapPairCC - avg) / model.CentCentsPerCent
	if capCC < 0 {
		capCC = 0
	}
	return int(min(capCC, int64(d.strat.MaxBuyPriceCents))), true
}

func cheaperAskSide(m *market.Market) (model.Side, bool) {
	ay, yOK := m.Book.ImpliedAsk(model.Yes)
	an, nOK := m.Book.ImpliedAsk(model.No)
	switch {
	case yOK && nOK:
		if ay <= an {
			return model.Yes, true
		}
		return model.No, true
	case yOK:
		return model.Yes, true
	case nOK:
		return model.No, true
	default:
		return model.Yes, false
	}
}

func underWeightedSide(m *market.Market) model.Side {
	if m.Pos.YesQty < m.Pos.NoQty {
		return model.Yes
	}
	return model.No
}

func tighterSpread(m *market.Market, a, b model.Side) bool {
	sa, aOK := m.Book.Spread(a)
	sb, bOK := m.Book.Spread(b)
	if !aOK || !bOK {
		return aOK
	}
	return sa < sb
}

// -----------------------------------------------------------------------------
// Order sizing
// -----------------------------------------------------------------------------

// desiredQty scales order size with the yes/no gap, an urgency term that
// grows toward window close, and a Balance-mode boost, clamped to the hard
// maximum and never past the remaining gap.
func (d *Decider) desiredQty(m *market.Market, side model.Side, tRem, windowS int64) int64 {
	gap := m.Pos.YesQty - m.Pos.NoQty
	if gap < 0 {
		gap = -gap
	}
	if gap == 0 || m.Pos.Qty(side) >= m.Pos.Qty(side.Other()) {
		return 1
	}

	urgency := 1 + (1 - taperFactor(tRem, windowS))
	q := int64(math.Ceil(float64(gap) * d.strat.CatchupAggressiveness * urgency))
	if m.Mode == market.Balance {
		q = int64(math.Ceil(float64(q) * (1 + d.strat.CatchupBalanceBoost)))
	}

	q = min(q, d.strat.MaxOrderQty, gap)
	return max(q, 1)
}

// -----------------------------------------------------------------------------
// Cancel stale
// -----------------------------------------------------------------------------

// cancelStale cancels any resting hint older than the stale age, honoring
// the minimum resting life and the cancel-retry interval so cancels are not
// re-sent every tick.
func (d *Decider) cancelStale(ticker string, m *market.Market, now time.Time) *model.ExecCommand {
	for _, side := range []model.Side{model.Yes, model.No} {
		h := m.RestingHint(side)
		if h == nil || h.OrderID == "" {
			continue
		}

		age := now.Sub(h.CreatedAt)
		if age < d.strat.MinRestingLife || age < d.strat.CancelStaleAfter {
			continue
		}
		if h.CancelOutstanding() && now.Sub(h.CancelRequestedAt) < d.strat.CancelRetryAfter {
			continue
		}

		h.CancelRequestedAt = now
		d.logger.Debug("canceling stale order",
			"ticker", ticker, "side", side.String(), "price", h.Price, "age", age)
		cmd := model.CancelCommand(model.CancelOrder{Ticker: ticker, OrderID: h.OrderID})
		return &cmd
	}
	return nil
}

// -----------------------------------------------------------------------------
// Takers
// -----------------------------------------------------------------------------

// opportunisticTaker crosses the spread with an IOC when the implied ask is
// cheap enough. Tight spreads need only the minimum pair-cost improvement;
// wide spreads must beat what the best reachable maker price would achieve,
// or improve by the big-improvement threshold. Forced-balance crossings are
// reserved for the desperate tail of the window.
func (d *Decider) opportunisticTaker(ticker string, m *market.Market, now time.Time, tRem, windowS int64, desired model.Side) *model.ExecCommand {
	imbalanceCap := d.allowedImbalance(tRem)
	mustBalance := d.mustBalance(m, tRem)
	desperate := tRem <= int64(d.strat.TakerDesperateLen/time.Second)

	_, paired := m.Pos.PairCostCC()
	if !paired {
		return d.bootstrapTaker(ticker, m, now, desired)
	}

	type candidate struct {
		side  model.Side
		ask   int
		newPC int64
	}
	var best *candidate

	for _, side := range []model.Side{model.Yes, model.No} {
		if mustBalance {
			if side != underWeightedSide(m) {
				continue
			}
			if !desperate {
				continue
			}
		} else if m.Pos.SimulateBuy(side, 0, 1).ImbalanceRatio() > imbalanceCap {
			continue
		}

		ask, ok := m.Book.ImpliedAsk(side)
		if !ok || ask > d.strat.MaxBuyPriceCents {
			continue
		}
		if now.Sub(m.LastTaker(side)) < d.strat.TakerCooldown && !m.LastTaker(side).IsZero() {
			continue
		}

		oldPC, _ := m.Pos.PairCostCC()
		newPC, ok := m.Pos.SimulateBuy(side, ask, 1).PairCostCC()
		if !ok {
			continue
		}

		if newPC > d.strat.TargetPairCC {
			improve := oldPC - newPC
			if improve < d.strat.MinTakerImproveCC {
				continue
			}
			if !tightSpread(m, side, d.strat.TightSpreadCents) {
				// Wide spread: only cross when the taker beats the maker
				// alternative outright, or the improvement is big.
				if improve < d.strat.BigTakerImproveCC && !d.takerBeatsMaker(m, side, newPC) {
					continue
				}
			}
		}

		if best == nil || newPC < best.newPC {
			best = &candidate{side: side, ask: ask, newPC: newPC}
		}
	}

	if best == nil {
		return nil
	}
	qty := d.desiredQty(m, best.side, tRem, windowS)
	return d.emitTaker(ticker, m, now, best.side, best.ask, qty)
}

// bootstrapTaker crosses immediately for the desired bootstrap side when its
// ask is affordable and the spread is tight (or Balance mode forces it).
func (d *Decider) bootstrapTaker(ticker string, m *market.Market, now time.Time, desired model.Side) *model.ExecCommand {
	ask, ok := m.Book.ImpliedAsk(desired)
	if !ok || ask > d.strat.MaxBuyPriceCents {
		return nil
	}
	if !m.LastTaker(desired).IsZero() && now.Sub(m.LastTaker(desired)) < d.strat.TakerCooldown {
		return nil
	}

	// Cap against the held side's average when one exists; a flat book just
	// uses the max buy price.
	if m.Pos.Qty(desired.Other()) > 0 {
		capCents, capOK := d.bootstrapPriceCap(m, desired.Other())
		if !capOK || ask > capCents {
			return nil
		}
	}

	if m.Mode != market.Balance && !tightSpread(m, desired, d.strat.TightSpreadCents) {
		return nil
	}

	return d.emitTaker(ticker, m, now, desired, ask, 1)
}

// takerBeatsMaker reports whether crossing now yields a pair cost at least
// as good as the best maker price reachable under the safe cap would.
func (d *Decider) takerBeatsMaker(m *market.Market, side model.Side, takerPC int64) bool {
	p, ok := d.bestMakerPrice(m, side, d.strat.SafePairCC, false)
	if !ok {
		return true
	}
	makerPC, ok := m.Pos.SimulateBuy(side, p, 1).PairCostCC()
	if !ok {
		return true
	}
	return takerPC <= makerPC
}

func tightSpread(m *market.Market, side model.Side, tight int) bool {
	sp, ok := m.Book.Spread(side)
	return ok && sp <= tight
}

func (d *Decider) emitTaker(ticker string, m *market.Market, now time.Time, side model.Side, price int, qty int64) *model.ExecCommand {
	clientID := uuid.New()
	m.Orders.InsertPending(market.OrderRec{
		Ticker:        ticker,
		Side:          side,
		Price:         price,
		Qty:           qty,
		TIF:           model.IOC,
		PostOnly:      false,
		ClientOrderID: clientID,
		CreatedAt:     now,
	})
	m.SetLastTaker(side, now)

	cmd := model.PlaceCommand(model.PlaceOrder{
		Ticker:        ticker,
		Side:          side,
		Price:         price,
		Qty:           qty,
		TIF:           model.IOC,
		PostOnly:      false,
		ClientOrderID: clientID,
	})
	return &cmd
}

// momentumTaker spends budgeted extra IOC buys on the signal side when the
// score is strong, confidence clears its gate, inventory is balanced, and
// the safe pair cap holds. The per-window budget tapers toward close.
func (d *Decider) momentumTaker(ticker string, m *market.Market, now time.Time, tRem, windowS int64, score, conf float64) *model.ExecCommand {
	if conf < d.strat.MinConfForMomentum {
		return nil
	}
	if math.Abs(score)*clamp(conf, 0, 1) < d.strat.MomentumScoreThreshold {
		return nil
	}
	if m.Mode == market.Balance || !m.Pos.Balanced() {
		return nil
	}

	tf := taperFactor(tRem, windowS)
	maxExtra := int64(math.Round(float64(d.strat.MomentumMinExtra) +
		float64(d.strat.MomentumBaseExtra-d.strat.MomentumMinExtra)*tf))
	if m.FlowBuysUsed >= maxExtra {
		return nil
	}

	side := model.Yes
	if score < 0 {
		side = model.No
	}

	ask, ok := m.Book.ImpliedAsk(side)
	if !ok || ask > d.strat.MaxBuyPriceCents {
		return nil
	}
	if !m.LastTaker(side).IsZero() && now.Sub(m.LastTaker(side)) < d.strat.TakerCooldown {
		return nil
	}

	if newPC, ok := m.Pos.SimulateBuy(side, ask, 1).PairCostCC(); ok && newPC > d.strat.SafePairCC {
		return nil
	}

	m.FlowBuysUsed++
	d.logger.Debug("momentum taker",
		"ticker", ticker, "side", side.String(), "price", ask, "score", score, "conf", conf)
	return d.emitTaker(ticker, m, now, side, ask, 1)
}

// -----------------------------------------------------------------------------
// Maker quoting
// -----------------------------------------------------------------------------

// topMakerPrice is best bid improved by the configured tick, bounded by the
// max buy price and kept strictly below the implied ask for post-only
// safety.
func (d *Decider) topMakerPrice(m *market.Market, side model.Side) (int, bool) {
	best, ok := m.Book.BestBid(side)
	if !ok {
		return 0, false
	}

	improve := d.strat.MakerImproveTick
	if m.Mode == market.Balance {
		improve = d.strat.MakerImproveTickBalance
	}
	p := min(best+improve, d.strat.MaxBuyPriceCents)

	if ask, ok := m.Book.ImpliedAsk(side); ok {
		if ask <= 1 {
			return 0, false
		}
		p = min(p, ask-1)
	}
	if p < 0 {
		return 0, false
	}
	return p, true
}

// bestMakerPrice searches downward from the top maker price, bounded by the
// maximum edge, for the highest price whose simulated 1-lot fill keeps pair
// cost under capCC. With requireNoWorse the fill must also not worsen the
// current pair cost.
func (d *Decider) bestMakerPrice(m *market.Market, side model.Side, capCC int64, requireNoWorse bool) (int, bool) {
	top, ok := d.topMakerPrice(m, side)
	if !ok {
		return 0, false
	}
	minPrice := max(top-d.strat.MakerMaxEdgeCents, 0)
	oldPC, hasPair := m.Pos.PairCostCC()

	for p := top; p >= minPrice; p-- {
		newPC, ok := m.Pos.SimulateBuy(side, p, 1).PairCostCC()
		if !ok {
			continue
		}
		if newPC > capCC {
			continue
		}
		if requireNoWorse && hasPair && newPC > oldPC {
			continue
		}
		return p, true
	}
	return 0, false
}

// makerQuote maintains at most one resting order per side without churning.
// An opposite-side leftover is canceled first; an existing quote at the
// chosen price is left alone; a drifted quote past its minimum life is
// canceled, with the fresh quote following on a later tick.
func (d *Decider) makerQuote(ticker string, m *market.Market, now time.Time, tRem, windowS int64, side model.Side) *model.ExecCommand {
	if cmd := d.cancelOppositeLeftover(ticker, m, now, side); cmd != nil {
		return cmd
	}

	p, ok := d.quotePrice(m, side)
	if !ok {
		return nil
	}

	if existing := m.RestingHint(side); existing != nil {
		return d.requoteIfDrifted(ticker, existing, p, now)
	}

	qty := d.desiredQty(m, side, tRem, windowS)
	clientID := uuid.New()

	m.Orders.InsertPending(market.OrderRec{
		Ticker:        ticker,
		Side:          side,
		Price:         p,
		Qty:           qty,
		TIF:           model.GTC,
		PostOnly:      true,
		ClientOrderID: clientID,
		CreatedAt:     now,
	})
	m.SetRestingHint(side, &market.RestingHint{
		Side:          side,
		Price:         p,
		Qty:           qty,
		CreatedAt:     now,
		ClientOrderID: clientID,
		QueueAhead:    m.Book.QtyAt(side, p),
	})

	cmd := model.PlaceCommand(model.PlaceOrder{
		Ticker:        ticker,
		Side:          side,
		Price:         p,
		Qty:           qty,
		TIF:           model.GTC,
		PostOnly:      true,
		ClientOrderID: clientID,
	})
	return &cmd
}

// quotePrice picks the maker price for the working side: under the target
// cap with no-worse pair cost when possible, else under the safe cap; in
// the bootstrap regime it is bounded by the bootstrap price cap instead.
func (d *Decider) quotePrice(m *market.Market, side model.Side) (int, bool) {
	if _, paired := m.Pos.PairCostCC(); !paired {
		top, ok := d.topMakerPrice(m, side)
		if !ok {
			return 0, false
		}
		if m.Pos.Qty(side.Other()) > 0 {
			capCents, capOK := d.bootstrapPriceCap(m, side.Other())
			if !capOK {
				return 0, false
			}
			top = min(top, capCents)
		}
		if top < 0 {
			return 0, false
		}
		return top, true
	}

	if p, ok := d.bestMakerPrice(m, side, d.strat.TargetPairCC, true); ok {
		return p, true
	}
	if m.Mode == market.Balance {
		return d.bestMakerPrice(m, side, d.strat.BalancePairCC, false)
	}
	return d.bestMakerPrice(m, side, d.strat.SafePairCC, false)
}

func (d *Decider) cancelOppositeLeftover(ticker string, m *market.Market, now time.Time, side model.Side) *model.ExecCommand {
	h := m.RestingHint(side.Other())
	if h == nil || h.OrderID == "" {
		return nil
	}
	if now.Sub(h.CreatedAt) < d.strat.MinRestingLife {
		return nil
	}
	if h.CancelOutstanding() && now.Sub(h.CancelRequestedAt) < d.strat.CancelRetryAfter {
		return nil
	}

	h.CancelRequestedAt = now
	cmd := model.CancelCommand(model.CancelOrder{Ticker: ticker, OrderID: h.OrderID})
	return &cmd
}

// requoteIfDrifted cancels an existing quote when the desired price has
// drifted far enough and the order has lived its minimum life. The
// replacement is never placed in the same tick as its own cancel.
func (d *Decider) requoteIfDrifted(ticker string, h *market.RestingHint, want int, now time.Time) *model.ExecCommand {
	if h.Price == want {
		return nil
	}
	if now.Sub(h.CreatedAt) < d.strat.MinRestingLife {
		return nil
	}
	if h.CancelOutstanding() && now.Sub(h.CancelRequestedAt) < d.strat.CancelRetryAfter {
		return nil
	}

	drift := h.Price - want
	if drift < 0 {
		drift = -drift
	}
	if drift < d.strat.CancelDriftCents || h.OrderID == "" {
		return nil
	}

	h.CancelRequestedAt = now
	cmd := model.CancelCommand(model.CancelOrder{Ticker: ticker, OrderID: h.OrderID})
	return &cmd
}
