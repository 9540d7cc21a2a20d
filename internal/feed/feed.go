// Package feed maintains the market-data WebSocket: the mirrored books,
// the public tape, and our own fills.
package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/kalshi-hedger/internal/auth"
	"github.com/rickgao/kalshi-hedger/internal/config"
	"github.com/rickgao/kalshi-hedger/internal/engine"
	"github.com/rickgao/kalshi-hedger/internal/exec"
	"github.com/rickgao/kalshi-hedger/internal/market"
	"github.com/rickgao/kalshi-hedger/internal/metrics"
	"github.com/rickgao/kalshi-hedger/internal/model"
	"github.com/rickgao/kalshi-hedger/internal/report"
)

// FillSink receives confirmed executions, e.g. for journaling.
type FillSink interface {
	RecordFill(model.Fill)
}

// MarketUpdate changes the live subscription set. Adds are applied before
// removes so a rotation never leaves a coverage gap.
type MarketUpdate struct {
	Add    []string
	Remove []string
}

// Feed owns the exchange WebSocket. It resubscribes on reconnect and treats
// an orderbook sequence gap as a connection failure so the next snapshot
// rebuilds the book.
type Feed struct {
	cfg    config.FeedConfig
	sig    config.SignalConfig
	wsURL  string
	creds  *auth.Credentials
	shared *market.Shared
	taus   market.FlowTaus
	paper  *exec.Paper // nil in live mode
	sink   FillSink    // optional
	logger *slog.Logger

	ctl    chan MarketUpdate
	nextID atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates the feed task. paper and sink may be nil.
func New(cfg config.FeedConfig, sig config.SignalConfig, tick time.Duration, wsURL string, creds *auth.Credentials, shared *market.Shared, paper *exec.Paper, sink FillSink, logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{
		cfg:    cfg,
		sig:    sig,
		wsURL:  wsURL,
		creds:  creds,
		shared: shared,
		taus:   engine.FlowTaus(sig, tick),
		paper:  paper,
		sink:   sink,
		logger: logger.With("component", "feed"),
		ctl:    make(chan MarketUpdate, 16),
	}
}

// UpdateMarkets queues a subscription change. Called by rotation.
func (f *Feed) UpdateMarkets(add, remove []string) {
	select {
	case f.ctl <- MarketUpdate{Add: add, Remove: remove}:
	case <-f.ctx.Done():
	}
}

// Start connects and begins streaming.
func (f *Feed) Start(ctx context.Context) error {
	f.ctx, f.cancel = context.WithCancel(ctx)

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		f.run()
	}()

	f.logger.Info("feed started", "url", f.wsURL)
	return nil
}

// Stop shuts down, bounded by the context deadline.
func (f *Feed) Stop(ctx context.Context) error {
	if f.cancel != nil {
		f.cancel()
	}

	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		f.logger.Info("feed stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the outer reconnect loop. The subscribed set survives reconnects.
func (f *Feed) run() {
	markets := make(map[string]struct{})
	for _, ts := range f.shared.Snapshot() {
		markets[ts.Ticker] = struct{}{}
	}

	delay := f.cfg.ReconnectBaseDelay
	for {
		// Fold in control updates that arrived while disconnected.
		f.drainControl(markets)

		if f.ctx.Err() != nil {
			return
		}

		c := newConn(f.wsURL, f.creds, f.cfg.PingInterval, f.cfg.ReadTimeout, f.logger)
		if err := c.connect(f.ctx); err != nil {
			f.logger.Warn("feed connect failed", "err", err, "retry_in", delay)
			if !f.sleep(delay) {
				return
			}
			delay = min(delay*2, f.cfg.ReconnectMaxDelay)
			continue
		}

		if err := f.subscribe(c, markets); err != nil {
			f.logger.Warn("feed subscribe failed", "err", err)
			c.close()
			if !f.sleep(delay) {
				return
			}
			delay = min(delay*2, f.cfg.ReconnectMaxDelay)
			continue
		}

		delay = f.cfg.ReconnectBaseDelay
		f.logger.Info("feed subscribed", "markets", len(markets))

		f.session(c, markets)
		c.close()

		if f.ctx.Err() != nil {
			return
		}
		metrics.FeedReconnects.Inc()
		if !f.sleep(f.cfg.ReconnectBaseDelay) {
			return
		}
	}
}

// session services one connection until it fails or a book desyncs.
func (f *Feed) session(c *conn, markets map[string]struct{}) {
	sids := make(map[string]int64)

	for {
		select {
		case <-f.ctx.Done():
			return

		case err := <-c.errors:
			f.logger.Warn("feed read error, reconnecting", "err", err)
			return

		case upd := <-f.ctl:
			applyUpdateLocal(markets, upd)
			if err := f.sendUpdate(c, sids, upd); err != nil {
				f.logger.Warn("subscription update failed, reconnecting", "err", err)
				return
			}

		case msg := <-c.messages:
			if ok := f.dispatch(msg, sids); !ok {
				return
			}
		}
	}
}

// dispatch routes one frame. Returns false when the connection must be
// torn down, which currently only a sequence gap triggers.
func (f *Feed) dispatch(msg timestampedMessage, sids map[string]int64) bool {
	var env envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		f.logger.Warn("unparseable frame", "err", err)
		return true
	}

	switch env.Type {
	case "subscribed":
		var sub subscribedMsg
		if err := json.Unmarshal(env.Msg, &sub); err == nil {
			f.logger.Info("subscribed", "channel", sub.Channel, "sid", sub.SID)
			sids[sub.Channel] = sub.SID
		}

	case "ok":
		f.logger.Debug("subscription updated", "id", env.ID, "sid", env.SID)

	case "error":
		var em errorMsg
		_ = json.Unmarshal(env.Msg, &em)
		f.logger.Warn("feed error frame", "id", env.ID, "code", em.Code, "msg", em.Message)

	case "orderbook_snapshot":
		var snap snapshotMsg
		if err := json.Unmarshal(env.Msg, &snap); err != nil {
			f.logger.Warn("bad snapshot", "err", err)
			return true
		}
		f.ingestSnapshot(env.Seq, snap, msg.ReceivedAt)

	case "orderbook_delta":
		var delta deltaMsg
		if err := json.Unmarshal(env.Msg, &delta); err != nil {
			f.logger.Warn("bad delta", "err", err)
			return true
		}
		if !f.ingestDelta(env.Seq, delta, msg.ReceivedAt) {
			f.logger.Warn("orderbook sequence gap, reconnecting", "ticker", delta.MarketTicker)
			metrics.BookDesyncs.WithLabelValues(delta.MarketTicker).Inc()
			return false
		}

	case "trade":
		var tr tradeMsg
		if err := json.Unmarshal(env.Msg, &tr); err != nil {
			f.logger.Warn("bad trade", "err", err)
			return true
		}
		f.ingestTrade(tr, msg.ReceivedAt)

	case "fill":
		var fl fillMsg
		if err := json.Unmarshal(env.Msg, &fl); err != nil {
			f.logger.Warn("bad fill", "err", err)
			return true
		}
		f.ingestFill(fl, msg.ReceivedAt)
	}

	return true
}

func (f *Feed) ingestSnapshot(seq int64, snap snapshotMsg, now time.Time) {
	ts := f.shared.Ensure(snap.MarketTicker)
	ts.WithWrite(func(m *market.Market) {
		m.Book.Reset(seq, toLevels(snap.Yes), toLevels(snap.No))
		m.Flow.OnBookImbalance(f.taus, engine.RawBookImbalance(f.sig, m.Book), now)
	})
	ts.MarkDirty()
	f.shared.Notify()
}

// ingestDelta applies one level change. Returns false on a sequence gap,
// leaving the book untouched.
func (f *Feed) ingestDelta(seq int64, delta deltaMsg, now time.Time) bool {
	side, ok := model.ParseSide(delta.Side)
	if !ok {
		return true
	}

	ts := f.shared.Ensure(delta.MarketTicker)
	applied := true
	ts.WithWrite(func(m *market.Market) {
		applied = m.Book.ApplyDelta(seq, side, delta.Price, delta.Delta)
		if !applied {
			m.Book.Invalidate()
			return
		}

		m.Flow.OnDeltaFlow(f.taus, engine.DeltaFlowSample(f.sig, m.Book, side, delta.Delta), now)
		m.Flow.OnBookImbalance(f.taus, engine.RawBookImbalance(f.sig, m.Book), now)
		if f.paper != nil {
			f.paper.OnDeltaQueue(m, side, delta.Price, delta.Delta)
		}
	})
	ts.MarkDirty()
	f.shared.Notify()
	return applied
}

func (f *Feed) ingestTrade(tr tradeMsg, now time.Time) {
	takerSide, ok := model.ParseSide(tr.TakerSide)
	if !ok {
		return
	}

	ts := f.shared.Ensure(tr.MarketTicker)
	ts.WithWrite(func(m *market.Market) {
		m.Flow.OnTradeFlow(f.taus, engine.TradeFlowSample(f.sig, m.Book, takerSide, tr.Count), now)
		if f.paper != nil {
			f.paper.OnTradeFill(tr.MarketTicker, m, takerSide, tr.YesPrice, tr.NoPrice, tr.Count)
		}
	})
	ts.MarkDirty()
	f.shared.Notify()
}

// ingestFill applies one of our executions to the position. The wire price
// is always yes-side; a no fill costs its complement.
func (f *Feed) ingestFill(fl fillMsg, now time.Time) {
	purchased, ok := model.ParseSide(fl.Side)
	if !ok {
		return
	}

	tstate, ok := f.shared.Get(fl.MarketTicker)
	if !ok {
		return
	}

	qty := max(fl.Count, 0)
	if qty == 0 {
		return
	}

	price := fl.YesPrice
	if purchased == model.No {
		price = 100 - fl.YesPrice
	}

	var clientID uuid.UUID
	tstate.WithWrite(func(m *market.Market) {
		m.Pos.ApplyFill(purchased, price, qty)
		clientID, _ = m.Orders.ClientForOrder(fl.OrderID)
		metrics.FillsTotal.WithLabelValues(fl.MarketTicker, purchased.String()).Inc()

		if fully, known := m.Orders.OnFillByOrder(fl.OrderID, qty); known && fully {
			if h := m.RestingHint(purchased); h != nil && h.OrderID == fl.OrderID {
				m.SetRestingHint(purchased, nil)
			}
		}
		report.LogPosition(f.logger, fl.MarketTicker, m.Pos)
	})
	tstate.MarkDirty()
	f.shared.Notify()

	if f.sink != nil {
		f.sink.RecordFill(model.Fill{
			TradeID:       fl.TradeID,
			Ticker:        fl.MarketTicker,
			Side:          purchased,
			Price:         price,
			Count:         qty,
			OrderID:       fl.OrderID,
			ClientOrderID: clientID,
			ReceivedAt:    now,
		})
	}
}

// subscribe opens all channels for the current market set.
func (f *Feed) subscribe(c *conn, markets map[string]struct{}) error {
	tickers := make([]string, 0, len(markets))
	for t := range markets {
		tickers = append(tickers, t)
	}

	cmd := command{
		ID:  f.nextID.Add(1),
		Cmd: "subscribe",
		Params: subscribeParams{
			Channels:      []string{channelOrderbook, channelTrade, channelFill},
			MarketTickers: tickers,
		},
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	return c.send(data)
}

// sendUpdate applies a market change on every subscribed channel, adds
// before removes.
func (f *Feed) sendUpdate(c *conn, sids map[string]int64, upd MarketUpdate) error {
	for _, ch := range []string{channelOrderbook, channelTrade, channelFill} {
		sid, ok := sids[ch]
		if !ok {
			continue
		}
		if len(upd.Add) > 0 {
			if err := f.sendSubscriptionChange(c, sid, "add_markets", upd.Add); err != nil {
				return err
			}
		}
		if len(upd.Remove) > 0 {
			if err := f.sendSubscriptionChange(c, sid, "delete_markets", upd.Remove); err != nil {
				return err
			}
		}
	}
	return nil
}

func (f *Feed) sendSubscriptionChange(c *conn, sid int64, action string, tickers []string) error {
	cmd := command{
		ID:  f.nextID.Add(1),
		Cmd: "update_subscription",
		Params: updateSubscriptionParams{
			SIDs:          []int64{sid},
			Action:        action,
			MarketTickers: tickers,
		},
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	return c.send(data)
}

func (f *Feed) drainControl(markets map[string]struct{}) {
	for {
		select {
		case upd := <-f.ctl:
			applyUpdateLocal(markets, upd)
		default:
			return
		}
	}
}

func applyUpdateLocal(markets map[string]struct{}, upd MarketUpdate) {
	for _, t := range upd.Add {
		markets[t] = struct{}{}
	}
	for _, t := range upd.Remove {
		delete(markets, t)
	}
}

// sleep waits unless shutdown begins first.
func (f *Feed) sleep(d time.Duration) bool {
	select {
	case <-f.ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func toLevels(raw [][]int64) []model.PriceLevel {
	levels := make([]model.PriceLevel, 0, len(raw))
	for _, pair := range raw {
		if len(pair) != 2 {
			continue
		}
		levels = append(levels, model.PriceLevel{Price: int(pair[0]), Qty: pair[1]})
	}
	return levels
}
