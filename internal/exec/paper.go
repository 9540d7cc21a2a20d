package exec

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/rickgao/kalshi-hedger/internal/market"
	"github.com/rickgao/kalshi-hedger/internal/metrics"
	"github.com/rickgao/kalshi-hedger/internal/model"
	"github.com/rickgao/kalshi-hedger/internal/report"
)

// Paper simulates order execution against the mirrored book. Orders never
// leave the process; fills are synthesized from market data events.
type Paper struct {
	shared              *market.Shared
	rejectPostOnlyCross bool
	logger              *slog.Logger
}

// NewPaper creates the paper execution simulator.
func NewPaper(shared *market.Shared, rejectPostOnlyCross bool, logger *slog.Logger) *Paper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Paper{
		shared:              shared,
		rejectPostOnlyCross: rejectPostOnlyCross,
		logger:              logger.With("component", "paper"),
	}
}

// Place acks or rejects an order synchronously. IOC orders fill in full at
// the implied ask or reject; GTC orders rest with a synthetic exchange id.
func (p *Paper) Place(o model.PlaceOrder) {
	ts, ok := p.shared.Get(o.Ticker)
	if !ok {
		return
	}

	ts.WithWrite(func(m *market.Market) {
		orderID := "paper-" + uuid.NewString()
		m.Orders.LinkOrderID(o.ClientOrderID, orderID)

		if o.PostOnly && p.rejectPostOnlyCross && m.Book.CrossesAsk(o.Side, o.Price) {
			p.logger.Info("reject post-only would cross",
				"ticker", o.Ticker, "side", o.Side.String(), "price", o.Price, "qty", o.Qty)
			p.reject(o.Ticker, m, o.Side, o.ClientOrderID)
			return
		}

		switch o.TIF {
		case model.IOC:
			ask, ok := m.Book.ImpliedAsk(o.Side)
			if !ok {
				p.logger.Info("ioc reject no ask", "ticker", o.Ticker, "side", o.Side.String())
				p.reject(o.Ticker, m, o.Side, o.ClientOrderID)
				return
			}
			if ask > o.Price {
				p.logger.Info("ioc not filled",
					"ticker", o.Ticker, "side", o.Side.String(), "limit", o.Price, "ask", ask)
				p.reject(o.Ticker, m, o.Side, o.ClientOrderID)
				return
			}

			p.logger.Info("ioc filled",
				"ticker", o.Ticker, "side", o.Side.String(), "limit", o.Price,
				"fill_price", ask, "qty", o.Qty)
			m.Pos.ApplyFill(o.Side, ask, o.Qty)
			m.Orders.OnFillByClient(o.ClientOrderID, o.Qty)
			metrics.FillsTotal.WithLabelValues(o.Ticker, o.Side.String()).Inc()
			report.LogPosition(p.logger, o.Ticker, m.Pos)

		case model.GTC:
			p.logger.Info("resting ack",
				"ticker", o.Ticker, "side", o.Side.String(), "price", o.Price,
				"qty", o.Qty, "post_only", o.PostOnly, "order_id", orderID)
			m.Orders.SetStatusByClient(o.ClientOrderID, market.Resting)
			if h := m.RestingHint(o.Side); h != nil && h.ClientOrderID == o.ClientOrderID {
				h.OrderID = orderID
			}
		}
	})

	ts.MarkDirty()
	p.shared.Notify()
}

// Cancel acknowledges a cancel synchronously. An order that already filled
// stays filled; terminal statuses are not resurrected.
func (p *Paper) Cancel(c model.CancelOrder) {
	ts, ok := p.shared.Get(c.Ticker)
	if !ok {
		return
	}

	ts.WithWrite(func(m *market.Market) {
		m.Orders.SetStatusByOrder(c.OrderID, market.Canceled)
		for _, side := range []model.Side{model.Yes, model.No} {
			if h := m.RestingHint(side); h != nil && h.OrderID == c.OrderID {
				m.SetRestingHint(side, nil)
			}
		}
		p.logger.Info("cancel ack", "ticker", c.Ticker, "order_id", c.OrderID)
	})

	metrics.OrdersCanceled.WithLabelValues(c.Ticker).Inc()
	ts.MarkDirty()
	p.shared.Notify()
}

// OnDeltaQueue shrinks the queue-ahead estimate when liquidity at our
// resting price disappears. Caller holds the market write lock.
func (p *Paper) OnDeltaQueue(m *market.Market, side model.Side, price int, delta int64) {
	if delta >= 0 {
		return
	}
	h := m.RestingHint(side)
	if h == nil || h.Price != price || h.OrderID == "" {
		return
	}
	// Negative delta means some quantity at this level went away. Assume it
	// came from ahead of us in the queue.
	h.QueueAhead = max(h.QueueAhead+delta, 0)
}

// OnTradeFill synthesizes maker fills from a trade print. The maker side is
// the taker's opposite. A print below our posted price means the level was
// swept through, so queue position no longer protects us. Caller holds the
// market write lock.
func (p *Paper) OnTradeFill(ticker string, m *market.Market, takerSide model.Side, yesPrice, noPrice int, count int64) {
	fillable := max(count, 0)
	if fillable == 0 {
		return
	}

	makerSide := takerSide.Other()
	makerPrice := yesPrice
	if makerSide == model.No {
		makerPrice = noPrice
	}

	h := m.RestingHint(makerSide)
	if h == nil || h.OrderID == "" {
		return
	}
	if makerPrice > h.Price {
		return
	}
	if makerPrice < h.Price {
		h.QueueAhead = 0
	}

	remaining := fillable
	if h.QueueAhead > 0 {
		consume := min(h.QueueAhead, remaining)
		h.QueueAhead -= consume
		remaining -= consume
	}
	if remaining <= 0 {
		return
	}

	rec, ok := m.Orders.Get(h.ClientOrderID)
	if !ok || rec.Remaining() == 0 {
		return
	}

	fillQty := min(rec.Remaining(), remaining)
	postedPrice := h.Price

	p.logger.Info("maker filled",
		"ticker", ticker, "side", makerSide.String(), "print_price", makerPrice,
		"fill_price", postedPrice, "qty", fillQty)
	m.Pos.ApplyFill(makerSide, postedPrice, fillQty)
	metrics.FillsTotal.WithLabelValues(ticker, makerSide.String()).Inc()
	report.LogPosition(p.logger, ticker, m.Pos)

	fully, _ := m.Orders.OnFillByClient(h.ClientOrderID, fillQty)
	if fully {
		m.SetRestingHint(makerSide, nil)
	}
}

// reject marks the order rejected and clears a matching hint so the next
// decision tick can try again. Caller holds the market write lock.
func (p *Paper) reject(ticker string, m *market.Market, side model.Side, clientID uuid.UUID) {
	m.Orders.SetStatusByClient(clientID, market.Rejected)
	if h := m.RestingHint(side); h != nil && h.ClientOrderID == clientID {
		m.SetRestingHint(side, nil)
	}
	metrics.OrdersRejected.WithLabelValues(ticker).Inc()
}
