// Package exec consumes decision commands and routes them to the exchange
// or to the paper simulator.
package exec

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/rickgao/kalshi-hedger/internal/api"
	"github.com/rickgao/kalshi-hedger/internal/market"
	"github.com/rickgao/kalshi-hedger/internal/metrics"
	"github.com/rickgao/kalshi-hedger/internal/model"
)

// OrderAPI is the slice of the REST client the live path needs.
type OrderAPI interface {
	CreateOrder(ctx context.Context, req api.CreateOrderRequest) (*api.APIOrder, error)
	CancelOrder(ctx context.Context, orderID string) error
}

// Executor drains the command channel. In paper mode every command goes to
// the simulator; in live mode orders go over REST behind a rate limiter.
type Executor struct {
	client  OrderAPI
	paper   *Paper
	shared  *market.Shared
	limiter *rate.Limiter
	in      <-chan model.ExecCommand
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewExecutor creates an executor. paper may be nil in live mode, client may
// be nil in paper mode.
func NewExecutor(client OrderAPI, paper *Paper, shared *market.Shared, limiter *rate.Limiter, in <-chan model.ExecCommand, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		client:  client,
		paper:   paper,
		shared:  shared,
		limiter: limiter,
		in:      in,
		logger:  logger.With("component", "exec"),
	}
}

// Start begins draining commands.
func (e *Executor) Start(ctx context.Context) error {
	e.ctx, e.cancel = context.WithCancel(ctx)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.run()
	}()

	e.logger.Info("executor started", "paper", e.paper != nil)
	return nil
}

// Stop shuts down, bounded by the context deadline.
func (e *Executor) Stop(ctx context.Context) error {
	if e.cancel != nil {
		e.cancel()
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.logger.Info("executor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Executor) run() {
	for {
		select {
		case <-e.ctx.Done():
			return
		case cmd, ok := <-e.in:
			if !ok {
				return
			}
			e.handle(cmd)
		}
	}
}

func (e *Executor) handle(cmd model.ExecCommand) {
	switch {
	case cmd.Place != nil:
		e.place(*cmd.Place)
	case cmd.Cancel != nil:
		e.cancelOrder(*cmd.Cancel)
	}
}

func (e *Executor) place(o model.PlaceOrder) {
	metrics.OrdersPlaced.WithLabelValues(o.Ticker, o.Side.String(), o.TIF.String()).Inc()

	if e.paper != nil {
		e.paper.Place(o)
		return
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(e.ctx); err != nil {
			return
		}
	}

	price := int64(o.Price)
	postOnly := o.PostOnly
	req := api.CreateOrderRequest{
		Ticker:        o.Ticker,
		Side:          o.Side.String(),
		Action:        "buy",
		Count:         o.Qty,
		ClientOrderID: o.ClientOrderID.String(),
		Type:          "limit",
		TimeInForce:   o.TIF.String(),
		PostOnly:      &postOnly,
	}
	if o.Side == model.Yes {
		req.YesPrice = &price
	} else {
		req.NoPrice = &price
	}

	ctx, cancel := context.WithTimeout(e.ctx, 10*time.Second)
	defer cancel()

	order, err := e.client.CreateOrder(ctx, req)
	if err != nil {
		e.logger.Warn("place failed",
			"ticker", o.Ticker, "side", o.Side.String(), "price", o.Price, "err", err)
		e.rejectLocal(o)
		return
	}

	e.logger.Info("placed order",
		"ticker", o.Ticker, "side", o.Side.String(), "tif", o.TIF.String(),
		"post_only", o.PostOnly, "price", o.Price, "qty", o.Qty,
		"order_id", order.OrderID, "status", order.Status)

	ts, ok := e.shared.Get(o.Ticker)
	if !ok {
		return
	}
	ts.WithWrite(func(m *market.Market) {
		m.Orders.LinkOrderID(o.ClientOrderID, order.OrderID)
		m.Orders.SetStatusByClient(o.ClientOrderID, statusFromWire(order.Status))

		// A resting maker order needs the exchange id on its hint so
		// cancels can reference it. IOC results arrive on the fill feed.
		if o.TIF == model.GTC && o.PostOnly {
			if h := m.RestingHint(o.Side); h != nil && h.ClientOrderID == o.ClientOrderID {
				h.OrderID = order.OrderID
			}
		}
	})
	ts.MarkDirty()
	e.shared.Notify()
}

// rejectLocal records a failed placement so the decision loop can move on.
func (e *Executor) rejectLocal(o model.PlaceOrder) {
	metrics.OrdersRejected.WithLabelValues(o.Ticker).Inc()

	ts, ok := e.shared.Get(o.Ticker)
	if !ok {
		return
	}
	ts.WithWrite(func(m *market.Market) {
		m.Orders.SetStatusByClient(o.ClientOrderID, market.Rejected)
		if h := m.RestingHint(o.Side); h != nil && h.ClientOrderID == o.ClientOrderID {
			m.SetRestingHint(o.Side, nil)
		}
	})
	ts.MarkDirty()
	e.shared.Notify()
}

func (e *Executor) cancelOrder(c model.CancelOrder) {
	if e.paper != nil {
		e.paper.Cancel(c)
		return
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(e.ctx); err != nil {
			return
		}
	}

	ctx, cancel := context.WithTimeout(e.ctx, 10*time.Second)
	defer cancel()

	if err := e.client.CancelOrder(ctx, c.OrderID); err != nil {
		// Leave the hint alone; its cancel timestamp makes the decision
		// loop retry after the configured interval.
		e.logger.Warn("cancel failed", "ticker", c.Ticker, "order_id", c.OrderID, "err", err)
		return
	}

	e.logger.Info("canceled order", "ticker", c.Ticker, "order_id", c.OrderID)
	metrics.OrdersCanceled.WithLabelValues(c.Ticker).Inc()

	ts, ok := e.shared.Get(c.Ticker)
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
	})
	ts.MarkDirty()
	e.shared.Notify()
}

func statusFromWire(s string) market.OrderStatus {
	switch s {
	case "resting":
		return market.Resting
	case "canceled":
		return market.Canceled
	case "filled", "executed":
		return market.Filled
	default:
		return market.Resting
	}
}
