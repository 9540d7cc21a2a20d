// Package rotation selects the active market per series and rolls to the
// next window when the current one closes. One window per series at a time.
package rotation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/kalshi-hedger/internal/api"
	"github.com/rickgao/kalshi-hedger/internal/config"
	"github.com/rickgao/kalshi-hedger/internal/market"
	"github.com/rickgao/kalshi-hedger/internal/model"
)

// MarketLister is the slice of the REST client rotation needs.
type MarketLister interface {
	GetAllMarketsWithOptions(ctx context.Context, opts api.GetMarketsOptions) ([]api.APIMarket, error)
}

// SubscriptionUpdater moves the market-data subscription between windows.
type SubscriptionUpdater interface {
	UpdateMarkets(add, remove []string)
}

// ActiveMarket is the current window for one series.
type ActiveMarket struct {
	Series  string
	Ticker  string
	OpenTS  int64
	CloseTS int64
}

// FetchCurrent finds the tradable market for a series: the one marked
// active, else the soonest market that has not opened yet.
func FetchCurrent(ctx context.Context, client MarketLister, series string) (ActiveMarket, error) {
	markets, err := client.GetAllMarketsWithOptions(ctx, api.GetMarketsOptions{SeriesTicker: series})
	if err != nil {
		return ActiveMarket{}, fmt.Errorf("list markets for %s: %w", series, err)
	}

	now := time.Now().Unix()

	for _, m := range markets {
		if m.Status != "active" {
			continue
		}
		open, err := parseTime(m.OpenTime)
		if err != nil {
			return ActiveMarket{}, fmt.Errorf("market %s open_time: %w", m.Ticker, err)
		}
		close_, err := parseTime(m.CloseTime)
		if err != nil {
			return ActiveMarket{}, fmt.Errorf("market %s close_time: %w", m.Ticker, err)
		}
		return ActiveMarket{Series: series, Ticker: m.Ticker, OpenTS: open, CloseTS: close_}, nil
	}

	var best *ActiveMarket
	for _, m := range markets {
		open, err := parseTime(m.OpenTime)
		if err != nil || open < now {
			continue
		}
		close_, err := parseTime(m.CloseTime)
		if err != nil {
			continue
		}
		if best == nil || open < best.OpenTS {
			best = &ActiveMarket{Series: series, Ticker: m.Ticker, OpenTS: open, CloseTS: close_}
		}
	}
	if best == nil {
		return ActiveMarket{}, errors.New("no active or upcoming market for " + series)
	}
	return *best, nil
}

// Bootstrap resolves the starting window for every configured series.
// Series are independent, so the lookups run concurrently.
func Bootstrap(ctx context.Context, client MarketLister, series []string) ([]ActiveMarket, error) {
	out := make([]ActiveMarket, len(series))
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range series {
		g.Go(func() error {
			cur, err := FetchCurrent(gctx, client, s)
			if err != nil {
				return err
			}
			out[i] = cur
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// SeedTimes writes window bounds into live per-ticker state. Time remaining
// and mode selection read these.
func SeedTimes(shared *market.Shared, markets []ActiveMarket) {
	for _, am := range markets {
		ts := shared.Ensure(am.Ticker)
		ts.WithWrite(func(m *market.Market) {
			m.OpenTS = am.OpenTS
			m.CloseTS = am.CloseTS
		})
		ts.MarkDirty()
		shared.Notify()
	}
}

func parseTime(v string) (int64, error) {
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return 0, err
	}
	return t.Unix(), nil
}

// Rotator watches window close times and rolls each series forward.
type Rotator struct {
	client  MarketLister
	shared  *market.Shared
	subs    SubscriptionUpdater
	out     chan<- model.ExecCommand
	refresh time.Duration
	logger  *slog.Logger

	active map[string]ActiveMarket

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRotator creates the rotation task seeded with the bootstrap result.
func NewRotator(cfg config.MarketsConfig, client MarketLister, shared *market.Shared, subs SubscriptionUpdater, out chan<- model.ExecCommand, initial []ActiveMarket, logger *slog.Logger) *Rotator {
	if logger == nil {
		logger = slog.Default()
	}
	active := make(map[string]ActiveMarket, len(initial))
	for _, am := range initial {
		active[am.Series] = am
	}
	return &Rotator{
		client:  client,
		shared:  shared,
		subs:    subs,
		out:     out,
		refresh: cfg.RefreshInterval,
		logger:  logger.With("component", "rotation"),
		active:  active,
	}
}

// Start begins the refresh loop.
func (r *Rotator) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.run()
	}()

	r.logger.Info("rotation started", "series", len(r.active), "refresh", r.refresh)
	return nil
}

// Stop shuts down, bounded by the context deadline.
func (r *Rotator) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("rotation stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Rotator) run() {
	ticker := time.NewTicker(r.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.pass(time.Now().Unix())
		}
	}
}

// pass rotates every series whose window has closed.
func (r *Rotator) pass(now int64) {
	for series, cur := range r.active {
		if now < cur.CloseTS {
			continue
		}

		r.logger.Info("window closed, rotating",
			"series", series, "ticker", cur.Ticker, "close_ts", cur.CloseTS)

		next, err := FetchCurrent(r.ctx, r.client, series)
		if err != nil {
			r.logger.Warn("rotation fetch failed, will retry", "series", series, "err", err)
			continue
		}

		r.rotate(cur, next)
	}
}

// rotate swaps one series from cur to next. When the exchange only moved
// the close time, the window is refreshed in place.
func (r *Rotator) rotate(cur, next ActiveMarket) {
	if next.Ticker == cur.Ticker {
		r.logger.Info("active ticker unchanged, refreshing times",
			"series", cur.Series, "ticker", cur.Ticker, "close_ts", next.CloseTS)
		SeedTimes(r.shared, []ActiveMarket{next})
		r.active[cur.Series] = next
		return
	}

	// New state first so the incoming snapshot has somewhere to land.
	SeedTimes(r.shared, []ActiveMarket{next})

	if r.subs != nil {
		r.subs.UpdateMarkets([]string{next.Ticker}, []string{cur.Ticker})
	}

	r.cancelKnownResting(cur.Ticker)
	r.shared.Remove(cur.Ticker)
	r.active[cur.Series] = next

	r.logger.Info("rotated", "series", cur.Series, "from", cur.Ticker, "to", next.Ticker)
}

// cancelKnownResting cancels acked resting orders on a ticker we are about
// to drop. Orders that never acked have no exchange id to cancel by.
func (r *Rotator) cancelKnownResting(ticker string) {
	ts, ok := r.shared.Get(ticker)
	if !ok {
		return
	}

	var cancels []string
	ts.WithWrite(func(m *market.Market) {
		for _, side := range []model.Side{model.Yes, model.No} {
			if h := m.RestingHint(side); h != nil {
				if h.OrderID != "" {
					cancels = append(cancels, h.OrderID)
				}
				m.SetRestingHint(side, nil)
			}
		}
	})

	for _, oid := range cancels {
		select {
		case r.out <- model.CancelCommand(model.CancelOrder{Ticker: ticker, OrderID: oid}):
		default:
			r.logger.Warn("exec queue full, dropping rotation cancel", "ticker", ticker, "order_id", oid)
		}
	}
}
