package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/kalshi-hedger/internal/market"
	"github.com/rickgao/kalshi-hedger/internal/metrics"
	"github.com/rickgao/kalshi-hedger/internal/model"
)

// Driver runs the decision engine across all active instruments. It wakes
// on a fixed period or a cross-task notification, whichever fires first. A
// periodic pass visits every instrument for liveness; a notified pass only
// visits dirty ones, so a burst of feed events coalesces into one decision.
type Driver struct {
	decider *Decider
	shared  *market.Shared
	out     chan<- model.ExecCommand
	tick    time.Duration
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDriver creates the decision-driver task. Commands are sent to out;
// a full channel drops the command (the next tick re-derives it).
func NewDriver(decider *Decider, shared *market.Shared, out chan<- model.ExecCommand, tick time.Duration, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		decider: decider,
		shared:  shared,
		out:     out,
		tick:    tick,
		logger:  logger.With("component", "driver"),
	}
}

// Start begins the decision loop.
func (d *Driver) Start(ctx context.Context) error {
	d.ctx, d.cancel = context.WithCancel(ctx)

	d.wg.Add(1)
	go d.run()

	d.logger.Info("decision driver started", "tick", d.tick)
	return nil
}

// Stop gracefully shuts down the driver.
func (d *Driver) Stop(ctx context.Context) error {
	if d.cancel != nil {
		d.cancel()
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("decision driver stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Driver) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.tick)
	defer ticker.Stop()

	for {
		var periodic bool
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			periodic = true
		case <-d.shared.Wake():
		}
		d.pass(periodic)
	}
}

// pass decides each instrument at most once, regardless of how many events
// arrived since the last pass.
func (d *Driver) pass(periodic bool) {
	for _, ts := range d.shared.Snapshot() {
		dirty := ts.TakeDirty()
		if !periodic && !dirty {
			continue
		}

		var cmd *model.ExecCommand
		nowUnix := time.Now().Unix()
		now := time.Now()
		ts.WithWrite(func(m *market.Market) {
			cmd = d.decider.Decide(ts.Ticker, m, nowUnix, now)
		})
		metrics.DecisionsTotal.WithLabelValues(ts.Ticker).Inc()

		if cmd == nil {
			continue
		}
		select {
		case d.out <- *cmd:
		default:
			d.logger.Warn("exec queue full, dropping command", "ticker", ts.Ticker)
			metrics.CommandsDropped.Inc()
		}
	}
}
