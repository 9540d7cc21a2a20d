// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - decision ticks and emitted commands per instrument
//   - order placements, cancels, rejections, and fills
//   - book desyncs and feed reconnects
//   - pair cost and inventory gauges
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "hedger_decisions_total", Help: "Decision-engine invocations"},
		[]string{"ticker"},
	)
	CommandsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "hedger_commands_dropped_total", Help: "Commands dropped on a full exec queue"},
	)
	OrdersPlaced = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "hedger_orders_placed_total", Help: "Orders submitted to execution"},
		[]string{"ticker", "side", "tif"},
	)
	OrdersRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "hedger_orders_rejected_total", Help: "Orders rejected at execution"},
		[]string{"ticker"},
	)
	OrdersCanceled = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "hedger_orders_canceled_total", Help: "Cancels acknowledged"},
		[]string{"ticker"},
	)
	FillsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "hedger_fills_total", Help: "Fill events applied to positions"},
		[]string{"ticker", "side"},
	)
	BookDesyncs = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "hedger_book_desyncs_total", Help: "Sequence gaps forcing a book resync"},
		[]string{"ticker"},
	)
	FeedReconnects = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "hedger_feed_reconnects_total", Help: "WebSocket feed reconnects"},
	)
	PairCostCents = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "hedger_pair_cost_cents", Help: "Current pair cost in cents, when defined"},
		[]string{"ticker"},
	)
	PositionQty = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "hedger_position_qty", Help: "Held contracts per side"},
		[]string{"ticker", "side"},
	)
)

func init() {
	prometheus.MustRegister(
		DecisionsTotal, CommandsDropped,
		OrdersPlaced, OrdersRejected, OrdersCanceled, FillsTotal,
		BookDesyncs, FeedReconnects,
		PairCostCents, PositionQty,
	)
}

// Serve exposes the metrics handler plus a trivial health endpoint.
func Serve(port int, path string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
