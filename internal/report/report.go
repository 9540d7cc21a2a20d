// Package report emits position snapshots and the end-of-session summary.
package report

import (
	"io"
	"log/slog"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/rickgao/kalshi-hedger/internal/market"
	"github.com/rickgao/kalshi-hedger/internal/metrics"
	"github.com/rickgao/kalshi-hedger/internal/model"
)

// CCToCents converts cent-cents to fractional cents.
func CCToCents(cc int64) float64 {
	return float64(cc) / float64(model.CentCentsPerCent)
}

// CCToDollars converts cent-cents to dollars.
func CCToDollars(cc int64) float64 {
	return float64(cc) / (float64(model.CentCentsPerCent) * 100.0)
}

// LogPosition writes a position snapshot and refreshes the position gauges.
// Callers hold the market lock.
func LogPosition(logger *slog.Logger, ticker string, pos market.Position) {
	if logger == nil {
		logger = slog.Default()
	}

	attrs := []any{
		"ticker", ticker,
		"yes_qty", pos.Qty(model.Yes),
		"no_qty", pos.Qty(model.No),
	}
	if avg, ok := pos.AvgCC(model.Yes); ok {
		attrs = append(attrs, "yes_avg_cents", CCToCents(avg))
	}
	if avg, ok := pos.AvgCC(model.No); ok {
		attrs = append(attrs, "no_avg_cents", CCToCents(avg))
	}
	if pc, ok := pos.PairCostCC(); ok {
		attrs = append(attrs, "pair_cost_cents", CCToCents(pc), "pair_cost_dollars", CCToDollars(pc))
		metrics.PairCostCents.WithLabelValues(ticker).Set(CCToCents(pc))
	}
	logger.Info("position snapshot", attrs...)

	metrics.PositionQty.WithLabelValues(ticker, model.Yes.String()).Set(float64(pos.Qty(model.Yes)))
	metrics.PositionQty.WithLabelValues(ticker, model.No.String()).Set(float64(pos.Qty(model.No)))
}

// Row is one instrument's final state for the session summary.
type Row struct {
	Ticker string
	Pos    market.Position
}

// WriteSummary renders the per-instrument session summary as a table.
func WriteSummary(w io.Writer, rows []Row) {
	table := tablewriter.NewWriter(w)
	table.Header("Ticker", "Yes Qty", "No Qty", "Yes Avg ¢", "No Avg ¢", "Pair ¢", "Locked P/L $")

	for _, r := range rows {
		yesAvg, noAvg, pair, pnl := "-", "-", "-", "-"
		if avg, ok := r.Pos.AvgCC(model.Yes); ok {
			yesAvg = formatCents(avg)
		}
		if avg, ok := r.Pos.AvgCC(model.No); ok {
			noAvg = formatCents(avg)
		}
		if pc, ok := r.Pos.PairCostCC(); ok {
			pair = formatCents(pc)
			// Each balanced pair settles at 100 cents. Profit counts the
			// guaranteed pairs only.
			pairs := min(r.Pos.Qty(model.Yes), r.Pos.Qty(model.No))
			profitCC := (100*model.CentCentsPerCent - pc) * pairs
			pnl = strconv.FormatFloat(CCToDollars(profitCC), 'f', 2, 64)
		}
		_ = table.Append(
			r.Ticker,
			strconv.FormatInt(r.Pos.Qty(model.Yes), 10),
			strconv.FormatInt(r.Pos.Qty(model.No), 10),
			yesAvg, noAvg, pair, pnl,
		)
	}

	_ = table.Render()
}

func formatCents(cc int64) string {
	return strconv.FormatFloat(CCToCents(cc), 'f', 2, 64)
}
