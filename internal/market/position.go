package market

import "github.com/rickgao/kalshi-hedger/internal/model"

// Position tracks contract quantity and cumulative cost per side.
// Costs are cent-cents (model.CentCentsPerCent per cent) so that average
// cost accumulates without floating-point drift. Quantities only grow; the
// engine buys, never sells.
type Position struct {
	YesQty    int64
	NoQty     int64
	YesCostCC int64
	NoCostCC  int64
}

// AvgCC returns the average cost per contract for a side in cent-cents.
// Undefined (ok=false) until the side holds a positive quantity.
func (p Position) AvgCC(side model.Side) (int64, bool) {
	qty, cost := p.YesQty, p.YesCostCC
	if side == model.No {
		qty, cost = p.NoQty, p.NoCostCC
	}
	if qty <= 0 {
		return 0, false
	}
	return cost / qty, true
}

// PairCostCC is avg yes + avg no in cent-cents. Below 10000 means one hedged
// pair costs under $1 and settles at a guaranteed profit. Undefined until
// both sides are held: callers must treat absence as the bootstrap regime,
// not as zero.
func (p Position) PairCostCC() (int64, bool) {
	y, ok := p.AvgCC(model.Yes)
	if !ok {
		return 0, false
	}
	n, ok := p.AvgCC(model.No)
	if !ok {
		return 0, false
	}
	return y + n, true
}

// Qty returns the held quantity for a side.
func (p Position) Qty(side model.Side) int64 {
	if side == model.Yes {
		return p.YesQty
	}
	return p.NoQty
}

// ImbalanceRatio is |yes-no| / (yes+no), 0 when flat.
func (p Position) ImbalanceRatio() float64 {
	diff := p.YesQty - p.NoQty
	if diff < 0 {
		diff = -diff
	}
	total := max(p.YesQty+p.NoQty, 1)
	return float64(diff) / float64(total)
}

// Balanced reports equal holdings on both sides.
func (p Position) Balanced() bool {
	return p.YesQty == p.NoQty
}

// ApplyFill adds a buy of qty contracts at price cents to one side.
// Cost and quantity move together.
func (p *Position) ApplyFill(side model.Side, price int, qty int64) {
	addCC := int64(price) * model.CentCentsPerCent * qty
	if side == model.Yes {
		p.YesQty += qty
		p.YesCostCC += addCC
	} else {
		p.NoQty += qty
		p.NoCostCC += addCC
	}
}

// SimulateBuy returns the position after a hypothetical fill without
// mutating the receiver.
func (p Position) SimulateBuy(side model.Side, price int, qty int64) Position {
	sim := p
	sim.ApplyFill(side, price, qty)
	return sim
}
