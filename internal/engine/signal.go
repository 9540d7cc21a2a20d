package engine

import (
	"math"
	"time"

	"github.com/rickgao/kalshi-hedger/internal/config"
	"github.com/rickgao/kalshi-hedger/internal/market"
	"github.com/rickgao/kalshi-hedger/internal/model"
)

// Per-event magnitude scales: contracts per full-strength sample before
// depth normalization.
const (
	tradeSizeRef = 10.0
	deltaSizeRef = 25.0
)

// FlowTaus converts signal config into the per-feature time constants used
// by market.FlowState. tick seeds the first-sample gap.
func FlowTaus(sig config.SignalConfig, tick time.Duration) market.FlowTaus {
	return market.FlowTaus{
		Book:       sig.TauBook,
		Trade:      sig.TauTrade,
		Delta:      sig.TauDelta,
		Score:      sig.TauScore,
		FallbackDt: tick,
		RateWindow: sig.RateWindow,
	}
}

// depthNorm scales flow magnitudes by how thin the top of book is: the same
// absolute flow means more in a thin book. Returns 1 when disabled.
func depthNorm(sig config.SignalConfig, b *market.Book) float64 {
	if sig.ReferenceDepth <= 0 {
		return 1
	}
	depth := float64(b.TopOfBookDepth(model.Yes) + b.TopOfBookDepth(model.No))
	if depth <= 0 {
		return sig.DepthNormMax
	}
	return math.Min(sig.ReferenceDepth/depth, sig.DepthNormMax)
}

// RawBookImbalance measures where resting interest leans, in [-1, 1].
// Positive means more yes-bid depth near the top.
func RawBookImbalance(sig config.SignalConfig, b *market.Book) float64 {
	y := b.WeightedTopDepth(model.Yes, sig.TopLevels)
	n := b.WeightedTopDepth(model.No, sig.TopLevels)
	denom := math.Max(y+n, 1)
	return clamp((y-n)/denom, -1, 1)
}

// TradeFlowSample converts one trade print into a signed pressure sample.
// A yes taker is yes-ward pressure.
func TradeFlowSample(sig config.SignalConfig, b *market.Book, takerSide model.Side, count int64) float64 {
	mag := math.Min(float64(max(count, 0))*depthNorm(sig, b)/tradeSizeRef, 1)
	if takerSide == model.No {
		return -mag
	}
	return mag
}

// DeltaFlowSample converts one book delta into a signed pressure sample.
// Yes bids being added (or no bids pulled) is yes-ward pressure.
func DeltaFlowSample(sig config.SignalConfig, b *market.Book, side model.Side, delta int64) float64 {
	if delta == 0 {
		return 0
	}
	abs := delta
	if abs < 0 {
		abs = -abs
	}
	mag := math.Min(float64(abs)*depthNorm(sig, b)/deltaSizeRef, 1)

	yesWard := (side == model.Yes) == (delta > 0)
	if !yesWard {
		return -mag
	}
	return mag
}

// computeSignal fuses the three feature EMAs into one smoothed directional
// score in [-1, 1] with a confidence in [0, 1].
//
// Trade and delta weights are scaled down when recent event counts are low,
// so a single print in a quiet book cannot dominate. Confidence combines
// activity (fraction of max fusion weight in play), sign consensus of recent
// events with the score's direction, and score strength.
func computeSignal(sig config.SignalConfig, tick time.Duration, m *market.Market, now time.Time) (score, conf float64) {
	f := m.Flow

	tradeN := f.TradeCountRecent(now, sig.RateWindow)
	deltaN := f.DeltaCountRecent(now, sig.RateWindow)

	tradeFactor := clamp(float64(tradeN)/float64(sig.TradeFullWeightCount), 0, 1)
	deltaFactor := clamp(float64(deltaN)/float64(sig.DeltaFullWeightCount), 0, 1)

	wBook := sig.WeightBook
	wTrade := sig.WeightTrade * tradeFactor
	wDelta := sig.WeightDelta * deltaFactor

	wSum := math.Max(wBook+wTrade+wDelta, 1e-9)

	raw := (wBook*f.BookImbEMA.Value +
		wTrade*f.TradeFlowEMA.Value +
		wDelta*f.DeltaFlowEMA.Value) / wSum

	f.OnScore(FlowTaus(sig, tick), raw, now)
	score = clamp(f.ScoreEMA.Value, -1, 1)

	activity := clamp(wSum/(sig.WeightBook+sig.WeightTrade+sig.WeightDelta), 0, 1)

	// Consensus of recent event signs, weighted by how active each stream
	// is, then aligned with the score's direction.
	var consensus float64
	if cf := tradeFactor + deltaFactor; cf > 0 {
		consensus = (tradeFactor*f.TradeConsensus(now, sig.RateWindow) +
			deltaFactor*f.DeltaConsensus(now, sig.RateWindow)) / cf
	}
	if score < 0 {
		consensus = -consensus
	}

	conf = clamp(activity*(0.5+0.5*consensus)*math.Abs(score), 0, 1)
	return score, conf
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
