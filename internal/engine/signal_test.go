package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rickgao/kalshi-hedger/internal/market"
	"github.com/rickgao/kalshi-hedger/internal/model"
)

func TestRawBookImbalanceLeansYes(t *testing.T) {
	sig := testSignalCfg()
	b := market.NewBook()
	b.Reset(1,
		[]model.PriceLevel{{Price: 40, Qty: 100}},
		[]model.PriceLevel{{Price: 55, Qty: 10}},
	)

	imb := RawBookImbalance(sig, b)
	assert.Greater(t, imb, 0.0)
	assert.LessOrEqual(t, imb, 1.0)

	// Mirror the depth and the sign flips.
	b.Reset(2,
		[]model.PriceLevel{{Price: 40, Qty: 10}},
		[]model.PriceLevel{{Price: 55, Qty: 100}},
	)
	assert.Less(t, RawBookImbalance(sig, b), 0.0)
}

func TestTradeFlowSampleSign(t *testing.T) {
	sig := testSignalCfg()
	b := market.NewBook()
	b.Reset(1,
		[]model.PriceLevel{{Price: 40, Qty: 50}},
		[]model.PriceLevel{{Price: 55, Qty: 50}},
	)

	yes := TradeFlowSample(sig, b, model.Yes, 5)
	no := TradeFlowSample(sig, b, model.No, 5)
	assert.Greater(t, yes, 0.0)
	assert.Less(t, no, 0.0)
	assert.InDelta(t, yes, -no, 1e-12)
	assert.LessOrEqual(t, yes, 1.0)
}

func TestDeltaFlowSampleSign(t *testing.T) {
	sig := testSignalCfg()
	b := market.NewBook()
	b.Reset(1,
		[]model.PriceLevel{{Price: 40, Qty: 50}},
		[]model.PriceLevel{{Price: 55, Qty: 50}},
	)

	// Yes bids added and no bids pulled both push yes-ward.
	assert.Greater(t, DeltaFlowSample(sig, b, model.Yes, 10), 0.0)
	assert.Greater(t, DeltaFlowSample(sig, b, model.No, -10), 0.0)
	assert.Less(t, DeltaFlowSample(sig, b, model.Yes, -10), 0.0)
	assert.Less(t, DeltaFlowSample(sig, b, model.No, 10), 0.0)
	assert.Zero(t, DeltaFlowSample(sig, b, model.Yes, 0))
}

func TestDepthNormThinBookAmplifies(t *testing.T) {
	sig := testSignalCfg()

	thin := market.NewBook()
	thin.Reset(1,
		[]model.PriceLevel{{Price: 40, Qty: 2}},
		[]model.PriceLevel{{Price: 55, Qty: 2}},
	)
	thick := market.NewBook()
	thick.Reset(1,
		[]model.PriceLevel{{Price: 40, Qty: 500}},
		[]model.PriceLevel{{Price: 55, Qty: 500}},
	)

	thinSample := TradeFlowSample(sig, thin, model.Yes, 3)
	thickSample := TradeFlowSample(sig, thick, model.Yes, 3)
	assert.Greater(t, thinSample, thickSample,
		"identical flow should weigh more in a thin book")
}

func TestComputeSignalQuietBook(t *testing.T) {
	sig := testSignalCfg()
	m := market.NewMarket()
	now := time.Now()

	score, conf := computeSignal(sig, 25*time.Millisecond, m, now)
	assert.Zero(t, score)
	assert.Zero(t, conf)
}

func TestComputeSignalUnanimousFlow(t *testing.T) {
	sig := testSignalCfg()
	m := market.NewMarket()
	taus := FlowTaus(sig, 25*time.Millisecond)
	base := time.Now()

	// Sustained one-sided pressure on every feature.
	for i := 0; i < 12; i++ {
		at := base.Add(time.Duration(i) * 200 * time.Millisecond)
		m.Flow.OnBookImbalance(taus, 0.9, at)
		m.Flow.OnTradeFlow(taus, 0.9, at)
		m.Flow.OnDeltaFlow(taus, 0.8, at)
	}
	now := base.Add(3 * time.Second)

	var score, conf float64
	// The score EMA needs a few passes to catch up to the raw fusion.
	for i := 0; i < 20; i++ {
		score, conf = computeSignal(sig, 25*time.Millisecond, m, now.Add(time.Duration(i)*250*time.Millisecond))
	}

	assert.Greater(t, score, 0.5)
	assert.Greater(t, conf, 0.3)
	assert.LessOrEqual(t, conf, 1.0)
}

func TestComputeSignalScaledByActivity(t *testing.T) {
	sig := testSignalCfg()
	m := market.NewMarket()
	taus := FlowTaus(sig, 25*time.Millisecond)
	now := time.Now()

	// A single print in an otherwise quiet book must not dominate: weight
	// scaling keeps confidence low.
	m.Flow.OnTradeFlow(taus, 1.0, now)

	_, conf := computeSignal(sig, 25*time.Millisecond, m, now)
	assert.Less(t, conf, 0.5)
}
