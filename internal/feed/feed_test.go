package feed

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/kalshi-hedger/internal/config"
	"github.com/rickgao/kalshi-hedger/internal/exec"
	"github.com/rickgao/kalshi-hedger/internal/market"
	"github.com/rickgao/kalshi-hedger/internal/model"
)

const testTicker = "KXBTC15M-TEST"

type captureSink struct {
	fills []model.Fill
}

func (c *captureSink) RecordFill(f model.Fill) { c.fills = append(c.fills, f) }

func testSignalCfg() config.SignalConfig {
	return config.SignalConfig{
		TauBook:              config.DefaultTauBook,
		TauTrade:             config.DefaultTauTrade,
		TauDelta:             config.DefaultTauDelta,
		TauScore:             config.DefaultTauScore,
		RateWindow:           config.DefaultRateWindow,
		WeightBook:           config.DefaultWeightBook,
		WeightTrade:          config.DefaultWeightTrade,
		WeightDelta:          config.DefaultWeightDelta,
		TradeFullWeightCount: config.DefaultTradeFullWeightCount,
		DeltaFullWeightCount: config.DefaultDeltaFullWeightCount,
		ReferenceDepth:       config.DefaultReferenceDepth,
		DepthNormMax:         config.DefaultDepthNormMax,
		TopLevels:            config.DefaultTopLevels,
	}
}

func newFeedFixture(t *testing.T, paper bool, sink FillSink) (*Feed, *market.Shared) {
	t.Helper()
	shared := market.NewShared([]string{testTicker})

	var sim *exec.Paper
	if paper {
		sim = exec.NewPaper(shared, true, nil)
	}

	fcfg := config.FeedConfig{
		ReconnectBaseDelay: 100 * time.Millisecond,
		ReconnectMaxDelay:  time.Second,
		PingInterval:       10 * time.Second,
		ReadTimeout:        30 * time.Second,
	}
	f := New(fcfg, testSignalCfg(), 25*time.Millisecond, "ws://unused", nil, shared, sim, sink, nil)
	return f, shared
}

func TestIngestSnapshotResetsBook(t *testing.T) {
	f, shared := newFeedFixture(t, false, nil)

	f.ingestSnapshot(10, snapshotMsg{
		MarketTicker: testTicker,
		Yes:          [][]int64{{40, 5}, {39, 8}},
		No:           [][]int64{{55, 3}},
	}, time.Now())

	ts, _ := shared.Get(testTicker)
	ts.WithRead(func(m *market.Market) {
		bid, ok := m.Book.BestBid(model.Yes)
		require.True(t, ok)
		assert.Equal(t, 40, bid)

		ask, ok := m.Book.ImpliedAsk(model.Yes)
		require.True(t, ok)
		assert.Equal(t, 45, ask)

		assert.Equal(t, int64(10), m.Book.LastSeq())
	})
	assert.True(t, ts.TakeDirty())
}

func TestIngestDeltaSequential(t *testing.T) {
	f, shared := newFeedFixture(t, false, nil)

	f.ingestSnapshot(10, snapshotMsg{
		MarketTicker: testTicker,
		Yes:          [][]int64{{40, 5}},
		No:           [][]int64{{55, 3}},
	}, time.Now())

	ok := f.ingestDelta(11, deltaMsg{
		MarketTicker: testTicker, Price: 41, Delta: 2, Side: "yes",
	}, time.Now())
	require.True(t, ok)

	ts, _ := shared.Get(testTicker)
	ts.WithRead(func(m *market.Market) {
		bid, _ := m.Book.BestBid(model.Yes)
		assert.Equal(t, 41, bid)
	})
}

func TestIngestDeltaGapInvalidatesBook(t *testing.T) {
	f, shared := newFeedFixture(t, false, nil)

	f.ingestSnapshot(10, snapshotMsg{
		MarketTicker: testTicker,
		Yes:          [][]int64{{40, 5}},
		No:           [][]int64{{55, 3}},
	}, time.Now())

	// seq 13 skips 11 and 12
	ok := f.ingestDelta(13, deltaMsg{
		MarketTicker: testTicker, Price: 41, Delta: 2, Side: "yes",
	}, time.Now())
	assert.False(t, ok)

	ts, _ := shared.Get(testTicker)
	ts.WithRead(func(m *market.Market) {
		assert.False(t, m.Book.Initialized())
		// the gapped delta never lands, even after resync
		assert.Equal(t, int64(0), m.Book.QtyAt(model.Yes, 41))
	})
}

func TestIngestDeltaBeforeSnapshotAccepted(t *testing.T) {
	f, shared := newFeedFixture(t, false, nil)

	ok := f.ingestDelta(7, deltaMsg{
		MarketTicker: testTicker, Price: 30, Delta: 4, Side: "no",
	}, time.Now())
	require.True(t, ok)

	ts, _ := shared.Get(testTicker)
	ts.WithRead(func(m *market.Market) {
		assert.Equal(t, int64(4), m.Book.QtyAt(model.No, 30))
		assert.Equal(t, int64(7), m.Book.LastSeq())
	})
}

func TestIngestTradeFeedsFlowAndPaper(t *testing.T) {
	f, shared := newFeedFixture(t, true, nil)

	f.ingestSnapshot(1, snapshotMsg{
		MarketTicker: testTicker,
		Yes:          [][]int64{{40, 5}},
		No:           [][]int64{{55, 3}},
	}, time.Now())

	f.ingestTrade(tradeMsg{
		MarketTicker: testTicker,
		YesPrice:     45,
		NoPrice:      55,
		Count:        3,
		TakerSide:    "yes",
	}, time.Now())

	ts, _ := shared.Get(testTicker)
	ts.WithRead(func(m *market.Market) {
		assert.Equal(t, 1, m.Flow.TradeCountRecent(time.Now(), f.sig.RateWindow))
	})
}

func TestIngestFillAppliesPosition(t *testing.T) {
	sink := &captureSink{}
	f, shared := newFeedFixture(t, false, sink)

	f.ingestFill(fillMsg{
		OrderID:      "ord-1",
		MarketTicker: testTicker,
		Side:         "yes",
		YesPrice:     42,
		Count:        2,
	}, time.Now())

	ts, _ := shared.Get(testTicker)
	ts.WithRead(func(m *market.Market) {
		assert.Equal(t, int64(2), m.Pos.Qty(model.Yes))
		avg, ok := m.Pos.AvgCC(model.Yes)
		require.True(t, ok)
		assert.Equal(t, int64(4200), avg)
	})

	require.Len(t, sink.fills, 1)
	assert.Equal(t, "ord-1", sink.fills[0].OrderID)
	assert.Equal(t, 42, sink.fills[0].Price)
}

func TestIngestFillNoSidePriceIsComplement(t *testing.T) {
	f, shared := newFeedFixture(t, false, nil)

	// the wire reports yes_price even for a no-side fill
	f.ingestFill(fillMsg{
		OrderID:      "ord-2",
		MarketTicker: testTicker,
		Side:         "no",
		YesPrice:     42,
		Count:        1,
	}, time.Now())

	ts, _ := shared.Get(testTicker)
	ts.WithRead(func(m *market.Market) {
		avg, ok := m.Pos.AvgCC(model.No)
		require.True(t, ok)
		assert.Equal(t, int64(5800), avg)
	})
}

func TestIngestFillClearsHintWhenComplete(t *testing.T) {
	f, shared := newFeedFixture(t, false, nil)
	ts, _ := shared.Get(testTicker)

	var rec market.OrderRec
	ts.WithWrite(func(m *market.Market) {
		rec = market.OrderRec{
			Ticker: testTicker, Side: model.Yes, Price: 42, Qty: 2,
			TIF: model.GTC, PostOnly: true,
			ClientOrderID: uuid.New(), CreatedAt: time.Now(),
		}
		m.Orders.InsertPending(rec)
		m.Orders.LinkOrderID(rec.ClientOrderID, "ord-3")
		m.SetRestingHint(model.Yes, &market.RestingHint{
			Side: model.Yes, Price: 42, Qty: 2,
			ClientOrderID: rec.ClientOrderID, OrderID: "ord-3",
			CreatedAt: time.Now(),
		})
	})

	f.ingestFill(fillMsg{
		OrderID:      "ord-3",
		MarketTicker: testTicker,
		Side:         "yes",
		YesPrice:     42,
		Count:        2,
	}, time.Now())

	ts.WithRead(func(m *market.Market) {
		got, ok := m.Orders.Get(rec.ClientOrderID)
		require.True(t, ok)
		assert.Equal(t, market.Filled, got.Status)
		assert.Nil(t, m.RestingHint(model.Yes))
	})
}

func TestDispatchRoutesFrames(t *testing.T) {
	f, shared := newFeedFixture(t, false, nil)
	sids := make(map[string]int64)

	frame := []byte(`{"type":"subscribed","id":1,"msg":{"sid":7,"channel":"orderbook_delta"}}`)
	require.True(t, f.dispatch(timestampedMessage{Data: frame, ReceivedAt: time.Now()}, sids))
	assert.Equal(t, int64(7), sids[channelOrderbook])

	snap := []byte(`{"type":"orderbook_snapshot","seq":5,"msg":{"market_ticker":"` + testTicker + `","yes":[[40,5]],"no":[[55,3]]}}`)
	require.True(t, f.dispatch(timestampedMessage{Data: snap, ReceivedAt: time.Now()}, sids))

	ts, _ := shared.Get(testTicker)
	ts.WithRead(func(m *market.Market) {
		assert.True(t, m.Book.Initialized())
	})

	// gap tears the session down
	gap := []byte(`{"type":"orderbook_delta","seq":9,"msg":{"market_ticker":"` + testTicker + `","price":41,"delta":2,"side":"yes"}}`)
	assert.False(t, f.dispatch(timestampedMessage{Data: gap, ReceivedAt: time.Now()}, sids))

	// junk is tolerated
	assert.True(t, f.dispatch(timestampedMessage{Data: []byte(`not json`), ReceivedAt: time.Now()}, sids))
}

func TestApplyUpdateLocal(t *testing.T) {
	markets := map[string]struct{}{"A": {}, "B": {}}
	applyUpdateLocal(markets, MarketUpdate{Add: []string{"C"}, Remove: []string{"A"}})

	assert.Contains(t, markets, "B")
	assert.Contains(t, markets, "C")
	assert.NotContains(t, markets, "A")
}
