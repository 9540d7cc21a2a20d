package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultRestURL         = "https://api.elections.kalshi.com/trade-api/v2"
	DefaultWSURL           = "wss://api.elections.kalshi.com"
	DefaultAPITimeout      = 30 * time.Second
	DefaultMaxRetries      = 3
	DefaultOrdersPerSecond = 10.0
	DefaultOrdersBurst     = 5

	DefaultRefreshInterval = 5 * time.Second
	DefaultWindowLength    = 15 * time.Minute

	DefaultTickInterval = 25 * time.Millisecond

	DefaultAccumulateLen = 150 * time.Second
	DefaultBalanceLen    = 500 * time.Second

	DefaultMakerImproveTick        = 1
	DefaultMakerImproveTickBalance = 99
	DefaultMaxBuyPriceCents        = 98

	DefaultSafePairCC      = 9850
	DefaultTargetPairCC    = 9825
	DefaultBootstrapPairCC = 10100
	DefaultBalancePairCC   = 9900

	DefaultBootstrapMaxOneSideQty      = 5
	DefaultBootstrapRescueMinImproveCC = 500

	DefaultEarlyImbalanceCap = 0.20
	DefaultLateImbalanceCap  = 0.05

	DefaultMaxOrderQty           = 25
	DefaultCatchupAggressiveness = 0.35
	DefaultCatchupBalanceBoost   = 1.0

	DefaultCancelStaleAfter  = 15 * time.Second
	DefaultMinRestingLife    = 1 * time.Second
	DefaultCancelRetryAfter  = 800 * time.Millisecond
	DefaultCancelDriftCents  = 3
	DefaultMakerMaxEdgeCents = 8

	DefaultTakerCooldown     = 500 * time.Millisecond
	DefaultMinTakerImproveCC = 20
	DefaultBigTakerImproveCC = 100
	DefaultTakerDesperateLen = 30 * time.Second
	DefaultTightSpreadCents  = 2

	DefaultMomentumScoreThreshold = 0.45
	DefaultMinConfForMomentum     = 0.55
	DefaultMomentumBaseExtra      = 6
	DefaultMomentumMinExtra       = 1

	DefaultTauBook    = 2 * time.Second
	DefaultTauTrade   = 4 * time.Second
	DefaultTauDelta   = 3 * time.Second
	DefaultTauScore   = 1500 * time.Millisecond
	DefaultRateWindow = 10 * time.Second

	DefaultWeightBook  = 0.40
	DefaultWeightTrade = 0.40
	DefaultWeightDelta = 0.20

	DefaultTradeFullWeightCount = 6
	DefaultDeltaFullWeightCount = 20

	DefaultReferenceDepth = 200.0
	DefaultDepthNormMax   = 3.0
	DefaultTopLevels      = 5

	DefaultReconnectBaseDelay = 1 * time.Second
	DefaultReconnectMaxDelay  = 60 * time.Second
	DefaultPingInterval       = 15 * time.Second
	DefaultReadTimeout        = 30 * time.Second

	DefaultDBPort        = 5432
	DefaultDBSSLMode     = "prefer"
	DefaultMaxConns      = 10
	DefaultMinConns      = 2
	DefaultBatchSize     = 500
	DefaultFlushInterval = 1 * time.Second
	DefaultBufferSize    = 10000

	DefaultMetricsPort = 9090
	DefaultMetricsPath = "/metrics"
)

func (c *HedgerConfig) applyDefaults() {
	// API defaults
	if c.API.RestURL == "" {
		c.API.RestURL = DefaultRestURL
	}
	if c.API.WSURL == "" {
		c.API.WSURL = DefaultWSURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}
	if c.API.OrdersPerSecond == 0 {
		c.API.OrdersPerSecond = DefaultOrdersPerSecond
	}
	if c.API.OrdersBurst == 0 {
		c.API.OrdersBurst = DefaultOrdersBurst
	}

	// Markets defaults
	if c.Markets.RefreshInterval == 0 {
		c.Markets.RefreshInterval = DefaultRefreshInterval
	}
	if c.Markets.WindowLength == 0 {
		c.Markets.WindowLength = DefaultWindowLength
	}

	// Engine defaults
	if c.Engine.Mode == "" {
		c.Engine.Mode = ModePaper
	}
	if c.Engine.TickInterval == 0 {
		c.Engine.TickInterval = DefaultTickInterval
	}
	if c.Engine.PaperRejectPostOnlyCross == nil {
		v := true
		c.Engine.PaperRejectPostOnlyCross = &v
	}

	applyStrategyDefaults(&c.Strategy)
	applySignalDefaults(&c.Signal)

	// Feed defaults
	if c.Feed.ReconnectBaseDelay == 0 {
		c.Feed.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Feed.ReconnectMaxDelay == 0 {
		c.Feed.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Feed.PingInterval == 0 {
		c.Feed.PingInterval = DefaultPingInterval
	}
	if c.Feed.ReadTimeout == 0 {
		c.Feed.ReadTimeout = DefaultReadTimeout
	}

	// Journal defaults
	applyDBDefaults(&c.Journal.Postgres)
	if c.Journal.BatchSize == 0 {
		c.Journal.BatchSize = DefaultBatchSize
	}
	if c.Journal.FlushInterval == 0 {
		c.Journal.FlushInterval = DefaultFlushInterval
	}
	if c.Journal.BufferSize == 0 {
		c.Journal.BufferSize = DefaultBufferSize
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}

func applyStrategyDefaults(s *StrategyConfig) {
	if s.AccumulateLen == 0 {
		s.AccumulateLen = DefaultAccumulateLen
	}
	if s.BalanceLen == 0 {
		s.BalanceLen = DefaultBalanceLen
	}
	if s.MakerImproveTick == 0 {
		s.MakerImproveTick = DefaultMakerImproveTick
	}
	if s.MakerImproveTickBalance == 0 {
		s.MakerImproveTickBalance = DefaultMakerImproveTickBalance
	}
	if s.MaxBuyPriceCents == 0 {
		s.MaxBuyPriceCents = DefaultMaxBuyPriceCents
	}
	if s.SafePairCC == 0 {
		s.SafePairCC = DefaultSafePairCC
	}
	if s.TargetPairCC == 0 {
		s.TargetPairCC = DefaultTargetPairCC
	}
	if s.BootstrapPairCC == 0 {
		s.BootstrapPairCC = DefaultBootstrapPairCC
	}
	if s.BalancePairCC == 0 {
		s.BalancePairCC = DefaultBalancePairCC
	}
	if s.BootstrapMaxOneSideQty == 0 {
		s.BootstrapMaxOneSideQty = DefaultBootstrapMaxOneSideQty
	}
	if s.BootstrapRescueMinImproveCC == 0 {
		s.BootstrapRescueMinImproveCC = DefaultBootstrapRescueMinImproveCC
	}
	if s.EarlyImbalanceCap == 0 {
		s.EarlyImbalanceCap = DefaultEarlyImbalanceCap
	}
	if s.LateImbalanceCap == 0 {
		s.LateImbalanceCap = DefaultLateImbalanceCap
	}
	if s.MaxOrderQty == 0 {
		s.MaxOrderQty = DefaultMaxOrderQty
	}
	if s.CatchupAggressiveness == 0 {
		s.CatchupAggressiveness = DefaultCatchupAggressiveness
	}
	if s.CatchupBalanceBoost == 0 {
		s.CatchupBalanceBoost = DefaultCatchupBalanceBoost
	}
	if s.CancelStaleAfter == 0 {
		s.CancelStaleAfter = DefaultCancelStaleAfter
	}
	if s.MinRestingLife == 0 {
		s.MinRestingLife = DefaultMinRestingLife
	}
	if s.CancelRetryAfter == 0 {
		s.CancelRetryAfter = DefaultCancelRetryAfter
	}
	if s.CancelDriftCents == 0 {
		s.CancelDriftCents = DefaultCancelDriftCents
	}
	if s.MakerMaxEdgeCents == 0 {
		s.MakerMaxEdgeCents = DefaultMakerMaxEdgeCents
	}
	if s.TakerCooldown == 0 {
		s.TakerCooldown = DefaultTakerCooldown
	}
	if s.MinTakerImproveCC == 0 {
		s.MinTakerImproveCC = DefaultMinTakerImproveCC
	}
	if s.BigTakerImproveCC == 0 {
		s.BigTakerImproveCC = DefaultBigTakerImproveCC
	}
	if s.TakerDesperateLen == 0 {
		s.TakerDesperateLen = DefaultTakerDesperateLen
	}
	if s.TightSpreadCents == 0 {
		s.TightSpreadCents = DefaultTightSpreadCents
	}
	if s.MomentumScoreThreshold == 0 {
		s.MomentumScoreThreshold = DefaultMomentumScoreThreshold
	}
	if s.MinConfForMomentum == 0 {
		s.MinConfForMomentum = DefaultMinConfForMomentum
	}
	if s.MomentumBaseExtra == 0 {
		s.MomentumBaseExtra = DefaultMomentumBaseExtra
	}
	if s.MomentumMinExtra == 0 {
		s.MomentumMinExtra = DefaultMomentumMinExtra
	}
}

func applySignalDefaults(s *SignalConfig) {
	if s.TauBook == 0 {
		s.TauBook = DefaultTauBook
	}
	if s.TauTrade == 0 {
		s.TauTrade = DefaultTauTrade
	}
	if s.TauDelta == 0 {
		s.TauDelta = DefaultTauDelta
	}
	if s.TauScore == 0 {
		s.TauScore = DefaultTauScore
	}
	if s.RateWindow == 0 {
		s.RateWindow = DefaultRateWindow
	}
	if s.WeightBook == 0 {
		s.WeightBook = DefaultWeightBook
	}
	if s.WeightTrade == 0 {
		s.WeightTrade = DefaultWeightTrade
	}
	if s.WeightDelta == 0 {
		s.WeightDelta = DefaultWeightDelta
	}
	if s.TradeFullWeightCount == 0 {
		s.TradeFullWeightCount = DefaultTradeFullWeightCount
	}
	if s.DeltaFullWeightCount == 0 {
		s.DeltaFullWeightCount = DefaultDeltaFullWeightCount
	}
	if s.ReferenceDepth == 0 {
		s.ReferenceDepth = DefaultReferenceDepth
	}
	if s.DepthNormMax == 0 {
		s.DepthNormMax = DefaultDepthNormMax
	}
	if s.TopLevels == 0 {
		s.TopLevels = DefaultTopLevels
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Host == "" {
		return
	}
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
