package config

import "time"

// HedgerConfig is the root configuration for a hedger instance.
type HedgerConfig struct {
	Instance InstanceConfig `yaml:"instance"`
	API      APIConfig      `yaml:"api"`
	Markets  MarketsConfig  `yaml:"markets"`
	Engine   EngineConfig   `yaml:"engine"`
	Strategy StrategyConfig `yaml:"strategy"`
	Signal   SignalConfig   `yaml:"signal"`
	Feed     FeedConfig     `yaml:"feed"`
	Journal  JournalConfig  `yaml:"journal"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// InstanceConfig identifies this hedger.
type InstanceConfig struct {
	ID string `yaml:"id"`
	AZ string `yaml:"az"`
}

// APIConfig holds Kalshi API settings.
type APIConfig struct {
	RestURL        string        `yaml:"rest_url"`
	WSURL          string        `yaml:"ws_url"`
	APIKey         string        `yaml:"api_key"`          // API key ID (for KALSHI-ACCESS-KEY header)
	PrivateKeyPath string        `yaml:"private_key_path"` // Path to RSA private key PEM file
	Timeout        time.Duration `yaml:"timeout"`
	MaxRetries     int           `yaml:"max_retries"`

	// OrdersPerSecond bounds order submission in live mode.
	OrdersPerSecond float64 `yaml:"orders_per_second"`
	OrdersBurst     int     `yaml:"orders_burst"`
}

// MarketsConfig selects what to trade. One active market per series at a time.
type MarketsConfig struct {
	SeriesTickers []string `yaml:"series_tickers"`

	// RefreshInterval is how often rotation checks for window expiry.
	RefreshInterval time.Duration `yaml:"refresh_interval"`

	// WindowLength is the fallback window length when open/close timestamps
	// are not yet known from the API.
	WindowLength time.Duration `yaml:"window_length"`
}

// EngineConfig holds decision-loop settings.
type EngineConfig struct {
	// Mode is "paper" or "live".
	Mode string `yaml:"mode"`

	// TickInterval is the decision driver period.
	TickInterval time.Duration `yaml:"tick_interval"`

	// PaperRejectPostOnlyCross rejects paper post-only orders that would
	// cross the book at placement time.
	PaperRejectPostOnlyCross *bool `yaml:"paper_reject_post_only_cross"`
}

// Paper reports whether the engine runs against the local fill simulator.
func (e EngineConfig) Paper() bool {
	return e.Mode == ModePaper
}

// StrategyConfig holds the hedging strategy knobs. All *CC values are in
// cent-cents (1/100 of a cent); prices are whole cents.
type StrategyConfig struct {
	AccumulateLen time.Duration `yaml:"accumulate_len"` // early phase, from open
	BalanceLen    time.Duration `yaml:"balance_len"`    // late phase, forces hedging

	MakerImproveTick        int `yaml:"maker_improve_tick"`
	MakerImproveTickBalance int `yaml:"maker_improve_tick_balance"`
	MaxBuyPriceCents        int `yaml:"max_buy_price_cents"`

	SafePairCC   int64 `yaml:"safe_pair_cc"`   // never exceed
	TargetPairCC int64 `yaml:"target_pair_cc"` // goal

	BootstrapPairCC int64 `yaml:"bootstrap_pair_cc"` // cap while establishing the first pair
	BalancePairCC   int64 `yaml:"balance_pair_cc"`   // cap when forcing balance late

	BootstrapMaxOneSideQty      int64 `yaml:"bootstrap_max_one_side_qty"`
	BootstrapRescueMinImproveCC int64 `yaml:"bootstrap_rescue_min_improve_cc"`

	EarlyImbalanceCap float64 `yaml:"early_imbalance_cap"`
	LateImbalanceCap  float64 `yaml:"late_imbalance_cap"`

	MaxOrderQty           int64   `yaml:"max_order_qty"`
	CatchupAggressiveness float64 `yaml:"catchup_aggressiveness"`
	CatchupBalanceBoost   float64 `yaml:"catchup_balance_boost"`

	CancelStaleAfter  time.Duration `yaml:"cancel_stale_after"`
	MinRestingLife    time.Duration `yaml:"min_resting_life"`
	CancelRetryAfter  time.Duration `yaml:"cancel_retry_after"`
	CancelDriftCents  int           `yaml:"cancel_drift_cents"`
	MakerMaxEdgeCents int           `yaml:"maker_max_edge_cents"`

	TakerCooldown     time.Duration `yaml:"taker_cooldown"`
	MinTakerImproveCC int64         `yaml:"min_taker_improve_cc"`
	BigTakerImproveCC int64         `yaml:"big_taker_improve_cc"`
	TakerDesperateLen time.Duration `yaml:"taker_desperate_len"` // tail of Balance where forced IOC is allowed
	TightSpreadCents  int           `yaml:"tight_spread_cents"`

	MomentumScoreThreshold float64 `yaml:"momentum_score_threshold"`
	MinConfForMomentum     float64 `yaml:"min_conf_for_momentum"`
	MomentumBaseExtra      int64   `yaml:"momentum_base_extra"`
	MomentumMinExtra       int64   `yaml:"momentum_min_extra"`
}

// SignalConfig holds the EMA time constants, fusion weights, and
// activity/depth normalization parameters.
type SignalConfig struct {
	TauBook  time.Duration `yaml:"tau_book"`
	TauTrade time.Duration `yaml:"tau_trade"`
	TauDelta time.Duration `yaml:"tau_delta"`
	TauScore time.Duration `yaml:"tau_score"`

	RateWindow time.Duration `yaml:"rate_window"`

	WeightBook  float64 `yaml:"weight_book"`
	WeightTrade float64 `yaml:"weight_trade"`
	WeightDelta float64 `yaml:"weight_delta"`

	// Event counts inside RateWindow at which trade/delta features carry
	// their full fusion weight.
	TradeFullWeightCount int `yaml:"trade_full_weight_count"`
	DeltaFullWeightCount int `yaml:"delta_full_weight_count"`

	// Depth normalization: trade/delta magnitudes are scaled by
	// ReferenceDepth / top-of-book depth, clamped to DepthNormMax.
	// ReferenceDepth <= 0 disables it.
	ReferenceDepth float64 `yaml:"reference_depth"`
	DepthNormMax   float64 `yaml:"depth_norm_max"`

	// TopLevels is the number of bid levels folded into the book
	// imbalance feature.
	TopLevels int `yaml:"top_levels"`
}

// FeedConfig holds WebSocket feed settings.
type FeedConfig struct {
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
	PingInterval       time.Duration `yaml:"ping_interval"`
	ReadTimeout        time.Duration `yaml:"read_timeout"`
}

// JournalConfig holds the optional fill/order journal. When Host is empty
// the journal is disabled and the engine runs memory-only.
type JournalConfig struct {
	Postgres      DBConfig      `yaml:"postgres"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// Enabled reports whether a journal database is configured.
func (j JournalConfig) Enabled() bool {
	return j.Postgres.Host != ""
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// Execution modes.
const (
	ModePaper = "paper"
	ModeLive  = "live"
)
