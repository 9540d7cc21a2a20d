package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *HedgerConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.Engine.Mode != ModePaper && c.Engine.Mode != ModeLive {
		return fmt.Errorf("engine.mode must be %q or %q, got %q", ModePaper, ModeLive, c.Engine.Mode)
	}
	if c.Engine.Mode == ModeLive {
		if c.API.APIKey == "" {
			return errors.New("api.api_key is required in live mode")
		}
		if c.API.PrivateKeyPath == "" {
			return errors.New("api.private_key_path is required in live mode")
		}
	}
	if c.Engine.TickInterval <= 0 {
		return errors.New("engine.tick_interval must be positive")
	}

	if len(c.Markets.SeriesTickers) == 0 {
		return errors.New("markets.series_tickers must list at least one series")
	}
	if c.Markets.WindowLength <= 0 {
		return errors.New("markets.window_length must be positive")
	}

	if err := c.Strategy.validate(); err != nil {
		return err
	}
	if err := c.Signal.validate(); err != nil {
		return err
	}

	if c.Journal.Enabled() {
		if err := c.Journal.Postgres.validate("journal.postgres"); err != nil {
			return err
		}
		if c.Journal.BatchSize < 1 {
			return errors.New("journal.batch_size must be >= 1")
		}
		if c.Journal.BufferSize < 1 {
			return errors.New("journal.buffer_size must be >= 1")
		}
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	return nil
}

func (s *StrategyConfig) validate() error {
	if s.MaxBuyPriceCents < 1 || s.MaxBuyPriceCents > 99 {
		return fmt.Errorf("strategy.max_buy_price_cents must be between 1 and 99, got %d", s.MaxBuyPriceCents)
	}
	if s.TargetPairCC > s.SafePairCC {
		return fmt.Errorf("strategy.target_pair_cc (%d) cannot exceed safe_pair_cc (%d)", s.TargetPairCC, s.SafePairCC)
	}
	if s.EarlyImbalanceCap < 0 || s.EarlyImbalanceCap > 1 {
		return errors.New("strategy.early_imbalance_cap must be in [0, 1]")
	}
	if s.LateImbalanceCap < 0 || s.LateImbalanceCap > 1 {
		return errors.New("strategy.late_imbalance_cap must be in [0, 1]")
	}
	if s.MaxOrderQty < 1 {
		return errors.New("strategy.max_order_qty must be >= 1")
	}
	if s.CatchupAggressiveness < 0 || s.CatchupAggressiveness > 1 {
		return errors.New("strategy.catchup_aggressiveness must be in [0, 1]")
	}
	if s.MomentumScoreThreshold < 0 || s.MomentumScoreThreshold > 1 {
		return errors.New("strategy.momentum_score_threshold must be in [0, 1]")
	}
	if s.MinConfForMomentum < 0 || s.MinConfForMomentum > 1 {
		return errors.New("strategy.min_conf_for_momentum must be in [0, 1]")
	}
	if s.MomentumMinExtra > s.MomentumBaseExtra {
		return fmt.Errorf("strategy.momentum_min_extra (%d) cannot exceed momentum_base_extra (%d)", s.MomentumMinExtra, s.MomentumBaseExtra)
	}
	return nil
}

func (s *SignalConfig) validate() error {
	if s.TauBook <= 0 || s.TauTrade <= 0 || s.TauDelta <= 0 || s.TauScore <= 0 {
		return errors.New("signal taus must all be positive")
	}
	if s.RateWindow <= 0 {
		return errors.New("signal.rate_window must be positive")
	}
	if s.WeightBook < 0 || s.WeightTrade < 0 || s.WeightDelta < 0 {
		return errors.New("signal weights must be non-negative")
	}
	if s.WeightBook+s.WeightTrade+s.WeightDelta <= 0 {
		return errors.New("signal weights must not all be zero")
	}
	if s.TradeFullWeightCount < 1 || s.DeltaFullWeightCount < 1 {
		return errors.New("signal full-weight counts must be >= 1")
	}
	if s.TopLevels < 1 {
		return errors.New("signal.top_levels must be >= 1")
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
