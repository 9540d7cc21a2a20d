package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	yaml := `
instance:
  id: test-hedger
  az: us-east-1a
api:
  rest_url: https://demo-api.kalshi.co/trade-api/v2
markets:
  series_tickers: [KXBTC15M]
engine:
  mode: paper
  tick_interval: 25ms
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "test-hedger" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "test-hedger")
	}
	if cfg.API.RestURL != "https://demo-api.kalshi.co/trade-api/v2" {
		t.Errorf("API.RestURL = %q, want %q", cfg.API.RestURL, "https://demo-api.kalshi.co/trade-api/v2")
	}
	if len(cfg.Markets.SeriesTickers) != 1 || cfg.Markets.SeriesTickers[0] != "KXBTC15M" {
		t.Errorf("Markets.SeriesTickers = %v, want [KXBTC15M]", cfg.Markets.SeriesTickers)
	}
	if cfg.Engine.TickInterval != 25*time.Millisecond {
		t.Errorf("Engine.TickInterval = %v, want 25ms", cfg.Engine.TickInterval)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_KALSHI_KEY", "key-abc")

	yaml := `
instance:
  id: test-hedger
api:
  api_key: ${TEST_KALSHI_KEY}
markets:
  series_tickers: [KXBTC15M]
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.API.APIKey != "key-abc" {
		t.Errorf("API.APIKey = %q, want %q", cfg.API.APIKey, "key-abc")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
instance:
  id: test-hedger
markets:
  series_tickers: [KXBTC15M]
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Engine.Mode != ModePaper {
		t.Errorf("Engine.Mode = %q, want paper", cfg.Engine.Mode)
	}
	if cfg.Engine.TickInterval != DefaultTickInterval {
		t.Errorf("Engine.TickInterval = %v, want %v", cfg.Engine.TickInterval, DefaultTickInterval)
	}
	if cfg.Strategy.TargetPairCC != DefaultTargetPairCC {
		t.Errorf("Strategy.TargetPairCC = %d, want %d", cfg.Strategy.TargetPairCC, DefaultTargetPairCC)
	}
	if cfg.Strategy.SafePairCC != DefaultSafePairCC {
		t.Errorf("Strategy.SafePairCC = %d, want %d", cfg.Strategy.SafePairCC, DefaultSafePairCC)
	}
	if cfg.Strategy.BootstrapPairCC != DefaultBootstrapPairCC {
		t.Errorf("Strategy.BootstrapPairCC = %d, want %d", cfg.Strategy.BootstrapPairCC, DefaultBootstrapPairCC)
	}
	if cfg.Markets.WindowLength != DefaultWindowLength {
		t.Errorf("Markets.WindowLength = %v, want %v", cfg.Markets.WindowLength, DefaultWindowLength)
	}
	if cfg.Signal.WeightBook == 0 || cfg.Signal.TauBook == 0 {
		t.Error("signal defaults not applied")
	}
	if cfg.Engine.PaperRejectPostOnlyCross == nil || !*cfg.Engine.PaperRejectPostOnlyCross {
		t.Error("PaperRejectPostOnlyCross should default to true")
	}
	if cfg.Journal.Enabled() {
		t.Error("journal should be disabled without a host")
	}
}

func TestLoadAndValidate(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
	}{
		{
			name: "valid paper config",
			yaml: `
instance:
  id: test-hedger
markets:
  series_tickers: [KXBTC15M]
engine:
  mode: paper
`,
			wantErr: false,
		},
		{
			name: "missing instance id",
			yaml: `
markets:
  series_tickers: [KXBTC15M]
`,
			wantErr: true,
		},
		{
			name: "missing series",
			yaml: `
instance:
  id: test-hedger
`,
			wantErr: true,
		},
		{
			name: "live mode without credentials",
			yaml: `
instance:
  id: test-hedger
markets:
  series_tickers: [KXBTC15M]
engine:
  mode: live
`,
			wantErr: true,
		},
		{
			name: "bad mode",
			yaml: `
instance:
  id: test-hedger
markets:
  series_tickers: [KXBTC15M]
engine:
  mode: dryrun
`,
			wantErr: true,
		},
		{
			name: "target above safe cap",
			yaml: `
instance:
  id: test-hedger
markets:
  series_tickers: [KXBTC15M]
strategy:
  target_pair_cc: 9900
  safe_pair_cc: 9850
`,
			wantErr: true,
		},
		{
			name: "journal requires full db config",
			yaml: `
instance:
  id: test-hedger
markets:
  series_tickers: [KXBTC15M]
journal:
  postgres:
    host: localhost
`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTempFile(t, tt.yaml)
			_, err := LoadAndValidate(path)
			if (err != nil) != tt.wantErr {
				t.Errorf("LoadAndValidate error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
