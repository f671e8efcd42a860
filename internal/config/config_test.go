package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"folio/internal/domain"
)

const sample = `
storage:
  data_dir: "/tmp/folio/data"
  sqlite_path: "/tmp/folio/folio.db"
alpaca:
  api_key: "test-key"
  api_secret: "test-secret"
logging:
  level: "debug"
  format: "json"
gather:
  us_daily:
    tickers: [SPY, TLT]
    start_date: "1990-01-01"
    batch_size: 20
backtest:
  name: "sma"
  starting_cash: 25000
  commission: 1
  start_date: "2010-01-01"
  risk_free_rate: 0.02
  positions:
    - ticker: UPRO
      ratio: 1
      buy_signal: "SPY~PRICE > SPY~SMA_200"
      sell_signal: "SPY~PRICE < SPY~SMA_200"
  contribution:
    amount: 500
    period: monthly
  rebalance:
    period: q
  synthetic:
    - target: UPRO
      source: SPY
      step: 0.0001
risk:
  max_total_ratio: 1.5
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "folio.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"DATA_DIR", "SQLITE_PATH", "ALPACA_API_KEY", "ALPACA_API_SECRET",
		"ALPACA_BASE_URL", "ALPACA_DATA_URL", "LOG_LEVEL", "APCA_API_KEY_ID", "APCA_API_SECRET_KEY"} {
		t.Setenv(k, "")
	}
}

func TestLoad(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeConfig(t, sample))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Storage.DataDir != "/tmp/folio/data" {
		t.Errorf("Storage.DataDir = %q, want %q", cfg.Storage.DataDir, "/tmp/folio/data")
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if got := cfg.Gather.USDaily.Tickers; len(got) != 2 || got[1] != "TLT" {
		t.Errorf("Gather.USDaily.Tickers = %v", got)
	}
	b := cfg.Backtest
	if b.StartingCash != 25000 || b.Commission != 1 || b.RiskFreeRate != 0.02 {
		t.Errorf("Backtest = %+v", b)
	}
	if len(b.Positions) != 1 || b.Positions[0].BuySignal != "SPY~PRICE > SPY~SMA_200" {
		t.Errorf("Backtest.Positions = %+v", b.Positions)
	}
	if b.ContributionPeriod() != domain.PeriodMonth || b.RebalancePeriod() != domain.PeriodQuarter {
		t.Errorf("periods = %v, %v", b.ContributionPeriod(), b.RebalancePeriod())
	}
	if len(b.Synthetic) != 1 || b.Synthetic[0].SyntheticName() != "UPRO_SIM" {
		t.Errorf("Synthetic = %+v", b.Synthetic)
	}
	if cfg.Risk.MaxTotalRatio != 1.5 {
		t.Errorf("Risk.MaxTotalRatio = %v, want 1.5", cfg.Risk.MaxTotalRatio)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestLoadKeepsDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeConfig(t, "backtest:\n  preset: 60-40\n"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Backtest.StartingCash != 10000 {
		t.Errorf("StartingCash = %v, want default 10000", cfg.Backtest.StartingCash)
	}
	if cfg.Risk.MaxPositionRatio != 1 || cfg.Report.Style != "dark" || cfg.Gather.USDaily.MaxWorkers != 4 {
		t.Errorf("defaults lost: %+v %+v", cfg.Risk, cfg.Report)
	}
	if cfg.Alpaca.Feed != "sip" {
		t.Errorf("Alpaca.Feed = %q, want sip", cfg.Alpaca.Feed)
	}
}

func TestSyntheticAdjustmentsKeepExplicitZero(t *testing.T) {
	clearEnv(t)
	cfg, err := Parse([]byte(`
backtest:
  synthetic:
    - target: TMF
      source: TLT
      pos_adj: 0
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	s := cfg.Backtest.Synthetic[0]
	if s.PosAdj == nil || *s.PosAdj != 0 {
		t.Errorf("PosAdj = %v, want explicit 0", s.PosAdj)
	}
	if s.NegAdj != nil {
		t.Errorf("NegAdj = %v, want unset", *s.NegAdj)
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATA_DIR", "/env/data")
	t.Setenv("ALPACA_API_KEY", "env-key")
	t.Setenv("APCA_API_KEY_ID", "sdk-key")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(writeConfig(t, sample))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Storage.DataDir != "/env/data" {
		t.Errorf("Storage.DataDir = %q, want /env/data", cfg.Storage.DataDir)
	}
	if cfg.Alpaca.APIKey != "sdk-key" {
		t.Errorf("Alpaca.APIKey = %q, want sdk-key to win", cfg.Alpaca.APIKey)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn", cfg.Logging.Level)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load of a missing file should fail")
	}
	if _, err := Load(writeConfig(t, "backtest: [unclosed")); err == nil {
		t.Error("Load of malformed YAML should fail")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"no positions", func(c *Config) { c.Backtest.Positions = nil }, "preset or positions"},
		{"negative cash", func(c *Config) { c.Backtest.StartingCash = -1 }, "starting_cash"},
		{"bad period", func(c *Config) { c.Backtest.Rebalance.Period = "weekly" }, "rebalance.period"},
		{"bad date", func(c *Config) { c.Backtest.StartDate = "2020-13-01" }, "start_date"},
		{"empty ticker", func(c *Config) { c.Backtest.Positions[0].Ticker = "" }, "ticker is empty"},
		{"synthetic without source", func(c *Config) { c.Backtest.Synthetic[0].Source = "" }, "synthetic[0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			cfg, err := Parse([]byte(sample))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			tt.mutate(cfg)
			err = cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestPath(t *testing.T) {
	t.Setenv("FOLIO_CONFIG", "")
	if Path() != DefaultPath {
		t.Errorf("Path() = %q, want %q", Path(), DefaultPath)
	}
	t.Setenv("FOLIO_CONFIG", "/etc/folio.yaml")
	if Path() != "/etc/folio.yaml" {
		t.Errorf("Path() = %q, want /etc/folio.yaml", Path())
	}
}

func TestShippedConfig(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join("..", "..", "config", "folio.yaml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
	if cfg.Gather.USDaily.Schedule != "20:30" {
		t.Errorf("Schedule = %q, want 20:30", cfg.Gather.USDaily.Schedule)
	}
	if p := cfg.Backtest.RebalancePeriod(); p != domain.PeriodNone {
		t.Errorf("RebalancePeriod() = %v, want none", p)
	}
	if got := cfg.Backtest.Synthetic[0].SyntheticName(); got != "UPRO_SIM" {
		t.Errorf("SyntheticName() = %q, want UPRO_SIM", got)
	}
}
