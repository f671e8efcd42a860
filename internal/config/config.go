// Package config loads the folio YAML configuration and applies environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"folio/internal/domain"
)

// DefaultPath is used when FOLIO_CONFIG is unset.
const DefaultPath = "config/folio.yaml"

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for folio.
type Config struct {
	Storage  Storage        `yaml:"storage"`
	Alpaca   Alpaca         `yaml:"alpaca"`
	Logging  Logging        `yaml:"logging"`
	Gather   GatherConfig   `yaml:"gather"`
	Backtest BacktestConfig `yaml:"backtest"`
	Risk     RiskConfig     `yaml:"risk"`
	Report   ReportConfig   `yaml:"report"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Alpaca holds credentials and endpoints for the Alpaca APIs.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
	DataURL   string `yaml:"data_url"`
	Feed      string `yaml:"feed"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// GatherConfig controls daily bar acquisition.
type GatherConfig struct {
	USDaily GatherJobConfig `yaml:"us_daily"`
}

// GatherJobConfig holds parameters for a single data gathering job.
type GatherJobConfig struct {
	Tickers         []string `yaml:"tickers"`
	StartDate       string   `yaml:"start_date"`
	BatchSize       int      `yaml:"batch_size"`
	MaxWorkers      int      `yaml:"max_workers"`
	RateLimitPerMin int      `yaml:"rate_limit_per_min"`
	MaxRetries      int      `yaml:"max_retries"`
	Schedule        string   `yaml:"schedule"` // HH:MM America/New_York
}

// BacktestConfig is the configuration surface of one simulation run.
type BacktestConfig struct {
	Name         string             `yaml:"name"`
	Preset       string             `yaml:"preset"`
	StartingCash float64            `yaml:"starting_cash"`
	Commission   float64            `yaml:"commission"`
	StartDate    string             `yaml:"start_date"`
	EndDate      string             `yaml:"end_date"`
	RiskFreeRate float64            `yaml:"risk_free_rate"`
	Positions    []PositionConfig   `yaml:"positions"`
	Contribution ContributionConfig `yaml:"contribution"`
	Rebalance    RebalanceConfig    `yaml:"rebalance"`
	Synthetic    []SyntheticConfig  `yaml:"synthetic"`
}

// PositionConfig is one signal-driven allocation rule.
type PositionConfig struct {
	Ticker     string  `yaml:"ticker"`
	Ratio      float64 `yaml:"ratio"`
	BuySignal  string  `yaml:"buy_signal"`
	SellSignal string  `yaml:"sell_signal"`
}

// ContributionConfig schedules periodic deposits. An empty period disables it.
type ContributionConfig struct {
	Amount float64 `yaml:"amount"`
	Period string  `yaml:"period"`
}

// RebalanceConfig schedules full re-trades. An empty period disables it.
type RebalanceConfig struct {
	Period string `yaml:"period"`
}

// SyntheticConfig extends Target backwards and forwards using Source's
// longer history. A zero Step and unset adjustments use the tuned defaults
// of the target; an explicit 0 adjustment overrides them.
type SyntheticConfig struct {
	Target string   `yaml:"target"`
	Source string   `yaml:"source"`
	Name   string   `yaml:"name"` // stored ticker, defaults to <TARGET>_SIM
	Step   float64  `yaml:"step"`
	PosAdj *float64 `yaml:"pos_adj"`
	NegAdj *float64 `yaml:"neg_adj"`
}

// RiskConfig defines pre-run allocation limits. Zero disables a limit.
type RiskConfig struct {
	MaxPositionRatio float64 `yaml:"max_position_ratio"`
	MaxTotalRatio    float64 `yaml:"max_total_ratio"`
}

// ReportConfig controls run outputs.
type ReportConfig struct {
	OutputDir    string `yaml:"output_dir"`
	Charts       bool   `yaml:"charts"`
	History      bool   `yaml:"history"`
	MetricsFile  string `yaml:"metrics_file"`
	Style        string `yaml:"style"` // glamour style name
	Currency     string `yaml:"currency"`
	TradeLogTail int    `yaml:"trade_log_tail"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Path returns the configuration path from FOLIO_CONFIG or DefaultPath.
func Path() string {
	if v := os.Getenv("FOLIO_CONFIG"); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct on top of the defaults, and then applies environment
// variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML configuration bytes. See Load.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// Default returns the configuration used for fields a file leaves unset.
func Default() *Config {
	return &Config{
		Storage: Storage{
			DataDir:    "data",
			SQLitePath: "data/folio.db",
		},
		Alpaca: Alpaca{
			BaseURL: "https://paper-api.alpaca.markets",
			DataURL: "https://data.alpaca.markets",
			Feed:    "sip",
		},
		Logging: Logging{Level: "info", Format: "text"},
		Gather: GatherConfig{USDaily: GatherJobConfig{
			StartDate:       "2000-01-01",
			BatchSize:       50,
			MaxWorkers:      4,
			RateLimitPerMin: 200,
			MaxRetries:      3,
			Schedule:        "17:30",
		}},
		Backtest: BacktestConfig{StartingCash: 10000},
		Risk:     RiskConfig{MaxPositionRatio: 1},
		Report: ReportConfig{
			OutputDir:    "out",
			Charts:       true,
			History:      true,
			Style:        "dark",
			Currency:     "USD",
			TradeLogTail: 20,
		},
	}
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}

	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}

	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}

	if v := os.Getenv("ALPACA_BASE_URL"); v != "" {
		cfg.Alpaca.BaseURL = v
	}

	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars take priority; they are the names the SDK reads.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

// Validate reports the first invalid field of the backtest, risk and gather
// sections.
func (c *Config) Validate() error {
	b := c.Backtest
	if b.StartingCash < 0 {
		return errors.New("backtest.starting_cash must not be negative")
	}
	if b.Commission < 0 {
		return errors.New("backtest.commission must not be negative")
	}
	if b.Preset == "" && len(b.Positions) == 0 {
		return errors.New("backtest: either preset or positions is required")
	}
	for i, p := range b.Positions {
		if strings.TrimSpace(p.Ticker) == "" {
			return fmt.Errorf("backtest.positions[%d].ticker is empty", i)
		}
		if p.Ratio < 0 {
			return fmt.Errorf("backtest.positions[%d].ratio must not be negative", i)
		}
	}
	for _, d := range []struct{ name, value string }{
		{"backtest.start_date", b.StartDate},
		{"backtest.end_date", b.EndDate},
	} {
		if d.value == "" {
			continue
		}
		if _, err := domain.ParseDay(d.value); err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
	}
	if _, err := domain.ParsePeriod(b.Contribution.Period); err != nil {
		return fmt.Errorf("backtest.contribution.period: %w", err)
	}
	if b.Contribution.Amount < 0 {
		return errors.New("backtest.contribution.amount must not be negative")
	}
	if _, err := domain.ParsePeriod(b.Rebalance.Period); err != nil {
		return fmt.Errorf("backtest.rebalance.period: %w", err)
	}
	for i, s := range b.Synthetic {
		if s.Target == "" || s.Source == "" {
			return fmt.Errorf("backtest.synthetic[%d]: target and source are required", i)
		}
		if s.Step < 0 {
			return fmt.Errorf("backtest.synthetic[%d].step must not be negative", i)
		}
	}
	if c.Risk.MaxPositionRatio < 0 || c.Risk.MaxTotalRatio < 0 {
		return errors.New("risk limits must not be negative")
	}
	if c.Gather.USDaily.BatchSize < 0 || c.Gather.USDaily.MaxWorkers < 0 {
		return errors.New("gather.us_daily batch_size and max_workers must not be negative")
	}
	return nil
}

// ContributionPeriod returns the parsed contribution period.
func (b BacktestConfig) ContributionPeriod() domain.Period {
	p, _ := domain.ParsePeriod(b.Contribution.Period)
	return p
}

// RebalancePeriod returns the parsed rebalance period.
func (b BacktestConfig) RebalancePeriod() domain.Period {
	p, _ := domain.ParsePeriod(b.Rebalance.Period)
	return p
}

// SyntheticName returns the stored ticker of a synthesized series.
func (s SyntheticConfig) SyntheticName() string {
	if s.Name != "" {
		return strings.ToUpper(s.Name)
	}
	return strings.ToUpper(s.Target) + "_SIM"
}
