package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/subcommands"
	"gopkg.in/yaml.v3"

	"folio/internal/config"
	"folio/internal/engine"
	"folio/internal/metrics"
	"folio/internal/report"
	"folio/internal/runner"
	"folio/internal/store"
)

type runCmd struct {
	configFlag
	preset string
	name   string
	start  string
	end    string
	out    string
	noSave bool
	quiet  bool
}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "run the configured backtest and report it" }
func (*runCmd) Usage() string {
	return `folio run [-config <path>] [-preset <name>] [-start YYYY-MM-DD] [-end YYYY-MM-DD] [-out <dir>]

  Simulates the backtest section of the configuration over stored daily
  bars. The run is journaled to SQLite, its daily history is exported to
  Parquet and charts and metrics are written to the output directory.
`
}

func (c *runCmd) SetFlags(f *flag.FlagSet) {
	c.configFlag.register(f)
	f.StringVar(&c.preset, "preset", "", "use a built-in preset instead of the configured positions")
	f.StringVar(&c.name, "name", "", "run name (defaults to the configured name or preset)")
	f.StringVar(&c.start, "start", "", "first simulated date, overrides backtest.start_date")
	f.StringVar(&c.end, "end", "", "last simulated date, overrides backtest.end_date")
	f.StringVar(&c.out, "out", "", "output directory, overrides report.output_dir")
	f.BoolVar(&c.noSave, "no-save", false, "do not journal the run or write any file")
	f.BoolVar(&c.quiet, "q", false, "do not print the report")
}

func (c *runCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := c.load()
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	c.override(cfg)
	if err := cfg.Validate(); err != nil {
		fail(err)
		return subcommands.ExitUsageError
	}

	plan, err := runner.PlanFromConfig(cfg.Backtest, presets())
	if err != nil {
		fail(err)
		return subcommands.ExitUsageError
	}

	bars := store.NewParquetStore(cfg.Storage.DataDir)
	src := runner.WithSynthetics(store.NewSeriesLoader(bars, store.DefaultMarket), cfg.Backtest.Synthetic)
	risk := engine.NewRiskManager(cfg.Risk.MaxPositionRatio, cfg.Risk.MaxTotalRatio)

	out, err := runner.Execute(ctx, plan, src, risk, slog.Default())
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}

	md := report.Markdown(out.ReportRun(), report.Options{
		Currency:     cfg.Report.Currency,
		TradeLogTail: cfg.Report.TradeLogTail,
	})

	if !c.noSave {
		if err := c.save(ctx, cfg, out, md); err != nil {
			fail(err)
			return subcommands.ExitFailure
		}
	}
	if !c.quiet {
		printMarkdown(md, cfg.Report.Style)
	}
	return subcommands.ExitSuccess
}

// override applies command-line flags on top of the loaded configuration.
func (c *runCmd) override(cfg *config.Config) {
	if c.preset != "" {
		cfg.Backtest.Preset = c.preset
		cfg.Backtest.Positions = nil
	}
	if c.name != "" {
		cfg.Backtest.Name = c.name
	}
	if c.start != "" {
		cfg.Backtest.StartDate = c.start
	}
	if c.end != "" {
		cfg.Backtest.EndDate = c.end
	}
	if c.out != "" {
		cfg.Report.OutputDir = c.out
	}
}

// save journals the run and writes its history, charts and metrics under
// <output_dir>/<run id>-<name>/.
func (c *runCmd) save(ctx context.Context, cfg *config.Config, out *runner.Outcome, md string) error {
	cfgText, err := yaml.Marshal(cfg.Backtest)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.SQLitePath), 0o755); err != nil {
		return err
	}
	journal, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		return fmt.Errorf("opening run journal: %w", err)
	}
	defer journal.Close()

	id, err := journal.SaveRun(ctx, out.RunRecord(string(cfgText), md), out.Result.Fills)
	if err != nil {
		return err
	}

	dir := filepath.Join(cfg.Report.OutputDir, fmt.Sprintf("%d-%s", id, slug(out.Plan.Name)))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "report.md"), []byte(md), 0o644); err != nil {
		return err
	}
	if cfg.Report.History {
		if err := store.WriteHistory(filepath.Join(dir, "history.parquet"), out.History()); err != nil {
			return err
		}
	}
	if cfg.Report.Charts {
		if _, err := report.WriteCharts(dir, out.Plan.Name, out.Monitor); err != nil {
			return fmt.Errorf("writing charts: %w", err)
		}
	}
	if cfg.Report.MetricsFile != "" {
		m := metrics.New()
		m.Observe(out.Plan.Name, out.Result, out.Took)
		if err := m.WriteTextfile(cfg.Report.MetricsFile); err != nil {
			return fmt.Errorf("writing metrics: %w", err)
		}
	}

	slog.Info("run saved", "id", id, "dir", dir, "took", out.Took.Round(time.Millisecond))
	return nil
}

// slug makes a run name safe for a directory name.
func slug(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	if b.Len() == 0 {
		return "run"
	}
	return b.String()
}
