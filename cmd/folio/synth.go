package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"

	"github.com/google/subcommands"

	"folio/internal/config"
	"folio/internal/runner"
	"folio/internal/store"
)

type synthCmd struct {
	configFlag
	target string
	source string
	name   string
	step   float64
	posAdj float64
	negAdj float64
}

func (*synthCmd) Name() string     { return "synth" }
func (*synthCmd) Synopsis() string { return "generate and store a theoretical price history" }
func (*synthCmd) Usage() string {
	return `folio synth [-config <path>] [-target <ticker> -source <ticker>] [-name <ticker>]

  Extends a short-lived ticker (for example a leveraged fund) over the
  longer history of its underlying by replaying the underlying's daily moves
  at the leverage observed where both exist. The result is stored as a new
  ticker, <TARGET>_SIM unless -name is given.

  Without -target every entry of backtest.synthetic is generated.
`
}

func (c *synthCmd) SetFlags(f *flag.FlagSet) {
	c.configFlag.register(f)
	f.StringVar(&c.target, "target", "", "ticker to extend")
	f.StringVar(&c.source, "source", "", "ticker whose history drives the extension")
	f.StringVar(&c.name, "name", "", "stored ticker (defaults to <TARGET>_SIM)")
	f.Float64Var(&c.step, "step", 0, "bucket width of the leverage lookup (0 for the default)")
	f.Float64Var(&c.posAdj, "pos-adj", 0, "leverage adjustment on up days (tuned default when unset)")
	f.Float64Var(&c.negAdj, "neg-adj", 0, "leverage adjustment on down days (tuned default when unset)")
}

func (c *synthCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := c.load()
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}

	specs := cfg.Backtest.Synthetic
	if c.target != "" {
		if c.source == "" {
			fail(fmt.Errorf("-source is required with -target"))
			return subcommands.ExitUsageError
		}
		spec := config.SyntheticConfig{Target: c.target, Source: c.source, Name: c.name, Step: c.step}
		// Only adjustments given on the command line override the defaults.
		f.Visit(func(fl *flag.Flag) {
			switch fl.Name {
			case "pos-adj":
				spec.PosAdj = &c.posAdj
			case "neg-adj":
				spec.NegAdj = &c.negAdj
			}
		})
		specs = []config.SyntheticConfig{spec}
	}
	if len(specs) == 0 {
		fail(fmt.Errorf("nothing to synthesize: pass -target and -source or configure backtest.synthetic"))
		return subcommands.ExitUsageError
	}

	bars := store.NewParquetStore(cfg.Storage.DataDir)
	loader := store.NewSeriesLoader(bars, store.DefaultMarket)
	for _, spec := range specs {
		series, err := runner.Synthesize(ctx, loader, spec)
		if err != nil {
			fail(fmt.Errorf("%s: %w", spec.SyntheticName(), err))
			return subcommands.ExitFailure
		}
		if err := bars.WriteBars(ctx, store.BarsFromSeries(series)); err != nil {
			fail(err)
			return subcommands.ExitFailure
		}
		slog.Info("stored synthetic series",
			"ticker", series.Ticker,
			"from", series.First().Format("2006-01-02"),
			"to", series.Last().Format("2006-01-02"),
			"points", series.Len(),
		)
		fmt.Printf("%s: %d points %s..%s\n", series.Ticker, series.Len(),
			series.First().Format("2006-01-02"), series.Last().Format("2006-01-02"))
	}
	return subcommands.ExitSuccess
}
