package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/google/subcommands"

	"folio/internal/monitor"
	"folio/internal/report"
	"folio/internal/store"
)

type runsCmd struct {
	configFlag
	id    int64
	limit int
	fills bool
}

func (*runsCmd) Name() string     { return "runs" }
func (*runsCmd) Synopsis() string { return "list saved runs or show one" }
func (*runsCmd) Usage() string {
	return `folio runs [-config <path>] [-n 20] [-id <run> [-fills]]

  Without -id lists the most recent runs in the journal. With -id prints the
  stored report of that run, and its full trade log with -fills.
`
}

func (c *runsCmd) SetFlags(f *flag.FlagSet) {
	c.configFlag.register(f)
	f.Int64Var(&c.id, "id", 0, "run to show")
	f.IntVar(&c.limit, "n", 20, "number of runs listed (0 for all)")
	f.BoolVar(&c.fills, "fills", false, "print every fill of the run")
}

func (c *runsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := c.load()
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	db, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	defer db.Close()

	if c.id == 0 {
		runs, err := db.ListRuns(ctx, c.limit)
		if err != nil {
			fail(err)
			return subcommands.ExitFailure
		}
		printMarkdown(runTable(runs), cfg.Report.Style)
		return subcommands.ExitSuccess
	}

	run, err := db.GetRun(ctx, c.id)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	md := run.Report
	if md == "" {
		md = fmt.Sprintf("# %s\n\nNo report stored.\n", run.Name)
	}
	if c.fills {
		fills, err := db.ListFills(ctx, c.id)
		if err != nil {
			fail(err)
			return subcommands.ExitFailure
		}
		var b strings.Builder
		b.WriteString(md)
		fmt.Fprintf(&b, "\n## All fills (%d)\n\n| Date | Side | Ticker | Shares | Price | Commission |\n|---|---|---|---:|---:|---:|\n", len(fills))
		for _, f := range fills {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
				f.Date.Format("2006-01-02"), f.Side, f.Ticker, report.FormatInt(int(f.Shares)),
				report.FormatCurrency(f.Price, cfg.Report.Currency),
				report.FormatCurrency(f.Commission, cfg.Report.Currency))
		}
		md = b.String()
	}
	printMarkdown(md, cfg.Report.Style)
	return subcommands.ExitSuccess
}

// runTable renders the journal listing.
func runTable(runs []store.RunRecord) string {
	if len(runs) == 0 {
		return "No runs saved yet.\n"
	}
	var b strings.Builder
	b.WriteString("| ID | Name | Window | Final value | CAGR | Max DD | Sharpe | Trades |\n")
	b.WriteString("|---:|---|---|---:|---:|---:|---:|---:|\n")
	for _, r := range runs {
		sharpe := monitor.Ratio{Value: r.Sharpe.Float64, Defined: r.Sharpe.Valid}
		cagr := monitor.Ratio{Value: r.CAGR.Float64, Defined: r.CAGR.Valid}
		fmt.Fprintf(&b, "| %d | %s | %s..%s | %.2f | %s | %s | %s | %d |\n",
			r.ID, r.Name, r.StartDate, r.EndDate, r.FinalValue,
			report.FormatPercentRatio(cagr), report.FormatPercent(r.MaxDrawdown),
			report.FormatRatio(sharpe), r.Trades)
	}
	return b.String()
}
