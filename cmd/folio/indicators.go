package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"

	"folio/internal/domain"
	"folio/internal/indicator"
	"folio/internal/report"
	"folio/internal/store"
)

type indicatorsCmd struct {
	configFlag
	ticker string
	codes  string
	start  string
	last   int
	chart  string
}

func (*indicatorsCmd) Name() string     { return "indicators" }
func (*indicatorsCmd) Synopsis() string { return "compute indicators for a stored ticker" }
func (*indicatorsCmd) Usage() string {
	return `folio indicators -ticker <ticker> [-codes SMA_200,EMA_50] [-start YYYY-MM-DD] [-chart out.png]

  Prints the most recent closes of a ticker next to the requested indicator
  codes (SMA_n, EMA_n, MACD_s_l_g, MACDSIGNAL_s_l_g, MACDHIST_s_l_g, PREVHIGH)
  and optionally charts them.
`
}

func (c *indicatorsCmd) SetFlags(f *flag.FlagSet) {
	c.configFlag.register(f)
	f.StringVar(&c.ticker, "ticker", "", "ticker to analyse")
	f.StringVar(&c.codes, "codes", "SMA_200", "comma separated indicator codes")
	f.StringVar(&c.start, "start", "", "first date shown and charted")
	f.IntVar(&c.last, "n", 10, "number of most recent days printed")
	f.StringVar(&c.chart, "chart", "", "write a PNG chart to this path")
}

func (c *indicatorsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.ticker == "" {
		fail(fmt.Errorf("-ticker is required"))
		return subcommands.ExitUsageError
	}
	cfg, err := c.load()
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}

	var codes []indicator.Code
	for _, raw := range strings.Split(c.codes, ",") {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		code, err := indicator.ParseCode(raw)
		if err != nil {
			fail(err)
			return subcommands.ExitUsageError
		}
		codes = append(codes, code)
	}

	loader := store.NewSeriesLoader(store.NewParquetStore(cfg.Storage.DataDir), store.DefaultMarket)
	series, err := loader.Series(ctx, c.ticker)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}

	// Indicators see the full history; the start date only trims output.
	overlays := make(map[string][]float64, len(codes))
	for _, code := range codes {
		overlays[code.String()] = code.Compute(series.Values)
	}
	from := 0
	if c.start != "" {
		d, err := domain.ParseDay(c.start)
		if err != nil {
			fail(err)
			return subcommands.ExitUsageError
		}
		for from < series.Len() && series.Dates[from].Before(d) {
			from++
		}
	}
	view := domain.Series{Ticker: series.Ticker, Dates: series.Dates[from:], Values: series.Values[from:]}
	for k, v := range overlays {
		overlays[k] = v[from:]
	}
	if view.Len() == 0 {
		fail(fmt.Errorf("%s has no data after %s", series.Ticker, c.start))
		return subcommands.ExitFailure
	}

	printMarkdown(indicatorTable(view, codes, overlays, c.last), cfg.Report.Style)

	if c.chart != "" {
		buf, err := report.IndicatorChart(view, overlays)
		if err != nil {
			fail(err)
			return subcommands.ExitFailure
		}
		if err := os.WriteFile(c.chart, buf, 0o644); err != nil {
			fail(err)
			return subcommands.ExitFailure
		}
	}
	return subcommands.ExitSuccess
}

func indicatorTable(s domain.Series, codes []indicator.Code, overlays map[string][]float64, last int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n| Date | Close |", s.Ticker)
	for _, code := range codes {
		fmt.Fprintf(&b, " %s |", code)
	}
	b.WriteString("\n|---|---:|")
	b.WriteString(strings.Repeat("---:|", len(codes)))
	b.WriteString("\n")

	from := max(s.Len()-last, 0)
	for i := from; i < s.Len(); i++ {
		fmt.Fprintf(&b, "| %s | %.2f |", s.Dates[i].Format("2006-01-02"), s.Values[i])
		for _, code := range codes {
			fmt.Fprintf(&b, " %.2f |", overlays[code.String()][i])
		}
		b.WriteString("\n")
	}
	return b.String()
}
