package report

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"folio/internal/domain"
	"folio/internal/engine"
	"folio/internal/strategy"
)

// Run describes a finished backtest for reporting.
type Run struct {
	Name   string
	Preset string // empty for an inline position list

	Positions          []strategy.PositionSpec
	StartingCash       float64
	Commission         float64
	Contribution       float64
	ContributionPeriod domain.Period
	RebalancePeriod    domain.Period
	RiskFreeRate       float64

	Result *engine.Result
}

// Options controls report rendering.
type Options struct {
	Currency     string
	TradeLogTail int // number of most recent fills listed, 0 for none
}

// DefaultOptions reports in US dollars with the last 20 fills.
func DefaultOptions() Options {
	return Options{Currency: "USD", TradeLogTail: 20}
}

// Markdown renders the run as a markdown document: configuration,
// statistics, annual returns, drawdown and the tail of the trade log.
func Markdown(run Run, opts Options) string {
	if opts.Currency == "" {
		opts.Currency = "USD"
	}
	cur := func(v float64) string { return FormatCurrency(v, opts.Currency) }

	var b strings.Builder
	name := run.Name
	if name == "" {
		name = "Backtest"
	}
	fmt.Fprintf(&b, "# %s\n\n", name)

	// Configuration
	b.WriteString("## Configuration\n\n")
	if run.Preset != "" {
		fmt.Fprintf(&b, "Preset: **%s**\n\n", run.Preset)
	}
	b.WriteString("| Ticker | Ratio | Buy | Sell |\n|---|---:|---|---|\n")
	for _, p := range run.Positions {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
			p.Ticker, FormatPercent(p.Ratio), signalText(p.BuySignal), signalText(p.SellSignal))
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "- Starting cash: %s\n", cur(run.StartingCash))
	fmt.Fprintf(&b, "- Commission: %s per trade\n", cur(run.Commission))
	if run.Contribution > 0 && run.ContributionPeriod != domain.PeriodNone {
		fmt.Fprintf(&b, "- Contribution: %s every %s\n", cur(run.Contribution), run.ContributionPeriod)
	}
	fmt.Fprintf(&b, "- Rebalance: %s\n", run.RebalancePeriod)
	if run.RiskFreeRate != 0 {
		fmt.Fprintf(&b, "- Risk-free rate: %s\n", FormatPercent(run.RiskFreeRate))
	}
	b.WriteString("\n")

	res := run.Result
	if res == nil {
		b.WriteString("_No result._\n")
		return b.String()
	}
	s := res.Summary

	// Statistics
	b.WriteString("## Statistics\n\n| Metric | Value |\n|---|---:|\n")
	rows := [][2]string{
		{"Period", fmt.Sprintf("%s to %s", res.Start.Format("2006-01-02"), res.End.Format("2006-01-02"))},
		{"Trading days", FormatInt(res.Days)},
		{"Years", fmt.Sprintf("%.2f", s.Years)},
		{"Final value", cur(s.EndValue)},
		{"Contributions", cur(s.Contributions)},
		{"CAGR", FormatPercentRatio(s.CAGR)},
		{"Adjusted CAGR", FormatPercentRatio(s.AdjustedCAGR)},
		{"Max drawdown", FormatPercent(s.MaxDrawdown.Amount)},
		{"Sharpe (monthly)", FormatRatio(s.Sharpe)},
		{"Sortino (monthly)", FormatRatio(s.Sortino)},
		{"Trades", FormatInt(s.Trades)},
	}
	if len(s.AnnualReturns) > 0 {
		rows = append(rows,
			[2]string{"Best year", fmt.Sprintf("%d (%s)", s.BestYear.Year, FormatSignedPercent(s.BestYear.Return))},
			[2]string{"Worst year", fmt.Sprintf("%d (%s)", s.WorstYear.Year, FormatSignedPercent(s.WorstYear.Return))},
		)
	}
	for _, r := range rows {
		fmt.Fprintf(&b, "| %s | %s |\n", r[0], r[1])
	}
	b.WriteString("\n")

	// Annual returns
	if len(s.AnnualReturns) > 0 {
		b.WriteString("## Annual returns\n\n| Year | Return | |\n|---|---:|---|\n")
		for _, y := range s.AnnualReturns {
			note := ""
			if y.Partial {
				note = "partial"
			}
			fmt.Fprintf(&b, "| %d | %s | %s |\n", y.Year, FormatSignedPercent(y.Return), note)
		}
		b.WriteString("\n")
	}

	// Drawdown
	b.WriteString("## Drawdown\n\n")
	dd := s.MaxDrawdown
	switch {
	case dd.Amount == 0:
		b.WriteString("No drawdown.\n\n")
	case dd.IsRecovered():
		fmt.Fprintf(&b, "Deepest decline %s from %s to %s, recovered %s.\n\n",
			FormatPercent(dd.Amount), dd.From.Format("2006-01-02"), dd.To.Format("2006-01-02"), dd.Recovered.Format("2006-01-02"))
	default:
		fmt.Fprintf(&b, "Deepest decline %s from %s to %s, not yet recovered.\n\n",
			FormatPercent(dd.Amount), dd.From.Format("2006-01-02"), dd.To.Format("2006-01-02"))
	}

	// Holdings
	if held := heldTickers(res.Holdings); len(held) > 0 {
		b.WriteString("## Final holdings\n\n| Ticker | Shares |\n|---|---:|\n")
		for _, t := range held {
			fmt.Fprintf(&b, "| %s | %s |\n", t, FormatInt(int(res.Holdings[t])))
		}
		b.WriteString("\n")
	}

	// Trades
	if opts.TradeLogTail > 0 && len(res.Fills) > 0 {
		fills := res.Fills
		if len(fills) > opts.TradeLogTail {
			fills = fills[len(fills)-opts.TradeLogTail:]
		}
		fmt.Fprintf(&b, "## Trades (last %d of %s)\n\n", len(fills), FormatInt(len(res.Fills)))
		b.WriteString("| Date | Side | Ticker | Shares | Price | Notional |\n|---|---|---|---:|---:|---:|\n")
		for _, f := range fills {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
				f.Date.Format("2006-01-02"), f.Side, f.Ticker, FormatInt(int(f.Shares)),
				cur(f.Price), cur(f.Notional()))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func heldTickers(h map[string]int64) []string {
	var out []string
	for _, t := range slices.Sorted(maps.Keys(h)) {
		if h[t] != 0 {
			out = append(out, t)
		}
	}
	return out
}

func signalText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "NEVER"
	}
	return "`" + s + "`"
}
