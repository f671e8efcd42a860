// Package runner assembles a backtest from configuration: it resolves the
// preset or position list, wires market, ledger, trader and monitor, runs
// the simulator and converts the outcome for storage and reporting.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"folio/internal/config"
	"folio/internal/domain"
	"folio/internal/engine"
	"folio/internal/market"
	"folio/internal/monitor"
	"folio/internal/portfolio"
	"folio/internal/report"
	"folio/internal/store"
	"folio/internal/strategy"
)

// Plan is a fully resolved run configuration.
type Plan struct {
	Name   string
	Preset string

	Positions          []strategy.PositionSpec
	StartingCash       decimal.Decimal
	Commission         decimal.Decimal
	Contribution       decimal.Decimal
	ContributionPeriod domain.Period
	RebalancePeriod    domain.Period
	Start              time.Time // zero for the first available date
	End                time.Time // zero for the last available date
	RiskFreeRate       float64
}

// PlanFromConfig resolves b against the preset registry. A preset supplies
// the positions and, unless b sets one, the rebalance period.
func PlanFromConfig(b config.BacktestConfig, reg *strategy.Registry) (Plan, error) {
	p := Plan{
		Name:               b.Name,
		StartingCash:       decimal.NewFromFloat(b.StartingCash),
		Commission:         decimal.NewFromFloat(b.Commission),
		Contribution:       decimal.NewFromFloat(b.Contribution.Amount),
		ContributionPeriod: b.ContributionPeriod(),
		RebalancePeriod:    b.RebalancePeriod(),
		RiskFreeRate:       b.RiskFreeRate,
	}

	if b.Preset != "" {
		preset, ok := reg.Get(b.Preset)
		if !ok {
			return Plan{}, fmt.Errorf("unknown preset %q (have %s)", b.Preset, strings.Join(reg.List(), ", "))
		}
		p.Preset = preset.Name()
		p.Positions = preset.Positions()
		if strings.TrimSpace(b.Rebalance.Period) == "" {
			p.RebalancePeriod = preset.Rebalance()
		}
		if p.Name == "" {
			p.Name = preset.Name()
		}
	}
	for _, pc := range b.Positions {
		p.Positions = append(p.Positions, strategy.PositionSpec{
			Ticker:     pc.Ticker,
			Ratio:      pc.Ratio,
			BuySignal:  pc.BuySignal,
			SellSignal: pc.SellSignal,
		})
	}
	if len(p.Positions) == 0 {
		return Plan{}, fmt.Errorf("no positions configured")
	}
	if p.Name == "" {
		p.Name = "custom"
	}

	var err error
	if b.StartDate != "" {
		if p.Start, err = domain.ParseDay(b.StartDate); err != nil {
			return Plan{}, fmt.Errorf("start date: %w", err)
		}
	}
	if b.EndDate != "" {
		if p.End, err = domain.ParseDay(b.EndDate); err != nil {
			return Plan{}, fmt.Errorf("end date: %w", err)
		}
	}
	return p, nil
}

// Outcome is a finished run with everything needed to report it.
type Outcome struct {
	Plan    Plan
	Result  *engine.Result
	Monitor *monitor.Monitor
	Took    time.Duration
}

// Execute runs plan over series from src. risk may be nil.
func Execute(ctx context.Context, plan Plan, src market.SeriesSource, risk *engine.RiskManager, log *slog.Logger) (*Outcome, error) {
	if log == nil {
		log = slog.Default()
	}
	began := time.Now()

	m := market.New(src, market.WithLogger(log))
	l := portfolio.New(m, portfolio.WithCommission(plan.Commission), portfolio.WithLogger(log))
	positions, err := strategy.BuildPositions(plan.Positions)
	if err != nil {
		return nil, err
	}
	tr := strategy.NewTrader(m, l, positions,
		strategy.BuildPolicies(plan.Contribution, plan.ContributionPeriod, plan.RebalancePeriod))
	mon := monitor.New(m, l, tr.RequiredTickers())

	sim := engine.New(engine.Options{
		Market:       m,
		Ledger:       l,
		Trader:       tr,
		Monitor:      mon,
		Risk:         risk,
		StartingCash: plan.StartingCash,
		Start:        plan.Start,
		End:          plan.End,
		RiskFreeRate: plan.RiskFreeRate,
		Logger:       log.With("run", plan.Name),
	})
	if err := sim.Initialize(ctx); err != nil {
		return nil, err
	}
	res, err := sim.Run(ctx)
	if err != nil {
		return nil, err
	}
	return &Outcome{Plan: plan, Result: res, Monitor: mon, Took: time.Since(began)}, nil
}

// ReportRun converts the outcome for the report package.
func (o *Outcome) ReportRun() report.Run {
	return report.Run{
		Name:               o.Plan.Name,
		Preset:             o.Plan.Preset,
		Positions:          o.Plan.Positions,
		StartingCash:       o.Plan.StartingCash.InexactFloat64(),
		Commission:         o.Plan.Commission.InexactFloat64(),
		Contribution:       o.Plan.Contribution.InexactFloat64(),
		ContributionPeriod: o.Plan.ContributionPeriod,
		RebalancePeriod:    o.Plan.RebalancePeriod,
		RiskFreeRate:       o.Plan.RiskFreeRate,
		Result:             o.Result,
	}
}

// History converts the per-day monitor buffers into Parquet rows.
func (o *Outcome) History() []store.HistoryRecord {
	dates, values := o.Monitor.ValueSeries()
	_, alloc := o.Monitor.AllocationSeries()
	_, contributed, growth := o.Monitor.ContributionSeries()
	tickers := o.Monitor.Tickers()

	rows := make([]store.HistoryRecord, len(dates))
	for i, d := range dates {
		var weights []store.WeightRecord
		for _, t := range tickers {
			if w := alloc[t][i]; w != 0 {
				weights = append(weights, store.WeightRecord{Ticker: t, Weight: w})
			}
		}
		rows[i] = store.HistoryRecord{
			Timestamp:   d.UnixMilli(),
			Value:       values[i],
			Contributed: contributed[i],
			Growth:      growth[i],
			Weights:     weights,
		}
	}
	return rows
}

// RunRecord converts the outcome into a journal row. configText and
// reportText are stored verbatim.
func (o *Outcome) RunRecord(configText, reportText string) *store.RunRecord {
	s := o.Result.Summary
	rec := &store.RunRecord{
		Name:          o.Plan.Name,
		StartDate:     o.Result.Start.Format("2006-01-02"),
		EndDate:       o.Result.End.Format("2006-01-02"),
		Days:          o.Result.Days,
		StartingCash:  s.StartValue,
		Contributions: s.Contributions,
		FinalValue:    s.EndValue,
		MaxDrawdown:   s.MaxDrawdown.Amount,
		Trades:        s.Trades,
		Config:        configText,
		Report:        reportText,
	}
	rec.CAGR.Float64, rec.CAGR.Valid = s.CAGR.Value, s.CAGR.Defined
	rec.AdjustedCAGR.Float64, rec.AdjustedCAGR.Valid = s.AdjustedCAGR.Value, s.AdjustedCAGR.Defined
	rec.Sharpe.Float64, rec.Sharpe.Valid = s.Sharpe.Value, s.Sharpe.Defined
	rec.Sortino.Float64, rec.Sortino.Valid = s.Sortino.Value, s.Sortino.Defined
	return rec
}
