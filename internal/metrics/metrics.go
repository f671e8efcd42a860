// Package metrics exports backtest results as Prometheus gauges, written to
// a node-exporter textfile after each run.
package metrics

import (
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"folio/internal/engine"
	"folio/internal/store"
)

// Metrics holds the gauges of one process. Every gauge is labeled by run
// name so several strategies can share one textfile.
type Metrics struct {
	reg *prometheus.Registry

	FinalValue   *prometheus.GaugeVec
	CAGR         *prometheus.GaugeVec
	AdjustedCAGR *prometheus.GaugeVec
	MaxDrawdown  *prometheus.GaugeVec
	Sharpe       *prometheus.GaugeVec
	Sortino      *prometheus.GaugeVec
	Trades       *prometheus.GaugeVec
	Days         *prometheus.GaugeVec
	RunDuration  *prometheus.GaugeVec
	RunsTotal    prometheus.Counter
}

// New creates the gauges on a private registry.
func New() *Metrics {
	gauge := func(name, help string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help}, []string{"run"})
	}
	m := &Metrics{
		reg:          prometheus.NewRegistry(),
		FinalValue:   gauge("folio_final_value", "Portfolio value at the end of the run"),
		CAGR:         gauge("folio_cagr", "Compound annual growth rate"),
		AdjustedCAGR: gauge("folio_adjusted_cagr", "CAGR of growth excluding contributions"),
		MaxDrawdown:  gauge("folio_max_drawdown", "Deepest peak-to-trough decline as a negative fraction"),
		Sharpe:       gauge("folio_sharpe", "Sharpe ratio of monthly excess returns, NaN when undefined"),
		Sortino:      gauge("folio_sortino", "Sortino ratio of monthly excess returns, NaN when undefined"),
		Trades:       gauge("folio_trades_total", "Number of fills executed"),
		Days:         gauge("folio_days", "Trading days simulated"),
		RunDuration:  gauge("folio_run_duration_seconds", "Wall time of the simulation"),
		RunsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "folio_runs_total",
			Help: "Runs observed by this process",
		}),
	}
	m.reg.MustRegister(
		m.FinalValue, m.CAGR, m.AdjustedCAGR, m.MaxDrawdown,
		m.Sharpe, m.Sortino, m.Trades, m.Days, m.RunDuration, m.RunsTotal,
	)
	return m
}

// Registry returns the registry the gauges live on.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Observe records a finished run.
func (m *Metrics) Observe(run string, res *engine.Result, took time.Duration) {
	s := res.Summary
	m.FinalValue.WithLabelValues(run).Set(s.EndValue)
	m.CAGR.WithLabelValues(run).Set(ratioValue(s.CAGR.Value, s.CAGR.Defined))
	m.AdjustedCAGR.WithLabelValues(run).Set(ratioValue(s.AdjustedCAGR.Value, s.AdjustedCAGR.Defined))
	m.MaxDrawdown.WithLabelValues(run).Set(s.MaxDrawdown.Amount)
	m.Sharpe.WithLabelValues(run).Set(ratioValue(s.Sharpe.Value, s.Sharpe.Defined))
	m.Sortino.WithLabelValues(run).Set(ratioValue(s.Sortino.Value, s.Sortino.Defined))
	m.Trades.WithLabelValues(run).Set(float64(s.Trades))
	m.Days.WithLabelValues(run).Set(float64(res.Days))
	m.RunDuration.WithLabelValues(run).Set(took.Seconds())
	m.RunsTotal.Inc()
}

// ObserveRecord sets the gauges of a journaled run. Records of the same name
// overwrite each other, so callers pass them oldest first.
func (m *Metrics) ObserveRecord(r store.RunRecord) {
	m.FinalValue.WithLabelValues(r.Name).Set(r.FinalValue)
	m.CAGR.WithLabelValues(r.Name).Set(ratioValue(r.CAGR.Float64, r.CAGR.Valid))
	m.AdjustedCAGR.WithLabelValues(r.Name).Set(ratioValue(r.AdjustedCAGR.Float64, r.AdjustedCAGR.Valid))
	m.MaxDrawdown.WithLabelValues(r.Name).Set(r.MaxDrawdown)
	m.Sharpe.WithLabelValues(r.Name).Set(ratioValue(r.Sharpe.Float64, r.Sharpe.Valid))
	m.Sortino.WithLabelValues(r.Name).Set(ratioValue(r.Sortino.Float64, r.Sortino.Valid))
	m.Trades.WithLabelValues(r.Name).Set(float64(r.Trades))
	m.Days.WithLabelValues(r.Name).Set(float64(r.Days))
}

// WriteTextfile writes every metric in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.reg)
}

func ratioValue(v float64, defined bool) float64 {
	if !defined {
		return math.NaN()
	}
	return v
}
