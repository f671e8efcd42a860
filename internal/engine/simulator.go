// Package engine drives one simulation run: it prepares the market, clamps
// the test window, then advances the calendar day by day, letting the trader
// act and the monitor record after every step.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"folio/internal/domain"
	"folio/internal/market"
	"folio/internal/monitor"
	"folio/internal/portfolio"
	"folio/internal/strategy"
)

// ErrNotReady is returned by Run before a successful Initialize.
var ErrNotReady = errors.New("simulator not initialized")

// SetupError reports a configuration problem found before the run starts.
type SetupError struct {
	Reason string
	Err    error
}

func (e *SetupError) Error() string {
	if e.Err != nil {
		return "setup: " + e.Reason + ": " + e.Err.Error()
	}
	return "setup: " + e.Reason
}

func (e *SetupError) Unwrap() error { return e.Err }

// State is the lifecycle stage of a Simulator.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateRunning
	StateDone
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateDone:
		return "done"
	default:
		return "uninitialized"
	}
}

// Options wires the components of one run.
type Options struct {
	Market  *market.Market
	Ledger  *portfolio.Ledger
	Trader  *strategy.Trader
	Monitor *monitor.Monitor
	Risk    *RiskManager

	StartingCash decimal.Decimal
	Start        time.Time // zero for the first available date
	End          time.Time // zero for the last available date
	RiskFreeRate float64   // annual, for Sharpe and Sortino

	Logger *slog.Logger
}

// Result is the outcome of a completed run.
type Result struct {
	Summary  monitor.Summary
	Fills    []domain.Fill
	Holdings map[string]int64 // shares held at the end, including zero counts
	Start    time.Time
	End      time.Time
	Days     int
}

// Simulator runs a single backtest.
type Simulator struct {
	opts  Options
	state State
	start time.Time
	end   time.Time
	log   *slog.Logger
}

// New creates a Simulator in the uninitialized state.
func New(opts Options) *Simulator {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Simulator{opts: opts, log: log.With("component", "simulator")}
}

// State returns the lifecycle stage.
func (s *Simulator) State() State { return s.state }

// Window returns the clamped test window. It is zero before Initialize.
func (s *Simulator) Window() (time.Time, time.Time) { return s.start, s.end }

// ---------------------------------------------------------------------------
// Initialize
// ---------------------------------------------------------------------------

// Initialize loads every ticker and indicator the trader needs, builds the
// calendar, clamps the test window, funds the ledger and runs the opening
// step at the start date. Setup failures leave the simulator uninitialized.
func (s *Simulator) Initialize(ctx context.Context) error {
	if s.state != StateUninitialized {
		return &SetupError{Reason: "already initialized"}
	}
	m := s.opts.Market
	if m == nil {
		return &SetupError{Reason: "no market attached"}
	}
	if s.opts.Ledger == nil || s.opts.Trader == nil || s.opts.Monitor == nil {
		return &SetupError{Reason: "ledger, trader and monitor are required"}
	}

	tr := s.opts.Trader
	tickers := tr.RequiredTickers()
	if len(tickers) == 0 {
		return &SetupError{Reason: "no tickers configured"}
	}
	if s.opts.Risk != nil {
		if err := s.opts.Risk.CheckAllocation(tr.Positions()); err != nil {
			return &SetupError{Reason: "risk check", Err: err}
		}
	}

	for _, t := range tickers {
		if _, ok := m.Series(t); ok {
			continue
		}
		if err := m.AddTicker(ctx, t); err != nil {
			return &SetupError{Reason: "loading " + t, Err: err}
		}
	}
	for _, req := range tr.RequiredIndicators() {
		if err := m.AddIndicator(req.Ticker, req.Code); err != nil {
			return &SetupError{Reason: "indicator " + req.Ticker + "~" + req.Code, Err: err}
		}
	}
	if err := m.SetCalendarFromTrackedTickers(); err != nil {
		return &SetupError{Reason: "calendar", Err: err}
	}

	start, end, err := s.clampWindow(m.Calendar())
	if err != nil {
		return err
	}
	if s.opts.StartingCash.IsNegative() {
		return &SetupError{Reason: "negative starting cash"}
	}

	if err := m.SeekDate(start); err != nil {
		return &SetupError{Reason: "seek start", Err: err}
	}
	if err := s.opts.Ledger.Seed(s.opts.StartingCash); err != nil {
		return &SetupError{Reason: "funding", Err: err}
	}
	s.start, s.end = m.CurrentDate(), end
	if i := m.CurrentIndex(); i > 0 {
		s.opts.Monitor.SetPriorDate(m.Calendar()[i-1])
	}
	s.opts.Monitor.Reserve(indexOf(m.Calendar(), end) - m.CurrentIndex() + 1)

	if err := tr.Step(); err != nil {
		return fmt.Errorf("opening step %s: %w", s.start.Format("2006-01-02"), err)
	}
	if err := s.opts.Monitor.Snapshot(); err != nil {
		return fmt.Errorf("opening snapshot: %w", err)
	}

	s.state = StateReady
	s.log.Info("simulation ready",
		"tickers", tickers,
		"start", s.start.Format("2006-01-02"),
		"end", s.end.Format("2006-01-02"),
		"cash", s.opts.StartingCash.String(),
	)
	return nil
}

// clampWindow fits the requested window into the calendar. A start before the
// data uses the first date; an end after it, or zero, uses the last.
func (s *Simulator) clampWindow(cal []time.Time) (time.Time, time.Time, error) {
	first, last := cal[0], cal[len(cal)-1]

	start := domain.Day(s.opts.Start)
	if s.opts.Start.IsZero() || start.Before(first) {
		start = first
	}
	end := domain.Day(s.opts.End)
	if s.opts.End.IsZero() || end.After(last) {
		end = last
	}
	if start.After(last) {
		return time.Time{}, time.Time{}, &SetupError{Reason: fmt.Sprintf(
			"start %s is after the last available date %s", start.Format("2006-01-02"), last.Format("2006-01-02"))}
	}

	// Snap end back to a trading day.
	i := indexOf(cal, end)
	if i < 0 || cal[i].Before(start) {
		return time.Time{}, time.Time{}, &SetupError{Reason: fmt.Sprintf(
			"end %s is before start %s", end.Format("2006-01-02"), start.Format("2006-01-02"))}
	}
	return start, cal[i], nil
}

// indexOf returns the index of the last calendar date on or before d, or -1.
func indexOf(cal []time.Time, d time.Time) int {
	lo, hi := 0, len(cal)
	for lo < hi {
		mid := (lo + hi) / 2
		if cal[mid].After(d) {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo - 1
}

// ---------------------------------------------------------------------------
// Run
// ---------------------------------------------------------------------------

// Run advances the calendar until the end date, stepping the trader and
// snapshotting the monitor each day. Any error is fatal and ends the run.
func (s *Simulator) Run(ctx context.Context) (*Result, error) {
	if s.state != StateReady {
		return nil, ErrNotReady
	}
	s.state = StateRunning
	defer func() { s.state = StateDone }()

	m := s.opts.Market
	for m.CurrentDate().Before(s.end) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := m.Advance(); err != nil {
			return nil, fmt.Errorf("advance: %w", err)
		}
		date := m.CurrentDate().Format("2006-01-02")
		if err := s.opts.Trader.Step(); err != nil {
			return nil, fmt.Errorf("step %s: %w", date, err)
		}
		if err := s.opts.Monitor.Snapshot(); err != nil {
			return nil, err
		}
	}

	res := &Result{
		Summary:  s.opts.Monitor.Summary(s.opts.RiskFreeRate),
		Fills:    s.opts.Ledger.Fills(),
		Holdings: s.opts.Ledger.Holdings(),
		Start:    s.start,
		End:      s.end,
		Days:     s.opts.Monitor.Days(),
	}
	s.log.Info("simulation done",
		"days", res.Days,
		"final_value", res.Summary.EndValue,
		"cagr", res.Summary.CAGR.Value,
		"max_drawdown", res.Summary.MaxDrawdown.Amount,
		"trades", res.Summary.Trades,
	)
	return res, nil
}
