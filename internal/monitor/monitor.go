// Package monitor records per-day run history and derives the performance
// statistics of a simulation: CAGR, drawdown, annual returns, Sharpe and
// Sortino ratios.
package monitor

import (
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"folio/internal/domain"
)

// Market is the view of the price store read at each snapshot.
type Market interface {
	CurrentDate() time.Time
	Flags() domain.PeriodFlags
	Price(ticker string) (float64, error)
}

// Ledger is the view of the portfolio read at each snapshot.
type Ledger interface {
	Value() (decimal.Decimal, error)
	SharesOf(ticker string) int64
	StartingCash() decimal.Decimal
	TotalContributions() decimal.Decimal
	TradeCount() int
}

// Drawdown is the deepest peak-to-trough decline seen so far.
type Drawdown struct {
	Amount    float64   // negative fraction, 0 when none
	From      time.Time // date of the peak
	To        time.Time // date of the trough
	Recovered time.Time // first date back at or above the peak, zero if not yet
}

// IsRecovered reports whether value regained the peak after the trough.
func (d Drawdown) IsRecovered() bool { return !d.Recovered.IsZero() }

// MonthReturn is the contribution-adjusted return of one calendar month.
type MonthReturn struct {
	Month  time.Time // first day of the month
	Return float64
}

// YearReturn is the contribution-adjusted return of one calendar year.
type YearReturn struct {
	Year    int
	Return  float64
	Partial bool // the run did not cover the whole year
}

// periodOpen is the state at the start of a month or year.
type periodOpen struct {
	date        time.Time
	value       float64
	contributed float64
}

// Monitor snapshots ledger and market state into append-only history
// buffers and maintains running statistics.
type Monitor struct {
	market  Market
	ledger  Ledger
	tickers []string

	dates       []time.Time
	values      []float64
	allocation  [][]float64 // per day, indexed like tickers
	contributed []float64   // starting cash plus contributions to date
	growth      []float64

	month  periodOpen
	year   periodOpen
	months []MonthReturn
	years  []YearReturn
	prior  time.Time // trading day before the first snapshot, if any

	runningMax  float64
	minSinceMax float64
	peakDate    time.Time
	drawdown    Drawdown
}

// New creates a Monitor recording the allocation of tickers.
func New(m Market, l Ledger, tickers []string) *Monitor {
	sorted := slices.Clone(tickers)
	sort.Strings(sorted)
	return &Monitor{market: m, ledger: l, tickers: slices.Compact(sorted)}
}

// SetPriorDate records the trading day before the first snapshot. The first
// year counts as whole only when that day falls in an earlier year; without
// it the first year is partial.
func (m *Monitor) SetPriorDate(d time.Time) { m.prior = d }

// Reserve pre-sizes the history buffers for days more snapshots.
func (m *Monitor) Reserve(days int) {
	if days <= 0 {
		return
	}
	m.dates = slices.Grow(m.dates, days)
	m.values = slices.Grow(m.values, days)
	m.allocation = slices.Grow(m.allocation, days)
	m.contributed = slices.Grow(m.contributed, days)
	m.growth = slices.Grow(m.growth, days)
	m.months = slices.Grow(m.months, days/21+1)
}

// ---------------------------------------------------------------------------
// Snapshot
// ---------------------------------------------------------------------------

// Snapshot appends the state at the market's current date.
func (m *Monitor) Snapshot() error {
	date := m.market.CurrentDate()
	v, err := m.ledger.Value()
	if err != nil {
		return fmt.Errorf("snapshot %s: %w", date.Format("2006-01-02"), err)
	}
	value := v.InexactFloat64()
	contributed := m.ledger.StartingCash().Add(m.ledger.TotalContributions()).InexactFloat64()

	alloc := make([]float64, len(m.tickers))
	if value != 0 {
		for i, ticker := range m.tickers {
			shares := m.ledger.SharesOf(ticker)
			if shares == 0 {
				continue
			}
			price, err := m.market.Price(ticker)
			if err != nil {
				return fmt.Errorf("snapshot %s: %w", date.Format("2006-01-02"), err)
			}
			alloc[i] = float64(shares) * price / value
		}
	}

	m.updatePeriods(date, value, contributed)

	m.dates = append(m.dates, date)
	m.values = append(m.values, value)
	m.allocation = append(m.allocation, alloc)
	m.contributed = append(m.contributed, contributed)
	m.growth = append(m.growth, max(0, value-contributed))

	m.updateDrawdown(date, value)
	return nil
}

// updatePeriods closes the month and year that ended on the previous
// snapshot. The new period opens at that previous close so contributions
// made on the boundary day count toward the new period.
func (m *Monitor) updatePeriods(date time.Time, value, contributed float64) {
	if len(m.dates) == 0 {
		open := periodOpen{date: date, value: value, contributed: contributed}
		m.month, m.year = open, open
		return
	}

	flags := m.market.Flags()
	last := len(m.dates) - 1
	prev := periodOpen{date: date, value: m.values[last], contributed: m.contributed[last]}

	if flags.MonthChanged {
		m.months = append(m.months, MonthReturn{
			Month:  firstOfMonth(m.month.date),
			Return: periodReturn(m.month, prev.value, prev.contributed),
		})
		m.month = prev
	}
	if flags.YearChanged {
		m.years = append(m.years, YearReturn{
			Year:    m.year.date.Year(),
			Return:  periodReturn(m.year, prev.value, prev.contributed),
			Partial: m.year.date.Equal(m.dates[0]) && !m.firstYearWhole(),
		})
		m.year = prev
	}
}

func (m *Monitor) firstYearWhole() bool {
	return !m.prior.IsZero() && m.prior.Year() < m.dates[0].Year()
}

func periodReturn(open periodOpen, value, contributed float64) float64 {
	if open.value <= 0 {
		return 0
	}
	return (value-(contributed-open.contributed))/open.value - 1
}

func firstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// updateDrawdown runs in constant time per snapshot.
func (m *Monitor) updateDrawdown(date time.Time, value float64) {
	if len(m.dates) == 1 || value >= m.runningMax {
		m.runningMax = value
		m.minSinceMax = value
		m.peakDate = date
		if m.drawdown.Amount < 0 && !m.drawdown.IsRecovered() {
			m.drawdown.Recovered = date
		}
		return
	}
	if value >= m.minSinceMax {
		return
	}
	m.minSinceMax = value
	if m.runningMax <= 0 {
		return
	}
	candidate := m.minSinceMax/m.runningMax - 1
	if candidate < m.drawdown.Amount {
		m.drawdown = Drawdown{Amount: candidate, From: m.peakDate, To: date}
	}
}

// ---------------------------------------------------------------------------
// Getters
// ---------------------------------------------------------------------------

// Days returns the number of snapshots taken.
func (m *Monitor) Days() int { return len(m.dates) }

// Tickers returns the tickers whose allocation is recorded, sorted.
func (m *Monitor) Tickers() []string { return slices.Clone(m.tickers) }

// MaxDrawdown returns the deepest drawdown recorded so far.
func (m *Monitor) MaxDrawdown() Drawdown { return m.drawdown }

// ValueSeries returns the portfolio value per day.
func (m *Monitor) ValueSeries() ([]time.Time, []float64) {
	return slices.Clone(m.dates), slices.Clone(m.values)
}

// AllocationSeries returns, per ticker, the fraction of value held per day.
func (m *Monitor) AllocationSeries() ([]time.Time, map[string][]float64) {
	out := make(map[string][]float64, len(m.tickers))
	for i, ticker := range m.tickers {
		ys := make([]float64, len(m.allocation))
		for d, alloc := range m.allocation {
			ys[d] = alloc[i]
		}
		out[ticker] = ys
	}
	return slices.Clone(m.dates), out
}

// ContributionSeries returns the contributed capital and the growth above it
// per day.
func (m *Monitor) ContributionSeries() ([]time.Time, []float64, []float64) {
	return slices.Clone(m.dates), slices.Clone(m.contributed), slices.Clone(m.growth)
}

// MonthlyReturns returns every closed month followed by the month in
// progress.
func (m *Monitor) MonthlyReturns() []MonthReturn {
	out := slices.Clone(m.months)
	if n := len(m.dates); n > 0 {
		out = append(out, MonthReturn{
			Month:  firstOfMonth(m.month.date),
			Return: periodReturn(m.month, m.values[n-1], m.contributed[n-1]),
		})
	}
	return out
}

// AnnualReturns returns every closed year followed by the year in progress,
// which is always partial.
func (m *Monitor) AnnualReturns() []YearReturn {
	out := slices.Clone(m.years)
	if n := len(m.dates); n > 0 {
		out = append(out, YearReturn{
			Year:    m.year.date.Year(),
			Return:  periodReturn(m.year, m.values[n-1], m.contributed[n-1]),
			Partial: true,
		})
	}
	return out
}

// AnnualReturnSeries returns the annual returns as chartable pairs.
func (m *Monitor) AnnualReturnSeries() ([]int, []float64) {
	rs := m.AnnualReturns()
	years := make([]int, len(rs))
	values := make([]float64, len(rs))
	for i, r := range rs {
		years[i] = r.Year
		values[i] = r.Return
	}
	return years, values
}
