// Package domain defines the value types shared by the simulation core and
// the storage, acquisition and reporting layers around it.
package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Market data
// ---------------------------------------------------------------------------

// Bar is one daily OHLCV record as fetched and stored on disk.
type Bar struct {
	Symbol     string
	Timestamp  time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     int64
	TradeCount int64
	VWAP       float64
}

// Day normalises t to midnight UTC of its calendar date. All dates used as
// keys inside the simulation go through Day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD string into a normalised date.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return t, nil
}

// Series is a dense, date-ascending sequence of closing prices (or derived
// values) for one ticker. Dates and Values always have the same length.
type Series struct {
	Ticker string
	Dates  []time.Time
	Values []float64
}

// Len returns the number of points in the series.
func (s Series) Len() int { return len(s.Dates) }

// First returns the first date, or the zero time for an empty series.
func (s Series) First() time.Time {
	if len(s.Dates) == 0 {
		return time.Time{}
	}
	return s.Dates[0]
}

// Last returns the last date, or the zero time for an empty series.
func (s Series) Last() time.Time {
	if len(s.Dates) == 0 {
		return time.Time{}
	}
	return s.Dates[len(s.Dates)-1]
}

// Index returns the position of date in the series using binary search.
func (s Series) Index(date time.Time) (int, bool) {
	date = Day(date)
	i := sort.Search(len(s.Dates), func(i int) bool { return !s.Dates[i].Before(date) })
	if i < len(s.Dates) && s.Dates[i].Equal(date) {
		return i, true
	}
	return i, false
}

// Slice returns the sub-series with dates in [from, to].
func (s Series) Slice(from, to time.Time) Series {
	lo, _ := s.Index(from)
	hi, ok := s.Index(to)
	if ok {
		hi++
	}
	if lo > hi {
		lo = hi
	}
	return Series{Ticker: s.Ticker, Dates: s.Dates[lo:hi], Values: s.Values[lo:hi]}
}

// SeriesFromBars builds a closing-price series from bars, normalising
// timestamps to dates. Later bars for the same date replace earlier ones and
// the result is sorted ascending.
func SeriesFromBars(ticker string, bars []Bar) Series {
	byDay := make(map[time.Time]float64, len(bars))
	for _, b := range bars {
		byDay[Day(b.Timestamp)] = b.Close
	}
	dates := make([]time.Time, 0, len(byDay))
	for d := range byDay {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	values := make([]float64, len(dates))
	for i, d := range dates {
		values[i] = byDay[d]
	}
	return Series{Ticker: strings.ToUpper(ticker), Dates: dates, Values: values}
}

// ---------------------------------------------------------------------------
// Calendar periods
// ---------------------------------------------------------------------------

// Period identifies a calendar boundary used by contribution and rebalance
// schedules.
type Period int

const (
	PeriodNone Period = iota
	PeriodMonth
	PeriodQuarter
	PeriodYear
)

// ParsePeriod accepts the short and long spellings of a period code. An empty
// string or "none" yields PeriodNone.
func ParsePeriod(s string) (Period, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return PeriodNone, nil
	case "m", "month", "monthly":
		return PeriodMonth, nil
	case "q", "quarter", "quarterly":
		return PeriodQuarter, nil
	case "y", "year", "yearly", "annual":
		return PeriodYear, nil
	default:
		return PeriodNone, fmt.Errorf("unknown period %q", s)
	}
}

func (p Period) String() string {
	switch p {
	case PeriodMonth:
		return "month"
	case PeriodQuarter:
		return "quarter"
	case PeriodYear:
		return "year"
	default:
		return "none"
	}
}

// PeriodFlags records which calendar boundaries were crossed by the latest
// cursor move.
type PeriodFlags struct {
	MonthChanged   bool
	QuarterChanged bool
	YearChanged    bool
}

// Has reports whether the boundary for p was crossed.
func (f PeriodFlags) Has(p Period) bool {
	switch p {
	case PeriodMonth:
		return f.MonthChanged
	case PeriodQuarter:
		return f.QuarterChanged
	case PeriodYear:
		return f.YearChanged
	default:
		return false
	}
}

// ---------------------------------------------------------------------------
// Trading
// ---------------------------------------------------------------------------

// OrderSide represents the direction of a fill.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// Fill is one executed ledger trade.
type Fill struct {
	Date       time.Time
	Ticker     string
	Side       OrderSide
	Shares     int64
	Price      float64
	Commission float64
}

// Notional returns shares times price, ignoring commission.
func (f Fill) Notional() float64 {
	return float64(f.Shares) * f.Price
}
