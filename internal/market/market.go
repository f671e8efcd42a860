// Package market holds the per-ticker price and indicator series used by a
// simulation, owns the trading calendar and exposes the current-date cursor.
//
// A Market is created per run and passed explicitly to every component that
// needs prices; there is no package-level instance.
package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"folio/internal/domain"
	"folio/internal/indicator"
	"folio/internal/util"
)

// FieldPrice is the Field of a MissingPriceError raised by a price lookup.
const FieldPrice = "PRICE"

var (
	// ErrEmptyCalendar is returned when the tracked tickers share no dates.
	ErrEmptyCalendar = errors.New("tracked tickers have no overlapping dates")

	// ErrEndOfCalendar is returned when advancing past the last calendar date.
	ErrEndOfCalendar = errors.New("end of calendar")
)

// MissingPriceError reports a price or indicator lookup that has no value.
type MissingPriceError struct {
	Ticker string
	Field  string
	Date   time.Time
}

func (e *MissingPriceError) Error() string {
	if e.Date.IsZero() {
		return fmt.Sprintf("missing %s for %s: ticker not tracked", e.Field, e.Ticker)
	}
	return fmt.Sprintf("missing %s for %s on %s", e.Field, e.Ticker, e.Date.Format("2006-01-02"))
}

// SeriesSource supplies dense, date-ascending closing price series.
type SeriesSource interface {
	Series(ctx context.Context, ticker string) (domain.Series, error)
}

// tracked is one ticker's series plus derived indicator series aligned to it.
type tracked struct {
	series     domain.Series
	index      map[time.Time]int
	indicators map[string][]float64
}

// Market is the price store for one simulation run.
type Market struct {
	source  SeriesSource
	tickers map[string]*tracked
	order   []string

	calendar []time.Time
	cursor   int
	flags    domain.PeriodFlags

	log *slog.Logger
}

// Option configures a Market.
type Option func(*Market)

// WithLogger sets the logger used for load diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(m *Market) { m.log = l }
}

// New creates an empty Market that loads series from source. source may be
// nil when every series is injected.
func New(source SeriesSource, opts ...Option) *Market {
	m := &Market{
		source:  source,
		tickers: make(map[string]*tracked),
		log:     slog.Default().With("component", "market"),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func normalise(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// AddTicker loads the series for ticker from the source. Adding a ticker that
// is already tracked is a no-op.
func (m *Market) AddTicker(ctx context.Context, ticker string) error {
	ticker = normalise(ticker)
	if _, ok := m.tickers[ticker]; ok {
		return nil
	}
	if m.source == nil {
		return fmt.Errorf("adding %s: no series source", ticker)
	}

	s, err := m.source.Series(ctx, ticker)
	if err != nil {
		return fmt.Errorf("loading %s: %w", ticker, err)
	}
	if s.Len() == 0 {
		return fmt.Errorf("loading %s: empty series", ticker)
	}
	s.Ticker = ticker
	m.Inject(s)

	m.log.Debug("ticker added", "ticker", ticker, "points", s.Len(),
		"first", s.First().Format("2006-01-02"), "last", s.Last().Format("2006-01-02"))
	return nil
}

// Inject assigns a series directly, replacing any series already tracked for
// the same ticker together with its indicators.
func (m *Market) Inject(s domain.Series) {
	ticker := normalise(s.Ticker)
	s.Ticker = ticker

	dates := make([]time.Time, s.Len())
	t := &tracked{
		index:      make(map[time.Time]int, s.Len()),
		indicators: make(map[string][]float64),
	}
	for i, d := range s.Dates {
		dates[i] = domain.Day(d)
		t.index[dates[i]] = i
	}
	s.Dates = dates
	t.series = s
	if _, ok := m.tickers[ticker]; !ok {
		m.order = append(m.order, ticker)
	}
	m.tickers[ticker] = t
}

// AddIndicator computes the indicator identified by code over the full series
// of ticker. The ticker must already be tracked.
func (m *Market) AddIndicator(ticker, code string) error {
	ticker = normalise(ticker)
	t, ok := m.tickers[ticker]
	if !ok {
		return &MissingPriceError{Ticker: ticker, Field: code}
	}
	c, err := indicator.ParseCode(code)
	if err != nil {
		return err
	}
	key := c.String()
	if _, ok := t.indicators[key]; ok {
		return nil
	}
	t.indicators[key] = c.Compute(t.series.Values)
	return nil
}

// Series returns the full series tracked for ticker.
func (m *Market) Series(ticker string) (domain.Series, bool) {
	t, ok := m.tickers[normalise(ticker)]
	if !ok {
		return domain.Series{}, false
	}
	return t.series, true
}

// Tickers returns the tracked tickers in the order they were added.
func (m *Market) Tickers() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// ---------------------------------------------------------------------------
// Calendar
// ---------------------------------------------------------------------------

// SetCalendarFromTrackedTickers builds the trading calendar from the range
// every tracked ticker covers: the latest first date to the earliest last
// date. Only dates present in every series are kept. The cursor is reset to
// the first date.
func (m *Market) SetCalendarFromTrackedTickers() error {
	if len(m.order) == 0 {
		return ErrEmptyCalendar
	}

	var from, to time.Time
	for i, ticker := range m.order {
		s := m.tickers[ticker].series
		if i == 0 || s.First().After(from) {
			from = s.First()
		}
		if i == 0 || s.Last().Before(to) {
			to = s.Last()
		}
	}
	if to.Before(from) {
		return fmt.Errorf("%w: range %s..%s", ErrEmptyCalendar, from.Format("2006-01-02"), to.Format("2006-01-02"))
	}

	base := m.tickers[m.order[0]].series.Slice(from, to)
	calendar := make([]time.Time, 0, base.Len())
	for _, d := range base.Dates {
		d = domain.Day(d)
		if m.coveredByAll(d) {
			calendar = append(calendar, d)
		}
	}
	if len(calendar) == 0 {
		return ErrEmptyCalendar
	}

	m.calendar = calendar
	m.cursor = 0
	m.flags = domain.PeriodFlags{}
	return nil
}

func (m *Market) coveredByAll(d time.Time) bool {
	for _, ticker := range m.order {
		if _, ok := m.tickers[ticker].index[d]; !ok {
			return false
		}
	}
	return true
}

// Calendar returns the trading calendar.
func (m *Market) Calendar() []time.Time { return m.calendar }

// CurrentIndex returns the cursor position in the calendar.
func (m *Market) CurrentIndex() int { return m.cursor }

// CurrentDate returns the calendar date under the cursor, or the zero time
// before the calendar is built.
func (m *Market) CurrentDate() time.Time {
	if len(m.calendar) == 0 {
		return time.Time{}
	}
	return m.calendar[m.cursor]
}

// Flags returns the period boundaries crossed by the most recent Advance.
func (m *Market) Flags() domain.PeriodFlags { return m.flags }

// Advance moves the cursor one trading day forward and recomputes the period
// flags. It returns ErrEndOfCalendar at the last date.
func (m *Market) Advance() error {
	if m.cursor+1 >= len(m.calendar) {
		return ErrEndOfCalendar
	}
	prev := m.calendar[m.cursor]
	m.cursor++
	m.flags = util.PeriodFlagsBetween(prev, m.calendar[m.cursor])
	return nil
}

// SeekDate moves the cursor forward to the first calendar date on or after
// date. The cursor never moves backwards. Flags are cleared.
func (m *Market) SeekDate(date time.Time) error {
	date = domain.Day(date)
	i := sort.Search(len(m.calendar), func(i int) bool { return !m.calendar[i].Before(date) })
	if i >= len(m.calendar) {
		return ErrEndOfCalendar
	}
	if i > m.cursor {
		m.cursor = i
	}
	m.flags = domain.PeriodFlags{}
	return nil
}

// ---------------------------------------------------------------------------
// Lookups
// ---------------------------------------------------------------------------

func (m *Market) position(ticker, field string) (*tracked, int, error) {
	t, ok := m.tickers[ticker]
	if !ok {
		return nil, 0, &MissingPriceError{Ticker: ticker, Field: field}
	}
	date := m.CurrentDate()
	i, ok := t.index[date]
	if !ok {
		return nil, 0, &MissingPriceError{Ticker: ticker, Field: field, Date: date}
	}
	return t, i, nil
}

// Price returns the closing price of ticker at the cursor date.
func (m *Market) Price(ticker string) (float64, error) {
	ticker = normalise(ticker)
	t, i, err := m.position(ticker, FieldPrice)
	if err != nil {
		return 0, err
	}
	return t.series.Values[i], nil
}

// Prices returns up to lookback prices of ticker ending at the cursor date
// inclusive, oldest first. Fewer are returned when the series is shorter.
func (m *Market) Prices(ticker string, lookback int) ([]float64, error) {
	ticker = normalise(ticker)
	t, i, err := m.position(ticker, FieldPrice)
	if err != nil {
		return nil, err
	}
	if lookback < 1 {
		lookback = 1
	}
	from := max(0, i+1-lookback)
	out := make([]float64, i+1-from)
	copy(out, t.series.Values[from:i+1])
	return out, nil
}

// Indicator returns the value of the indicator code for ticker at the cursor
// date. The indicator must have been added with AddIndicator.
func (m *Market) Indicator(ticker, code string) (float64, error) {
	ticker = normalise(ticker)
	key := code
	if c, err := indicator.ParseCode(code); err == nil {
		key = c.String()
	}
	t, i, err := m.position(ticker, key)
	if err != nil {
		return 0, err
	}
	values, ok := t.indicators[key]
	if !ok {
		return 0, &MissingPriceError{Ticker: ticker, Field: key, Date: m.CurrentDate()}
	}
	return values[i], nil
}
