package market

import (
	"context"
	"errors"
	"testing"
	"time"

	"folio/internal/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func series(ticker string, dates []time.Time, values ...float64) domain.Series {
	return domain.Series{Ticker: ticker, Dates: dates, Values: values}
}

func newTestMarket(t *testing.T) *Market {
	t.Helper()
	spyDates := []time.Time{day(2024, 1, 2), day(2024, 1, 3), day(2024, 1, 4), day(2024, 1, 5), day(2024, 1, 8)}
	tltDates := []time.Time{day(2024, 1, 3), day(2024, 1, 4), day(2024, 1, 8), day(2024, 1, 9)}
	src := StaticSource{
		"SPY": series("SPY", spyDates, 10, 11, 12, 13, 14),
		"TLT": series("TLT", tltDates, 20, 21, 22, 23),
	}
	m := New(src)
	for _, ticker := range []string{"spy", "TLT"} {
		if err := m.AddTicker(context.Background(), ticker); err != nil {
			t.Fatalf("AddTicker(%s): %v", ticker, err)
		}
	}
	return m
}

func TestCalendarIntersection(t *testing.T) {
	m := newTestMarket(t)
	if err := m.SetCalendarFromTrackedTickers(); err != nil {
		t.Fatalf("SetCalendarFromTrackedTickers: %v", err)
	}

	want := []time.Time{day(2024, 1, 3), day(2024, 1, 4), day(2024, 1, 8)}
	got := m.Calendar()
	if len(got) != len(want) {
		t.Fatalf("Calendar() = %v, want %v", got, want)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("Calendar()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
	if !m.CurrentDate().Equal(want[0]) || m.CurrentIndex() != 0 {
		t.Errorf("cursor at %s (%d), want first date", m.CurrentDate(), m.CurrentIndex())
	}
	if got := m.Tickers(); len(got) != 2 || got[0] != "SPY" || got[1] != "TLT" {
		t.Errorf("Tickers() = %v, want [SPY TLT]", got)
	}
}

func TestCalendarEmpty(t *testing.T) {
	m := New(nil)
	if err := m.SetCalendarFromTrackedTickers(); !errors.Is(err, ErrEmptyCalendar) {
		t.Errorf("no tickers: error = %v, want ErrEmptyCalendar", err)
	}

	m.Inject(series("A", []time.Time{day(2024, 1, 2)}, 1))
	m.Inject(series("B", []time.Time{day(2024, 2, 2)}, 1))
	if err := m.SetCalendarFromTrackedTickers(); !errors.Is(err, ErrEmptyCalendar) {
		t.Errorf("disjoint tickers: error = %v, want ErrEmptyCalendar", err)
	}
}

func TestAdvanceToEnd(t *testing.T) {
	m := newTestMarket(t)
	_ = m.SetCalendarFromTrackedTickers()

	steps := 0
	for {
		err := m.Advance()
		if errors.Is(err, ErrEndOfCalendar) {
			break
		}
		if err != nil {
			t.Fatalf("Advance: %v", err)
		}
		steps++
	}
	if steps != len(m.Calendar())-1 {
		t.Errorf("advanced %d times, want %d", steps, len(m.Calendar())-1)
	}
	if !m.CurrentDate().Equal(day(2024, 1, 8)) {
		t.Errorf("CurrentDate() = %s, want 2024-01-08", m.CurrentDate())
	}
}

func TestAdvancePeriodFlags(t *testing.T) {
	dates := []time.Time{day(2023, 12, 29), day(2024, 1, 2), day(2024, 1, 31), day(2024, 2, 1), day(2024, 4, 1), day(2024, 4, 2)}
	m := New(nil)
	m.Inject(series("X", dates, 1, 2, 3, 4, 5, 6))
	if err := m.SetCalendarFromTrackedTickers(); err != nil {
		t.Fatal(err)
	}

	want := []domain.PeriodFlags{
		{MonthChanged: true, QuarterChanged: true, YearChanged: true},
		{},
		{MonthChanged: true},
		{MonthChanged: true, QuarterChanged: true},
		{},
	}
	for i, w := range want {
		if err := m.Advance(); err != nil {
			t.Fatalf("Advance %d: %v", i, err)
		}
		if m.Flags() != w {
			t.Errorf("step %d (%s): Flags() = %+v, want %+v", i, m.CurrentDate().Format("2006-01-02"), m.Flags(), w)
		}
	}
}

func TestPriceLookups(t *testing.T) {
	m := newTestMarket(t)
	_ = m.SetCalendarFromTrackedTickers()
	_ = m.Advance() // 2024-01-04

	p, err := m.Price("spy")
	if err != nil || p != 12 {
		t.Errorf("Price(spy) = %v, %v; want 12", p, err)
	}

	hist, err := m.Prices("SPY", 3)
	if err != nil {
		t.Fatalf("Prices: %v", err)
	}
	if len(hist) != 3 || hist[0] != 10 || hist[2] != 12 {
		t.Errorf("Prices(SPY, 3) = %v, want [10 11 12]", hist)
	}

	// Longer lookback than available history truncates.
	hist, _ = m.Prices("TLT", 10)
	if len(hist) != 2 || hist[0] != 20 || hist[1] != 21 {
		t.Errorf("Prices(TLT, 10) = %v, want [20 21]", hist)
	}
}

func TestMissingPrice(t *testing.T) {
	m := newTestMarket(t)
	_ = m.SetCalendarFromTrackedTickers()

	_, err := m.Price("QQQ")
	var mpe *MissingPriceError
	if !errors.As(err, &mpe) {
		t.Fatalf("Price(QQQ) error = %v, want MissingPriceError", err)
	}
	if mpe.Ticker != "QQQ" || mpe.Field != FieldPrice {
		t.Errorf("MissingPriceError = %+v", mpe)
	}

	_, err = m.Indicator("SPY", "SMA_5")
	if !errors.As(err, &mpe) {
		t.Errorf("Indicator without AddIndicator error = %v, want MissingPriceError", err)
	}
}

func TestIndicatorLookup(t *testing.T) {
	m := newTestMarket(t)
	if err := m.AddIndicator("SPY", "sma_2"); err != nil {
		t.Fatalf("AddIndicator: %v", err)
	}
	if err := m.AddIndicator("SPY", "BOGUS_1"); err == nil {
		t.Error("AddIndicator with bad code should fail")
	}
	_ = m.SetCalendarFromTrackedTickers()

	// 2024-01-03 is index 1 of SPY: mean(10, 11).
	v, err := m.Indicator("SPY", "SMA_2")
	if err != nil || v != 10.5 {
		t.Errorf("Indicator(SPY, SMA_2) = %v, %v; want 10.5", v, err)
	}
}

func TestSeekDate(t *testing.T) {
	m := newTestMarket(t)
	_ = m.SetCalendarFromTrackedTickers()

	if err := m.SeekDate(day(2024, 1, 5)); err != nil {
		t.Fatalf("SeekDate: %v", err)
	}
	if !m.CurrentDate().Equal(day(2024, 1, 8)) {
		t.Errorf("CurrentDate() = %s, want 2024-01-08", m.CurrentDate())
	}

	// Seeking backwards leaves the cursor in place.
	_ = m.SeekDate(day(2024, 1, 1))
	if !m.CurrentDate().Equal(day(2024, 1, 8)) {
		t.Errorf("backward seek moved cursor to %s", m.CurrentDate())
	}

	if err := m.SeekDate(day(2024, 2, 1)); !errors.Is(err, ErrEndOfCalendar) {
		t.Errorf("SeekDate past end error = %v, want ErrEndOfCalendar", err)
	}
}

func TestInjectNormalisesDates(t *testing.T) {
	m := New(nil)
	ts := time.Date(2024, 3, 1, 16, 0, 0, 0, time.UTC)
	m.Inject(series("abc", []time.Time{ts}, 5))
	_ = m.SetCalendarFromTrackedTickers()

	if p, err := m.Price("ABC"); err != nil || p != 5 {
		t.Errorf("Price(ABC) = %v, %v; want 5", p, err)
	}
}
