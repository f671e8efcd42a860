package portfolio

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"folio/internal/domain"
)

type fakePrices struct {
	date   time.Time
	prices map[string]float64
}

func (f *fakePrices) Price(ticker string) (float64, error) {
	p, ok := f.prices[ticker]
	if !ok {
		return 0, errors.New("no price for " + ticker)
	}
	return p, nil
}

func (f *fakePrices) CurrentDate() time.Time { return f.date }

func newFake() *fakePrices {
	return &fakePrices{
		date:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		prices: map[string]float64{"SPY": 30, "TLT": 12.5},
	}
}

func dec(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func TestBuyClampsToAffordable(t *testing.T) {
	l := New(newFake())
	if err := l.Seed(dec(100)); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	got, err := l.Buy("SPY", 5)
	if err != nil {
		t.Fatalf("Buy: %v", err)
	}
	if got != 3 {
		t.Errorf("Buy filled %d, want 3", got)
	}
	if !l.Cash().Equal(dec(10)) {
		t.Errorf("Cash() = %s, want 10", l.Cash())
	}
	if l.SharesOf("SPY") != 3 {
		t.Errorf("SharesOf(SPY) = %d, want 3", l.SharesOf("SPY"))
	}
	if l.TradeCount() != 1 {
		t.Errorf("TradeCount() = %d, want 1", l.TradeCount())
	}
}

func TestBuyClampWithCommission(t *testing.T) {
	l := New(newFake(), WithCommission(dec(5)))
	_ = l.Seed(dec(100))

	got, err := l.Buy("SPY", 5)
	if err != nil {
		t.Fatalf("Buy: %v", err)
	}
	// (100 - 5) / 30 = 3.17 -> 3 shares, cost 95.
	if got != 3 || !l.Cash().Equal(dec(5)) {
		t.Errorf("Buy filled %d cash %s, want 3 and 5", got, l.Cash())
	}
}

func TestBuyUnaffordableIsNoop(t *testing.T) {
	l := New(newFake())
	_ = l.Seed(dec(20))

	got, err := l.Buy("SPY", 1)
	if err != nil || got != 0 {
		t.Fatalf("Buy = %d, %v; want 0, nil", got, err)
	}
	if l.TradeCount() != 0 || !l.Cash().Equal(dec(20)) {
		t.Errorf("ledger changed: trades %d cash %s", l.TradeCount(), l.Cash())
	}
}

func TestZeroAndNegativeOrders(t *testing.T) {
	l := New(newFake())
	_ = l.Seed(dec(100))

	if n, err := l.Buy("SPY", 0); n != 0 || err != nil {
		t.Errorf("Buy(0) = %d, %v", n, err)
	}
	if n, err := l.Sell("SPY", 0); n != 0 || err != nil {
		t.Errorf("Sell(0) = %d, %v", n, err)
	}
	if _, err := l.Buy("SPY", -1); !errors.Is(err, ErrNegativeAmount) {
		t.Errorf("Buy(-1) error = %v, want ErrNegativeAmount", err)
	}
	if l.TradeCount() != 0 {
		t.Errorf("TradeCount() = %d, want 0", l.TradeCount())
	}
}

func TestValueConservation(t *testing.T) {
	l := New(newFake())
	_ = l.Seed(dec(1000))

	before, _ := l.Value()
	if _, err := l.Buy("TLT", 40); err != nil {
		t.Fatalf("Buy: %v", err)
	}
	if _, err := l.Sell("TLT", 40); err != nil {
		t.Fatalf("Sell: %v", err)
	}
	after, err := l.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if !after.Equal(before) {
		t.Errorf("Value() = %s, want %s", after, before)
	}
}

func TestCommissionReducesValue(t *testing.T) {
	l := New(newFake(), WithCommission(dec(1)))
	_ = l.Seed(dec(1000))

	_, _ = l.Buy("TLT", 10)
	_, _ = l.Sell("TLT", 10)
	v, _ := l.Value()
	if !v.Equal(dec(998)) {
		t.Errorf("Value() = %s, want 998", v)
	}
}

func TestSellCanGoNegative(t *testing.T) {
	l := New(newFake())
	_ = l.Seed(dec(100))

	if _, err := l.Sell("SPY", 2); err != nil {
		t.Fatalf("Sell: %v", err)
	}
	if l.SharesOf("SPY") != -2 {
		t.Errorf("SharesOf(SPY) = %d, want -2", l.SharesOf("SPY"))
	}
	v, _ := l.Value()
	if !v.Equal(dec(100)) {
		t.Errorf("Value() = %s, want 100", v)
	}
}

func TestSharesOfUnknownTicker(t *testing.T) {
	l := New(newFake())
	if l.SharesOf("NOPE") != 0 {
		t.Errorf("SharesOf(NOPE) = %d, want 0", l.SharesOf("NOPE"))
	}
}

func TestValueMissingPrice(t *testing.T) {
	fp := newFake()
	l := New(fp)
	_ = l.Seed(dec(100))
	_, _ = l.Buy("SPY", 1)

	delete(fp.prices, "SPY")
	if _, err := l.Value(); err == nil {
		t.Error("Value() should fail when a held ticker has no price")
	}
}

func TestSeedAndContributions(t *testing.T) {
	l := New(newFake())
	_ = l.Seed(dec(500))
	_ = l.AddCash(dec(100))
	_ = l.AddCash(dec(50))

	if !l.StartingCash().Equal(dec(500)) {
		t.Errorf("StartingCash() = %s, want 500", l.StartingCash())
	}
	if !l.TotalContributions().Equal(dec(150)) {
		t.Errorf("TotalContributions() = %s, want 150", l.TotalContributions())
	}
	if !l.Cash().Equal(dec(650)) {
		t.Errorf("Cash() = %s, want 650", l.Cash())
	}
	if err := l.AddCash(dec(-1)); !errors.Is(err, ErrNegativeAmount) {
		t.Errorf("AddCash(-1) error = %v, want ErrNegativeAmount", err)
	}
}

func TestFillsRecorded(t *testing.T) {
	fp := newFake()
	l := New(fp)
	_ = l.Seed(dec(1000))
	_, _ = l.Buy("spy", 2)
	_, _ = l.Sell("SPY", 1)

	fills := l.Fills()
	if len(fills) != 2 {
		t.Fatalf("len(Fills()) = %d, want 2", len(fills))
	}
	if fills[0].Side != domain.OrderSideBuy || fills[0].Ticker != "SPY" || fills[0].Shares != 2 {
		t.Errorf("fills[0] = %+v", fills[0])
	}
	if fills[1].Side != domain.OrderSideSell || !fills[1].Date.Equal(fp.date) {
		t.Errorf("fills[1] = %+v", fills[1])
	}
}
