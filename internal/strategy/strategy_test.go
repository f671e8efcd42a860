package strategy

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"folio/internal/domain"
	"folio/internal/portfolio"
)

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

// fakeMarket serves fixed prices and indicator values keyed "TICKER|CODE".
type fakeMarket struct {
	date       time.Time
	flags      domain.PeriodFlags
	prices     map[string]float64
	indicators map[string]float64
}

func newMarket() *fakeMarket {
	return &fakeMarket{
		date:       time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		prices:     map[string]float64{"SPY": 30, "TLT": 12.5},
		indicators: map[string]float64{},
	}
}

func (f *fakeMarket) Price(ticker string) (float64, error) {
	p, ok := f.prices[ticker]
	if !ok {
		return 0, errors.New("no price for " + ticker)
	}
	return p, nil
}

func (f *fakeMarket) Indicator(ticker, code string) (float64, error) {
	v, ok := f.indicators[ticker+"|"+code]
	if !ok {
		return 0, errors.New("no indicator " + code + " for " + ticker)
	}
	return v, nil
}

func (f *fakeMarket) Flags() domain.PeriodFlags { return f.flags }
func (f *fakeMarket) CurrentDate() time.Time    { return f.date }

// stubPreset is a minimal Preset implementation used in registry tests.
type stubPreset struct {
	name string
}

func (s *stubPreset) Name() string              { return s.name }
func (s *stubPreset) Description() string       { return "" }
func (s *stubPreset) Positions() []PositionSpec { return nil }
func (s *stubPreset) Rebalance() domain.Period  { return domain.PeriodNone }

func mustPositions(t *testing.T, specs ...PositionSpec) []*Position {
	t.Helper()
	p, err := BuildPositions(specs)
	if err != nil {
		t.Fatalf("BuildPositions: %v", err)
	}
	return p
}

func seeded(t *testing.T, m *fakeMarket, cash float64, opts ...portfolio.Option) *portfolio.Ledger {
	t.Helper()
	l := portfolio.New(m, opts...)
	if err := l.Seed(decimal.NewFromFloat(cash)); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	return l
}

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubPreset{name: "test-preset"})

	got, ok := r.Get("test-preset")
	if !ok {
		t.Fatal("Get returned false for registered preset")
	}
	if got.Name() != "test-preset" {
		t.Errorf("Get returned preset with Name() = %q, want %q", got.Name(), "test-preset")
	}
}

func TestRegistryGet_NotFound(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Get("nonexistent"); ok {
		t.Error("Get returned true for unregistered preset")
	}
}

func TestRegistryList(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubPreset{name: "beta"})
	r.Register(&stubPreset{name: "alpha"})

	names := r.List()
	if len(names) != 2 || names[0] != "alpha" || names[1] != "beta" {
		t.Errorf("List returned %v, want [alpha beta]", names)
	}
}

// ---------------------------------------------------------------------------
// Signals
// ---------------------------------------------------------------------------

func TestParseSignal(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ALWAYS", "ALWAYS"},
		{"never", "NEVER"},
		{"", "NEVER"},
		{"SPY~PRICE > SPY~SMA_200", "SPY~PRICE > SPY~SMA_200"},
		{"spy~price<spy~ema_10", "SPY~PRICE < SPY~EMA_10"},
		{"  TLT~MACD_12_26_9 > TLT~MACDSIGNAL_12_26_9 ", "TLT~MACD_12_26_9 > TLT~MACDSIGNAL_12_26_9"},
	}
	for _, tt := range tests {
		sig, err := ParseSignal(tt.in)
		if err != nil {
			t.Errorf("ParseSignal(%q) error: %v", tt.in, err)
			continue
		}
		if sig.String() != tt.want {
			t.Errorf("ParseSignal(%q) = %q, want %q", tt.in, sig.String(), tt.want)
		}
	}
}

func TestParseSignalErrors(t *testing.T) {
	bad := []string{
		"SPY~PRICE",
		"SPY~PRICE = SPY~SMA_5",
		"SPY~PRICE > SPY~SMA_5 > TLT~PRICE",
		"SPY > TLT",
		"~PRICE > SPY~PRICE",
		"SPY~BOGUS_3 > SPY~PRICE",
		"SPY~SMA_x > SPY~PRICE",
	}
	for _, in := range bad {
		_, err := ParseSignal(in)
		var se *SignalSyntaxError
		if !errors.As(err, &se) {
			t.Errorf("ParseSignal(%q) error = %v, want SignalSyntaxError", in, err)
		}
	}
}

func TestComparisonEval(t *testing.T) {
	m := newMarket()
	m.indicators["SPY|SMA_2"] = 25

	above, _ := ParseSignal("SPY~PRICE > SPY~SMA_2")
	below, _ := ParseSignal("SPY~PRICE < SPY~SMA_2")
	if ok, err := above.Eval(m); err != nil || !ok {
		t.Errorf("above.Eval = %v, %v; want true", ok, err)
	}
	if ok, err := below.Eval(m); err != nil || ok {
		t.Errorf("below.Eval = %v, %v; want false", ok, err)
	}

	missing, _ := ParseSignal("SPY~PRICE > SPY~EMA_9")
	if _, err := missing.Eval(m); err == nil {
		t.Error("Eval with missing indicator should fail")
	}
}

// ---------------------------------------------------------------------------
// Trader
// ---------------------------------------------------------------------------

func TestTraderClampCorrectsDesired(t *testing.T) {
	m := newMarket()
	m.prices["SPY"] = 20
	l := seeded(t, m, 100, portfolio.WithCommission(decimal.NewFromInt(35)))

	tr := NewTrader(m, l, mustPositions(t, PositionSpec{Ticker: "SPY", Ratio: 1, BuySignal: "ALWAYS", SellSignal: "NEVER"}), nil)
	if err := tr.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	// Desired is floor(100/20) = 5, but only (100-35)/20 = 3 are affordable.
	if tr.DesiredShares("SPY") != 3 {
		t.Errorf("DesiredShares(SPY) = %d, want 3", tr.DesiredShares("SPY"))
	}
	if l.SharesOf("SPY") != 3 {
		t.Errorf("SharesOf(SPY) = %d, want 3", l.SharesOf("SPY"))
	}
	if !l.Cash().Equal(decimal.NewFromInt(5)) {
		t.Errorf("Cash() = %s, want 5", l.Cash())
	}
}

func TestTraderRebalanceIdempotent(t *testing.T) {
	m := newMarket()
	l := seeded(t, m, 1000)
	positions := mustPositions(t,
		PositionSpec{Ticker: "SPY", Ratio: 0.6, BuySignal: "ALWAYS", SellSignal: "NEVER"},
		PositionSpec{Ticker: "TLT", Ratio: 0.4, BuySignal: "ALWAYS", SellSignal: "NEVER"},
	)
	tr := NewTrader(m, l, positions, []Policy{Rebalance{Period: domain.PeriodMonth}})

	if err := tr.Step(); err != nil {
		t.Fatalf("first Step: %v", err)
	}
	if l.SharesOf("SPY") != 20 || l.SharesOf("TLT") != 32 {
		t.Fatalf("holdings SPY=%d TLT=%d, want 20 and 32", l.SharesOf("SPY"), l.SharesOf("TLT"))
	}
	trades := l.TradeCount()

	m.flags = domain.PeriodFlags{MonthChanged: true}
	if err := tr.Step(); err != nil {
		t.Fatalf("rebalance Step: %v", err)
	}
	if l.TradeCount() != trades {
		t.Errorf("rebalance at unchanged prices traded: %d -> %d", trades, l.TradeCount())
	}
}

func TestTraderRebalanceRestoresWeights(t *testing.T) {
	m := newMarket()
	l := seeded(t, m, 1000)
	positions := mustPositions(t,
		PositionSpec{Ticker: "SPY", Ratio: 0.6, BuySignal: "ALWAYS", SellSignal: "NEVER"},
		PositionSpec{Ticker: "TLT", Ratio: 0.4, BuySignal: "ALWAYS", SellSignal: "NEVER"},
	)
	tr := NewTrader(m, l, positions, []Policy{Rebalance{Period: domain.PeriodQuarter}})
	_ = tr.Step()

	// SPY doubles: value = 20*60 + 32*12.5 = 1600.
	m.prices["SPY"] = 60
	m.flags = domain.PeriodFlags{MonthChanged: true, QuarterChanged: true}
	if err := tr.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	// SPY target floor(960/60) = 16, TLT target floor(640/12.5) = 51.
	if l.SharesOf("SPY") != 16 || l.SharesOf("TLT") != 51 {
		t.Errorf("holdings SPY=%d TLT=%d, want 16 and 51", l.SharesOf("SPY"), l.SharesOf("TLT"))
	}
}

func TestTraderSignalSwitch(t *testing.T) {
	m := newMarket()
	m.indicators["SPY|SMA_2"] = 25
	l := seeded(t, m, 1000)
	positions := mustPositions(t,
		PositionSpec{Ticker: "SPY", Ratio: 1, BuySignal: "SPY~PRICE > SPY~SMA_2", SellSignal: "SPY~PRICE < SPY~SMA_2"},
		PositionSpec{Ticker: "TLT", Ratio: 1, BuySignal: "SPY~PRICE < SPY~SMA_2", SellSignal: "SPY~PRICE > SPY~SMA_2"},
	)
	tr := NewTrader(m, l, positions, nil)

	if err := tr.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if l.SharesOf("SPY") != 33 || l.SharesOf("TLT") != 0 {
		t.Fatalf("holdings SPY=%d TLT=%d, want 33 and 0", l.SharesOf("SPY"), l.SharesOf("TLT"))
	}
	if tr.TargetRatio("SPY") != 1 {
		t.Errorf("TargetRatio(SPY) = %v, want 1", tr.TargetRatio("SPY"))
	}

	m.indicators["SPY|SMA_2"] = 35
	if err := tr.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if l.SharesOf("SPY") != 0 || l.SharesOf("TLT") != 80 {
		t.Errorf("holdings SPY=%d TLT=%d, want 0 and 80", l.SharesOf("SPY"), l.SharesOf("TLT"))
	}
	if tr.TargetRatio("SPY") != 0 || !positions[1].Holding() || positions[0].Holding() {
		t.Errorf("targets SPY=%v holding=%v/%v", tr.TargetRatio("SPY"), positions[0].Holding(), positions[1].Holding())
	}
}

func TestTraderContributionWithoutRebalance(t *testing.T) {
	m := newMarket()
	l := seeded(t, m, 1000)
	positions := mustPositions(t, PositionSpec{Ticker: "TLT", Ratio: 1, BuySignal: "ALWAYS", SellSignal: "NEVER"})
	policies := BuildPolicies(decimal.NewFromInt(100), domain.PeriodMonth, domain.PeriodNone)
	tr := NewTrader(m, l, positions, policies)

	_ = tr.Step()
	trades := l.TradeCount()

	m.flags = domain.PeriodFlags{MonthChanged: true}
	if err := tr.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if !l.TotalContributions().Equal(decimal.NewFromInt(100)) {
		t.Errorf("TotalContributions() = %s, want 100", l.TotalContributions())
	}
	if !l.Cash().Equal(decimal.NewFromInt(100)) {
		t.Errorf("Cash() = %s, want 100 left uninvested", l.Cash())
	}
	if l.TradeCount() != trades {
		t.Errorf("contribution alone should not trade")
	}
}

func TestTraderContributionInvestedOnRebalance(t *testing.T) {
	m := newMarket()
	l := seeded(t, m, 1000)
	positions := mustPositions(t, PositionSpec{Ticker: "TLT", Ratio: 1, BuySignal: "ALWAYS", SellSignal: "NEVER"})
	policies := BuildPolicies(decimal.NewFromInt(100), domain.PeriodMonth, domain.PeriodMonth)
	if len(policies) != 2 || policies[0].Name() != "contribution" {
		t.Fatalf("BuildPolicies order = %v", policies)
	}
	tr := NewTrader(m, l, positions, policies)
	_ = tr.Step()

	m.flags = domain.PeriodFlags{MonthChanged: true}
	if err := tr.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if l.SharesOf("TLT") != 88 {
		t.Errorf("SharesOf(TLT) = %d, want 88", l.SharesOf("TLT"))
	}
}

func TestTraderRequirements(t *testing.T) {
	positions := mustPositions(t,
		PositionSpec{Ticker: "UPRO", Ratio: 1, BuySignal: "SPY~PRICE > SPY~SMA_200", SellSignal: "SPY~PRICE < SPY~SMA_200"},
		PositionSpec{Ticker: "TMF", Ratio: 1, BuySignal: "ALWAYS", SellSignal: "TLT~EMA_10 < TLT~PRICE"},
	)
	tr := NewTrader(newMarket(), nil, positions, nil)

	tickers := tr.RequiredTickers()
	want := []string{"UPRO", "SPY", "TMF", "TLT"}
	if len(tickers) != len(want) {
		t.Fatalf("RequiredTickers() = %v, want %v", tickers, want)
	}
	for i := range want {
		if tickers[i] != want[i] {
			t.Errorf("RequiredTickers()[%d] = %s, want %s", i, tickers[i], want[i])
		}
	}

	inds := tr.RequiredIndicators()
	if len(inds) != 2 {
		t.Fatalf("RequiredIndicators() = %v, want 2 entries", inds)
	}
	if inds[0] != (IndicatorRequirement{Ticker: "SPY", Code: "SMA_200"}) {
		t.Errorf("inds[0] = %+v", inds[0])
	}
	if inds[1] != (IndicatorRequirement{Ticker: "TLT", Code: "EMA_10"}) {
		t.Errorf("inds[1] = %+v", inds[1])
	}
}

func TestNewPositionErrors(t *testing.T) {
	if _, err := NewPosition(PositionSpec{Ticker: " ", Ratio: 1}); err == nil {
		t.Error("empty ticker should fail")
	}
	if _, err := NewPosition(PositionSpec{Ticker: "SPY", Ratio: -0.1}); err == nil {
		t.Error("negative ratio should fail")
	}
	_, err := NewPosition(PositionSpec{Ticker: "SPY", Ratio: 1, BuySignal: "junk"})
	var se *SignalSyntaxError
	if !errors.As(err, &se) {
		t.Errorf("bad signal error = %v, want SignalSyntaxError", err)
	}
}
