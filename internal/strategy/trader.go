package strategy

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/shopspring/decimal"

	"folio/internal/domain"
)

// Market is the view of the price store the Trader reads from.
type Market interface {
	Quotes
	Flags() domain.PeriodFlags
}

// Ledger is the view of the portfolio the Trader trades against.
type Ledger interface {
	Value() (decimal.Decimal, error)
	SharesOf(ticker string) int64
	Buy(ticker string, shares int64) (int64, error)
	Sell(ticker string, shares int64) (int64, error)
	AddCash(amount decimal.Decimal) error
}

// ratioEpsilon is the tolerance below which a target ratio counts as zero.
const ratioEpsilon = 1e-12

// IndicatorRequirement is an indicator the market must precompute before a
// run.
type IndicatorRequirement struct {
	Ticker string
	Code   string
}

// Trader turns signals and policies into trades. Each Step evaluates
// position signals, applies policies in order, recomputes desired share
// counts for marked tickers and executes the difference, sells first.
type Trader struct {
	market    Market
	ledger    Ledger
	positions []*Position
	policies  []Policy

	targets map[string]float64
	desired map[string]int64
	marked  []string
	isMark  map[string]bool

	log *slog.Logger
}

// NewTrader creates a Trader. Policies are applied in the order given.
func NewTrader(m Market, l Ledger, positions []*Position, policies []Policy) *Trader {
	t := &Trader{
		market:    m,
		ledger:    l,
		positions: positions,
		policies:  policies,
		targets:   make(map[string]float64),
		desired:   make(map[string]int64),
		isMark:    make(map[string]bool),
		log:       slog.Default().With("component", "trader"),
	}
	return t
}

// ---------------------------------------------------------------------------
// Requirements
// ---------------------------------------------------------------------------

// RequiredTickers returns every ticker referenced by a position or a signal,
// in first-seen order.
func (t *Trader) RequiredTickers() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, p := range t.positions {
		add(p.Ticker)
		for _, ref := range signalRefs(p) {
			add(ref.Ticker())
		}
	}
	return out
}

// RequiredIndicators returns every indicator referenced by a signal, without
// duplicates.
func (t *Trader) RequiredIndicators() []IndicatorRequirement {
	seen := make(map[IndicatorRequirement]bool)
	var out []IndicatorRequirement
	for _, p := range t.positions {
		for _, ref := range signalRefs(p) {
			ir, ok := ref.(IndicatorRef)
			if !ok {
				continue
			}
			req := IndicatorRequirement{Ticker: ir.Symbol, Code: ir.Code.String()}
			if !seen[req] {
				seen[req] = true
				out = append(out, req)
			}
		}
	}
	return out
}

func signalRefs(p *Position) []ValueRef {
	return append(p.Buy.Refs(), p.Sell.Refs()...)
}

// ---------------------------------------------------------------------------
// Step
// ---------------------------------------------------------------------------

// Step runs one decision cycle at the market's current date.
func (t *Trader) Step() error {
	if err := t.evaluateSignals(); err != nil {
		return err
	}

	flags := t.market.Flags()
	for _, p := range t.policies {
		if err := p.Apply(t, flags); err != nil {
			return fmt.Errorf("policy %s: %w", p.Name(), err)
		}
	}

	if len(t.marked) == 0 {
		return nil
	}
	defer t.clearMarks()

	if err := t.recomputeDesired(); err != nil {
		return err
	}
	return t.execute()
}

func (t *Trader) evaluateSignals() error {
	for _, p := range t.positions {
		if p.holding {
			fire, err := p.Sell.Eval(t.market)
			if err != nil {
				return fmt.Errorf("sell signal %s: %w", p.Sell, err)
			}
			if fire {
				p.holding = false
				t.targets[p.Ticker] -= p.Ratio
				t.mark(p.Ticker)
			}
			continue
		}
		fire, err := p.Buy.Eval(t.market)
		if err != nil {
			return fmt.Errorf("buy signal %s: %w", p.Buy, err)
		}
		if fire {
			p.holding = true
			t.targets[p.Ticker] += p.Ratio
			t.mark(p.Ticker)
		}
	}
	return nil
}

// recomputeDesired sizes every marked ticker against the portfolio value
// taken once before any trade.
func (t *Trader) recomputeDesired() error {
	value, err := t.ledger.Value()
	if err != nil {
		return fmt.Errorf("portfolio value: %w", err)
	}
	for _, ticker := range t.marked {
		ratio := t.targets[ticker]
		if math.Abs(ratio) < ratioEpsilon {
			t.desired[ticker] = 0
			continue
		}
		price, err := t.market.Price(ticker)
		if err != nil {
			return err
		}
		if price <= 0 {
			return fmt.Errorf("sizing %s: non-positive price %v", ticker, price)
		}
		t.desired[ticker] = value.Mul(decimal.NewFromFloat(ratio)).
			Div(decimal.NewFromFloat(price)).Floor().IntPart()
	}
	return nil
}

// execute trades each marked ticker toward its desired count. All sells run
// before any buy so the proceeds fund the purchases. Desired counts are then
// corrected to what was actually filled.
func (t *Trader) execute() error {
	for _, ticker := range t.marked {
		delta := t.desired[ticker] - t.ledger.SharesOf(ticker)
		if delta >= 0 {
			continue
		}
		if _, err := t.ledger.Sell(ticker, -delta); err != nil {
			return fmt.Errorf("sell %s: %w", ticker, err)
		}
		t.desired[ticker] = t.ledger.SharesOf(ticker)
	}
	for _, ticker := range t.marked {
		delta := t.desired[ticker] - t.ledger.SharesOf(ticker)
		if delta <= 0 {
			continue
		}
		if _, err := t.ledger.Buy(ticker, delta); err != nil {
			return fmt.Errorf("buy %s: %w", ticker, err)
		}
		t.desired[ticker] = t.ledger.SharesOf(ticker)
	}
	return nil
}

func (t *Trader) mark(ticker string) {
	if t.isMark[ticker] {
		return
	}
	t.isMark[ticker] = true
	t.marked = append(t.marked, ticker)
}

func (t *Trader) clearMarks() {
	t.marked = t.marked[:0]
	clear(t.isMark)
}

// ---------------------------------------------------------------------------
// Policy hooks
// ---------------------------------------------------------------------------

// MarkAll marks every position ticker for re-trading in the current step.
func (t *Trader) MarkAll() {
	for _, p := range t.positions {
		t.mark(p.Ticker)
	}
}

// Contribute deposits amount into the ledger.
func (t *Trader) Contribute(amount decimal.Decimal) error {
	if err := t.ledger.AddCash(amount); err != nil {
		return err
	}
	t.log.Debug("contribution", "amount", amount.String())
	return nil
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// TargetRatio returns the fraction of portfolio value currently targeted to
// ticker.
func (t *Trader) TargetRatio(ticker string) float64 { return t.targets[ticker] }

// DesiredShares returns the share count the last execution aimed for.
func (t *Trader) DesiredShares(ticker string) int64 { return t.desired[ticker] }

// Positions returns the positions in configuration order.
func (t *Trader) Positions() []*Position { return t.positions }
