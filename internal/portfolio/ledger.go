// Package portfolio implements the simulated holdings ledger: cash, share
// counts and trade execution against the current market prices.
package portfolio

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"folio/internal/domain"
)

// ErrNegativeAmount is returned for negative share counts or cash amounts.
var ErrNegativeAmount = errors.New("negative amount")

// PriceSource provides prices at the current simulation date.
type PriceSource interface {
	Price(ticker string) (float64, error)
	CurrentDate() time.Time
}

// Ledger tracks cash and share holdings for one run. Buys that cost more than
// the available cash are reduced to the largest affordable share count.
type Ledger struct {
	prices PriceSource

	cash          decimal.Decimal
	startingCash  decimal.Decimal
	contributions decimal.Decimal
	commission    decimal.Decimal

	holdings   map[string]int64
	tradeCount int
	fills      []domain.Fill

	log *slog.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithCommission sets a flat commission charged on every buy and sell.
func WithCommission(c decimal.Decimal) Option {
	return func(l *Ledger) { l.commission = c }
}

// WithLogger sets the logger used for per-trade debug output.
func WithLogger(log *slog.Logger) Option {
	return func(l *Ledger) { l.log = log }
}

// New creates an empty ledger with zero cash.
func New(prices PriceSource, opts ...Option) *Ledger {
	l := &Ledger{
		prices:   prices,
		holdings: make(map[string]int64),
		log:      slog.Default().With("component", "ledger"),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Seed deposits the initial funding. It raises both cash and starting cash
// and is not counted as a contribution.
func (l *Ledger) Seed(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("seed %s: %w", amount, ErrNegativeAmount)
	}
	l.cash = l.cash.Add(amount)
	l.startingCash = l.startingCash.Add(amount)
	return nil
}

// AddCash deposits a periodic contribution.
func (l *Ledger) AddCash(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("contribution %s: %w", amount, ErrNegativeAmount)
	}
	l.cash = l.cash.Add(amount)
	l.contributions = l.contributions.Add(amount)
	return nil
}

// Buy purchases shares of ticker at the current price and returns the number
// of shares actually bought. When the order costs more than the available
// cash it is replaced by the largest affordable order, which may be zero.
func (l *Ledger) Buy(ticker string, shares int64) (int64, error) {
	if shares < 0 {
		return 0, fmt.Errorf("buy %d %s: %w", shares, ticker, ErrNegativeAmount)
	}
	if shares == 0 {
		return 0, nil
	}
	ticker = strings.ToUpper(ticker)

	p, err := l.prices.Price(ticker)
	if err != nil {
		return 0, err
	}
	price := decimal.NewFromFloat(p)
	cost := price.Mul(decimal.NewFromInt(shares)).Add(l.commission)

	if cost.GreaterThan(l.cash) {
		affordable := int64(0)
		if price.IsPositive() {
			affordable = l.cash.Sub(l.commission).Div(price).Floor().IntPart()
		}
		affordable = min(affordable, shares-1)
		if affordable <= 0 {
			l.log.Debug("buy skipped, insufficient cash", "ticker", ticker, "shares", shares, "cash", l.cash.String())
			return 0, nil
		}
		return l.Buy(ticker, affordable)
	}

	l.cash = l.cash.Sub(cost)
	l.holdings[ticker] += shares
	l.record(ticker, domain.OrderSideBuy, shares, p)
	return shares, nil
}

// Sell sells shares of ticker at the current price. Holdings may go negative;
// no borrow or margin accounting is applied.
func (l *Ledger) Sell(ticker string, shares int64) (int64, error) {
	if shares < 0 {
		return 0, fmt.Errorf("sell %d %s: %w", shares, ticker, ErrNegativeAmount)
	}
	if shares == 0 {
		return 0, nil
	}
	ticker = strings.ToUpper(ticker)

	p, err := l.prices.Price(ticker)
	if err != nil {
		return 0, err
	}
	proceeds := decimal.NewFromFloat(p).Mul(decimal.NewFromInt(shares)).Sub(l.commission)

	l.cash = l.cash.Add(proceeds)
	l.holdings[ticker] -= shares
	l.record(ticker, domain.OrderSideSell, shares, p)
	return shares, nil
}

func (l *Ledger) record(ticker string, side domain.OrderSide, shares int64, price float64) {
	l.tradeCount++
	f := domain.Fill{
		Date:       l.prices.CurrentDate(),
		Ticker:     ticker,
		Side:       side,
		Shares:     shares,
		Price:      price,
		Commission: l.commission.InexactFloat64(),
	}
	l.fills = append(l.fills, f)
	l.log.Debug("fill", "date", f.Date.Format("2006-01-02"), "ticker", ticker,
		"side", string(side), "shares", shares, "price", price)
}

// Value returns cash plus the market value of every holding at the current
// date.
func (l *Ledger) Value() (decimal.Decimal, error) {
	total := l.cash
	for _, ticker := range l.Tickers() {
		shares := l.holdings[ticker]
		if shares == 0 {
			continue
		}
		p, err := l.prices.Price(ticker)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(decimal.NewFromFloat(p).Mul(decimal.NewFromInt(shares)))
	}
	return total, nil
}

// SharesOf returns the number of shares held of ticker, 0 when none.
func (l *Ledger) SharesOf(ticker string) int64 {
	return l.holdings[strings.ToUpper(ticker)]
}

// Holdings returns a copy of all share counts.
func (l *Ledger) Holdings() map[string]int64 {
	out := make(map[string]int64, len(l.holdings))
	for k, v := range l.holdings {
		out[k] = v
	}
	return out
}

// Tickers returns every ticker ever traded, sorted.
func (l *Ledger) Tickers() []string {
	out := make([]string, 0, len(l.holdings))
	for k := range l.holdings {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Cash returns the uninvested cash balance.
func (l *Ledger) Cash() decimal.Decimal { return l.cash }

// StartingCash returns the total seeded amount.
func (l *Ledger) StartingCash() decimal.Decimal { return l.startingCash }

// TotalContributions returns the sum of every AddCash deposit.
func (l *Ledger) TotalContributions() decimal.Decimal { return l.contributions }

// Commission returns the flat per-trade commission.
func (l *Ledger) Commission() decimal.Decimal { return l.commission }

// TradeCount returns the number of non-zero buys and sells executed.
func (l *Ledger) TradeCount() int { return l.tradeCount }

// Fills returns the trade history in execution order.
func (l *Ledger) Fills() []domain.Fill {
	out := make([]domain.Fill, len(l.fills))
	copy(out, l.fills)
	return out
}
