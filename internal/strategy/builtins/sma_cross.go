// Package builtins provides the strategy presets that ship with folio.
package builtins

import (
	"fmt"
	"strings"

	"folio/internal/domain"
	"folio/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Preset = (*SMACross)(nil)

// SMACross holds an equity while its price is above its simple moving
// average and switches fully into a defensive ticker when it falls below.
type SMACross struct {
	equity string
	hedge  string
	period int
}

// NewSMACross creates an SMACross preset over the given tickers and average
// period.
func NewSMACross(equity, hedge string, period int) *SMACross {
	return &SMACross{
		equity: strings.ToUpper(equity),
		hedge:  strings.ToUpper(hedge),
		period: period,
	}
}

// Name returns "sma-cross".
func (s *SMACross) Name() string {
	return "sma-cross"
}

// Description summarises the switching rule.
func (s *SMACross) Description() string {
	return fmt.Sprintf("%s above its %d-day SMA, otherwise %s", s.equity, s.period, s.hedge)
}

// Positions returns one position per ticker with mutually exclusive signals.
func (s *SMACross) Positions() []strategy.PositionSpec {
	above := fmt.Sprintf("%s~PRICE > %s~SMA_%d", s.equity, s.equity, s.period)
	below := fmt.Sprintf("%s~PRICE < %s~SMA_%d", s.equity, s.equity, s.period)
	return []strategy.PositionSpec{
		{Ticker: s.equity, Ratio: 1, BuySignal: above, SellSignal: below},
		{Ticker: s.hedge, Ratio: 1, BuySignal: below, SellSignal: above},
	}
}

// Rebalance returns PeriodNone; trades happen only on crossings.
func (s *SMACross) Rebalance() domain.Period {
	return domain.PeriodNone
}
