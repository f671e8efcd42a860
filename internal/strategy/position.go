package strategy

import (
	"fmt"
	"strings"
)

// PositionSpec is the configuration form of a Position.
type PositionSpec struct {
	Ticker     string  `yaml:"ticker"`
	Ratio      float64 `yaml:"ratio"`
	BuySignal  string  `yaml:"buy_signal"`
	SellSignal string  `yaml:"sell_signal"`
}

// Position is a signal-driven allocation rule. While held, Ratio of the
// portfolio value is targeted to Ticker.
type Position struct {
	Ticker string
	Ratio  float64
	Buy    Signal
	Sell   Signal

	holding bool
}

// NewPosition parses the buy and sell signals of spec.
func NewPosition(spec PositionSpec) (*Position, error) {
	ticker := strings.ToUpper(strings.TrimSpace(spec.Ticker))
	if ticker == "" {
		return nil, fmt.Errorf("position: empty ticker")
	}
	if spec.Ratio < 0 {
		return nil, fmt.Errorf("position %s: negative ratio %v", ticker, spec.Ratio)
	}
	buy, err := ParseSignal(spec.BuySignal)
	if err != nil {
		return nil, fmt.Errorf("position %s buy: %w", ticker, err)
	}
	sell, err := ParseSignal(spec.SellSignal)
	if err != nil {
		return nil, fmt.Errorf("position %s sell: %w", ticker, err)
	}
	return &Position{Ticker: ticker, Ratio: spec.Ratio, Buy: buy, Sell: sell}, nil
}

// BuildPositions parses every spec, stopping at the first error.
func BuildPositions(specs []PositionSpec) ([]*Position, error) {
	out := make([]*Position, 0, len(specs))
	for _, s := range specs {
		p, err := NewPosition(s)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Holding reports whether the position currently contributes its ratio.
func (p *Position) Holding() bool { return p.holding }
