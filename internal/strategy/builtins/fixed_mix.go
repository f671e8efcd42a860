package builtins

import (
	"folio/internal/domain"
	"folio/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Preset = (*FixedMix)(nil)

// FixedMix holds a constant set of weights and rebalances back to them on a
// calendar period.
type FixedMix struct {
	name        string
	description string
	weights     []Weight
	period      domain.Period
}

// Weight is one ticker's share of a FixedMix.
type Weight struct {
	Ticker string
	Ratio  float64
}

// NewFixedMix creates a FixedMix preset.
func NewFixedMix(name, description string, period domain.Period, weights ...Weight) *FixedMix {
	return &FixedMix{name: name, description: description, weights: weights, period: period}
}

func (f *FixedMix) Name() string        { return f.name }
func (f *FixedMix) Description() string { return f.description }

// Positions returns one always-held position per weight.
func (f *FixedMix) Positions() []strategy.PositionSpec {
	out := make([]strategy.PositionSpec, 0, len(f.weights))
	for _, w := range f.weights {
		out = append(out, strategy.PositionSpec{
			Ticker:     w.Ticker,
			Ratio:      w.Ratio,
			BuySignal:  "ALWAYS",
			SellSignal: "NEVER",
		})
	}
	return out
}

func (f *FixedMix) Rebalance() domain.Period { return f.period }

// Register adds every built-in preset to r.
func Register(r *strategy.Registry) {
	r.Register(NewSMACross("SPY", "TLT", 200))
	r.Register(NewFixedMix("60-40", "60% SPY / 40% TLT, rebalanced quarterly", domain.PeriodQuarter,
		Weight{Ticker: "SPY", Ratio: 0.6}, Weight{Ticker: "TLT", Ratio: 0.4}))
	r.Register(NewFixedMix("upro-tmf", "55% UPRO / 45% TMF, rebalanced quarterly", domain.PeriodQuarter,
		Weight{Ticker: "UPRO", Ratio: 0.55}, Weight{Ticker: "TMF", Ratio: 0.45}))
	r.Register(NewFixedMix("spy", "100% SPY, never rebalanced", domain.PeriodNone,
		Weight{Ticker: "SPY", Ratio: 1}))
}
