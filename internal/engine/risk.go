package engine

import (
	"fmt"
	"sort"

	"folio/internal/strategy"
)

// RiskManager enforces pre-run allocation rules on the configured positions.
type RiskManager struct {
	maxPositionRatio float64
	maxTotalRatio    float64
}

// NewRiskManager creates a RiskManager with the specified limits. A limit of
// zero disables the corresponding check.
//
//   - maxPositionRatio: largest combined ratio any single ticker may reach
//     when every position targeting it is held (e.g. 1.0 for no leverage).
//   - maxTotalRatio: largest sum of all position ratios.
func NewRiskManager(maxPositionRatio, maxTotalRatio float64) *RiskManager {
	return &RiskManager{
		maxPositionRatio: maxPositionRatio,
		maxTotalRatio:    maxTotalRatio,
	}
}

// CheckAllocation evaluates whether the positions comply with the configured
// limits.
func (rm *RiskManager) CheckAllocation(positions []*strategy.Position) error {
	perTicker := make(map[string]float64)
	total := 0.0
	for _, p := range positions {
		perTicker[p.Ticker] += p.Ratio
		total += p.Ratio
	}

	if rm.maxPositionRatio > 0 {
		tickers := make([]string, 0, len(perTicker))
		for t := range perTicker {
			tickers = append(tickers, t)
		}
		sort.Strings(tickers)
		for _, t := range tickers {
			if perTicker[t] > rm.maxPositionRatio+1e-9 {
				return fmt.Errorf("%s ratio %.4f exceeds limit %.4f", t, perTicker[t], rm.maxPositionRatio)
			}
		}
	}
	if rm.maxTotalRatio > 0 && total > rm.maxTotalRatio+1e-9 {
		return fmt.Errorf("total ratio %.4f exceeds limit %.4f", total, rm.maxTotalRatio)
	}
	return nil
}
