package monitor

import (
	"math"
	"time"

	"folio/internal/util"
)

// zeroTolerance is the magnitude below which a ratio is reported as 0.
const zeroTolerance = 1e-9

// Ratio is a statistic that may be undefined, for example a Sortino ratio
// over fewer than two losing months.
type Ratio struct {
	Value   float64
	Defined bool
}

// Summary is the end-of-run statistics.
type Summary struct {
	Start time.Time
	End   time.Time
	Days  int
	Years float64

	StartValue    float64 // starting cash
	EndValue      float64
	Contributions float64 // periodic deposits, excluding starting cash

	CAGR         Ratio // undefined without a positive start value
	AdjustedCAGR Ratio // growth excluding contributions

	AnnualReturns []YearReturn
	BestYear      YearReturn
	WorstYear     YearReturn

	MaxDrawdown Drawdown
	Sharpe      Ratio
	Sortino     Ratio
	Trades      int
}

// Summary derives the run statistics. riskFree is the annual risk-free rate
// subtracted from monthly returns before computing Sharpe and Sortino.
func (m *Monitor) Summary(riskFree float64) Summary {
	s := Summary{
		Days:          len(m.dates),
		StartValue:    m.ledger.StartingCash().InexactFloat64(),
		Contributions: m.ledger.TotalContributions().InexactFloat64(),
		MaxDrawdown:   m.drawdown,
		Trades:        m.ledger.TradeCount(),
	}
	if s.Days == 0 {
		return s
	}

	s.Start = m.dates[0]
	s.End = m.dates[s.Days-1]
	s.EndValue = m.values[s.Days-1]
	s.Years = util.YearsBetween(s.Start, s.End)
	s.CAGR = cagr(s.StartValue, s.EndValue, s.Years)
	s.AdjustedCAGR = cagr(s.StartValue, s.EndValue-s.Contributions, s.Years)

	s.AnnualReturns = m.AnnualReturns()
	for i, r := range s.AnnualReturns {
		if i == 0 || r.Return > s.BestYear.Return {
			s.BestYear = r
		}
		if i == 0 || r.Return < s.WorstYear.Return {
			s.WorstYear = r
		}
	}

	excess := make([]float64, 0, len(m.months)+1)
	for _, r := range m.MonthlyReturns() {
		excess = append(excess, r.Return-riskFree/12)
	}
	s.Sharpe, s.Sortino = riskRatios(excess)
	return s
}

func cagr(start, end, years float64) Ratio {
	if start <= 0 || years <= 0 {
		return Ratio{}
	}
	if end <= 0 {
		return Ratio{Value: -1, Defined: true}
	}
	return Ratio{Value: clampZero(math.Pow(end/start, 1/years) - 1), Defined: true}
}

// riskRatios returns the Sharpe and Sortino ratios of monthly excess
// returns. Both divide the mean of all returns; Sortino uses the sample
// deviation of the negative subset only.
func riskRatios(excess []float64) (sharpe, sortino Ratio) {
	mean := average(excess)
	if sd, ok := stdev(excess); ok {
		sharpe = Ratio{Value: clampZero(mean / sd), Defined: true}
	}

	var negative []float64
	for _, r := range excess {
		if r < 0 {
			negative = append(negative, r)
		}
	}
	if sd, ok := stdev(negative); ok {
		sortino = Ratio{Value: clampZero(mean / sd), Defined: true}
	}
	return sharpe, sortino
}

func average(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stdev returns the sample standard deviation. It is undefined for fewer
// than two samples or zero spread.
func stdev(xs []float64) (float64, bool) {
	if len(xs) < 2 {
		return 0, false
	}
	mean := average(xs)
	ss := 0.0
	for _, x := range xs {
		ss += (x - mean) * (x - mean)
	}
	sd := math.Sqrt(ss / float64(len(xs)-1))
	if sd < zeroTolerance {
		return 0, false
	}
	return sd, true
}

func clampZero(v float64) float64 {
	if math.Abs(v) < zeroTolerance {
		return 0
	}
	return v
}
