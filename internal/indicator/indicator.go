// Package indicator computes derived series (moving averages, MACD, running
// highs) from dense price series. Every function is pure and returns a new
// slice aligned index-for-index with its input.
package indicator

import (
	"time"

	"folio/internal/domain"
)

// SMA returns the simple moving average of values over period points. The
// first period-1 outputs average everything seen so far instead of padding.
func SMA(period int, values []float64) []float64 {
	out := make([]float64, len(values))
	if period < 1 {
		period = 1
	}
	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		n := min(i+1, period)
		out[i] = sum / float64(n)
	}
	return out
}

// EMA returns the exponential moving average of values. The first period
// outputs are the SMA of the leading points; after that each point uses the
// multiplier 2/(period+1).
func EMA(period int, values []float64) []float64 {
	if period < 1 {
		period = 1
	}
	seed := min(period, len(values))
	out := make([]float64, len(values))
	copy(out, SMA(period, values[:seed]))

	k := 2 / float64(period+1)
	for i := seed; i < len(values); i++ {
		out[i] = values[i]*k + out[i-1]*(1-k)
	}
	return out
}

// MACD returns the MACD line (EMA(short) - EMA(long)), its signal line
// (EMA(signal) of the MACD line) and the histogram (MACD - signal).
func MACD(short, long, signal int, values []float64) (macd, signalLine, hist []float64) {
	fast := EMA(short, values)
	slow := EMA(long, values)

	macd = make([]float64, len(values))
	for i := range values {
		macd[i] = fast[i] - slow[i]
	}
	signalLine = EMA(signal, macd)

	hist = make([]float64, len(values))
	for i := range values {
		hist[i] = macd[i] - signalLine[i]
	}
	return macd, signalLine, hist
}

// PrevHigh returns the running maximum of values, inclusive of each point.
func PrevHigh(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if i == 0 || v > out[i-1] {
			out[i] = v
		} else {
			out[i] = out[i-1]
		}
	}
	return out
}

// ByDate pairs derived values with the dates of the series they were computed
// from.
func ByDate(s domain.Series, values []float64) map[time.Time]float64 {
	n := min(len(values), s.Len())
	out := make(map[time.Time]float64, n)
	for i := 0; i < n; i++ {
		out[s.Dates[i]] = values[i]
	}
	return out
}
