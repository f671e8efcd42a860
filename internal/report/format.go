// Package report renders a finished run as markdown and PNG charts.
package report

import (
	"fmt"
	"math"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"folio/internal/monitor"
)

// FormatInt formats an integer with comma separators.
func FormatInt(n int) string {
	if n < 0 {
		return "-" + FormatInt(-n)
	}
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	start := len(s) % 3
	if start > 0 {
		b.WriteString(s[:start])
	}
	for i := start; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatPercent formats a fraction as a percentage with two decimals.
func FormatPercent(f float64) string {
	return fmt.Sprintf("%.2f%%", f*100)
}

// FormatSignedPercent is FormatPercent with an explicit + for gains.
func FormatSignedPercent(f float64) string {
	if f > 0 {
		return "+" + FormatPercent(f)
	}
	return FormatPercent(f)
}

// FormatCurrency formats an amount in the given ISO currency, for example
// $12,345.67 for USD. Unknown currencies fall back to a plain number.
func FormatCurrency(amount float64, currency string) string {
	cur := money.GetCurrency(currency)
	if cur == nil || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return fmt.Sprintf("%.2f %s", amount, currency)
	}
	minor := decimal.NewFromFloat(amount).Shift(int32(cur.Fraction)).Round(0)
	return money.New(minor.IntPart(), cur.Code).Display()
}

// FormatPercentRatio formats a fraction that may be undefined, such as a
// CAGR without starting cash.
func FormatPercentRatio(r monitor.Ratio) string {
	if !r.Defined {
		return "n/a"
	}
	return FormatPercent(r.Value)
}

// FormatRatio formats a Sharpe or Sortino ratio, or n/a when undefined.
func FormatRatio(r monitor.Ratio) string {
	if !r.Defined {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", r.Value)
}
