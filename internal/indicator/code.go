package indicator

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnknownCode is returned when an indicator code cannot be parsed.
var ErrUnknownCode = errors.New("unknown indicator code")

// Kind enumerates the supported indicator families.
type Kind int

const (
	KindSMA Kind = iota + 1
	KindEMA
	KindMACD
	KindMACDSignal
	KindMACDHist
	KindPrevHigh
)

var kindNames = map[Kind]string{
	KindSMA:        "SMA",
	KindEMA:        "EMA",
	KindMACD:       "MACD",
	KindMACDSignal: "MACDSIGNAL",
	KindMACDHist:   "MACDHIST",
	KindPrevHigh:   "PREVHIGH",
}

// Code identifies one derived series, e.g. SMA_200 or MACD_12_26_9.
type Code struct {
	Kind    Kind
	Periods []int
}

// ParseCode parses the textual form of an indicator code. Codes are
// case-insensitive; PREV_HIGH is accepted as an alias of PREVHIGH.
func ParseCode(s string) (Code, error) {
	raw := strings.ToUpper(strings.TrimSpace(s))
	if raw == "PREVHIGH" || raw == "PREV_HIGH" {
		return Code{Kind: KindPrevHigh}, nil
	}

	parts := strings.Split(raw, "_")
	var kind Kind
	for k, name := range kindNames {
		if name == parts[0] {
			kind = k
		}
	}

	want := 0
	switch kind {
	case KindSMA, KindEMA:
		want = 1
	case KindMACD, KindMACDSignal, KindMACDHist:
		want = 3
	default:
		return Code{}, fmt.Errorf("%w: %q", ErrUnknownCode, s)
	}
	if len(parts)-1 != want {
		return Code{}, fmt.Errorf("%w: %q expects %d period(s)", ErrUnknownCode, s, want)
	}

	periods := make([]int, want)
	for i, p := range parts[1:] {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 {
			return Code{}, fmt.Errorf("%w: %q has invalid period %q", ErrUnknownCode, s, p)
		}
		periods[i] = n
	}
	return Code{Kind: kind, Periods: periods}, nil
}

// MustParseCode is ParseCode that panics on error, for static tables.
func MustParseCode(s string) Code {
	c, err := ParseCode(s)
	if err != nil {
		panic(err)
	}
	return c
}

// String returns the canonical textual form of the code.
func (c Code) String() string {
	var b strings.Builder
	b.WriteString(kindNames[c.Kind])
	for _, p := range c.Periods {
		b.WriteByte('_')
		b.WriteString(strconv.Itoa(p))
	}
	return b.String()
}

// Compute evaluates the code over values.
func (c Code) Compute(values []float64) []float64 {
	switch c.Kind {
	case KindSMA:
		return SMA(c.Periods[0], values)
	case KindEMA:
		return EMA(c.Periods[0], values)
	case KindMACD:
		m, _, _ := MACD(c.Periods[0], c.Periods[1], c.Periods[2], values)
		return m
	case KindMACDSignal:
		_, s, _ := MACD(c.Periods[0], c.Periods[1], c.Periods[2], values)
		return s
	case KindMACDHist:
		_, _, h := MACD(c.Periods[0], c.Periods[1], c.Periods[2], values)
		return h
	case KindPrevHigh:
		return PrevHigh(values)
	default:
		return make([]float64, len(values))
	}
}
