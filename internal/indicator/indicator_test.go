package indicator

import (
	"errors"
	"math"
	"testing"
	"time"

	"folio/internal/domain"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func assertSeries(t *testing.T, name string, got, want []float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s length = %d, want %d", name, len(got), len(want))
	}
	for i := range want {
		if !almostEqual(got[i], want[i], 1e-9) {
			t.Errorf("%s[%d] = %v, want %v", name, i, got[i], want[i])
		}
	}
}

func TestSMAExpandingWindow(t *testing.T) {
	got := SMA(3, []float64{10, 20, 30, 40, 50})
	assertSeries(t, "SMA", got, []float64{10, 15, 20, 30, 40})
}

func TestEMASeededBySMA(t *testing.T) {
	got := EMA(3, []float64{10, 20, 30, 40, 50})
	// Seed points are the expanding SMA; then k = 0.5.
	assertSeries(t, "EMA", got, []float64{10, 15, 20, 30, 40})
}

func TestEMAShortInput(t *testing.T) {
	got := EMA(5, []float64{4, 8})
	assertSeries(t, "EMA", got, []float64{4, 6})
	if len(EMA(3, nil)) != 0 {
		t.Error("EMA(nil) should be empty")
	}
}

func TestMACD(t *testing.T) {
	values := []float64{10, 11, 12, 13, 12, 11, 12, 14, 15, 16}
	macd, signal, hist := MACD(2, 4, 3, values)

	fast := EMA(2, values)
	slow := EMA(4, values)
	for i := range values {
		if !almostEqual(macd[i], fast[i]-slow[i], 1e-12) {
			t.Errorf("macd[%d] = %v, want %v", i, macd[i], fast[i]-slow[i])
		}
		if !almostEqual(hist[i], macd[i]-signal[i], 1e-12) {
			t.Errorf("hist[%d] = %v, want %v", i, hist[i], macd[i]-signal[i])
		}
	}
	assertSeries(t, "signal", signal, EMA(3, macd))
}

func TestPrevHigh(t *testing.T) {
	got := PrevHigh([]float64{3, 1, 4, 1, 5, 2})
	assertSeries(t, "PrevHigh", got, []float64{3, 3, 4, 4, 5, 5})
}

func TestParseCode(t *testing.T) {
	tests := []struct {
		in   string
		want string
		err  bool
	}{
		{"SMA_200", "SMA_200", false},
		{"ema_50", "EMA_50", false},
		{"MACD_12_26_9", "MACD_12_26_9", false},
		{"MACDSIGNAL_12_26_9", "MACDSIGNAL_12_26_9", false},
		{"MACDHIST_12_26_9", "MACDHIST_12_26_9", false},
		{"PREV_HIGH", "PREVHIGH", false},
		{"PREVHIGH", "PREVHIGH", false},
		{"SMA", "", true},
		{"SMA_0", "", true},
		{"MACD_12_26", "", true},
		{"RSI_14", "", true},
	}
	for _, tt := range tests {
		c, err := ParseCode(tt.in)
		if tt.err {
			if !errors.Is(err, ErrUnknownCode) {
				t.Errorf("ParseCode(%q) error = %v, want ErrUnknownCode", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseCode(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if c.String() != tt.want {
			t.Errorf("ParseCode(%q).String() = %q, want %q", tt.in, c.String(), tt.want)
		}
	}
}

func TestCodeCompute(t *testing.T) {
	values := []float64{10, 20, 30, 40, 50}
	assertSeries(t, "SMA_3", MustParseCode("SMA_3").Compute(values), SMA(3, values))
	assertSeries(t, "EMA_3", MustParseCode("EMA_3").Compute(values), EMA(3, values))
	assertSeries(t, "PREVHIGH", MustParseCode("PREVHIGH").Compute(values), values)

	_, sig, hist := MACD(2, 3, 2, values)
	assertSeries(t, "MACDSIGNAL", MustParseCode("MACDSIGNAL_2_3_2").Compute(values), sig)
	assertSeries(t, "MACDHIST", MustParseCode("MACDHIST_2_3_2").Compute(values), hist)
}

func TestByDate(t *testing.T) {
	d0 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	s := domain.Series{Ticker: "X", Dates: []time.Time{d0, d0.AddDate(0, 0, 1)}, Values: []float64{1, 2}}
	m := ByDate(s, []float64{5, 6})
	if len(m) != 2 || m[d0] != 5 || m[d0.AddDate(0, 0, 1)] != 6 {
		t.Errorf("ByDate = %v", m)
	}
}
