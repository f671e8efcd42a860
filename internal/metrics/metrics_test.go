package metrics

import (
	"database/sql"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"folio/internal/engine"
	"folio/internal/monitor"
	"folio/internal/store"
)

func sampleResult() *engine.Result {
	return &engine.Result{
		Days: 252,
		Summary: monitor.Summary{
			EndValue:    12345,
			CAGR:        monitor.Ratio{Value: 0.07, Defined: true},
			MaxDrawdown: monitor.Drawdown{Amount: -0.12},
			Sharpe:      monitor.Ratio{Value: 1.1, Defined: true},
			Trades:      14,
		},
	}
}

func TestObserve(t *testing.T) {
	m := New()
	m.Observe("sma", sampleResult(), 1500*time.Millisecond)

	if got := testutil.ToFloat64(m.FinalValue.WithLabelValues("sma")); got != 12345 {
		t.Errorf("folio_final_value = %v, want 12345", got)
	}
	if got := testutil.ToFloat64(m.MaxDrawdown.WithLabelValues("sma")); got != -0.12 {
		t.Errorf("folio_max_drawdown = %v, want -0.12", got)
	}
	if got := testutil.ToFloat64(m.Trades.WithLabelValues("sma")); got != 14 {
		t.Errorf("folio_trades_total = %v, want 14", got)
	}
	if got := testutil.ToFloat64(m.RunDuration.WithLabelValues("sma")); got != 1.5 {
		t.Errorf("folio_run_duration_seconds = %v, want 1.5", got)
	}
	if got := testutil.ToFloat64(m.Sortino.WithLabelValues("sma")); !math.IsNaN(got) {
		t.Errorf("undefined sortino = %v, want NaN", got)
	}
	if got := testutil.ToFloat64(m.AdjustedCAGR.WithLabelValues("sma")); !math.IsNaN(got) {
		t.Errorf("undefined adjusted cagr = %v, want NaN", got)
	}
	if got := testutil.ToFloat64(m.RunsTotal); got != 1 {
		t.Errorf("folio_runs_total = %v, want 1", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.Observe("60-40", sampleResult(), time.Second)

	path := filepath.Join(t.TempDir(), "folio.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		`folio_cagr{run="60-40"} 0.07`,
		`folio_days{run="60-40"} 252`,
		"# TYPE folio_runs_total counter",
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("textfile missing %q:\n%s", want, data)
		}
	}
}

func TestObserveRecordNewestWins(t *testing.T) {
	m := New()
	m.ObserveRecord(store.RunRecord{Name: "spy", FinalValue: 100, Trades: 1})
	m.ObserveRecord(store.RunRecord{
		Name: "spy", FinalValue: 200, Trades: 3,
		Sharpe: sql.NullFloat64{Float64: 0.8, Valid: true},
	})

	if got := testutil.ToFloat64(m.FinalValue.WithLabelValues("spy")); got != 200 {
		t.Errorf("folio_final_value = %v, want 200", got)
	}
	if got := testutil.ToFloat64(m.Sharpe.WithLabelValues("spy")); got != 0.8 {
		t.Errorf("folio_sharpe = %v, want 0.8", got)
	}
	if got := testutil.ToFloat64(m.Sortino.WithLabelValues("spy")); !math.IsNaN(got) {
		t.Errorf("null sortino = %v, want NaN", got)
	}
	if got := testutil.ToFloat64(m.RunsTotal); got != 0 {
		t.Errorf("folio_runs_total = %v, want 0", got)
	}
}
