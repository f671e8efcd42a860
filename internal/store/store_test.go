package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"folio/internal/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParquetStorePath(t *testing.T) {
	ps := NewParquetStore("/data")

	bp := ps.barPath("spy", "us", 2024)
	want := filepath.Join("/data", "us", "daily", "SPY", "2024.parquet")
	if bp != want {
		t.Errorf("barPath mismatch:\n  got  %s\n  want %s", bp, want)
	}
}

func TestParquetStoreWriteReadBars(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	ctx := context.Background()

	bars := []domain.Bar{
		{Symbol: "SPY", Timestamp: day(2023, 12, 29), Open: 475, High: 477, Low: 473, Close: 475.3, Volume: 60000000, TradeCount: 500000, VWAP: 475.1},
		{Symbol: "SPY", Timestamp: day(2024, 1, 2), Open: 472, High: 473, Low: 470, Close: 472.6, Volume: 80000000, TradeCount: 700000, VWAP: 471.9},
		{Symbol: "SPY", Timestamp: day(2024, 1, 3), Open: 470, High: 471, Low: 468, Close: 468.8, Volume: 75000000, TradeCount: 650000, VWAP: 469.5},
	}
	if err := ps.WriteBars(ctx, bars); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}

	got, err := ps.ReadBars(ctx, "SPY", "us", day(2024, 1, 1), day(2024, 12, 31))
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadBars returned %d bars, want 2", len(got))
	}
	if !got[0].Timestamp.Equal(bars[1].Timestamp) || got[0].Close != 472.6 || got[1].Volume != 75000000 {
		t.Errorf("ReadBars()[0] = %+v", got[0])
	}

	years, err := ps.Years("SPY", "us")
	if err != nil || len(years) != 2 || years[0] != 2023 || years[1] != 2024 {
		t.Errorf("Years() = %v, %v; want [2023 2024]", years, err)
	}

	latest, ok, err := ps.LatestBarTime("SPY", "us")
	if err != nil || !ok || !latest.Equal(day(2024, 1, 3)) {
		t.Errorf("LatestBarTime() = %s, %v, %v", latest, ok, err)
	}

	symbols, err := ps.ListSymbols(ctx, "us")
	if err != nil || len(symbols) != 1 || symbols[0] != "SPY" {
		t.Errorf("ListSymbols() = %v, %v", symbols, err)
	}
}

func TestParquetStoreMergeReplaces(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	ctx := context.Background()

	_ = ps.WriteBars(ctx, []domain.Bar{
		{Symbol: "TLT", Timestamp: day(2024, 2, 1), Close: 95},
		{Symbol: "TLT", Timestamp: day(2024, 2, 2), Close: 94},
	})
	_ = ps.WriteBars(ctx, []domain.Bar{
		{Symbol: "TLT", Timestamp: day(2024, 2, 2), Close: 93.5},
		{Symbol: "TLT", Timestamp: day(2024, 2, 5), Close: 93},
	})

	got, _ := ps.ReadBars(ctx, "TLT", "us", day(2024, 1, 1), day(2024, 12, 31))
	if len(got) != 3 {
		t.Fatalf("ReadBars returned %d bars, want 3", len(got))
	}
	if got[1].Close != 93.5 {
		t.Errorf("merged close = %v, want 93.5", got[1].Close)
	}
}

func TestParquetStoreMissingSymbol(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	got, err := ps.ReadBars(context.Background(), "NOPE", "us", day(2000, 1, 1), day(2030, 1, 1))
	if err != nil || len(got) != 0 {
		t.Errorf("ReadBars(NOPE) = %v, %v; want empty", got, err)
	}
	if _, ok, err := ps.LatestBarTime("NOPE", "us"); ok || err != nil {
		t.Errorf("LatestBarTime(NOPE) = %v, %v", ok, err)
	}
	if symbols, err := ps.ListSymbols(context.Background(), "cn"); err != nil || symbols != nil {
		t.Errorf("ListSymbols(cn) = %v, %v", symbols, err)
	}
}

func TestSeriesLoader(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	ctx := context.Background()

	_ = ps.WriteBars(ctx, BarsFromSeries(domain.Series{
		Ticker: "UPRO",
		Dates:  []time.Time{day(2019, 12, 31), day(2020, 1, 2), day(2020, 1, 3)},
		Values: []float64{10, 11, 12},
	}))
	_ = ps.WriteBars(ctx, []domain.Bar{{Symbol: "TMF", Timestamp: day(2020, 1, 2), Close: 20}})

	loader := NewSeriesLoader(ps, "")
	s, err := loader.Series(ctx, "upro")
	if err != nil {
		t.Fatalf("Series: %v", err)
	}
	if s.Ticker != "UPRO" || s.Len() != 3 || s.Values[2] != 12 || !s.First().Equal(day(2019, 12, 31)) {
		t.Errorf("Series(UPRO) = %+v", s)
	}

	all, err := loader.LoadAll(ctx, []string{"UPRO", "TMF"})
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(all) != 2 || all["TMF"].Len() != 1 {
		t.Errorf("LoadAll = %v", all)
	}

	if _, err := loader.LoadAll(ctx, []string{"UPRO", "MISSING"}); err == nil {
		t.Error("LoadAll with a missing ticker should fail")
	}
}

func TestHistoryRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.parquet")
	rows := []HistoryRecord{
		{Timestamp: day(2024, 1, 2).UnixMilli(), Value: 1000, Contributed: 1000, Weights: []WeightRecord{{Ticker: "SPY", Weight: 0.6}, {Ticker: "TLT", Weight: 0.4}}},
		{Timestamp: day(2024, 1, 3).UnixMilli(), Value: 1010, Contributed: 1000, Growth: 10, Weights: []WeightRecord{{Ticker: "SPY", Weight: 0.61}, {Ticker: "TLT", Weight: 0.39}}},
	}
	if err := WriteHistory(path, rows); err != nil {
		t.Fatalf("WriteHistory: %v", err)
	}
	got, err := ReadHistory(path)
	if err != nil {
		t.Fatalf("ReadHistory: %v", err)
	}
	if len(got) != 2 || !got[1].Date().Equal(day(2024, 1, 3)) || got[1].Growth != 10 {
		t.Fatalf("ReadHistory() = %+v", got)
	}
	if len(got[0].Weights) != 2 || got[0].Weights[1].Ticker != "TLT" || got[0].Weights[1].Weight != 0.4 {
		t.Errorf("weights = %+v", got[0].Weights)
	}
}

func TestSQLiteStoreRunJournal(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	fills := []domain.Fill{
		{Date: day(2024, 1, 2), Ticker: "SPY", Side: domain.OrderSideBuy, Shares: 10, Price: 472.6},
		{Date: day(2024, 2, 1), Ticker: "SPY", Side: domain.OrderSideSell, Shares: 2, Price: 490, Commission: 1},
	}
	first := &RunRecord{Name: "60-40", StartDate: "2024-01-02", EndDate: "2024-06-28", Days: 124,
		StartingCash: 10000, FinalValue: 10800, CAGR: sql.NullFloat64{Float64: 0.17, Valid: true}, Sharpe: sql.NullFloat64{Float64: 0.4, Valid: true}, Trades: 2}
	id1, err := s.SaveRun(ctx, first, fills)
	if err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	id2, err := s.SaveRun(ctx, &RunRecord{Name: "spy", StartDate: "2024-01-02", EndDate: "2024-06-28"}, nil)
	if err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if id2 <= id1 || first.ID != id1 || first.CreatedAt == "" {
		t.Errorf("ids %d, %d; record %+v", id1, id2, first)
	}

	runs, err := s.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != id2 {
		t.Errorf("ListRuns() = %+v, want newest first", runs)
	}
	if runs, _ := s.ListRuns(ctx, 1); len(runs) != 1 {
		t.Errorf("ListRuns(1) returned %d runs", len(runs))
	}

	got, err := s.GetRun(ctx, id1)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Name != "60-40" || got.FinalValue != 10800 || !got.Sharpe.Valid || got.Sortino.Valid {
		t.Errorf("GetRun() = %+v", got)
	}
	if !got.CAGR.Valid || got.CAGR.Float64 != 0.17 || got.AdjustedCAGR.Valid {
		t.Errorf("GetRun() CAGR = %+v adjusted %+v, want 0.17 and null", got.CAGR, got.AdjustedCAGR)
	}

	gotFills, err := s.ListFills(ctx, id1)
	if err != nil {
		t.Fatalf("ListFills: %v", err)
	}
	if len(gotFills) != 2 || gotFills[1].Side != domain.OrderSideSell || !gotFills[1].Date.Equal(day(2024, 2, 1)) || gotFills[1].Commission != 1 {
		t.Errorf("ListFills() = %+v", gotFills)
	}

	if _, err := s.GetRun(ctx, 999); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("GetRun(999) error = %v, want ErrRunNotFound", err)
	}
}
