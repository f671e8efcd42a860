package store

import (
	"fmt"
	"time"
)

// WeightRecord is one ticker's share of portfolio value on a day.
type WeightRecord struct {
	Ticker string  `parquet:"ticker"`
	Weight float64 `parquet:"weight"`
}

// HistoryRecord is the Parquet schema for one simulated day of a run.
type HistoryRecord struct {
	Timestamp   int64          `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Value       float64        `parquet:"value"`
	Contributed float64        `parquet:"contributed"`
	Growth      float64        `parquet:"growth"`
	Weights     []WeightRecord `parquet:"weights"`
}

// Date returns the record's day.
func (r HistoryRecord) Date() time.Time { return time.UnixMilli(r.Timestamp).UTC() }

// WriteHistory writes the per-day history of a run to path.
func WriteHistory(path string, rows []HistoryRecord) error {
	if err := writeParquetFile(path, rows); err != nil {
		return fmt.Errorf("writing history %s: %w", path, err)
	}
	return nil
}

// ReadHistory reads a history file written by WriteHistory.
func ReadHistory(path string) ([]HistoryRecord, error) {
	rows, err := readParquetFile[HistoryRecord](path)
	if err != nil {
		return nil, fmt.Errorf("reading history %s: %w", path, err)
	}
	return rows, nil
}
