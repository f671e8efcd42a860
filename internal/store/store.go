// Package store defines storage interfaces for persisting and retrieving
// daily bars, per-run history and the journal of completed runs.
package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"folio/internal/domain"
)

// ErrRunNotFound is returned when a run id does not exist in the journal.
var ErrRunNotFound = errors.New("run not found")

// BarStore persists and retrieves OHLCV bar data.
type BarStore interface {
	// WriteBars persists a batch of bars to storage.
	WriteBars(ctx context.Context, bars []domain.Bar) error

	// ReadBars returns bars for the given symbol and market within [start, end].
	ReadBars(ctx context.Context, symbol string, market string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols available in the given market.
	ListSymbols(ctx context.Context, market string) ([]string, error)
}

// RunStore is the journal of completed simulation runs.
type RunStore interface {
	// SaveRun inserts a run and its fills and returns the new run id.
	SaveRun(ctx context.Context, run *RunRecord, fills []domain.Fill) (int64, error)

	// ListRuns returns the most recent runs, newest first, up to limit.
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)

	// GetRun retrieves a single run by id.
	GetRun(ctx context.Context, id int64) (*RunRecord, error)

	// ListFills returns the fills of a run in execution order.
	ListFills(ctx context.Context, runID int64) ([]domain.Fill, error)
}

// RunRecord is one row of the run journal. Dates are stored as YYYY-MM-DD.
type RunRecord struct {
	ID            int64           `db:"id"`
	Name          string          `db:"name"`
	CreatedAt     string          `db:"created_at"`
	StartDate     string          `db:"start_date"`
	EndDate       string          `db:"end_date"`
	Days          int             `db:"days"`
	StartingCash  float64         `db:"starting_cash"`
	Contributions float64         `db:"contributions"`
	FinalValue    float64         `db:"final_value"`
	CAGR          sql.NullFloat64 `db:"cagr"` // null without starting cash
	AdjustedCAGR  sql.NullFloat64 `db:"adjusted_cagr"`
	MaxDrawdown   float64         `db:"max_drawdown"`
	Sharpe        sql.NullFloat64 `db:"sharpe"`
	Sortino       sql.NullFloat64 `db:"sortino"`
	Trades        int             `db:"trades"`
	Config        string          `db:"config"` // YAML of the run configuration
	Report        string          `db:"report"` // rendered markdown report
}
