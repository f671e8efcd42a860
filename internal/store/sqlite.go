package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"folio/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ RunStore = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	name          TEXT    NOT NULL,
	created_at    TEXT    NOT NULL,
	start_date    TEXT    NOT NULL,
	end_date      TEXT    NOT NULL,
	days          INTEGER NOT NULL,
	starting_cash REAL    NOT NULL,
	contributions REAL    NOT NULL,
	final_value   REAL    NOT NULL,
	cagr          REAL,
	adjusted_cagr REAL,
	max_drawdown  REAL    NOT NULL,
	sharpe        REAL,
	sortino       REAL,
	trades        INTEGER NOT NULL,
	config        TEXT    NOT NULL DEFAULT '',
	report        TEXT    NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS fills (
	run_id     INTEGER NOT NULL REFERENCES runs(id),
	seq        INTEGER NOT NULL,
	date       TEXT    NOT NULL,
	ticker     TEXT    NOT NULL,
	side       TEXT    NOT NULL,
	shares     INTEGER NOT NULL,
	price      REAL    NOT NULL,
	commission REAL    NOT NULL,
	PRIMARY KEY (run_id, seq)
);`

const runColumns = `id, name, created_at, start_date, end_date, days, starting_cash,
	contributions, final_value, cagr, adjusted_cagr, max_drawdown, sharpe, sortino,
	trades, config, report`

// fillRow is the database form of a domain.Fill.
type fillRow struct {
	RunID      int64   `db:"run_id"`
	Seq        int     `db:"seq"`
	Date       string  `db:"date"`
	Ticker     string  `db:"ticker"`
	Side       string  `db:"side"`
	Shares     int64   `db:"shares"`
	Price      float64 `db:"price"`
	Commission float64 `db:"commission"`
}

// SQLiteStore implements RunStore backed by a SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, creates the
// schema if needed and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRun inserts a run and its fills in one transaction. CreatedAt is set
// to the current time when empty.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *RunRecord, fills []domain.Fill) (int64, error) {
	if run.CreatedAt == "" {
		run.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.NamedExecContext(ctx, `
		INSERT INTO runs (name, created_at, start_date, end_date, days, starting_cash,
			contributions, final_value, cagr, adjusted_cagr, max_drawdown, sharpe, sortino,
			trades, config, report)
		VALUES (:name, :created_at, :start_date, :end_date, :days, :starting_cash,
			:contributions, :final_value, :cagr, :adjusted_cagr, :max_drawdown, :sharpe, :sortino,
			:trades, :config, :report)`, run)
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for i, f := range fills {
		row := fillRow{
			RunID:      id,
			Seq:        i,
			Date:       f.Date.Format("2006-01-02"),
			Ticker:     f.Ticker,
			Side:       string(f.Side),
			Shares:     f.Shares,
			Price:      f.Price,
			Commission: f.Commission,
		}
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO fills (run_id, seq, date, ticker, side, shares, price, commission)
			VALUES (:run_id, :seq, :date, :ticker, :side, :shares, :price, :commission)`, row); err != nil {
			return 0, fmt.Errorf("inserting fill %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	run.ID = id
	return id, nil
}

// ListRuns returns the most recent runs, newest first, up to limit. A
// non-positive limit returns every run.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	var runs []RunRecord
	err := s.db.SelectContext(ctx, &runs,
		`SELECT `+runColumns+` FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}

// GetRun retrieves a single run by id.
func (s *SQLiteStore) GetRun(ctx context.Context, id int64) (*RunRecord, error) {
	var run RunRecord
	err := s.db.GetContext(ctx, &run, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %d: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting run %d: %w", id, err)
	}
	return &run, nil
}

// ListFills returns the fills of a run in execution order.
func (s *SQLiteStore) ListFills(ctx context.Context, runID int64) ([]domain.Fill, error) {
	var rows []fillRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT run_id, seq, date, ticker, side, shares, price, commission
		 FROM fills WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("listing fills for run %d: %w", runID, err)
	}

	fills := make([]domain.Fill, len(rows))
	for i, r := range rows {
		date, err := domain.ParseDay(r.Date)
		if err != nil {
			return nil, err
		}
		fills[i] = domain.Fill{
			Date:       date,
			Ticker:     r.Ticker,
			Side:       domain.OrderSide(r.Side),
			Shares:     r.Shares,
			Price:      r.Price,
			Commission: r.Commission,
		}
	}
	return fills, nil
}
