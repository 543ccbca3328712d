package storage

// sqlite.go — engine persistence on a single SQLite file.
//
// One table per entity of the core: trades, balance_samples (append-only),
// engine_state (singleton row), strategy_state, context_blocks and
// loss_streaks. Pnl-realizing events go through RealizeTrade, which writes
// the trade row, the balance sample and the engine state in one
// transaction — a partial write there would desynchronize the ledger from
// trade state.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"impulsebot/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS trades (
    id            TEXT PRIMARY KEY,
    symbol        TEXT NOT NULL,
    strategy      TEXT NOT NULL,
    action        TEXT NOT NULL,
    entry_price   REAL NOT NULL,
    exit_price    REAL,
    lot           REAL NOT NULL,
    remaining_lot REAL NOT NULL,
    stage         INTEGER NOT NULL DEFAULT 0,
    status        TEXT NOT NULL DEFAULT 'OPEN',
    pnl           REAL NOT NULL DEFAULT 0,
    trailing_sl   REAL,
    opened_at     DATETIME NOT NULL,
    closed_at     DATETIME,
    close_reason  TEXT NOT NULL DEFAULT ''
);

-- Append-only; current balance is the latest row, never updated in place.
CREATE TABLE IF NOT EXISTS balance_samples (
    id      INTEGER PRIMARY KEY AUTOINCREMENT,
    ts      DATETIME NOT NULL,
    balance REAL     NOT NULL
);

-- Singleton record, id is always 1.
CREATE TABLE IF NOT EXISTS engine_state (
    id            INTEGER PRIMARY KEY CHECK (id = 1),
    status        TEXT NOT NULL,
    peak_balance  REAL NOT NULL,
    daily_date    TEXT NOT NULL,
    daily_pnl     REAL NOT NULL,
    adaptive_risk REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS strategy_state (
    symbol         TEXT NOT NULL,
    strategy       TEXT NOT NULL,
    status         TEXT NOT NULL,
    weight         REAL NOT NULL,
    tp_mult        REAL NOT NULL,
    sl_mult        REAL NOT NULL,
    disabled_until DATETIME,
    last_reason    TEXT NOT NULL DEFAULT '',
    updated_at     DATETIME NOT NULL,
    PRIMARY KEY (symbol, strategy)
);

CREATE TABLE IF NOT EXISTS context_blocks (
    symbol        TEXT    NOT NULL,
    strategy      TEXT    NOT NULL,
    hour          INTEGER NOT NULL,
    weekday       INTEGER NOT NULL,
    blocked_until DATETIME NOT NULL,
    PRIMARY KEY (symbol, strategy, hour, weekday)
);

CREATE TABLE IF NOT EXISTS loss_streaks (
    symbol   TEXT NOT NULL,
    strategy TEXT NOT NULL,
    streak   INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (symbol, strategy)
);

CREATE INDEX IF NOT EXISTS idx_trades_symbol_status ON trades(symbol, status);
CREATE INDEX IF NOT EXISTS idx_trades_pair          ON trades(symbol, strategy, status);
CREATE INDEX IF NOT EXISTS idx_trades_closed        ON trades(closed_at DESC);
CREATE INDEX IF NOT EXISTS idx_balance_ts           ON balance_samples(ts DESC);
`

// SQLiteStorage implements ports.Storage using SQLite (pure Go, no CGo).
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens (or creates) the database at the given path and
// applies the schema.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// AppendBalance adds one sample to the ledger.
func (s *SQLiteStorage) AppendBalance(ctx context.Context, sample domain.BalanceSample) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO balance_samples (ts, balance) VALUES (?, ?)`,
		fmtTime(sample.Timestamp), sample.Balance,
	)
	if err != nil {
		return fmt.Errorf("storage.AppendBalance: %w", err)
	}
	return nil
}

// LatestBalance returns the most recent sample, or ok=false on an empty ledger.
func (s *SQLiteStorage) LatestBalance(ctx context.Context) (domain.BalanceSample, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT ts, balance FROM balance_samples ORDER BY id DESC LIMIT 1`)

	var ts string
	var sample domain.BalanceSample
	if err := row.Scan(&ts, &sample.Balance); err != nil {
		if err == sql.ErrNoRows {
			return domain.BalanceSample{}, false, nil
		}
		return domain.BalanceSample{}, false, fmt.Errorf("storage.LatestBalance: %w", err)
	}
	sample.Timestamp = parseTime(ts)
	return sample, true, nil
}

// BalanceHistory returns up to limit samples, newest first.
func (s *SQLiteStorage) BalanceHistory(ctx context.Context, limit int) ([]domain.BalanceSample, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ts, balance FROM balance_samples ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.BalanceHistory: %w", err)
	}
	defer rows.Close()

	var out []domain.BalanceSample
	for rows.Next() {
		var ts string
		var sample domain.BalanceSample
		if err := rows.Scan(&ts, &sample.Balance); err != nil {
			return nil, fmt.Errorf("storage.BalanceHistory: scan: %w", err)
		}
		sample.Timestamp = parseTime(ts)
		out = append(out, sample)
	}
	return out, rows.Err()
}

// GetEngineState loads the singleton row. ok=false on first run.
func (s *SQLiteStorage) GetEngineState(ctx context.Context) (domain.EngineState, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT status, peak_balance, daily_date, daily_pnl, adaptive_risk
		 FROM engine_state WHERE id = 1`)

	var st domain.EngineState
	var status string
	if err := row.Scan(&status, &st.PeakBalance, &st.DailyDate, &st.DailyPnL, &st.AdaptiveRisk); err != nil {
		if err == sql.ErrNoRows {
			return domain.EngineState{}, false, nil
		}
		return domain.EngineState{}, false, fmt.Errorf("storage.GetEngineState: %w", err)
	}
	st.Status = domain.EngineStatus(status)
	return st, true, nil
}

// SaveEngineState upserts the singleton row.
func (s *SQLiteStorage) SaveEngineState(ctx context.Context, st domain.EngineState) error {
	if err := saveEngineStateTx(ctx, s.db, st); err != nil {
		return fmt.Errorf("storage.SaveEngineState: %w", err)
	}
	return nil
}

// execer covers both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func saveEngineStateTx(ctx context.Context, e execer, st domain.EngineState) error {
	_, err := e.ExecContext(ctx, `
		INSERT INTO engine_state (id, status, peak_balance, daily_date, daily_pnl, adaptive_risk)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status        = excluded.status,
			peak_balance  = excluded.peak_balance,
			daily_date    = excluded.daily_date,
			daily_pnl     = excluded.daily_pnl,
			adaptive_risk = excluded.adaptive_risk`,
		string(st.Status), st.PeakBalance, st.DailyDate, st.DailyPnL, st.AdaptiveRisk,
	)
	return err
}

// --- time helpers ---

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func fmtTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := fmtTime(*t)
	return &s
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339, s)
	}
	return t
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	return &t
}
