package storage

import (
	"context"
	"database/sql"
	"fmt"

	"impulsebot/internal/domain"
)

const tradeColumns = `id, symbol, strategy, action, entry_price, exit_price,
	lot, remaining_lot, stage, status, pnl, trailing_sl, opened_at, closed_at, close_reason`

// InsertTrade inserts a new OPEN trade.
func (s *SQLiteStorage) InsertTrade(ctx context.Context, t domain.Trade) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trades (`+tradeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Symbol, t.Strategy, string(t.Action), t.EntryPrice, t.ExitPrice,
		t.Lot, t.RemainingLot, t.Stage, string(t.Status), t.PnL, t.TrailingSL,
		fmtTime(t.OpenedAt), fmtTimePtr(t.ClosedAt), t.CloseReason,
	)
	if err != nil {
		return fmt.Errorf("storage.InsertTrade: %w", err)
	}
	return nil
}

// GetTrade loads one trade by id.
func (s *SQLiteStorage) GetTrade(ctx context.Context, id string) (domain.Trade, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+tradeColumns+` FROM trades WHERE id = ?`, id)
	t, err := scanTrade(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.Trade{}, false, nil
		}
		return domain.Trade{}, false, fmt.Errorf("storage.GetTrade: %w", err)
	}
	return t, true, nil
}

// GetOpenTrades returns OPEN trades, optionally filtered by symbol,
// oldest first so exits fire in opening order.
func (s *SQLiteStorage) GetOpenTrades(ctx context.Context, symbol string) ([]domain.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE status = 'OPEN'`
	args := []any{}
	if symbol != "" {
		query += ` AND symbol = ?`
		args = append(args, symbol)
	}
	query += ` ORDER BY opened_at ASC`

	trades, err := s.queryTrades(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage.GetOpenTrades: %w", err)
	}
	return trades, nil
}

// GetClosedTrades returns CLOSED trades for a (symbol, strategy) pair,
// oldest first — callers replay them as an equity curve.
func (s *SQLiteStorage) GetClosedTrades(ctx context.Context, symbol, strategy string, limit int) ([]domain.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades
		WHERE status = 'CLOSED' AND symbol = ? AND strategy = ?
		ORDER BY closed_at ASC`
	args := []any{symbol, strategy}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	trades, err := s.queryTrades(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage.GetClosedTrades: %w", err)
	}
	return trades, nil
}

// GetRecentClosed returns the last N closed trades across all symbols,
// newest first.
func (s *SQLiteStorage) GetRecentClosed(ctx context.Context, limit int) ([]domain.Trade, error) {
	trades, err := s.queryTrades(ctx,
		`SELECT `+tradeColumns+` FROM trades
		 WHERE status = 'CLOSED' ORDER BY closed_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.GetRecentClosed: %w", err)
	}
	return trades, nil
}

// ListTrades returns trades for the query surface, newest first.
// Empty status or symbol means "any".
func (s *SQLiteStorage) ListTrades(ctx context.Context, status, symbol string, limit int) ([]domain.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE 1=1`
	args := []any{}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	if symbol != "" {
		query += ` AND symbol = ?`
		args = append(args, symbol)
	}
	query += ` ORDER BY opened_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	trades, err := s.queryTrades(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage.ListTrades: %w", err)
	}
	return trades, nil
}

// UpdateTradeStops persists stage, remaining lot and trailing stop for an
// OPEN trade. Closed trades are immutable, hence the status guard.
func (s *SQLiteStorage) UpdateTradeStops(ctx context.Context, t domain.Trade) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE trades SET stage = ?, remaining_lot = ?, trailing_sl = ?
		WHERE id = ? AND status = 'OPEN'`,
		t.Stage, t.RemainingLot, t.TrailingSL, t.ID,
	)
	if err != nil {
		return fmt.Errorf("storage.UpdateTradeStops: %w", err)
	}
	return nil
}

// RealizeTrade persists a pnl-realizing event in one transaction: the
// updated trade row, the appended balance sample and the engine state.
func (s *SQLiteStorage) RealizeTrade(ctx context.Context, t domain.Trade, sample domain.BalanceSample, state domain.EngineState) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.RealizeTrade: begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE trades SET exit_price = ?, remaining_lot = ?, stage = ?,
			status = ?, pnl = ?, trailing_sl = ?, closed_at = ?, close_reason = ?
		WHERE id = ? AND status = 'OPEN'`,
		t.ExitPrice, t.RemainingLot, t.Stage, string(t.Status), t.PnL,
		t.TrailingSL, fmtTimePtr(t.ClosedAt), t.CloseReason, t.ID,
	)
	if err != nil {
		return fmt.Errorf("storage.RealizeTrade: update trade %s: %w", t.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("storage.RealizeTrade: trade %s is not open", t.ID)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO balance_samples (ts, balance) VALUES (?, ?)`,
		fmtTime(sample.Timestamp), sample.Balance,
	); err != nil {
		return fmt.Errorf("storage.RealizeTrade: append balance: %w", err)
	}

	if err := saveEngineStateTx(ctx, tx, state); err != nil {
		return fmt.Errorf("storage.RealizeTrade: save engine state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.RealizeTrade: commit: %w", err)
	}
	return nil
}

// --- scanning helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrade(r rowScanner) (domain.Trade, error) {
	var t domain.Trade
	var action, status, openedAt string
	var exitPrice, trailingSL sql.NullFloat64
	var closedAt sql.NullString

	if err := r.Scan(
		&t.ID, &t.Symbol, &t.Strategy, &action, &t.EntryPrice, &exitPrice,
		&t.Lot, &t.RemainingLot, &t.Stage, &status, &t.PnL, &trailingSL,
		&openedAt, &closedAt, &t.CloseReason,
	); err != nil {
		return domain.Trade{}, err
	}

	t.Action = domain.Action(action)
	t.Status = domain.TradeStatus(status)
	t.OpenedAt = parseTime(openedAt)
	t.ClosedAt = parseTimePtr(closedAt)
	if exitPrice.Valid {
		t.ExitPrice = &exitPrice.Float64
	}
	if trailingSL.Valid {
		t.TrailingSL = &trailingSL.Float64
	}
	return t, nil
}

func (s *SQLiteStorage) queryTrades(ctx context.Context, query string, args ...any) ([]domain.Trade, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
