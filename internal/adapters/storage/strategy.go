package storage

import (
	"context"
	"database/sql"
	"fmt"

	"impulsebot/internal/domain"
)

// GetStrategyState loads the state for a (symbol, strategy) pair.
// ok=false when the pair was never registered.
func (s *SQLiteStorage) GetStrategyState(ctx context.Context, symbol, strategy string) (domain.StrategyState, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT symbol, strategy, status, weight, tp_mult, sl_mult,
		       disabled_until, last_reason, updated_at
		FROM strategy_state WHERE symbol = ? AND strategy = ?`,
		symbol, strategy)

	st, err := scanStrategyState(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.StrategyState{}, false, nil
		}
		return domain.StrategyState{}, false, fmt.Errorf("storage.GetStrategyState: %w", err)
	}
	return st, true, nil
}

// SaveStrategyState upserts the pair's state row.
func (s *SQLiteStorage) SaveStrategyState(ctx context.Context, st domain.StrategyState) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO strategy_state
			(symbol, strategy, status, weight, tp_mult, sl_mult,
			 disabled_until, last_reason, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, strategy) DO UPDATE SET
			status         = excluded.status,
			weight         = excluded.weight,
			tp_mult        = excluded.tp_mult,
			sl_mult        = excluded.sl_mult,
			disabled_until = excluded.disabled_until,
			last_reason    = excluded.last_reason,
			updated_at     = excluded.updated_at`,
		st.Symbol, st.Strategy, string(st.Status), st.Weight, st.TPMult, st.SLMult,
		fmtTimePtr(st.DisabledUntil), st.LastReason, fmtTime(st.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("storage.SaveStrategyState: %w", err)
	}
	return nil
}

// ListStrategyStates returns every registered pair, stable order for the
// dashboard.
func (s *SQLiteStorage) ListStrategyStates(ctx context.Context) ([]domain.StrategyState, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, strategy, status, weight, tp_mult, sl_mult,
		       disabled_until, last_reason, updated_at
		FROM strategy_state ORDER BY symbol, strategy`)
	if err != nil {
		return nil, fmt.Errorf("storage.ListStrategyStates: %w", err)
	}
	defer rows.Close()

	var out []domain.StrategyState
	for rows.Next() {
		st, err := scanStrategyState(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.ListStrategyStates: scan: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// GetContextBlock looks up a block for one time-of-week bucket.
func (s *SQLiteStorage) GetContextBlock(ctx context.Context, symbol, strategy string, hour, weekday int) (domain.ContextBlock, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT symbol, strategy, hour, weekday, blocked_until
		FROM context_blocks
		WHERE symbol = ? AND strategy = ? AND hour = ? AND weekday = ?`,
		symbol, strategy, hour, weekday)

	var b domain.ContextBlock
	var until string
	if err := row.Scan(&b.Symbol, &b.Strategy, &b.Hour, &b.Weekday, &until); err != nil {
		if err == sql.ErrNoRows {
			return domain.ContextBlock{}, false, nil
		}
		return domain.ContextBlock{}, false, fmt.Errorf("storage.GetContextBlock: %w", err)
	}
	b.BlockedUntil = parseTime(until)
	return b, true, nil
}

// SaveContextBlock writes or overwrites the block for its bucket.
func (s *SQLiteStorage) SaveContextBlock(ctx context.Context, b domain.ContextBlock) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO context_blocks (symbol, strategy, hour, weekday, blocked_until)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(symbol, strategy, hour, weekday) DO UPDATE SET
			blocked_until = excluded.blocked_until`,
		b.Symbol, b.Strategy, b.Hour, b.Weekday, fmtTime(b.BlockedUntil),
	)
	if err != nil {
		return fmt.Errorf("storage.SaveContextBlock: %w", err)
	}
	return nil
}

// GetLossStreak returns the consecutive-loss counter for a pair, 0 when
// unknown.
func (s *SQLiteStorage) GetLossStreak(ctx context.Context, symbol, strategy string) (int, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT streak FROM loss_streaks WHERE symbol = ? AND strategy = ?`,
		symbol, strategy)

	var streak int
	if err := row.Scan(&streak); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("storage.GetLossStreak: %w", err)
	}
	return streak, nil
}

// SetLossStreak upserts the consecutive-loss counter for a pair.
func (s *SQLiteStorage) SetLossStreak(ctx context.Context, symbol, strategy string, streak int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO loss_streaks (symbol, strategy, streak) VALUES (?, ?, ?)
		ON CONFLICT(symbol, strategy) DO UPDATE SET streak = excluded.streak`,
		symbol, strategy, streak,
	)
	if err != nil {
		return fmt.Errorf("storage.SetLossStreak: %w", err)
	}
	return nil
}

func scanStrategyState(r rowScanner) (domain.StrategyState, error) {
	var st domain.StrategyState
	var status, updatedAt string
	var disabledUntil sql.NullString

	if err := r.Scan(
		&st.Symbol, &st.Strategy, &status, &st.Weight, &st.TPMult, &st.SLMult,
		&disabledUntil, &st.LastReason, &updatedAt,
	); err != nil {
		return domain.StrategyState{}, err
	}

	st.Status = domain.StrategyStatus(status)
	st.DisabledUntil = parseTimePtr(disabledUntil)
	st.UpdatedAt = parseTime(updatedAt)
	return st, nil
}
