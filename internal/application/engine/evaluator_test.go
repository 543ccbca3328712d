package engine_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"impulsebot/internal/adapters/storage"
	"impulsebot/internal/application/engine"
	"impulsebot/internal/domain"
)

func newEvaluator(t *testing.T) (*engine.Evaluator, *storage.SQLiteStorage) {
	t.Helper()
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := testEngineConfig()
	cfg.MinTradesForOpt = 2
	return engine.NewEvaluator(cfg, db), db
}

var closedSeq int

// insertClosed seeds one closed trade for the pair's history.
func insertClosed(t *testing.T, db *storage.SQLiteStorage, symbol, strategy string, pnl float64, closedAt time.Time) {
	t.Helper()
	closedSeq++
	exit := 100 + pnl
	require.NoError(t, db.InsertTrade(context.Background(), domain.Trade{
		ID:           fmt.Sprintf("closed-%d", closedSeq),
		Symbol:       symbol,
		Strategy:     strategy,
		Action:       domain.ActionBuy,
		EntryPrice:   100,
		ExitPrice:    &exit,
		Lot:          0.5,
		RemainingLot: 0.5,
		Status:       domain.TradeClosed,
		PnL:          pnl,
		OpenedAt:     closedAt.Add(-time.Hour),
		ClosedAt:     &closedAt,
		CloseReason:  domain.CloseTakeProfit,
	}))
}

func TestEvaluator_RegisterCreatesNeutralState(t *testing.T) {
	ev, _ := newEvaluator(t)
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	st, err := ev.Register(context.Background(), "EURUSD", "ALPHA", now)
	require.NoError(t, err)
	assert.Equal(t, domain.StrategyActive, st.Status)
	assert.Equal(t, 1.0, st.Weight)
	assert.Equal(t, 1.0, st.TPMult)
	assert.Equal(t, 1.0, st.SLMult)

	// Second registration returns the stored record, not a fresh one.
	again, err := ev.Register(context.Background(), "EURUSD", "ALPHA", now.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, again.UpdatedAt.Equal(st.UpdatedAt))
}

func TestEvaluator_SampleGateHoldsTransitions(t *testing.T) {
	ev, db := newEvaluator(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	insertClosed(t, db, "EURUSD", "ALPHA", -300, now)

	require.NoError(t, ev.Reevaluate(ctx, "EURUSD", "ALPHA", now))

	st, ok, err := db.GetStrategyState(ctx, "EURUSD", "ALPHA")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.StrategyActive, st.Status)
	assert.Equal(t, 1.0, st.Weight)
}

func TestEvaluator_MaxDrawdownDisables(t *testing.T) {
	ev, db := newEvaluator(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	insertClosed(t, db, "EURUSD", "ALPHA", -150, now.Add(-2*time.Hour))
	insertClosed(t, db, "EURUSD", "ALPHA", -150, now.Add(-time.Hour))

	require.NoError(t, ev.Reevaluate(ctx, "EURUSD", "ALPHA", now))

	st, _, err := db.GetStrategyState(ctx, "EURUSD", "ALPHA")
	require.NoError(t, err)
	assert.Equal(t, domain.StrategyDisabled, st.Status)
	assert.Equal(t, "max_dd", st.LastReason)
	require.NotNil(t, st.DisabledUntil)
	assert.True(t, st.DisabledUntil.Equal(now.Add(24*time.Hour)))
}

func TestEvaluator_ReviveIfExpired(t *testing.T) {
	ev, db := newEvaluator(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	until := now.Add(-time.Minute)
	st := domain.NewStrategyState("EURUSD", "ALPHA", now.Add(-48*time.Hour))
	st.Status = domain.StrategyDisabled
	st.DisabledUntil = &until
	st.LastReason = "max_dd"
	require.NoError(t, db.SaveStrategyState(ctx, st))

	require.NoError(t, ev.ReviveIfExpired(ctx, &st, now))
	assert.Equal(t, domain.StrategyTesting, st.Status)
	assert.Nil(t, st.DisabledUntil)

	// Still inside the cooldown: no change.
	later := now.Add(time.Hour)
	st2 := domain.NewStrategyState("BTCUSD", "BETA", now)
	st2.Status = domain.StrategyDisabled
	st2.DisabledUntil = &later
	require.NoError(t, db.SaveStrategyState(ctx, st2))
	require.NoError(t, ev.ReviveIfExpired(ctx, &st2, now))
	assert.Equal(t, domain.StrategyDisabled, st2.Status)
}

func TestEvaluator_TestingPromotesToActive(t *testing.T) {
	ev, db := newEvaluator(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	st := domain.NewStrategyState("EURUSD", "ALPHA", now.Add(-time.Hour))
	st.Status = domain.StrategyTesting
	require.NoError(t, db.SaveStrategyState(ctx, st))

	for i := 0; i < 3; i++ {
		insertClosed(t, db, "EURUSD", "ALPHA", 10, now.Add(time.Duration(i-3)*time.Minute))
	}

	require.NoError(t, ev.Reevaluate(ctx, "EURUSD", "ALPHA", now))

	got, _, err := db.GetStrategyState(ctx, "EURUSD", "ALPHA")
	require.NoError(t, err)
	assert.Equal(t, domain.StrategyActive, got.Status)

	// A clean winning record also nudges the exit multipliers.
	assert.InDelta(t, 1.05, got.TPMult, 1e-9)
	assert.InDelta(t, 0.95, got.SLMult, 1e-9)
	assert.InDelta(t, 1.0, got.Weight, 1e-9) // already at the cap
}

func TestEvaluator_ActiveDegradesAndRecovers(t *testing.T) {
	ev, db := newEvaluator(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	// Bleeding but not deep enough for the kill-switch.
	for i := 0; i < 4; i++ {
		insertClosed(t, db, "EURUSD", "ALPHA", -10, now.Add(time.Duration(i-5)*time.Minute))
	}
	require.NoError(t, ev.Reevaluate(ctx, "EURUSD", "ALPHA", now))

	st, _, err := db.GetStrategyState(ctx, "EURUSD", "ALPHA")
	require.NoError(t, err)
	assert.Equal(t, domain.StrategyDegraded, st.Status)
	assert.Equal(t, "underperforming", st.LastReason)
	assert.InDelta(t, 0.9, st.Weight, 1e-9)

	// A run of wins flips it back.
	for i := 0; i < 8; i++ {
		insertClosed(t, db, "EURUSD", "ALPHA", 15, now.Add(time.Duration(i)*time.Minute))
	}
	require.NoError(t, ev.Reevaluate(ctx, "EURUSD", "ALPHA", now.Add(time.Hour)))

	st, _, err = db.GetStrategyState(ctx, "EURUSD", "ALPHA")
	require.NoError(t, err)
	assert.Equal(t, domain.StrategyActive, st.Status)
}
