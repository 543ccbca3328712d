package notify_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"impulsebot/internal/adapters/notify"
	"impulsebot/internal/domain"
)

func sampleTrade() domain.Trade {
	exit := 120.0
	closedAt := time.Date(2026, 3, 3, 15, 0, 0, 0, time.UTC)
	return domain.Trade{
		ID:           "3f2a9c11-0000-0000-0000-000000000000",
		Symbol:       "EURUSD",
		Strategy:     "ALPHA",
		Action:       domain.ActionBuy,
		EntryPrice:   100,
		ExitPrice:    &exit,
		Lot:          0.5,
		RemainingLot: 0.25,
		Stage:        domain.StageTrailing,
		Status:       domain.TradeClosed,
		PnL:          9.5,
		OpenedAt:     closedAt.Add(-time.Hour),
		ClosedAt:     &closedAt,
		CloseReason:  domain.CloseTrailingStop,
	}
}

func TestConsole_TradeEvents(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf)

	tr := sampleTrade()
	require.NoError(t, c.TradeOpened(context.Background(), tr, 1000))
	require.NoError(t, c.TradeClosed(context.Background(), tr, 1009.5))
	require.NoError(t, c.EngineLocked(context.Background(), domain.EngineDDLock, "drawdown"))

	out := buf.String()
	assert.Contains(t, out, "OPEN")
	assert.Contains(t, out, "CLOSE")
	assert.Contains(t, out, "EURUSD")
	assert.Contains(t, out, "trailing_stop")
	assert.Contains(t, out, "DD_LOCK")
}

func TestConsole_PrintDashboard(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf)

	c.PrintDashboard(notify.DashboardInput{
		State: domain.EngineState{
			Status:       domain.EnginePaper,
			PeakBalance:  1010,
			DailyDate:    "2026-03-03",
			DailyPnL:     9.5,
			AdaptiveRisk: 0.0075,
		},
		Balance: 1009.5,
		Strategies: []domain.StrategyState{
			domain.NewStrategyState("EURUSD", "ALPHA", time.Now()),
		},
		Recent:    []domain.Trade{sampleTrade()},
		OpenCount: 2,
	})

	out := buf.String()
	assert.Contains(t, out, "ENGINE")
	assert.Contains(t, out, "PAPER")
	assert.Contains(t, out, "STRATEGIES")
	assert.Contains(t, out, "ALPHA")
	assert.Contains(t, out, "RECENT CLOSES")
}

func TestConsole_PrintTradesEmpty(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf)

	c.PrintTrades(nil)
	assert.Contains(t, buf.String(), "no trades")

	buf.Reset()
	c.PrintTrades([]domain.Trade{sampleTrade()})
	assert.Contains(t, buf.String(), "3f2a9c11")
	assert.NotContains(t, buf.String(), "3f2a9c11-0000")
}
