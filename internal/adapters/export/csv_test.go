package export_test

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"impulsebot/internal/adapters/export"
	"impulsebot/internal/domain"
)

func TestWriteTradesCSV(t *testing.T) {
	exit := 118.0
	closedAt := time.Date(2026, 3, 3, 15, 0, 0, 0, time.UTC)
	closed := domain.Trade{
		ID:           "t1",
		Symbol:       "EURUSD",
		Strategy:     "ALPHA",
		Action:       domain.ActionBuy,
		EntryPrice:   100,
		ExitPrice:    &exit,
		Lot:          0.5,
		RemainingLot: 0.25,
		Status:       domain.TradeClosed,
		PnL:          9.5,
		OpenedAt:     closedAt.Add(-time.Hour),
		ClosedAt:     &closedAt,
		CloseReason:  domain.CloseTrailingStop,
	}
	open := domain.Trade{
		ID:           "t2",
		Symbol:       "BTCUSD",
		Strategy:     "BETA",
		Action:       domain.ActionSell,
		EntryPrice:   50000,
		Lot:          0.01,
		RemainingLot: 0.01,
		Status:       domain.TradeOpen,
		OpenedAt:     closedAt,
	}

	var buf bytes.Buffer
	require.NoError(t, export.WriteTradesCSV(&buf, []domain.Trade{closed, open}))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "id", records[0][0])
	assert.Equal(t, "closed_at", records[0][11])

	assert.Equal(t, "t1", records[1][0])
	assert.Equal(t, "118", records[1][5])
	assert.Equal(t, "9.5", records[1][8])
	assert.Equal(t, "trailing_stop", records[1][9])
	assert.Equal(t, "2026-03-03T15:00:00Z", records[1][11])

	// Open trades have empty exit fields.
	assert.Equal(t, "t2", records[2][0])
	assert.Equal(t, "", records[2][5])
	assert.Equal(t, "", records[2][11])
}

func TestWriteTradesCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, export.WriteTradesCSV(&buf, nil))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1) // header only
}
