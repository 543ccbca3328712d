package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"impulsebot/internal/domain"
)

var csvHeader = []string{
	"id", "symbol", "strategy", "action", "entry_price", "exit_price",
	"lot", "remaining_lot", "pnl", "close_reason", "opened_at", "closed_at",
}

// WriteTradesCSV writes trades as CSV, header first.
func WriteTradesCSV(w io.Writer, trades []domain.Trade) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("export.WriteTradesCSV: header: %w", err)
	}

	for _, t := range trades {
		exit, closed := "", ""
		if t.ExitPrice != nil {
			exit = f(*t.ExitPrice)
		}
		if t.ClosedAt != nil {
			closed = t.ClosedAt.UTC().Format(time.RFC3339)
		}
		rec := []string{
			t.ID,
			t.Symbol,
			t.Strategy,
			string(t.Action),
			f(t.EntryPrice),
			exit,
			f(t.Lot),
			f(t.RemainingLot),
			f(t.PnL),
			t.CloseReason,
			t.OpenedAt.UTC().Format(time.RFC3339),
			closed,
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("export.WriteTradesCSV: row %s: %w", t.ID, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("export.WriteTradesCSV: flush: %w", err)
	}
	return nil
}

func f(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
