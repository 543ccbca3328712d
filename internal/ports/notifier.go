package ports

import (
	"context"

	"impulsebot/internal/domain"
)

// Notifier reports engine events to the outside. Implementations are
// best-effort: the engine logs a notifier error and moves on.
type Notifier interface {
	TradeOpened(ctx context.Context, t domain.Trade, balance float64) error
	TradeClosed(ctx context.Context, t domain.Trade, balance float64) error
	EngineLocked(ctx context.Context, status domain.EngineStatus, detail string) error
}
