package notify

import (
	"context"
	"errors"

	"impulsebot/internal/domain"
	"impulsebot/internal/ports"
)

// Multi fans events out to several notifiers, collecting their errors.
type Multi struct {
	targets []ports.Notifier
}

// NewMulti builds a fan-out notifier.
func NewMulti(targets ...ports.Notifier) *Multi {
	return &Multi{targets: targets}
}

func (m *Multi) TradeOpened(ctx context.Context, t domain.Trade, balance float64) error {
	var errs []error
	for _, n := range m.targets {
		errs = append(errs, n.TradeOpened(ctx, t, balance))
	}
	return errors.Join(errs...)
}

func (m *Multi) TradeClosed(ctx context.Context, t domain.Trade, balance float64) error {
	var errs []error
	for _, n := range m.targets {
		errs = append(errs, n.TradeClosed(ctx, t, balance))
	}
	return errors.Join(errs...)
}

func (m *Multi) EngineLocked(ctx context.Context, status domain.EngineStatus, detail string) error {
	var errs []error
	for _, n := range m.targets {
		errs = append(errs, n.EngineLocked(ctx, status, detail))
	}
	return errors.Join(errs...)
}
