package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"impulsebot/internal/domain"
)

// Telegram implements ports.Notifier via the Bot API sendMessage call.
// Best-effort: a delivery failure is returned to the caller to log, never
// to abort a trade.
type Telegram struct {
	http   *http.Client
	base   string
	token  string
	chatID string
}

// NewTelegram creates a Telegram notifier. base is overridable for tests;
// empty means the production API.
func NewTelegram(base, token, chatID string) *Telegram {
	if base == "" {
		base = "https://api.telegram.org"
	}
	return &Telegram{
		http:   &http.Client{Timeout: 5 * time.Second},
		base:   base,
		token:  token,
		chatID: chatID,
	}
}

// TradeOpened sends an open notice.
func (t *Telegram) TradeOpened(ctx context.Context, tr domain.Trade, balance float64) error {
	return t.send(ctx, fmt.Sprintf(
		"OPEN %s %s %s\nentry %.2f lot %.2f\nbalance $%.2f",
		tr.Symbol, tr.Strategy, tr.Action, tr.EntryPrice, tr.Lot, balance))
}

// TradeClosed sends a close notice.
func (t *Telegram) TradeClosed(ctx context.Context, tr domain.Trade, balance float64) error {
	exit := 0.0
	if tr.ExitPrice != nil {
		exit = *tr.ExitPrice
	}
	return t.send(ctx, fmt.Sprintf(
		"CLOSE %s %s %s (%s)\nexit %.2f pnl %+.2f\nbalance $%.2f",
		tr.Symbol, tr.Strategy, tr.Action, tr.CloseReason, exit, tr.PnL, balance))
}

// EngineLocked sends a circuit-breaker notice.
func (t *Telegram) EngineLocked(ctx context.Context, status domain.EngineStatus, detail string) error {
	return t.send(ctx, fmt.Sprintf("ENGINE LOCKED: %s %s", status, detail))
}

func (t *Telegram) send(ctx context.Context, text string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.base, t.token)
	payload, err := json.Marshal(map[string]string{
		"chat_id": t.chatID,
		"text":    text,
	})
	if err != nil {
		return fmt.Errorf("notify.Telegram: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("notify.Telegram: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		return fmt.Errorf("notify.Telegram: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("notify.Telegram: status %d", resp.StatusCode)
	}
	return nil
}
