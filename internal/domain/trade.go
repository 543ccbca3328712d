package domain

import "time"

// Action is the direction of a trade signal.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// Direction returns +1 for buy, -1 for sell.
func (a Action) Direction() float64 {
	if a == ActionSell {
		return -1
	}
	return 1
}

// Opposite returns the opposing action.
func (a Action) Opposite() Action {
	if a == ActionBuy {
		return ActionSell
	}
	return ActionBuy
}

// Valid reports whether the action is one of the known values.
func (a Action) Valid() bool {
	return a == ActionBuy || a == ActionSell
}

// TradeStatus is the lifecycle state of a trade. CLOSED is terminal.
type TradeStatus string

const (
	TradeOpen   TradeStatus = "OPEN"
	TradeClosed TradeStatus = "CLOSED"
)

// Trade stages. The stage only ever advances.
const (
	StageFresh    = 0 // no exit rule has fired yet
	StagePartial  = 1 // partial close taken
	StageTrailing = 2 // trailing stop engaged
)

// Close reasons recorded when a trade (or part of it) exits.
const (
	CloseTakeProfit   = "take_profit"
	CloseStopLoss     = "stop_loss"
	CloseTrailingStop = "trailing_stop"
	CloseOpposing     = "opposing_signal"
	ClosePartial      = "partial_close"
)

// Trade is one simulated position.
//
// Exit fields (ExitPrice, ClosedAt) are nil exactly while Status is OPEN.
// Once CLOSED every field is immutable.
type Trade struct {
	ID           string
	Symbol       string
	Strategy     string
	Action       Action
	EntryPrice   float64
	ExitPrice    *float64
	Lot          float64
	RemainingLot float64
	Stage        int
	Status       TradeStatus
	PnL          float64 // realized; 0 while open, fixed once closed
	TrailingSL   *float64
	OpenedAt     time.Time
	ClosedAt     *time.Time
	CloseReason  string
}

// IsOpen reports whether the trade is still open.
func (t *Trade) IsOpen() bool {
	return t.Status == TradeOpen
}

// Move returns the favorable price displacement at the given price:
// positive when the trade is in profit.
func (t *Trade) Move(price float64) float64 {
	return (price - t.EntryPrice) * t.Action.Direction()
}
