package domain

// Signal is a normalized trade impulse, produced by the parser.
type Signal struct {
	Symbol     string
	Strategy   string
	Action     Action
	Confidence float64 // 0 when the source did not carry one
	Raw        string
}

// Outcomes of processing one signal. Every rejection carries a
// machine-readable reason; callers never see a bare error for these.
const (
	OutcomeOpened           = "opened"
	OutcomeManaged          = "managed" // no new trade, open trades updated
	OutcomeIgnored          = "ignored"
	OutcomeNoPrice          = "no_price"
	OutcomeNoMarketData     = "no_market_data"
	OutcomeBlocked          = "blocked" // engine lock; Detail carries the status
	OutcomeStrategyDisabled = "strategy_disabled"
	OutcomeContextBlocked   = "context_blocked"
	OutcomeDuplicate        = "duplicate"
)

// ProcessResult is what the engine returns for one processed signal.
type ProcessResult struct {
	Outcome      string
	Detail       string
	Trade        *Trade  // set when a new trade was opened
	Closed       []Trade // trades fully closed while managing this symbol
	Balance      float64
	EngineStatus EngineStatus
}

// Rejected reports whether the signal did not open a trade.
func (r ProcessResult) Rejected() bool {
	return r.Outcome != OutcomeOpened
}
