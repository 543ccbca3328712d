package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"

	"impulsebot/internal/domain"
)

// Console implements ports.Notifier on stdout and renders the dashboard
// tables for the stats command.
type Console struct {
	out io.Writer
}

// NewConsole creates a notifier that writes to stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter creates a notifier for tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// TradeOpened prints a one-line open notice.
func (c *Console) TradeOpened(_ context.Context, t domain.Trade, balance float64) error {
	fmt.Fprintf(c.out, "[%s] OPEN  %-8s %-10s %-4s entry %.2f lot %.2f | bal $%.2f\n",
		time.Now().Format("15:04:05"), t.Symbol, t.Strategy, t.Action,
		t.EntryPrice, t.Lot, balance)
	return nil
}

// TradeClosed prints a one-line close notice.
func (c *Console) TradeClosed(_ context.Context, t domain.Trade, balance float64) error {
	exit := 0.0
	if t.ExitPrice != nil {
		exit = *t.ExitPrice
	}
	fmt.Fprintf(c.out, "[%s] CLOSE %-8s %-10s %-4s exit %.2f pnl %+.2f (%s) | bal $%.2f\n",
		time.Now().Format("15:04:05"), t.Symbol, t.Strategy, t.Action,
		exit, t.PnL, t.CloseReason, balance)
	return nil
}

// EngineLocked prints a circuit-breaker notice.
func (c *Console) EngineLocked(_ context.Context, status domain.EngineStatus, detail string) error {
	fmt.Fprintf(c.out, "[%s] !! ENGINE %s %s\n",
		time.Now().Format("15:04:05"), status, detail)
	return nil
}

// DashboardInput bundles everything PrintDashboard needs.
type DashboardInput struct {
	State      domain.EngineState
	Balance    float64
	Strategies []domain.StrategyState
	Recent     []domain.Trade // newest first
	OpenCount  int
}

// PrintDashboard renders the engine, strategy and recent-trade tables.
func (c *Console) PrintDashboard(in DashboardInput) {
	dd := domain.Drawdown(in.State.PeakBalance, in.Balance)

	fmt.Fprintf(c.out, "\n=== ENGINE ===\n")
	fmt.Fprintf(c.out, "  status %s | balance $%.2f | peak $%.2f | drawdown %.1f%%\n",
		in.State.Status, in.Balance, in.State.PeakBalance, dd*100)
	fmt.Fprintf(c.out, "  day %s pnl %+.2f | adaptive risk %.2f%% | open trades %d\n\n",
		in.State.DailyDate, in.State.DailyPnL, in.State.AdaptiveRisk*100, in.OpenCount)

	if len(in.Strategies) > 0 {
		fmt.Fprintln(c.out, "=== STRATEGIES ===")
		table := tablewriter.NewWriter(c.out)
		table.Header("Symbol", "Strategy", "Status", "Weight", "TPx", "SLx", "Reason")
		for _, st := range in.Strategies {
			table.Append(
				st.Symbol,
				st.Strategy,
				string(st.Status),
				fmt.Sprintf("%.2f", st.Weight),
				fmt.Sprintf("%.2f", st.TPMult),
				fmt.Sprintf("%.2f", st.SLMult),
				st.LastReason,
			)
		}
		table.Render()
	}

	if len(in.Recent) > 0 {
		fmt.Fprintln(c.out, "\n=== RECENT CLOSES ===")
		table := tablewriter.NewWriter(c.out)
		table.Header("Closed", "Symbol", "Strategy", "Action", "Entry", "Exit", "Lot", "PnL", "Reason")
		for _, t := range in.Recent {
			closed, exit := "", ""
			if t.ClosedAt != nil {
				closed = t.ClosedAt.Format("01-02 15:04")
			}
			if t.ExitPrice != nil {
				exit = fmt.Sprintf("%.2f", *t.ExitPrice)
			}
			table.Append(
				closed,
				t.Symbol,
				t.Strategy,
				string(t.Action),
				fmt.Sprintf("%.2f", t.EntryPrice),
				exit,
				fmt.Sprintf("%.2f", t.Lot),
				fmt.Sprintf("%+.2f", t.PnL),
				t.CloseReason,
			)
		}
		table.Render()
	}
}

// PrintTrades renders a plain trade listing for the trades command.
func (c *Console) PrintTrades(trades []domain.Trade) {
	if len(trades) == 0 {
		fmt.Fprintln(c.out, "no trades")
		return
	}
	table := tablewriter.NewWriter(c.out)
	table.Header("ID", "Symbol", "Strategy", "Action", "Status", "Entry", "Exit", "Lot", "Rem", "Stage", "PnL", "Opened")
	for _, t := range trades {
		exit := ""
		if t.ExitPrice != nil {
			exit = fmt.Sprintf("%.2f", *t.ExitPrice)
		}
		table.Append(
			shortID(t.ID),
			t.Symbol,
			t.Strategy,
			string(t.Action),
			string(t.Status),
			fmt.Sprintf("%.2f", t.EntryPrice),
			exit,
			fmt.Sprintf("%.2f", t.Lot),
			fmt.Sprintf("%.2f", t.RemainingLot),
			fmt.Sprintf("%d", t.Stage),
			fmt.Sprintf("%+.2f", t.PnL),
			t.OpenedAt.Format("01-02 15:04"),
		)
	}
	table.Render()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
