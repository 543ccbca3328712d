package cmd

import (
	"github.com/spf13/cobra"

	"impulsebot/internal/adapters/notify"
)

var (
	tradesStatus string
	tradesSymbol string
	tradesLimit  int
)

var tradesCmd = &cobra.Command{
	Use:   "trades",
	Short: "List trades",
	RunE:  runTrades,
}

func init() {
	tradesCmd.Flags().StringVar(&tradesStatus, "status", "", "filter by status (OPEN or CLOSED)")
	tradesCmd.Flags().StringVar(&tradesSymbol, "symbol", "", "filter by symbol")
	tradesCmd.Flags().IntVar(&tradesLimit, "limit", 50, "maximum rows")
	rootCmd.AddCommand(tradesCmd)
}

func runTrades(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	trades, err := store.ListTrades(cmd.Context(), tradesStatus, tradesSymbol, tradesLimit)
	if err != nil {
		return err
	}

	notify.NewConsole().PrintTrades(trades)
	return nil
}
