package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"impulsebot/internal/adapters/notify"
)

var statsRecent int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show engine, strategy and recent-trade status",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().IntVar(&statsRecent, "recent", 10, "number of recent closes to show")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()

	state, ok, err := store.GetEngineState(ctx)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("no engine state yet; run the engine first")
		return nil
	}

	sample, _, err := store.LatestBalance(ctx)
	if err != nil {
		return err
	}
	strategies, err := store.ListStrategyStates(ctx)
	if err != nil {
		return err
	}
	open, err := store.GetOpenTrades(ctx, "")
	if err != nil {
		return err
	}
	recent, err := store.GetRecentClosed(ctx, statsRecent)
	if err != nil {
		return err
	}

	notify.NewConsole().PrintDashboard(notify.DashboardInput{
		State:      state,
		Balance:    sample.Balance,
		Strategies: strategies,
		Recent:     recent,
		OpenCount:  len(open),
	})
	return nil
}
