package cmd

import (
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"impulsebot/internal/adapters/httpapi"
	"impulsebot/internal/adapters/marketdata"
	"impulsebot/internal/adapters/notify"
	"impulsebot/internal/application/engine"
	"impulsebot/internal/ports"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the engine and the webhook server",
	RunE:  runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	market := marketdata.NewClient(cfg.Market.BaseURL, cfg.MarketTimeout(), cfg.Market.FallbackIntervals)

	var notifier ports.Notifier = notify.NewConsole()
	if cfg.Telegram.Enabled {
		notifier = notify.NewMulti(
			notify.NewConsole(),
			notify.NewTelegram("", cfg.Telegram.Token, cfg.Telegram.ChatID),
		)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng := engine.New(cfg.Engine, store, notifier, slog.Default())
	if err := eng.Init(ctx); err != nil {
		return err
	}

	srv := httpapi.NewServer(eng, market, store, cfg.Server.Token, slog.Default())
	return srv.Run(ctx, cfg.Server.Addr)
}
