package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"impulsebot/internal/adapters/export"
	"impulsebot/internal/domain"
)

var (
	exportOut   string
	exportLimit int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export closed trades as CSV",
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default stdout)")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 0, "maximum rows, 0 = all")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	limit := exportLimit
	if limit <= 0 {
		limit = 1 << 30
	}
	trades, err := store.ListTrades(cmd.Context(), string(domain.TradeClosed), "", limit)
	if err != nil {
		return err
	}

	out := os.Stdout
	if exportOut != "" {
		f, err := os.Create(exportOut)
		if err != nil {
			return fmt.Errorf("create %q: %w", exportOut, err)
		}
		defer f.Close()
		out = f
	}

	if err := export.WriteTradesCSV(out, trades); err != nil {
		return err
	}
	if exportOut != "" {
		fmt.Printf("wrote %d trades to %s\n", len(trades), exportOut)
	}
	return nil
}
