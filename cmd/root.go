package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/docufill/fieldcalc/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "fieldcalc",
	Short: "Calculation-driven form auto-fill",
	Long:  "Extracts numeric field values from scanned documents and spreadsheets, derives the remaining fields through schema-declared calculations, and queues conflicting results for human review.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
