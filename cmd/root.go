package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/monbulletin/payslip-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "payslip-cli",
	Short: "French payslip field extraction",
	Long:  "Extracts structured fields from French payslip PDFs using regex patterns first and Claude as fallback, with a full audit log of every attempt.",
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
