package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meridian-group/decision-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "decision-cli",
	Short: "Multi-role decision analysis pipeline",
	Long:  "Runs a panel of analytical roles over LLM providers with ordered fallback, verifies generated claims against independent sources, enforces hard constraints, and learns from feedback.",
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
