package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/brandscope/overview-service/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "overview-service",
	Short: "LLM-driven brand overview generation for CRM accounts",
	Long:  "Reads company records from Zoho CRM, scrapes and enriches them from the web, generates a structured brand analysis via Claude, and writes the mapped fields back to the CRM.",
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
