package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hireloop/talent-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "talent-cli",
	Short: "Derived-artifact pipeline for the hiring workflow",
	Long:  "Generates role profiles, candidate fit assessments, shortlist scores, and downstream artifacts via staged inference calls, with versioned snapshots, quota gating, and audit logging.",
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
