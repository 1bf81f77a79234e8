package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/locate-qa/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "locate-qa",
	Short: "Proximity audit for utility locate points",
	Long:  "Classifies geolocated locate points by proximity to the nearest underground facility line, validates each against configurable quality gates, and scores the run against a pass threshold.",
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
