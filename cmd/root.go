package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/terrascope/terrascope/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "terrascope",
	Short: "Property intelligence API for 3D city maps",
	Long:  "Serves building footprints with pricing and investment analytics, and harvests them from OpenStreetMap, shapefiles and fixtures.",
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
