package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/juanocv/magalu-cd-location/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "cdcase",
	Short: "Distribution-center feasibility pipeline for the Brazilian Northeast",
	Long: "Batch pipeline for the Recife vs Salvador distribution-center study: " +
		"normalizes DNIT SNV highway tables, reconciles revision diffs and shapefiles, " +
		"scores municipal consumption demand, queries OSRM travel-time matrices and " +
		"assembles the comparison board.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := c.Validate(); err != nil {
			return err
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
