package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/terrascope/terrascope/internal/harvest"
	"github.com/terrascope/terrascope/internal/model"
)

var (
	seedForce    bool
	seedReset    bool
	seedFixtures string
	seedMarket   bool
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the store with the synthetic grid or fixture records",
	Long:  "Inserts the synthetic San Francisco grid (default), the Market St fixtures, or features from a YAML/GeoJSON file. Skips when the store already holds at least seed.threshold properties unless --force is set.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("store"); err != nil {
			return err
		}

		features, err := seedFeatures()
		if err != nil {
			return err
		}

		s, err := initStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer s.Close() //nolint:errcheck

		res, err := harvest.Seed(cmd.Context(), s, features, harvest.SeedOptions{
			Threshold: cfg.Seed.Threshold,
			Force:     seedForce,
			Reset:     seedReset,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if !res.Skipped {
			invalidateAnalytics(cmd.Context(), cfg.Cache)
		}
		if res.Skipped {
			fmt.Fprintf(out, "store already holds %d properties, nothing seeded (use --force)\n", res.Existing)
			return nil
		}
		fmt.Fprintf(out, "deleted %d, inserted %d properties\n", res.Deleted, res.Inserted)
		return nil
	},
}

func seedFeatures() ([]model.Feature, error) {
	switch {
	case seedFixtures != "":
		return harvest.LoadFile(seedFixtures)
	case seedMarket:
		return harvest.MarketStreet(), nil
	default:
		grid := harvest.DefaultGrid()
		if cfg.Seed.GridSeed != 0 {
			grid.Seed = cfg.Seed.GridSeed
		}
		return harvest.Synthetic(grid), nil
	}
}

func init() {
	seedCmd.Flags().BoolVar(&seedForce, "force", false, "seed even when the store is already populated")
	seedCmd.Flags().BoolVar(&seedReset, "reset", false, "delete every property before seeding")
	seedCmd.Flags().StringVar(&seedFixtures, "file", "", "load features from a .yaml or .geojson file")
	seedCmd.Flags().BoolVar(&seedMarket, "market", false, "seed the three Market St fixture records")
	rootCmd.AddCommand(seedCmd)
}
