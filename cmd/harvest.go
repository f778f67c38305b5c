package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/terrascope/terrascope/internal/config"
	"github.com/terrascope/terrascope/internal/geospatial"
	"github.com/terrascope/terrascope/internal/harvest"
	"github.com/terrascope/terrascope/internal/model"
	"github.com/terrascope/terrascope/internal/resilience"
)

var (
	harvestBBox   string
	harvestDryRun bool
)

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Import building footprints from external sources",
}

var harvestOSMCmd = &cobra.Command{
	Use:   "osm",
	Short: "Harvest buildings in a bbox from the OpenStreetMap Overpass API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("harvest"); err != nil {
			return err
		}

		raw := harvestBBox
		if raw == "" {
			raw = cfg.Harvest.BBox
		}
		bbox, err := geospatial.ParseBBox(raw)
		if err != nil {
			return err
		}

		features, err := newOverpass(cfg.Harvest).Harvest(cmd.Context(), bbox)
		if err != nil {
			return err
		}
		return storeHarvest(cmd, "osm", features)
	},
}

var harvestShapefileCmd = &cobra.Command{
	Use:   "shapefile <path.shp>",
	Short: "Import polygon parcels from an ESRI shapefile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("store"); err != nil {
			return err
		}
		features, err := harvest.LoadShapefile(args[0], cfg.Harvest.ShapefileField)
		if err != nil {
			return err
		}
		return storeHarvest(cmd, "shapefile", features)
	},
}

func newOverpass(hc config.HarvestConfig) *harvest.Overpass {
	retry := resilience.FromSettings(hc.MaxRetries, 0, 0)
	retry.OnRetry = resilience.RetryLogger("overpass", "interpreter")
	return harvest.NewOverpass(harvest.OverpassOptions{
		URL:         hc.OverpassURL,
		Timeout:     time.Duration(hc.TimeoutSecs) * time.Second,
		Rate:        hc.RatePerSec,
		Burst:       1,
		Retry:       retry,
		TileRows:    hc.TileRows,
		TileCols:    hc.TileCols,
		Concurrency: hc.Concurrency,
	})
}

func storeHarvest(cmd *cobra.Command, source string, features []model.Feature) error {
	out := cmd.OutOrStdout()
	if harvestDryRun || len(features) == 0 {
		fmt.Fprintf(out, "%s: %d buildings harvested, nothing stored\n", source, len(features))
		return nil
	}

	s, err := initStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer s.Close() //nolint:errcheck

	n, err := s.InsertMany(cmd.Context(), features)
	if err != nil {
		return err
	}
	invalidateAnalytics(cmd.Context(), cfg.Cache)
	fmt.Fprintf(out, "%s: %d buildings harvested, %d stored\n", source, len(features), n)
	return nil
}

func init() {
	harvestOSMCmd.Flags().StringVar(&harvestBBox, "bbox", "", "west,south,east,north (default from config)")
	harvestCmd.PersistentFlags().BoolVar(&harvestDryRun, "dry-run", false, "harvest without writing to the store")
	harvestCmd.AddCommand(harvestOSMCmd, harvestShapefileCmd)
	rootCmd.AddCommand(harvestCmd)
}
