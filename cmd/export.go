package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/terrascope/terrascope/internal/report"
)

var (
	exportOut  string
	exportN    int
	exportBBox string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write an XLSX opportunity report",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("store"); err != nil {
			return err
		}
		q, err := bboxQuery(exportBBox)
		if err != nil {
			return err
		}

		s, err := initStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer s.Close() //nolint:errcheck

		features, err := s.Find(cmd.Context(), q)
		if err != nil {
			return err
		}
		analytics, err := s.CityAnalytics(cmd.Context())
		if err != nil {
			return err
		}

		if err := report.Save(exportOut, features, exportN, analytics); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d properties ranked)\n", exportOut, len(features))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "opportunities.xlsx", "output path")
	exportCmd.Flags().IntVar(&exportN, "n", 25, "number of opportunities")
	exportCmd.Flags().StringVar(&exportBBox, "bbox", "", "restrict to west,south,east,north")
	rootCmd.AddCommand(exportCmd)
}
