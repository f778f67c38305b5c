package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/terrascope/terrascope/internal/geospatial"
	"github.com/terrascope/terrascope/internal/scorer"
	"github.com/terrascope/terrascope/internal/store"
)

var (
	topN    int
	topBBox string
	topJSON bool
)

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "Print the properties with the highest momentum, with their investment scores",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("store"); err != nil {
			return err
		}
		q, err := bboxQuery(topBBox)
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
		top := scorer.TopOpportunities(features, topN)

		out := cmd.OutOrStdout()
		if topJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(top)
		}

		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RANK\tSCORE\tMOMENTUM\tADDRESS\tLAND USE\tPRICE")
		for i, f := range top {
			p := f.Properties
			price := "-"
			if p.Price != nil {
				price = fmt.Sprintf("%.0f", *p.Price)
			}
			fmt.Fprintf(tw, "%d\t%d\t%.1f\t%s\t%s\t%s\n", i+1, *p.InvestmentScore, *p.Momentum, p.Address, p.LandUse, price)
		}
		return tw.Flush()
	},
}

func bboxQuery(raw string) (store.Query, error) {
	var q store.Query
	if raw == "" {
		return q, nil
	}
	b, err := geospatial.ParseBBox(raw)
	if err != nil {
		return q, err
	}
	q.BBox = &b
	return q, nil
}

func init() {
	topCmd.Flags().IntVar(&topN, "n", scorer.DefaultTopN, "number of opportunities")
	topCmd.Flags().StringVar(&topBBox, "bbox", "", "restrict to west,south,east,north")
	topCmd.Flags().BoolVar(&topJSON, "json", false, "print features as JSON")
	rootCmd.AddCommand(topCmd)
}
