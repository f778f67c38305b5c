// Package harvest produces property features from synthetic grids, fixture
// files, OpenStreetMap and shapefiles, and seeds them into a store.
package harvest

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/terrascope/terrascope/internal/model"
)

// GridOptions lays out the synthetic city grid.
type GridOptions struct {
	Rows      int
	Cols      int
	OriginLat float64
	OriginLng float64
	Spacing   float64 // degrees between cell origins
	Size      float64 // footprint edge in degrees
	Seed      uint64
}

// DefaultGrid is the 35x35 San Francisco demo grid.
func DefaultGrid() GridOptions {
	return GridOptions{
		Rows:      35,
		Cols:      35,
		OriginLat: 37.770,
		OriginLng: -122.430,
		Spacing:   0.0008,
		Size:      0.0003,
		Seed:      1,
	}
}

var syntheticLandUses = []model.LandUse{
	model.LandUseResidential,
	model.LandUseCommercial,
	model.LandUseMixedUse,
	model.LandUseIndustrial,
}

// Synthetic generates one square building per grid cell. The same options
// always produce the same features.
func Synthetic(opts GridOptions) []model.Feature {
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)) //nolint:gosec // demo data
	features := make([]model.Feature, 0, opts.Rows*opts.Cols)

	for i := range opts.Rows {
		for j := range opts.Cols {
			lat := opts.OriginLat + float64(i)*opts.Spacing
			lng := opts.OriginLng + float64(j)*opts.Spacing

			height := float64(rng.IntN(80) + 10)
			yield := 0.03 + rng.Float64()*0.05
			appreciation := 0.02 + rng.Float64()*0.10
			risk := rng.Float64() * 0.3
			price := math.Round(height*100000 + rng.Float64()*500000)

			features = append(features, model.Feature{
				Type:     model.TypeFeature,
				ID:       fmt.Sprintf("grid-%03d-%03d", i, j),
				Geometry: square(lng, lat, opts.Size),
				Properties: model.Attributes{
					Address:          fmt.Sprintf("%d SF Intel St", rng.IntN(900)+100),
					Price:            model.Float(price),
					Height:           model.Float(height),
					YearBuilt:        model.Int(rng.IntN(2023-1920) + 1920),
					Owner:            "Enterprise Assets LLC",
					LandUse:          syntheticLandUses[rng.IntN(len(syntheticLandUses))],
					Yield:            model.Float(yield),
					AppreciationRate: model.Float(appreciation),
					ZoningRisk:       model.Float(risk),
				},
			})
		}
	}
	return features
}

func square(lng, lat, size float64) model.Geometry {
	return model.NewPolygon([]model.Position{
		{lng, lat},
		{lng + size, lat},
		{lng + size, lat + size},
		{lng, lat + size},
		{lng, lat},
	})
}
