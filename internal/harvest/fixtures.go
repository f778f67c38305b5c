package harvest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/terrascope/terrascope/internal/model"
)

// MarketStreet returns the three hand-written Market St parcels.
func MarketStreet() []model.Feature {
	parcel := func(id string, west float64, address string, price, height float64, year int, owner string, use model.LandUse) model.Feature {
		return model.Feature{
			Type:     model.TypeFeature,
			ID:       id,
			Geometry: square(west, 37.7749, 0.0003),
			Properties: model.Attributes{
				Address:   address,
				Price:     model.Float(price),
				Height:    model.Float(height),
				YearBuilt: model.Int(year),
				Owner:     owner,
				LandUse:   use,
			},
		}
	}
	return []model.Feature{
		parcel("market-123", -122.4194, "123 Market St", 1200000, 20, 1995, "John Doe", model.LandUseResidential),
		parcel("market-125", -122.4189, "125 Market St", 2500000, 45, 2010, "Jane Smith", model.LandUseCommercial),
		parcel("market-127", -122.4184, "127 Market St", 800000, 10, 1950, "Bob Brown", model.LandUseResidential),
	}
}

type yamlFixtures struct {
	Features []model.Feature `yaml:"features"`
}

// LoadFile reads fixtures from a .yaml/.yml file with a top-level "features"
// list, or from a GeoJSON FeatureCollection (.json/.geojson).
func LoadFile(path string) ([]model.Feature, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return nil, eris.Wrapf(err, "harvest: read fixtures %s", path)
	}

	var features []model.Feature
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		var doc yamlFixtures
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, eris.Wrapf(err, "harvest: parse yaml %s", path)
		}
		features = doc.Features
	case ".json", ".geojson":
		var fc model.FeatureCollection
		if err := json.Unmarshal(data, &fc); err != nil {
			return nil, eris.Wrapf(err, "harvest: parse geojson %s", path)
		}
		if fc.Type != model.TypeFeatureCollection {
			return nil, eris.Errorf("harvest: %s is not a FeatureCollection", path)
		}
		features = fc.Features
	default:
		return nil, eris.Errorf("harvest: unsupported fixture format %q", ext)
	}

	for i := range features {
		features[i].Type = model.TypeFeature
		if features[i].Geometry.Type == "" {
			features[i].Geometry.Type = model.TypePolygon
		}
		if err := features[i].Validate(); err != nil {
			return nil, eris.Wrapf(err, "harvest: fixture %d in %s", i, path)
		}
	}
	return features, nil
}
