package harvest

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/terrascope/terrascope/internal/metrics"
	"github.com/terrascope/terrascope/internal/model"
)

// ShapefileFields names the DBF columns that map onto property attributes.
// Matching is case-insensitive; an empty name skips the attribute.
type ShapefileFields struct {
	ID        string `mapstructure:"id"`
	Address   string `mapstructure:"address"`
	Price     string `mapstructure:"price"`
	Height    string `mapstructure:"height"`
	YearBuilt string `mapstructure:"year_built"`
	Owner     string `mapstructure:"owner"`
	LandUse   string `mapstructure:"land_use"`
}

func (f ShapefileFields) configured() bool {
	return f != ShapefileFields{}
}

// DefaultShapefileFields returns the DBF column names used when none are configured.
func DefaultShapefileFields() ShapefileFields {
	return ShapefileFields{
		ID:        "ID",
		Address:   "ADDRESS",
		Price:     "PRICE",
		Height:    "HEIGHT",
		YearBuilt: "YEAR_BUILT",
		Owner:     "OWNER",
		LandUse:   "LAND_USE",
	}
}

// LoadShapefile reads polygon shapes from shpPath and maps their attributes.
// Records without a usable polygon are skipped. Unknown land uses become
// Residential.
func LoadShapefile(shpPath string, fields ShapefileFields) ([]model.Feature, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "harvest: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	dbfFields := reader.Fields()
	if len(dbfFields) == 0 && fields.configured() {
		return nil, eris.Errorf("harvest: shapefile %s has no attribute table (missing or empty .dbf)", shpPath)
	}

	fieldIdx := make(map[string]int, len(dbfFields))
	for i, f := range dbfFields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}
	attr := func(name string) string {
		if name == "" {
			return ""
		}
		idx, ok := fieldIdx[strings.ToLower(name)]
		if !ok {
			return ""
		}
		return strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
	}

	base := strings.TrimSuffix(filepath.Base(shpPath), filepath.Ext(shpPath))
	var (
		features []model.Feature
		skipped  int
	)
	for reader.Next() {
		n, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok {
			skipped++
			continue
		}
		geometry, err := PolygonFootprint(poly)
		if err != nil {
			skipped++
			continue
		}

		f := model.Feature{
			Type:     model.TypeFeature,
			ID:       attr(fields.ID),
			Geometry: geometry,
			Properties: model.Attributes{
				Address:   attr(fields.Address),
				Price:     parseFloatAttr(attr(fields.Price)),
				Height:    parseFloatAttr(attr(fields.Height)),
				YearBuilt: parseIntAttr(attr(fields.YearBuilt)),
				Owner:     attr(fields.Owner),
				LandUse:   model.LandUse(attr(fields.LandUse)),
			},
		}
		if f.ID == "" {
			f.ID = fmt.Sprintf("shp-%s-%d", base, n)
		}
		if !f.Properties.LandUse.Valid() {
			f.Properties.LandUse = model.LandUseResidential
		}
		if err := f.Validate(); err != nil {
			skipped++
			continue
		}
		features = append(features, f)
	}

	if skipped > 0 {
		zap.L().Debug("harvest: skipped shapefile records",
			zap.String("path", shpPath),
			zap.Int("skipped", skipped),
		)
	}
	metrics.HarvestFeaturesTotal.WithLabelValues("shapefile").Add(float64(len(features)))
	return features, nil
}

// PolygonFootprint takes the first part of a shapefile polygon as the
// exterior ring. Additional parts are ignored.
func PolygonFootprint(p *shp.Polygon) (model.Geometry, error) {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return model.Geometry{}, eris.New("harvest: empty polygon")
	}
	end := int32(len(p.Points))
	if p.NumParts > 1 {
		end = p.Parts[1]
	}
	start := p.Parts[0]
	if start < 0 || end > int32(len(p.Points)) || start >= end {
		return model.Geometry{}, eris.New("harvest: malformed polygon parts")
	}

	ring := make([]model.Position, 0, end-start+1)
	for _, pt := range p.Points[start:end] {
		ring = append(ring, model.Position{pt.X, pt.Y})
	}
	g := model.NewPolygon(model.CloseRing(ring))
	if err := g.Validate(); err != nil {
		return model.Geometry{}, eris.Wrap(err, "harvest: invalid polygon")
	}
	return g, nil
}

func parseFloatAttr(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseIntAttr(s string) *int {
	f := parseFloatAttr(s)
	if f == nil || *f == 0 {
		return nil
	}
	return model.Int(int(*f))
}
