// Package model defines the GeoJSON property features shared by every layer.
package model

import "slices"

// LandUse is the zoning category of a property.
type LandUse string

const (
	LandUseResidential LandUse = "Residential"
	LandUseCommercial  LandUse = "Commercial"
	LandUseIndustrial  LandUse = "Industrial"
	LandUseMixedUse    LandUse = "Mixed-Use"
	LandUsePublic      LandUse = "Public"
)

// LandUses lists every accepted land-use category.
var LandUses = []LandUse{
	LandUseResidential,
	LandUseCommercial,
	LandUseIndustrial,
	LandUseMixedUse,
	LandUsePublic,
}

// Valid reports whether l is one of the fixed categories.
func (l LandUse) Valid() bool {
	return slices.Contains(LandUses, l)
}

// Imputable attribute names, in the order imputation tags them.
const (
	FieldPrice     = "price"
	FieldHeight    = "height"
	FieldYearBuilt = "yearBuilt"
)

// ImputableFields are the only attributes that may be filled with a dataset mean.
var ImputableFields = []string{FieldPrice, FieldHeight, FieldYearBuilt}

const (
	TypeFeature           = "Feature"
	TypeFeatureCollection = "FeatureCollection"
	TypePolygon           = "Polygon"
)

// Position is a [longitude, latitude] pair.
type Position [2]float64

// Lng returns the longitude.
func (p Position) Lng() float64 { return p[0] }

// Lat returns the latitude.
func (p Position) Lat() float64 { return p[1] }

// Geometry is a GeoJSON Polygon. The first ring is the exterior footprint.
type Geometry struct {
	Type        string       `json:"type" bson:"type" yaml:"type"`
	Coordinates [][]Position `json:"coordinates" bson:"coordinates" yaml:"coordinates"`
}

// NewPolygon builds a Polygon geometry from a single exterior ring.
func NewPolygon(ring []Position) Geometry {
	return Geometry{Type: TypePolygon, Coordinates: [][]Position{ring}}
}

// Exterior returns the exterior ring, or nil when the geometry is empty.
func (g Geometry) Exterior() []Position {
	if len(g.Coordinates) == 0 {
		return nil
	}
	return g.Coordinates[0]
}

// Attributes is the attribute set of a property footprint.
// Nullable numerics are pointers; nil means not observed.
type Attributes struct {
	Address          string   `json:"address" bson:"address" yaml:"address"`
	Price            *float64 `json:"price" bson:"price,omitempty" yaml:"price"`
	Height           *float64 `json:"height" bson:"height,omitempty" yaml:"height"`
	YearBuilt        *int     `json:"yearBuilt" bson:"yearBuilt,omitempty" yaml:"yearBuilt"`
	Owner            string   `json:"owner" bson:"owner" yaml:"owner"`
	LandUse          LandUse  `json:"landUse" bson:"landUse" yaml:"landUse"`
	Yield            *float64 `json:"yield,omitempty" bson:"yield,omitempty" yaml:"yield"`
	AppreciationRate *float64 `json:"appreciationRate,omitempty" bson:"appreciationRate,omitempty" yaml:"appreciationRate"`
	ZoningRisk       *float64 `json:"zoningRisk,omitempty" bson:"zoningRisk,omitempty" yaml:"zoningRisk"`

	// Derived at read time, never persisted.
	InvestmentScore *int     `json:"investmentScore,omitempty" bson:"-" yaml:"-"`
	Momentum        *float64 `json:"momentum,omitempty" bson:"-" yaml:"-"`
	ImputedFields   []string `json:"_imputedFields,omitempty" bson:"-" yaml:"-"`
}

// Feature pairs a footprint with its attributes.
type Feature struct {
	Type       string     `json:"type" bson:"type" yaml:"type"`
	ID         string     `json:"id" bson:"_id" yaml:"id"`
	Geometry   Geometry   `json:"geometry" bson:"geometry" yaml:"geometry"`
	Properties Attributes `json:"properties" bson:"properties" yaml:"properties"`
}

// FeatureCollection is the GeoJSON envelope returned by list endpoints.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// NewFeatureCollection wraps features, never leaving Features nil so it
// encodes as an empty JSON array.
func NewFeatureCollection(features []Feature) FeatureCollection {
	if features == nil {
		features = []Feature{}
	}
	return FeatureCollection{Type: TypeFeatureCollection, Features: features}
}

// Clone returns a deep copy of f.
func (f Feature) Clone() Feature {
	out := f
	out.Geometry = f.Geometry.Clone()
	out.Properties = f.Properties.Clone()
	return out
}

// Clone returns a deep copy of g.
func (g Geometry) Clone() Geometry {
	out := Geometry{Type: g.Type}
	if g.Coordinates != nil {
		out.Coordinates = make([][]Position, len(g.Coordinates))
		for i, ring := range g.Coordinates {
			out.Coordinates[i] = slices.Clone(ring)
		}
	}
	return out
}

// Clone returns a deep copy of a.
func (a Attributes) Clone() Attributes {
	out := a
	out.Price = clonePtr(a.Price)
	out.Height = clonePtr(a.Height)
	out.YearBuilt = clonePtr(a.YearBuilt)
	out.Yield = clonePtr(a.Yield)
	out.AppreciationRate = clonePtr(a.AppreciationRate)
	out.ZoningRisk = clonePtr(a.ZoningRisk)
	out.InvestmentScore = clonePtr(a.InvestmentScore)
	out.Momentum = clonePtr(a.Momentum)
	out.ImputedFields = slices.Clone(a.ImputedFields)
	return out
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
