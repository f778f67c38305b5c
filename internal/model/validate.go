package model

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// MinYearBuilt is the earliest construction year accepted.
const MinYearBuilt = 1600

// Validate checks the footprint and attribute invariants of a feature.
func (f Feature) Validate() error {
	var errs []string

	if f.Type != "" && f.Type != TypeFeature {
		errs = append(errs, fmt.Sprintf("type must be %q, got %q", TypeFeature, f.Type))
	}
	if err := f.Geometry.Validate(); err != nil {
		errs = append(errs, err.Error())
	}

	p := f.Properties
	if p.Price != nil && *p.Price < 0 {
		errs = append(errs, "price must be >= 0")
	}
	if p.Height != nil && *p.Height < 0 {
		errs = append(errs, "height must be >= 0")
	}
	if p.YearBuilt != nil {
		maxYear := time.Now().Year() + 5
		if *p.YearBuilt < MinYearBuilt || *p.YearBuilt > maxYear {
			errs = append(errs, fmt.Sprintf("yearBuilt must be within [%d, %d]", MinYearBuilt, maxYear))
		}
	}
	if !p.LandUse.Valid() {
		errs = append(errs, fmt.Sprintf("landUse %q is not a known category", p.LandUse))
	}
	if p.ZoningRisk != nil && (*p.ZoningRisk < 0 || *p.ZoningRisk > 1) {
		errs = append(errs, "zoningRisk must be within [0, 1]")
	}
	for _, name := range p.ImputedFields {
		if !slices.Contains(ImputableFields, name) {
			errs = append(errs, fmt.Sprintf("_imputedFields contains non-imputable field %q", name))
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("model: invalid feature %s: %s", f.ID, strings.Join(errs, "; "))
	}
	return nil
}

// Validate checks that g is a polygon whose exterior ring is closed and has
// at least three distinct points.
func (g Geometry) Validate() error {
	if g.Type != TypePolygon {
		return eris.Errorf("geometry type must be %q, got %q", TypePolygon, g.Type)
	}
	ring := g.Exterior()
	if len(ring) < 4 {
		return eris.Errorf("exterior ring needs at least 4 positions, got %d", len(ring))
	}
	if ring[0] != ring[len(ring)-1] {
		return eris.New("exterior ring is not closed")
	}
	if n := distinctPositions(ring); n < 3 {
		return eris.Errorf("exterior ring needs at least 3 distinct points, got %d", n)
	}
	for _, p := range ring {
		if p.Lng() < -180 || p.Lng() > 180 || p.Lat() < -90 || p.Lat() > 90 {
			return eris.Errorf("position %v is outside lng/lat range", p)
		}
	}
	return nil
}

// CloseRing returns ring with the first position appended when it is open.
// The caller's backing array is never written.
func CloseRing(ring []Position) []Position {
	if len(ring) == 0 || ring[0] == ring[len(ring)-1] {
		return ring
	}
	return append(slices.Clip(ring), ring[0])
}

func distinctPositions(ring []Position) int {
	seen := make(map[Position]struct{}, len(ring))
	for _, p := range ring {
		seen[p] = struct{}{}
	}
	return len(seen)
}
