// Package geospatial holds viewport bounding boxes and footprint geometry
// conversions between GeoJSON, go-geom and EWKB.
package geospatial

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/terrascope/terrascope/internal/model"
)

// SRID is the spatial reference of every stored footprint (WGS 84).
const SRID = 4326

// BBox represents a geographic bounding box in degrees.
type BBox struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

// ParseBBox parses "west,south,east,north".
func ParseBBox(s string) (BBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return BBox{}, eris.Errorf("geo: bbox needs 4 comma-separated values, got %d", len(parts))
	}
	var vals [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return BBox{}, eris.Wrapf(err, "geo: bbox value %q", p)
		}
		vals[i] = v
	}
	b := BBox{West: vals[0], South: vals[1], East: vals[2], North: vals[3]}
	if err := b.Validate(); err != nil {
		return BBox{}, err
	}
	return b, nil
}

// Validate checks coordinate ranges and ordering. Boxes crossing the
// antimeridian are rejected.
func (b BBox) Validate() error {
	switch {
	case b.West < -180 || b.East > 180:
		return eris.New("geo: bbox longitude must be within [-180, 180]")
	case b.South < -90 || b.North > 90:
		return eris.New("geo: bbox latitude must be within [-90, 90]")
	case b.West >= b.East:
		return eris.New("geo: bbox west must be less than east")
	case b.South >= b.North:
		return eris.New("geo: bbox south must be less than north")
	}
	return nil
}

// String formats the box as "west,south,east,north".
func (b BBox) String() string {
	vals := []float64{b.West, b.South, b.East, b.North}
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(parts, ",")
}

// Ring returns the closed counter-clockwise envelope ring of the box.
func (b BBox) Ring() []model.Position {
	return []model.Position{
		{b.West, b.South},
		{b.East, b.South},
		{b.East, b.North},
		{b.West, b.North},
		{b.West, b.South},
	}
}

// Polygon returns the box as a GeoJSON polygon, the shape used for
// "contained within" store filters.
func (b BBox) Polygon() model.Geometry {
	return model.NewPolygon(b.Ring())
}

// Split divides b into a rows x cols grid of tiles, row-major from the
// south-west corner.
func (b BBox) Split(rows, cols int) []BBox {
	if rows < 1 {
		rows = 1
	}
	if cols < 1 {
		cols = 1
	}
	dLat := (b.North - b.South) / float64(rows)
	dLng := (b.East - b.West) / float64(cols)

	tiles := make([]BBox, 0, rows*cols)
	for r := range rows {
		for c := range cols {
			t := BBox{
				West:  b.West + float64(c)*dLng,
				South: b.South + float64(r)*dLat,
				East:  b.West + float64(c+1)*dLng,
				North: b.South + float64(r+1)*dLat,
			}
			// Pin the outer edges to avoid float drift.
			if c == cols-1 {
				t.East = b.East
			}
			if r == rows-1 {
				t.North = b.North
			}
			tiles = append(tiles, t)
		}
	}
	return tiles
}
