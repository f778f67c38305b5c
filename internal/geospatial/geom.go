package geospatial

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/terrascope/terrascope/internal/model"
)

// ToGeom converts a validated GeoJSON polygon to a go-geom polygon with SRID 4326.
func ToGeom(g model.Geometry) (*geom.Polygon, error) {
	if err := g.Validate(); err != nil {
		return nil, eris.Wrap(err, "geo: invalid footprint")
	}
	return polygon(g)
}

// FromGeom converts a go-geom polygon (or single-part multipolygon) back to
// GeoJSON coordinates.
func FromGeom(t geom.T) (model.Geometry, error) {
	switch g := t.(type) {
	case *geom.Polygon:
		return polygonToModel(g), nil
	case *geom.MultiPolygon:
		if g.NumPolygons() != 1 {
			return model.Geometry{}, eris.Errorf("geo: multipolygon with %d parts is not a footprint", g.NumPolygons())
		}
		return polygonToModel(g.Polygon(0)), nil
	default:
		return model.Geometry{}, eris.Errorf("geo: unsupported geometry %T", t)
	}
}

// EncodeEWKB marshals a footprint to little-endian EWKB with SRID 4326.
func EncodeEWKB(g model.Geometry) ([]byte, error) {
	poly, err := ToGeom(g)
	if err != nil {
		return nil, err
	}
	data, err := ewkb.Marshal(poly, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "geo: encode EWKB")
	}
	return data, nil
}

// DecodeEWKB unmarshals EWKB, as returned by ST_AsEWKB, into a footprint.
func DecodeEWKB(data []byte) (model.Geometry, error) {
	t, err := ewkb.Unmarshal(data)
	if err != nil {
		return model.Geometry{}, eris.Wrap(err, "geo: decode EWKB")
	}
	return FromGeom(t)
}

// Envelope returns the bounds of the footprint's exterior ring.
func Envelope(g model.Geometry) (BBox, error) {
	if len(g.Exterior()) == 0 {
		return BBox{}, eris.New("geo: empty footprint has no envelope")
	}
	poly, err := polygon(model.NewPolygon(g.Exterior()))
	if err != nil {
		return BBox{}, err
	}
	b := poly.Bounds()
	return BBox{West: b.Min(0), South: b.Min(1), East: b.Max(0), North: b.Max(1)}, nil
}

func polygon(g model.Geometry) (*geom.Polygon, error) {
	coords := make([][]geom.Coord, len(g.Coordinates))
	for i, ring := range g.Coordinates {
		cs := make([]geom.Coord, len(ring))
		for j, p := range ring {
			cs[j] = geom.Coord{p.Lng(), p.Lat()}
		}
		coords[i] = cs
	}
	poly, err := geom.NewPolygon(geom.XY).SetCoords(coords)
	if err != nil {
		return nil, eris.Wrap(err, "geo: build polygon")
	}
	return poly.SetSRID(SRID), nil
}

func polygonToModel(p *geom.Polygon) model.Geometry {
	coords := p.Coords()
	rings := make([][]model.Position, len(coords))
	for i, ring := range coords {
		ps := make([]model.Position, len(ring))
		for j, c := range ring {
			ps[j] = model.Position{c.X(), c.Y()}
		}
		rings[i] = ps
	}
	return model.Geometry{Type: model.TypePolygon, Coordinates: rings}
}
