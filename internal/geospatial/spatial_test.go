package geospatial

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/terrascope/terrascope/internal/model"
)

func marketSt() model.Geometry {
	return model.NewPolygon([]model.Position{
		{-122.4194, 37.7749},
		{-122.4194, 37.7752},
		{-122.4191, 37.7752},
		{-122.4191, 37.7749},
		{-122.4194, 37.7749},
	})
}

func TestParseBBox(t *testing.T) {
	b, err := ParseBBox("-122.43, 37.77,-122.40,37.80")
	require.NoError(t, err)
	assert.Equal(t, BBox{West: -122.43, South: 37.77, East: -122.40, North: 37.80}, b)
	assert.Equal(t, "-122.43,37.77,-122.4,37.8", b.String())
}

func TestParseBBox_Errors(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"1,2,3", "4 comma-separated"},
		{"a,2,3,4", "bbox value"},
		{"-190,0,10,10", "longitude"},
		{"0,-95,10,10", "latitude"},
		{"10,0,5,10", "west must be less than east"},
		{"0,10,5,10", "south must be less than north"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := ParseBBox(tt.input)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestBBoxPolygon_IsValidFootprint(t *testing.T) {
	b := BBox{West: 0, South: 0, East: 1, North: 1}
	g := b.Polygon()
	require.NoError(t, g.Validate())
	ring := g.Exterior()
	assert.Equal(t, ring[0], ring[len(ring)-1])
	assert.Len(t, ring, 5)
}

func TestBBoxSplit(t *testing.T) {
	b := BBox{West: 0, South: 0, East: 1, North: 1}
	tiles := b.Split(2, 3)
	require.Len(t, tiles, 6)
	assert.InDelta(t, 0, tiles[0].West, 1e-12)
	assert.InDelta(t, 0, tiles[0].South, 1e-12)
	assert.Equal(t, 1.0, tiles[5].East)
	assert.Equal(t, 1.0, tiles[5].North)
	for _, tile := range tiles {
		assert.GreaterOrEqual(t, tile.West, b.West)
		assert.GreaterOrEqual(t, tile.South, b.South)
		assert.LessOrEqual(t, tile.East, b.East)
		assert.LessOrEqual(t, tile.North, b.North)
	}

	assert.Len(t, b.Split(0, 0), 1)
}

func TestEWKB_RoundTrip(t *testing.T) {
	g := marketSt()
	data, err := EncodeEWKB(g)
	require.NoError(t, err)

	back, err := DecodeEWKB(data)
	require.NoError(t, err)
	assert.Equal(t, g, back)

	parsed, err := ewkb.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, SRID, parsed.SRID())
}

func TestEncodeEWKB_Invalid(t *testing.T) {
	_, err := EncodeEWKB(model.NewPolygon([]model.Position{{0, 0}, {1, 1}}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid footprint")
}

func TestDecodeEWKB_Garbage(t *testing.T) {
	_, err := DecodeEWKB([]byte("not-wkb"))
	require.Error(t, err)
}

func TestFromGeom_MultiPolygon(t *testing.T) {
	poly, err := ToGeom(marketSt())
	require.NoError(t, err)

	mp := geom.NewMultiPolygon(geom.XY)
	require.NoError(t, mp.Push(poly))
	g, err := FromGeom(mp)
	require.NoError(t, err)
	assert.Equal(t, marketSt(), g)

	require.NoError(t, mp.Push(poly))
	_, err = FromGeom(mp)
	require.Error(t, err)

	_, err = FromGeom(geom.NewPointFlat(geom.XY, []float64{1, 2}))
	require.Error(t, err)
}

func TestEnvelope(t *testing.T) {
	b, err := Envelope(marketSt())
	require.NoError(t, err)
	assert.InDelta(t, -122.4194, b.West, 1e-9)
	assert.InDelta(t, 37.7749, b.South, 1e-9)
	assert.InDelta(t, -122.4191, b.East, 1e-9)
	assert.InDelta(t, 37.7752, b.North, 1e-9)

	_, err = Envelope(model.Geometry{})
	require.Error(t, err)
}
