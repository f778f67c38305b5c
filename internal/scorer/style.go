package scorer

import (
	"fmt"
	"math"
)

// PriceBand is the heatmap bucket of a listing price.
type PriceBand string

const (
	PriceBandLow  PriceBand = "low"
	PriceBandMid  PriceBand = "mid"
	PriceBandHigh PriceBand = "high"
)

// Heatmap thresholds in currency units.
const (
	highPriceThreshold = 2_000_000
	midPriceThreshold  = 1_000_000
	footprintAlpha     = 0.6
)

// RGBA is a color with channels in [0, 1].
type RGBA struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
	A float64 `json:"a"`
}

var (
	colorWhite  = RGBA{1, 1, 1, footprintAlpha}
	colorRed    = RGBA{1, 0, 0, footprintAlpha}
	colorOrange = RGBA{1, 0.647, 0, footprintAlpha}
	colorGreen  = RGBA{0, 0.502, 0, footprintAlpha}
)

// Band buckets a price. A nil price falls in the low band.
func Band(price *float64) PriceBand {
	p := valueOr(price, 0)
	switch {
	case p > highPriceThreshold:
		return PriceBandHigh
	case p > midPriceThreshold:
		return PriceBandMid
	default:
		return PriceBandLow
	}
}

// PriceColor returns the footprint tint. Without the heatmap every footprint
// is translucent white.
func PriceColor(price *float64, heatmap bool) RGBA {
	if !heatmap {
		return colorWhite
	}
	switch Band(price) {
	case PriceBandHigh:
		return colorRed
	case PriceBandMid:
		return colorOrange
	default:
		return colorGreen
	}
}

// ARGB renders c as an 8-digit hex string, alpha first, the form
// spreadsheet fills take.
func (c RGBA) ARGB() string {
	b := func(v float64) int { return int(math.Round(clamp(v, 0, 1) * 255)) }
	return fmt.Sprintf("%02X%02X%02X%02X", b(c.A), b(c.R), b(c.G), b(c.B))
}
