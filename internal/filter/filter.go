// Package filter holds the attribute predicate shared by the map view and the
// summary statistics, so both always describe the same set of properties.
package filter

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/terrascope/terrascope/internal/model"
)

// Client defaults for the price slider.
const (
	DefaultMinPrice = 0
	DefaultMaxPrice = 5_000_000
)

// Filters are the user-controlled attribute filters.
type Filters struct {
	MinPrice    float64 `json:"minPrice"`
	MaxPrice    float64 `json:"maxPrice"`
	SearchQuery string  `json:"searchQuery"`
}

// Default returns the filters a fresh session starts with.
func Default() Filters {
	return Filters{MinPrice: DefaultMinPrice, MaxPrice: DefaultMaxPrice}
}

// Matches reports whether f passes the price range and the address search.
// A property without a price never matches.
func Matches(f model.Feature, flt Filters) bool {
	price := f.Properties.Price
	if price == nil || *price < flt.MinPrice || *price > flt.MaxPrice {
		return false
	}
	return ContainsFold(f.Properties.Address, flt.SearchQuery)
}

// ContainsFold reports whether substr occurs in s under Unicode case folding.
// An empty substr always matches.
func ContainsFold(s, substr string) bool {
	if substr == "" {
		return true
	}
	fold := cases.Fold()
	return strings.Contains(fold.String(s), fold.String(substr))
}

// Apply returns the matching features in input order.
func Apply(features []model.Feature, flt Filters) []model.Feature {
	out := make([]model.Feature, 0, len(features))
	for _, f := range features {
		if Matches(f, flt) {
			out = append(out, f)
		}
	}
	return out
}

// Summary aggregates the visible set.
type Summary struct {
	Count     int     `json:"count"`
	AvgPrice  float64 `json:"avgPrice"`
	AvgHeight float64 `json:"avgHeight"`
}

// Summarize computes statistics over exactly the features Matches accepts.
// Missing heights are left out of the height average.
func Summarize(features []model.Feature, flt Filters) Summary {
	var (
		s                   Summary
		priceSum, heightSum float64
		heightCount         int
	)
	for _, f := range Apply(features, flt) {
		s.Count++
		priceSum += *f.Properties.Price
		if h := f.Properties.Height; h != nil {
			heightSum += *h
			heightCount++
		}
	}
	if s.Count > 0 {
		s.AvgPrice = priceSum / float64(s.Count)
	}
	if heightCount > 0 {
		s.AvgHeight = heightSum / float64(heightCount)
	}
	return s
}
