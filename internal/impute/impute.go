// Package impute fills missing numeric attributes with dataset means.
package impute

import (
	"math"

	"github.com/terrascope/terrascope/internal/model"
)

// Fallbacks used when no record in the set has an observed value.
const (
	FallbackPrice     = 0.0
	FallbackHeight    = 10.0
	FallbackYearBuilt = 2000
)

// Means holds the rounded substitution values for one result set.
type Means struct {
	Price     float64
	Height    float64
	YearBuilt int
}

// ComputeMeans averages the observed price, height and year built over
// features and rounds each mean. Missing values are ignored.
func ComputeMeans(features []model.Feature) Means {
	var (
		priceSum, heightSum, yearSum float64
		priceN, heightN, yearN       int
	)
	for _, f := range features {
		p := f.Properties
		if p.Price != nil {
			priceSum += *p.Price
			priceN++
		}
		if p.Height != nil {
			heightSum += *p.Height
			heightN++
		}
		if p.YearBuilt != nil {
			yearSum += float64(*p.YearBuilt)
			yearN++
		}
	}

	m := Means{Price: FallbackPrice, Height: FallbackHeight, YearBuilt: FallbackYearBuilt}
	if priceN > 0 {
		m.Price = math.Round(priceSum / float64(priceN))
	}
	if heightN > 0 {
		m.Height = math.Round(heightSum / float64(heightN))
	}
	if yearN > 0 {
		m.YearBuilt = int(math.Round(yearSum / float64(yearN)))
	}
	return m
}

// Impute returns copies of features with missing price, height and year built
// replaced by the set's rounded means. Each filled record lists the filled
// attributes in _imputedFields; untouched records carry no tag. The input is
// not modified.
func Impute(features []model.Feature) []model.Feature {
	m := ComputeMeans(features)
	out := make([]model.Feature, len(features))
	for i, f := range features {
		out[i] = apply(f.Clone(), m)
	}
	return out
}

func apply(f model.Feature, m Means) model.Feature {
	p := &f.Properties
	var filled []string
	if p.Price == nil {
		p.Price = model.Float(m.Price)
		filled = append(filled, model.FieldPrice)
	}
	if p.Height == nil {
		p.Height = model.Float(m.Height)
		filled = append(filled, model.FieldHeight)
	}
	if p.YearBuilt == nil {
		p.YearBuilt = model.Int(m.YearBuilt)
		filled = append(filled, model.FieldYearBuilt)
	}
	p.ImputedFields = filled
	return f
}
