// Package scorer derives momentum and investment scores for property
// footprints and ranks them into opportunity lists.
package scorer

import (
	"math"
	"math/big"
	"slices"

	"github.com/terrascope/terrascope/internal/model"
)

// Momentum weights and bounds.
const (
	momentumYieldWeight        = 0.4
	momentumAppreciationWeight = 0.5
	momentumRiskWeight         = 0.1
	MaxMomentum                = 10.0
)

// Investment score weights and bounds.
const (
	investYieldWeight        = 300.0
	investAppreciationWeight = 400.0
	investRiskWeight         = 20.0
	investDensityWeight      = 50.0
	defaultHeight            = 10.0
	MaxInvestmentScore       = 100
)

// DefaultTopN is the size of the opportunity list when none is requested.
const DefaultTopN = 5

// Momentum summarizes yield, appreciation and zoning risk on a 0-10 scale,
// rounded to one decimal. Missing inputs count as zero.
func Momentum(yield, appreciation, risk *float64) float64 {
	score := valueOr(yield, 0)*momentumYieldWeight +
		valueOr(appreciation, 0)*momentumAppreciationWeight -
		valueOr(risk, 0)*momentumRiskWeight
	return roundTenths(clamp(score, 0, MaxMomentum))
}

// InvestmentScore rates a property on a 0-100 scale. Missing yield,
// appreciation and risk count as zero; a missing height counts as 10m.
func InvestmentScore(a model.Attributes) int {
	density := valueOr(a.Height, defaultHeight) / 100
	score := valueOr(a.Yield, 0)*investYieldWeight +
		valueOr(a.AppreciationRate, 0)*investAppreciationWeight -
		valueOr(a.ZoningRisk, 0)*investRiskWeight +
		density*investDensityWeight
	return int(math.Round(clamp(score, 0, MaxInvestmentScore)))
}

// Annotate returns a copy of f with momentum and investment score attached.
func Annotate(f model.Feature) model.Feature {
	out := f.Clone()
	p := &out.Properties
	m := Momentum(p.Yield, p.AppreciationRate, p.ZoningRisk)
	s := InvestmentScore(*p)
	p.Momentum = &m
	p.InvestmentScore = &s
	return out
}

// AnnotateAll annotates every feature, leaving the input untouched.
func AnnotateAll(features []model.Feature) []model.Feature {
	out := make([]model.Feature, len(features))
	for i, f := range features {
		out[i] = Annotate(f)
	}
	return out
}

// TopOpportunities ranks features by momentum, highest first, and returns at
// most n annotated copies. Ties keep their input order. n <= 0 uses DefaultTopN.
func TopOpportunities(features []model.Feature, n int) []model.Feature {
	if n <= 0 {
		n = DefaultTopN
	}
	ranked := AnnotateAll(features)
	slices.SortStableFunc(ranked, func(a, b model.Feature) int {
		// Descending.
		switch am, bm := *a.Properties.Momentum, *b.Properties.Momentum; {
		case am > bm:
			return -1
		case am < bm:
			return 1
		}
		return 0
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

func valueOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

// roundTenths rounds a non-negative x to one decimal from its exact binary
// value, ties going up. 0.15 is stored as 0.1499... and rounds to 0.1;
// scaling by 10 first would round it to 0.2.
func roundTenths(x float64) float64 {
	if math.IsNaN(x) {
		return 0
	}
	scaled := new(big.Float).SetPrec(128).SetFloat64(x)
	scaled.Mul(scaled, big.NewFloat(10))
	n, _ := scaled.Int(nil)
	frac := new(big.Float).SetPrec(128).Sub(scaled, new(big.Float).SetInt(n))
	if frac.Cmp(big.NewFloat(0.5)) >= 0 {
		n.Add(n, big.NewInt(1))
	}
	return float64(n.Int64()) / 10
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
