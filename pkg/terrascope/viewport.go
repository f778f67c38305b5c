package terrascope

import (
	"context"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/terrascope/terrascope/internal/filter"
)

// Viewport is what the map currently shows.
type Viewport struct {
	BBox    BBox
	Filters filter.Filters
	Impute  bool
}

// Signature identifies the viewport for refetch decisions. Coordinates are
// rounded to five decimals so sub-meter camera jitter does not refetch.
func (v Viewport) Signature() string {
	r := func(f float64) float64 { return math.Round(f*1e5) / 1e5 }
	return fmt.Sprintf("%.5f,%.5f,%.5f,%.5f|%g|%g|%s|%t",
		r(v.BBox.West), r(v.BBox.South), r(v.BBox.East), r(v.BBox.North),
		v.Filters.MinPrice, v.Filters.MaxPrice, v.Filters.SearchQuery, v.Impute)
}

// Params converts the viewport to list parameters.
func (v Viewport) Params() Params {
	b := v.BBox
	return Params{
		BBox:     &b,
		MinPrice: &v.Filters.MinPrice,
		MaxPrice: &v.Filters.MaxPrice,
		Search:   v.Filters.SearchQuery,
		Impute:   v.Impute,
	}
}

// PropertyFetcher is the part of Client the loader needs.
type PropertyFetcher interface {
	GetProperties(ctx context.Context, p Params) (*FeatureCollection, error)
}

// ViewportLoader keeps the features of the last successfully loaded viewport.
type ViewportLoader struct {
	fetcher PropertyFetcher
	log     *zap.Logger

	mu        sync.Mutex
	issued    uint64 // tickets handed to Load calls
	committed uint64 // ticket of the held features
	signature string
	filters   filter.Filters
	features  []Feature
}

// NewViewportLoader creates a loader backed by f.
func NewViewportLoader(f PropertyFetcher) *ViewportLoader {
	return &ViewportLoader{
		fetcher: f,
		log:     zap.L().With(zap.String("component", "terrascope.viewport")),
	}
}

// Load fetches the viewport's features unless the signature matches the last
// successful load. It reports whether the held features changed. Fetch errors
// are logged and leave the previous state in place. The lock is not held
// during the fetch; a response is dropped when a later Load already committed.
func (l *ViewportLoader) Load(ctx context.Context, v Viewport) bool {
	sig := v.Signature()

	l.mu.Lock()
	if sig == l.signature {
		l.mu.Unlock()
		return false
	}
	l.issued++
	ticket := l.issued
	l.mu.Unlock()

	fc, err := l.fetcher.GetProperties(ctx, v.Params())
	if err != nil {
		l.log.Warn("viewport fetch failed", zap.String("viewport", sig), zap.Error(err))
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if ticket < l.committed || sig == l.signature {
		return false
	}
	l.committed = ticket
	l.signature = sig
	l.filters = v.Filters
	l.features = fc.Features
	return true
}

// Features returns a copy of the currently held features.
func (l *ViewportLoader) Features() []Feature {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Feature, len(l.features))
	copy(out, l.features)
	return out
}

// Visible returns the held features that pass the loaded viewport's filters.
func (l *ViewportLoader) Visible() []Feature {
	l.mu.Lock()
	defer l.mu.Unlock()
	return filter.Apply(l.features, l.filters)
}

// Summary aggregates the same set Visible returns.
func (l *ViewportLoader) Summary() filter.Summary {
	l.mu.Lock()
	defer l.mu.Unlock()
	return filter.Summarize(l.features, l.filters)
}

// Signature returns the signature of the last successful load.
func (l *ViewportLoader) Signature() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.signature
}
