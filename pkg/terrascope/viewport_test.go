package terrascope

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terrascope/terrascope/internal/filter"
	"github.com/terrascope/terrascope/internal/harvest"
	"github.com/terrascope/terrascope/internal/model"
)

type fakeFetcher struct {
	mu     sync.Mutex
	calls  int
	err    error
	params []Params
}

func (f *fakeFetcher) GetProperties(_ context.Context, p Params) (*FeatureCollection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.params = append(f.params, p)
	if f.err != nil {
		return nil, f.err
	}
	fc := model.NewFeatureCollection(harvest.MarketStreet())
	return &fc, nil
}

func viewport() Viewport {
	return Viewport{
		BBox:    BBox{West: -122.43, South: 37.77, East: -122.40, North: 37.80},
		Filters: filter.Default(),
	}
}

func TestViewportSignature(t *testing.T) {
	v := viewport()
	jitter := v
	jitter.BBox.West += 0.000001
	assert.Equal(t, v.Signature(), jitter.Signature())

	moved := v
	moved.BBox.West += 0.0001
	assert.NotEqual(t, v.Signature(), moved.Signature())

	imputed := v
	imputed.Impute = true
	assert.NotEqual(t, v.Signature(), imputed.Signature())

	searched := v
	searched.Filters.SearchQuery = "market"
	assert.NotEqual(t, v.Signature(), searched.Signature())
}

func TestViewportLoader_SkipsUnchanged(t *testing.T) {
	f := &fakeFetcher{}
	l := NewViewportLoader(f)
	ctx := context.Background()

	assert.True(t, l.Load(ctx, viewport()))
	assert.False(t, l.Load(ctx, viewport()))
	assert.Equal(t, 1, f.calls)
	assert.Len(t, l.Features(), 3)

	p := f.params[0]
	require.NotNil(t, p.BBox)
	assert.Equal(t, viewport().BBox, *p.BBox)
	assert.Equal(t, float64(filter.DefaultMaxPrice), *p.MaxPrice)

	next := viewport()
	next.Filters.MinPrice = 1000000
	assert.True(t, l.Load(ctx, next))
	assert.Equal(t, 2, f.calls)
	assert.Equal(t, next.Signature(), l.Signature())
}

func TestViewportLoader_ErrorKeepsState(t *testing.T) {
	f := &fakeFetcher{}
	l := NewViewportLoader(f)
	ctx := context.Background()

	require.True(t, l.Load(ctx, viewport()))
	before := l.Signature()

	f.err = errors.New("connection refused")
	moved := viewport()
	moved.BBox.East = -122.39
	assert.False(t, l.Load(ctx, moved))
	assert.Equal(t, before, l.Signature())
	assert.Len(t, l.Features(), 3)

	f.err = nil
	assert.True(t, l.Load(ctx, moved))
	assert.Equal(t, 3, f.calls)
}

func TestViewportLoader_FeaturesIsCopy(t *testing.T) {
	l := NewViewportLoader(&fakeFetcher{})
	l.Load(context.Background(), viewport())
	got := l.Features()
	got[0].ID = "changed"
	assert.NotEqual(t, "changed", l.Features()[0].ID)
}

func TestViewportLoader_VisibleMatchesSummary(t *testing.T) {
	l := NewViewportLoader(&fakeFetcher{})
	v := viewport()
	v.Filters.MinPrice = 1_000_000
	require.True(t, l.Load(context.Background(), v))

	visible := l.Visible()
	summary := l.Summary()
	assert.Len(t, visible, 2)
	assert.Equal(t, len(visible), summary.Count)
	assert.InDelta(t, 1_850_000, summary.AvgPrice, 0.001)
	assert.Len(t, l.Features(), 3)
}

// gatedFetcher blocks requests searching for "slow" until release is closed.
type gatedFetcher struct {
	fakeFetcher
	entered chan struct{}
	release chan struct{}
}

func (g *gatedFetcher) GetProperties(ctx context.Context, p Params) (*FeatureCollection, error) {
	if p.Search == "slow" {
		close(g.entered)
		<-g.release
	}
	return g.fakeFetcher.GetProperties(ctx, p)
}

func TestViewportLoader_FetchDoesNotBlockReaders(t *testing.T) {
	g := &gatedFetcher{entered: make(chan struct{}), release: make(chan struct{})}
	l := NewViewportLoader(g)
	ctx := context.Background()

	slow := viewport()
	slow.Filters.SearchQuery = "slow"
	done := make(chan bool)
	go func() { done <- l.Load(ctx, slow) }()
	<-g.entered

	assert.Empty(t, l.Features())
	assert.Empty(t, l.Signature())

	require.True(t, l.Load(ctx, viewport()))
	close(g.release)

	assert.False(t, <-done, "older response must not replace a newer viewport")
	assert.Equal(t, viewport().Signature(), l.Signature())
	assert.Len(t, l.Features(), 3)
}
