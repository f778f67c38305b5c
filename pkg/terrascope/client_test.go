package terrascope

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terrascope/terrascope/internal/api"
	"github.com/terrascope/terrascope/internal/cache"
	"github.com/terrascope/terrascope/internal/harvest"
	"github.com/terrascope/terrascope/internal/model"
	"github.com/terrascope/terrascope/internal/store"
)

func newTestAPI(t *testing.T) *Client {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	require.NoError(t, s.Migrate(context.Background()))
	_, err = s.InsertMany(context.Background(), harvest.MarketStreet())
	require.NoError(t, err)

	srv := httptest.NewServer(api.NewRouter(api.NewHandler(s, cache.Nop{}, time.Minute)))
	t.Cleanup(srv.Close)
	return NewClient(WithBaseURL(srv.URL+"/api/"), WithHTTPClient(srv.Client()))
}

func TestParamsValues(t *testing.T) {
	assert.Empty(t, Params{}.Values())

	v := Params{
		BBox:     &BBox{West: -122.43, South: 37.77, East: -122.4, North: 37.8},
		MinPrice: model.Float(0),
		MaxPrice: model.Float(2500000),
		Search:   " market ",
		Impute:   true,
		Limit:    10,
	}.Values()
	assert.Equal(t, "-122.43,37.77,-122.4,37.8", v.Get("bbox"))
	assert.Equal(t, "0", v.Get("minPrice"))
	assert.Equal(t, "2500000", v.Get("maxPrice"))
	assert.Equal(t, "market", v.Get("search"))
	assert.Equal(t, "true", v.Get("impute"))
	assert.Equal(t, "10", v.Get("limit"))
}

func TestClient_GetProperties(t *testing.T) {
	c := newTestAPI(t)
	ctx := context.Background()

	fc, err := c.GetProperties(ctx, Params{})
	require.NoError(t, err)
	assert.Equal(t, model.TypeFeatureCollection, fc.Type)
	assert.Len(t, fc.Features, 3)

	fc, err = c.GetProperties(ctx, Params{MinPrice: model.Float(1000000), Search: "market"})
	require.NoError(t, err)
	require.Len(t, fc.Features, 2)
	assert.Equal(t, "123 Market St", fc.Features[0].Properties.Address)
}

func TestClient_GetPropertiesBadRequest(t *testing.T) {
	c := newTestAPI(t)
	_, err := c.GetProperties(context.Background(), Params{MinPrice: model.Float(10), MaxPrice: model.Float(1)})
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}

func TestClient_GetProperty(t *testing.T) {
	c := newTestAPI(t)
	ctx := context.Background()

	f, err := c.GetProperty(ctx, "market-125")
	require.NoError(t, err)
	assert.Equal(t, "125 Market St", f.Properties.Address)

	_, err = c.GetProperty(ctx, "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClient_GetCityAnalytics(t *testing.T) {
	c := newTestAPI(t)
	a, err := c.GetCityAnalytics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), a.PropertyCount)
	assert.InDelta(t, 4500000, a.TotalMarketValue, 1e-6)
	assert.InDelta(t, 1500000, a.AvgPrice, 1e-6)
}

func TestClient_TransportError(t *testing.T) {
	c := NewClient(WithBaseURL("http://127.0.0.1:1/api"))
	_, err := c.GetCityAnalytics(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GET /properties/analytics/city")
}
