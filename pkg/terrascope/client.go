// Package terrascope is a Go client for the TerraScope property API.
package terrascope

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/terrascope/terrascope/internal/geospatial"
	"github.com/terrascope/terrascope/internal/model"
	"github.com/terrascope/terrascope/internal/store"
)

// DefaultBaseURL is the API root of a locally running server.
const DefaultBaseURL = "http://localhost:3001/api"

type (
	// Feature is a property footprint with its attributes.
	Feature = model.Feature
	// FeatureCollection is the list response envelope.
	FeatureCollection = model.FeatureCollection
	// BBox is a west,south,east,north viewport.
	BBox = geospatial.BBox
	// CityAnalytics is the city-wide aggregate.
	CityAnalytics = store.CityAnalytics
)

// ErrNotFound is returned by GetProperty for unknown ids.
var ErrNotFound = eris.New("terrascope: property not found")

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return "terrascope: " + strconv.Itoa(e.StatusCode) + ": " + e.Message
}

// Params are the list filters. Nil prices and an empty search are omitted.
type Params struct {
	BBox     *BBox
	MinPrice *float64
	MaxPrice *float64
	Search   string
	Impute   bool
	Limit    int
}

// Values encodes p as query parameters.
func (p Params) Values() url.Values {
	v := url.Values{}
	if p.BBox != nil {
		v.Set("bbox", p.BBox.String())
	}
	if p.MinPrice != nil {
		v.Set("minPrice", strconv.FormatFloat(*p.MinPrice, 'f', -1, 64))
	}
	if p.MaxPrice != nil {
		v.Set("maxPrice", strconv.FormatFloat(*p.MaxPrice, 'f', -1, 64))
	}
	if s := strings.TrimSpace(p.Search); s != "" {
		v.Set("search", s)
	}
	if p.Impute {
		v.Set("impute", "true")
	}
	if p.Limit > 0 {
		v.Set("limit", strconv.Itoa(p.Limit))
	}
	return v
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL points the client at another server.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(base, "/")
	}
}

// Client calls the TerraScope HTTP API.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a Client with the given options.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    DefaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetProperties lists properties matching p.
func (c *Client) GetProperties(ctx context.Context, p Params) (*FeatureCollection, error) {
	var fc FeatureCollection
	if err := c.get(ctx, "/properties", p.Values(), &fc); err != nil {
		return nil, err
	}
	return &fc, nil
}

// GetProperty fetches one property by id.
func (c *Client) GetProperty(ctx context.Context, id string) (*Feature, error) {
	var f Feature
	if err := c.get(ctx, "/properties/"+url.PathEscape(id), nil, &f); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, eris.Wrapf(ErrNotFound, "terrascope: property %s", id)
		}
		return nil, err
	}
	return &f, nil
}

// GetCityAnalytics fetches the city-wide aggregate.
func (c *Client) GetCityAnalytics(ctx context.Context) (*CityAnalytics, error) {
	var a CityAnalytics
	if err := c.get(ctx, "/properties/analytics/city", nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return eris.Wrap(err, "terrascope: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return eris.Wrapf(err, "terrascope: GET %s", path)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var body struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		if body.Message == "" {
			body.Message = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: body.Message}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return eris.Wrapf(err, "terrascope: decode %s", path)
	}
	return nil
}
