// Package store persists property features and answers viewport queries
// against Postgres/PostGIS, MongoDB or SQLite.
package store

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/terrascope/terrascope/internal/geospatial"
	"github.com/terrascope/terrascope/internal/impute"
	"github.com/terrascope/terrascope/internal/metrics"
	"github.com/terrascope/terrascope/internal/model"
)

// MaxResults caps the number of features a single Find returns.
const MaxResults = 2000

// ErrNotFound is returned by Get when no feature has the requested id.
var ErrNotFound = eris.New("store: property not found")

// Query restricts a Find. Nil bounds and an empty search match everything.
type Query struct {
	BBox     *geospatial.BBox
	MinPrice *float64
	MaxPrice *float64
	Search   string
	Impute   bool
	Limit    int
}

// EffectiveLimit returns the limit clamped to (0, MaxResults].
func (q Query) EffectiveLimit() int {
	if q.Limit <= 0 || q.Limit > MaxResults {
		return MaxResults
	}
	return q.Limit
}

// Validate rejects inverted price ranges and malformed boxes.
func (q Query) Validate() error {
	if q.MinPrice != nil && q.MaxPrice != nil && *q.MinPrice > *q.MaxPrice {
		return eris.New("store: minPrice must not exceed maxPrice")
	}
	if q.BBox != nil {
		return q.BBox.Validate()
	}
	return nil
}

// CityAnalytics aggregates the whole dataset.
type CityAnalytics struct {
	TotalMarketValue float64 `json:"totalMarketValue"`
	AvgROI           float64 `json:"avgROI"`
	PropertyCount    int64   `json:"propertyCount"`
	AvgPrice         float64 `json:"avgPrice"`
}

// Store defines the persistence interface for property features.
type Store interface {
	Migrate(ctx context.Context) error
	// InsertMany upserts features by id and returns the number written.
	InsertMany(ctx context.Context, features []model.Feature) (int64, error)
	Get(ctx context.Context, id string) (*model.Feature, error)
	Find(ctx context.Context, q Query) ([]model.Feature, error)
	CityAnalytics(ctx context.Context) (*CityAnalytics, error)
	Count(ctx context.Context) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

// reservedIDs collide with static routes under /api/properties and could
// never be fetched by id.
var reservedIDs = []string{"top"}

// prepare assigns ids to new features and validates each one. Inputs are
// cloned so callers keep their slices untouched.
func prepare(features []model.Feature) ([]model.Feature, error) {
	out := make([]model.Feature, len(features))
	for i, f := range features {
		f = f.Clone()
		if f.Type == "" {
			f.Type = model.TypeFeature
		}
		if f.ID == "" {
			f.ID = uuid.NewString()
		}
		if slices.Contains(reservedIDs, f.ID) {
			return nil, eris.Errorf("store: property id %q is reserved", f.ID)
		}
		f.Properties.InvestmentScore = nil
		f.Properties.Momentum = nil
		f.Properties.ImputedFields = nil
		if err := f.Validate(); err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

// Instrumented wraps a Store and records operation latency and failures
// under the given backend label.
func Instrumented(s Store, backend string) Store {
	return &instrumented{next: s, backend: backend}
}

type instrumented struct {
	next    Store
	backend string
}

func (s *instrumented) observe(op string, start time.Time, err error) {
	metrics.ObserveStore(s.backend, op, start, err != nil && !eris.Is(err, ErrNotFound))
}

func (s *instrumented) Migrate(ctx context.Context) error {
	start := time.Now()
	err := s.next.Migrate(ctx)
	s.observe("migrate", start, err)
	return err
}

func (s *instrumented) InsertMany(ctx context.Context, features []model.Feature) (int64, error) {
	start := time.Now()
	n, err := s.next.InsertMany(ctx, features)
	s.observe("insert_many", start, err)
	return n, err
}

func (s *instrumented) Get(ctx context.Context, id string) (*model.Feature, error) {
	start := time.Now()
	f, err := s.next.Get(ctx, id)
	s.observe("get", start, err)
	return f, err
}

func (s *instrumented) Find(ctx context.Context, q Query) ([]model.Feature, error) {
	start := time.Now()
	fs, err := s.next.Find(ctx, q)
	s.observe("find", start, err)
	return fs, err
}

func (s *instrumented) CityAnalytics(ctx context.Context) (*CityAnalytics, error) {
	start := time.Now()
	a, err := s.next.CityAnalytics(ctx)
	s.observe("city_analytics", start, err)
	return a, err
}

func (s *instrumented) Count(ctx context.Context) (int64, error) {
	start := time.Now()
	n, err := s.next.Count(ctx)
	s.observe("count", start, err)
	return n, err
}

func (s *instrumented) DeleteAll(ctx context.Context) (int64, error) {
	start := time.Now()
	n, err := s.next.DeleteAll(ctx)
	s.observe("delete_all", start, err)
	return n, err
}

func (s *instrumented) Ping(ctx context.Context) error { return s.next.Ping(ctx) }

func (s *instrumented) Close() error { return s.next.Close() }

// finish applies the per-query transforms shared by every backend.
func finish(features []model.Feature, q Query) []model.Feature {
	if features == nil {
		features = []model.Feature{}
	}
	if q.Impute {
		return impute.Impute(features)
	}
	return features
}
