package harvest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/terrascope/terrascope/internal/geospatial"
	"github.com/terrascope/terrascope/internal/metrics"
	"github.com/terrascope/terrascope/internal/model"
	"github.com/terrascope/terrascope/internal/resilience"
)

// DefaultOverpassURL is the public Overpass interpreter endpoint.
const DefaultOverpassURL = "https://overpass-api.de/api/interpreter"

// FallbackAddress labels buildings without an addr:street tag.
const FallbackAddress = "Commercial District Bld."

// metersPerLevel converts building:levels to a height.
const metersPerLevel = 3.5

var osmOwners = []string{"Estate Holdings Inc.", "City Invest Group", "Skyline Partners", "Heritage Trust"}

// OverpassOptions configures the OSM harvester.
type OverpassOptions struct {
	URL         string
	UserAgent   string
	Timeout     time.Duration
	Rate        float64 // requests per second
	Burst       int
	Retry       resilience.RetryConfig
	TileRows    int
	TileCols    int
	Concurrency int
	Seed        uint64
	HTTPClient  *http.Client
}

// Overpass harvests building footprints from the Overpass API.
type Overpass struct {
	opts    OverpassOptions
	client  *http.Client
	limiter *adaptiveLimiter
	log     *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewOverpass creates a harvester. Zero-valued options fall back to one
// request per second, a single tile and two concurrent fetches. The request
// rate adapts to 429 responses.
func NewOverpass(opts OverpassOptions) *Overpass {
	if opts.URL == "" {
		opts.URL = DefaultOverpassURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "terrascope/1.0"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.Rate <= 0 {
		opts.Rate = 1
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.TileRows <= 0 {
		opts.TileRows = 1
	}
	if opts.TileCols <= 0 {
		opts.TileCols = 1
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 2
	}
	if opts.Retry.OnRetry == nil {
		opts.Retry.OnRetry = resilience.RetryLogger("overpass", "interpreter")
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	seed := opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano()) //nolint:gosec // demo attributes
	}
	return &Overpass{
		opts:    opts,
		client:  client,
		limiter: newAdaptiveLimiter(rate.Limit(opts.Rate), opts.Burst),
		log:     zap.L().With(zap.String("component", "harvest.overpass")),
		rng:     rand.New(rand.NewPCG(seed, seed>>1)), //nolint:gosec // demo attributes
	}
}

// BuildQuery returns the Overpass QL for every building way and relation in b.
func BuildQuery(b geospatial.BBox) string {
	area := fmt.Sprintf("%s,%s,%s,%s",
		formatCoord(b.South), formatCoord(b.West), formatCoord(b.North), formatCoord(b.East))
	return fmt.Sprintf(`[out:json][timeout:25];
(
  way["building"](%[1]s);
  relation["building"](%[1]s);
);
out body;
>;
out skel qt;`, area)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

type overpassResponse struct {
	Elements []Element `json:"elements"`
}

// Element is one node, way or relation from an Overpass JSON response.
type Element struct {
	Type  string            `json:"type"`
	ID    int64             `json:"id"`
	Lat   float64           `json:"lat"`
	Lon   float64           `json:"lon"`
	Nodes []int64           `json:"nodes"`
	Tags  map[string]string `json:"tags"`
}

// Harvest fetches every building in b. The bbox is split into tiles that are
// fetched concurrently; buildings straddling tile edges are kept once.
func (o *Overpass) Harvest(ctx context.Context, b geospatial.BBox) ([]model.Feature, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}

	tiles := b.Split(o.opts.TileRows, o.opts.TileCols)
	results := make([][]model.Feature, len(tiles))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Concurrency)
	for i, tile := range tiles {
		g.Go(func() error {
			resp, err := o.fetch(gctx, tile)
			if err != nil {
				return eris.Wrapf(err, "harvest: tile %s", tile)
			}
			results[i] = o.transform(resp)
			o.log.Debug("tile harvested",
				zap.String("bbox", tile.String()),
				zap.Int("buildings", len(results[i])),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var features []model.Feature
	for _, tileFeatures := range results {
		for _, f := range tileFeatures {
			if _, dup := seen[f.ID]; dup {
				continue
			}
			seen[f.ID] = struct{}{}
			features = append(features, f)
		}
	}

	metrics.HarvestFeaturesTotal.WithLabelValues("osm").Add(float64(len(features)))
	o.log.Info("overpass harvest complete",
		zap.String("bbox", b.String()),
		zap.Int("tiles", len(tiles)),
		zap.Int("buildings", len(features)),
	)
	return features, nil
}

func (o *Overpass) fetch(ctx context.Context, tile geospatial.BBox) (*overpassResponse, error) {
	query := BuildQuery(tile)
	resp, err := resilience.DoVal(ctx, o.opts.Retry, func(ctx context.Context) (*overpassResponse, error) {
		if err := o.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "overpass: rate limiter")
		}
		out, err := o.post(ctx, query)
		if err != nil {
			var te *resilience.TransientError
			if errors.As(err, &te) && te.StatusCode == http.StatusTooManyRequests {
				o.limiter.onRateLimit()
			}
			metrics.OverpassRequestsTotal.WithLabelValues("error").Inc()
			return nil, err
		}
		o.limiter.onSuccess()
		metrics.OverpassRequestsTotal.WithLabelValues("ok").Inc()
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (o *Overpass) post(ctx context.Context, query string) (*overpassResponse, error) {
	form := url.Values{"data": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.opts.URL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, eris.Wrap(err, "overpass: create request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", o.opts.UserAgent)

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "overpass: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if err := resilience.CheckHTTPStatus("overpass", resp.StatusCode); err != nil {
		return nil, err
	}

	var out overpassResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, eris.Wrap(err, "overpass: decode response")
	}
	return &out, nil
}

func (o *Overpass) transform(resp *overpassResponse) []model.Feature {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Transform(resp.Elements, o.rng)
}

// Transform turns Overpass elements into features. Way node references are
// resolved against the node elements in the same response, rings are closed,
// and ways left with fewer than three points are dropped. Attributes OSM does
// not carry are drawn from rng.
func Transform(elements []Element, rng *rand.Rand) []model.Feature {
	nodes := make(map[int64]model.Position)
	for _, e := range elements {
		if e.Type == "node" {
			nodes[e.ID] = model.Position{e.Lon, e.Lat}
		}
	}

	var features []model.Feature
	for _, e := range elements {
		if e.Type != "way" || e.Tags["building"] == "" {
			continue
		}
		ring := make([]model.Position, 0, len(e.Nodes)+1)
		for _, id := range e.Nodes {
			if p, ok := nodes[id]; ok {
				ring = append(ring, p)
			}
		}
		if len(ring) < 3 {
			continue
		}
		ring = model.CloseRing(ring)

		height := buildingHeight(e.Tags, rng)
		attrs := model.Attributes{
			Address: osmAddress(e.Tags),
			Price:   model.Float(math.Round(height*50000 + rng.Float64()*1000000)),
			Height:  model.Float(height),
			Owner:   osmOwners[rng.IntN(len(osmOwners))],
			LandUse: model.LandUseResidential,
		}
		if year, ok := leadingInt(e.Tags["start_date"]); ok && year >= model.MinYearBuilt {
			attrs.YearBuilt = model.Int(year)
		}
		if e.Tags["office"] != "" {
			attrs.LandUse = model.LandUseCommercial
		}

		f := model.Feature{
			Type:       model.TypeFeature,
			ID:         fmt.Sprintf("osm-way-%d", e.ID),
			Geometry:   model.NewPolygon(ring),
			Properties: attrs,
		}
		if err := f.Geometry.Validate(); err != nil {
			continue
		}
		features = append(features, f)
	}
	return features
}

func buildingHeight(tags map[string]string, rng *rand.Rand) float64 {
	if levels, ok := leadingInt(tags["building:levels"]); ok && levels > 0 {
		return float64(levels) * metersPerLevel
	}
	if h, ok := leadingInt(tags["height"]); ok && h > 0 {
		return float64(h)
	}
	return float64(rng.IntN(50) + 10)
}

func osmAddress(tags map[string]string) string {
	street := tags["addr:street"]
	if street == "" {
		return FallbackAddress
	}
	return strings.TrimSpace(tags["addr:housenumber"] + " " + street)
}

// leadingInt parses the integer prefix of s, so "12 m" and "1998-05" yield
// 12 and 1998.
func leadingInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
