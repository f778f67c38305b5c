package api

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/terrascope/terrascope/internal/geospatial"
	"github.com/terrascope/terrascope/internal/store"
)

// parseQuery maps bbox, minPrice, maxPrice, search, impute and limit
// parameters onto a store query.
func parseQuery(v url.Values) (store.Query, error) {
	var q store.Query

	if raw := strings.TrimSpace(v.Get("bbox")); raw != "" {
		b, err := geospatial.ParseBBox(raw)
		if err != nil {
			return q, eris.Wrap(err, "invalid bbox")
		}
		q.BBox = &b
	}

	var err error
	if q.MinPrice, err = parsePrice(v, "minPrice"); err != nil {
		return q, err
	}
	if q.MaxPrice, err = parsePrice(v, "maxPrice"); err != nil {
		return q, err
	}

	q.Search = strings.TrimSpace(v.Get("search"))

	if raw := v.Get("impute"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return q, eris.Errorf("invalid impute value %q", raw)
		}
		q.Impute = b
	}

	if q.Limit, err = parseIntParam(v, "limit", 0); err != nil {
		return q, err
	}

	if err := q.Validate(); err != nil {
		return q, err
	}
	return q, nil
}

func parsePrice(v url.Values, name string) (*float64, error) {
	raw := strings.TrimSpace(v.Get(name))
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, eris.Errorf("invalid %s value %q", name, raw)
	}
	return &f, nil
}

func parseIntParam(v url.Values, name string, def int) (int, error) {
	raw := strings.TrimSpace(v.Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, eris.Errorf("invalid %s value %q", name, raw)
	}
	return n, nil
}
