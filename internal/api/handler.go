// Package api serves the property REST endpoints.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/terrascope/terrascope/internal/cache"
	"github.com/terrascope/terrascope/internal/metrics"
	"github.com/terrascope/terrascope/internal/model"
	"github.com/terrascope/terrascope/internal/scorer"
	"github.com/terrascope/terrascope/internal/store"
)

// HealthMessage is reported by GET /api/health.
const HealthMessage = "TerraScope 3D Enterprise Server is running"

const analyticsCacheKey = "analytics:city"

// Handler holds the dependencies of the property endpoints.
type Handler struct {
	store        store.Store
	cache        cache.Cache
	analyticsTTL time.Duration
	maxResults   int
	log          *zap.Logger
}

// NewHandler creates a Handler. A nil cache disables response caching.
func NewHandler(s store.Store, c cache.Cache, analyticsTTL time.Duration) *Handler {
	if c == nil {
		c = cache.Nop{}
	}
	return &Handler{
		store:        s,
		cache:        c,
		analyticsTTL: analyticsTTL,
		maxResults:   store.MaxResults,
		log:          zap.L().With(zap.String("component", "api")),
	}
}

// SetMaxResults lowers the per-request result cap. Values outside
// (0, store.MaxResults] are ignored.
func (h *Handler) SetMaxResults(n int) {
	if n > 0 && n <= store.MaxResults {
		h.maxResults = n
	}
}

func (h *Handler) capLimit(q *store.Query) {
	if q.Limit <= 0 || q.Limit > h.maxResults {
		q.Limit = h.maxResults
	}
}

type errorResponse struct {
	Message string `json:"message"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Warn("api: encode response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, errorResponse{Message: message})
}

// storeError logs err and writes a 500 response.
func (h *Handler) storeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.log.Error("api: store failure",
		zap.String("op", op),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	h.writeError(w, http.StatusInternalServerError, err.Error())
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": HealthMessage})
}

func (h *Handler) handleListProperties(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r.URL.Query())
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.capLimit(&q)
	features, err := h.store.Find(r.Context(), q)
	if err != nil {
		h.storeError(w, r, "find", err)
		return
	}
	h.writeJSON(w, http.StatusOK, model.NewFeatureCollection(features))
}

func (h *Handler) handleTopOpportunities(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	q, err := parseQuery(params)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	n, err := parseIntParam(params, "n", scorer.DefaultTopN)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.capLimit(&q)
	features, err := h.store.Find(r.Context(), q)
	if err != nil {
		h.storeError(w, r, "find", err)
		return
	}
	h.writeJSON(w, http.StatusOK, model.NewFeatureCollection(scorer.TopOpportunities(features, n)))
}

func (h *Handler) handleCityAnalytics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.observeCache()
	if data, ok := h.cache.Get(ctx, analyticsCacheKey); ok {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Cache", "HIT")
		w.WriteHeader(http.StatusOK)
		w.Write(data) //nolint:errcheck
		return
	}

	a, err := h.store.CityAnalytics(ctx)
	if err != nil {
		h.storeError(w, r, "city_analytics", err)
		return
	}
	data, err := json.Marshal(a)
	if err != nil {
		h.storeError(w, r, "city_analytics", eris.Wrap(err, "api: marshal analytics"))
		return
	}
	h.cache.Set(ctx, analyticsCacheKey, data, h.analyticsTTL)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Cache", "MISS")
	w.WriteHeader(http.StatusOK)
	w.Write(data) //nolint:errcheck
}

func (h *Handler) observeCache() {
	if sr, ok := h.cache.(cache.StatsReporter); ok {
		st := sr.Stats()
		metrics.ObserveCache(sr.Name(), st.Entries, st.HitRate)
	}
}

func (h *Handler) handleGetProperty(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	f, err := h.store.Get(r.Context(), id)
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "Property not found")
			return
		}
		h.storeError(w, r, "get", err)
		return
	}
	h.writeJSON(w, http.StatusOK, f)
}

// InvalidateAnalytics drops the city analytics cached in c. Callers that
// write to the store run it so a server sharing c stops serving old totals.
func InvalidateAnalytics(ctx context.Context, c cache.Cache) {
	if c == nil {
		return
	}
	c.Delete(ctx, analyticsCacheKey)
}
