package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestObserveStore_CountsFailures(t *testing.T) {
	ObserveStore("observe_test", "find", time.Now(), false)
	ObserveStore("observe_test", "find", time.Now(), true)

	body := scrape(t)
	assert.Contains(t, body, `terrascope_store_errors_total{backend="observe_test",op="find"} 1`)
	assert.Contains(t, body, `terrascope_store_op_duration_seconds_count{backend="observe_test",op="find"} 2`)
}

func TestHandler_ExposesCollectors(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("GET", "/api/health", "200").Inc()
	assert.Contains(t, scrape(t), "terrascope_http_requests_total")
}

func TestObserveCache(t *testing.T) {
	ObserveCache("observe_test", 3, 0.25)

	body := scrape(t)
	assert.Contains(t, body, `terrascope_cache_entries{cache="observe_test"} 3`)
	assert.Contains(t, body, `terrascope_cache_hit_ratio{cache="observe_test"} 0.25`)
}
