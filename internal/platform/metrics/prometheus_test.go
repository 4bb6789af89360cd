package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsManager_Records(t *testing.T) {
	m := NewMetricsManager("mandi_gateway")

	m.CacheLookup("listings", "hit")
	m.CacheLookup("listings", "hit")
	m.CacheLookup("listings", "miss")
	m.Invalidated("local", 3)
	m.ObserveBackend("getListings", "OK", 10*time.Millisecond)
	m.ObserveBackend("approveListing", "PermissionDenied", time.Millisecond)
	m.ObserveHTTP("/api/listings", http.StatusOK, time.Millisecond)
	m.GuardDecision("admin", "denied")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheLookupsTotal.WithLabelValues("listings", "hit")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.InvalidationsTotal.WithLabelValues("local")))
	// Successful calls never open an error series.
	assert.Equal(t, 1, testutil.CollectAndCount(m.BackendErrorsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BackendErrorsTotal.WithLabelValues("approveListing", "PermissionDenied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GuardDecisions.WithLabelValues("admin", "denied")))
}

func TestMetricsManager_NilIsNoop(t *testing.T) {
	var m *MetricsManager
	assert.NotPanics(t, func() {
		m.CacheLookup("listings", "hit")
		m.Invalidated("remote", 1)
		m.ObserveBackend("getListings", "Unavailable", time.Second)
		m.ObserveHTTP("/", 200, time.Second)
		m.GuardDecision("any", "granted")
	})
}

func TestNewMetricsServer_ServesRegistry(t *testing.T) {
	assert.Nil(t, NewMetricsServer("", nil))

	m := NewMetricsManager("mandi_gateway")
	m.CacheLookup("listing", "miss")
	srv := NewMetricsServer("0", m.Registry)
	require.NotNil(t, srv)

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "mandi_gateway_query_cache_lookups_total"))
}
