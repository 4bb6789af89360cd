package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/pashumandi/mandi-gateway/internal/platform/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// MetricsManager holds the gateway's Prometheus collectors. A nil manager is
// valid and records nothing, so tests can skip it.
type MetricsManager struct {
	Registry           *prometheus.Registry
	CacheLookupsTotal  *prometheus.CounterVec
	InvalidationsTotal *prometheus.CounterVec
	BackendErrorsTotal *prometheus.CounterVec
	BackendLatency     *prometheus.HistogramVec
	HTTPRequestsTotal  *prometheus.CounterVec
	HTTPLatency        *prometheus.HistogramVec
	GuardDecisions     *prometheus.CounterVec
}

func NewMetricsManager(serviceName string) *MetricsManager {
	registry := prometheus.NewRegistry()

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: serviceName,
		Name:      "query_cache_lookups_total",
		Help:      "Query cache lookups by operation and result (hit, miss, shared, disabled, not_ready).",
	}, []string{"operation", "result"})

	invalidations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: serviceName,
		Name:      "query_invalidations_total",
		Help:      "Cache key prefixes invalidated, by origin (local or remote).",
	}, []string{"origin"})

	backendErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: serviceName,
		Name:      "backend_errors_total",
		Help:      "Backend RPC errors by method and status code.",
	}, []string{"method", "code"})

	backendLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: serviceName,
		Name:      "backend_request_latency_seconds",
		Help:      "Latency of backend RPCs by method.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: serviceName,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route pattern and status code.",
	}, []string{"route", "status"})

	httpLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: serviceName,
		Name:      "http_request_latency_seconds",
		Help:      "HTTP request latency by route pattern.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	guardDecisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: serviceName,
		Name:      "guard_decisions_total",
		Help:      "Route guard outcomes by requirement and decision.",
	}, []string{"requirement", "decision"})

	registry.MustRegister(
		cacheLookups,
		invalidations,
		backendErrors,
		backendLatency,
		httpRequests,
		httpLatency,
		guardDecisions,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	return &MetricsManager{
		Registry:           registry,
		CacheLookupsTotal:  cacheLookups,
		InvalidationsTotal: invalidations,
		BackendErrorsTotal: backendErrors,
		BackendLatency:     backendLatency,
		HTTPRequestsTotal:  httpRequests,
		HTTPLatency:        httpLatency,
		GuardDecisions:     guardDecisions,
	}
}

func (m *MetricsManager) CacheLookup(operation, result string) {
	if m == nil {
		return
	}
	m.CacheLookupsTotal.WithLabelValues(operation, result).Inc()
}

func (m *MetricsManager) Invalidated(origin string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.InvalidationsTotal.WithLabelValues(origin).Add(float64(n))
}

func (m *MetricsManager) ObserveBackend(method, code string, took time.Duration) {
	if m == nil {
		return
	}
	m.BackendLatency.WithLabelValues(method).Observe(took.Seconds())
	if code != "OK" {
		m.BackendErrorsTotal.WithLabelValues(method, code).Inc()
	}
}

func (m *MetricsManager) ObserveHTTP(route string, status int, took time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.HTTPLatency.WithLabelValues(route).Observe(took.Seconds())
}

func (m *MetricsManager) GuardDecision(requirement, decision string) {
	if m == nil {
		return
	}
	m.GuardDecisions.WithLabelValues(requirement, decision).Inc()
}

// NewMetricsServer returns the /metrics server; an empty port disables it.
func NewMetricsServer(port string, registry *prometheus.Registry) *http.Server {
	if port == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// StartMetricsServer blocks serving /metrics until the server is closed.
func StartMetricsServer(server *http.Server, appLogger *logger.Logger) error {
	if server == nil {
		appLogger.Info("Prometheus metrics server port not configured, server will not start.")
		return nil
	}
	appLogger.Info("Prometheus metrics server starting", zap.String("addr", server.Addr), zap.String("path", "/metrics"))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
