package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API and the
// bulk operation engine.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	conflictChecks  prometheus.Histogram
	conflictsFound  *prometheus.CounterVec
	bulkOpsTotal    *prometheus.CounterVec
	bulkOpDuration  *prometheus.HistogramVec
	bulkItemsTotal  *prometheus.CounterVec
	undoTotal       *prometheus.CounterVec

	cacheHitCount  uint64
	cacheMissCount uint64
}

// NewMetricsService registers the core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	conflictChecks := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "conflict_check_duration_seconds",
		Help:    "Duration of conflict detection passes",
		Buckets: prometheus.DefBuckets,
	})

	conflictsFound := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "conflicts_detected_total",
		Help: "Total conflicts detected, by type and severity",
	}, []string{"type", "severity"})

	bulkOpsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bulk_operations_total",
		Help: "Total bulk operations, by kind and final status",
	}, []string{"kind", "status"})

	bulkOpDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bulk_operation_duration_seconds",
		Help:    "Duration of bulk operation executions",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"kind"})

	bulkItemsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bulk_operation_items_total",
		Help: "Total bulk operation items, by kind and outcome",
	}, []string{"kind", "outcome"})

	undoTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "undo_operations_total",
		Help: "Total undo attempts, by result",
	}, []string{"result"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio,
		cacheHits, cacheMisses, conflictChecks, conflictsFound, bulkOpsTotal, bulkOpDuration,
		bulkItemsTotal, undoTotal, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		conflictChecks:  conflictChecks,
		conflictsFound:  conflictsFound,
		bulkOpsTotal:    bulkOpsTotal,
		bulkOpDuration:  bulkOpDuration,
		bulkItemsTotal:  bulkItemsTotal,
		undoTotal:       undoTotal,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records cache hit/miss metrics and updates the hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	if m.cacheLatency != nil {
		m.cacheLatency.Observe(duration.Seconds())
	}
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	total := hits + misses
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration of cache set operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil || m.cacheWrite == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveConflictCheck records a conflict detection pass and any conflicts it found.
func (m *MetricsService) ObserveConflictCheck(duration time.Duration, byTypeSeverity map[[2]string]int) {
	if m == nil {
		return
	}
	m.conflictChecks.Observe(duration.Seconds())
	for key, count := range byTypeSeverity {
		m.conflictsFound.WithLabelValues(key[0], key[1]).Add(float64(count))
	}
}

// RecordBulkOperation records the terminal status and duration of a bulk operation.
func (m *MetricsService) RecordBulkOperation(kind, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.bulkOpsTotal.WithLabelValues(kind, status).Inc()
	m.bulkOpDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordBulkItems records item outcomes for a bulk operation.
func (m *MetricsService) RecordBulkItems(kind, outcome string, count int) {
	if m == nil || count == 0 {
		return
	}
	m.bulkItemsTotal.WithLabelValues(kind, outcome).Add(float64(count))
}

// RecordUndo records the result of an undo attempt.
func (m *MetricsService) RecordUndo(result string) {
	if m == nil {
		return
	}
	m.undoTotal.WithLabelValues(result).Inc()
}
