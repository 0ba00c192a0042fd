package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/sma-lifecycle-api/internal/models"
)

// Outcome labels shared by the lifecycle counters.
const (
	outcomeSuccess  = "success"
	outcomeRejected = "rejected"
	outcomeError    = "error"
)

// MetricsSnapshot is a compact JSON view of the counters kept by the service.
type MetricsSnapshot struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	TransactionCount         uint64    `json:"transaction_count"`
	AverageTransactionMs     float64   `json:"average_transaction_ms"`
	LifecycleOperations      uint64    `json:"lifecycle_operations"`
	LifecycleRejections      uint64    `json:"lifecycle_rejections"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
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
	txDuration      *prometheus.HistogramVec
	lifecycleOps    *prometheus.CounterVec
	bulkItems       *prometheus.CounterVec
	detachRefs      *prometheus.CounterVec

	cacheHitCount     uint64
	cacheMissCount    uint64
	requestCount      uint64
	requestDurationNs uint64
	txCount           uint64
	txDurationNs      uint64
	opCount           uint64
	opRejectCount     uint64
}

// NewMetricsService registers core Prometheus collectors.
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

	txDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_transaction_duration_seconds",
		Help:    "Duration of lifecycle transactions",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	lifecycleOps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lifecycle_operations_total",
		Help: "Lifecycle operations by record type, action and outcome",
	}, []string{"type", "action", "outcome"})

	bulkItems := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bulk_items_total",
		Help: "Items processed by bulk transitions",
	}, []string{"type", "action", "outcome"})

	detachRefs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dependency_detach_total",
		Help: "Dependency references processed on delete",
	}, []string{"entity", "table", "outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		txDuration, lifecycleOps, bulkItems, detachRefs, goroutines)

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
		txDuration:      txDuration,
		lifecycleOps:    lifecycleOps,
		bulkItems:       bulkItems,
		detachRefs:      detachRefs,
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

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationNs, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	if total := hits + misses; total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveTransaction records how long one lifecycle transaction held the store.
func (m *MetricsService) ObserveTransaction(operation string, duration time.Duration) {
	if m == nil {
		return
	}
	m.txDuration.WithLabelValues(operation).Observe(duration.Seconds())
	atomic.AddUint64(&m.txCount, 1)
	atomic.AddUint64(&m.txDurationNs, uint64(duration.Nanoseconds()))
}

// RecordLifecycle counts one create, edit, transition or delete attempt.
func (m *MetricsService) RecordLifecycle(t models.RecordType, action models.Action, err error) {
	if m == nil {
		return
	}
	outcome := outcomeFor(err)
	m.lifecycleOps.WithLabelValues(string(t), string(action), outcome).Inc()
	atomic.AddUint64(&m.opCount, 1)
	if outcome == outcomeRejected {
		atomic.AddUint64(&m.opRejectCount, 1)
	}
}

// RecordBulk counts the per-item results of one batch.
func (m *MetricsService) RecordBulk(t models.RecordType, action models.Action, succeeded, rejected int) {
	if m == nil {
		return
	}
	m.bulkItems.WithLabelValues(string(t), string(action), outcomeSuccess).Add(float64(succeeded))
	m.bulkItems.WithLabelValues(string(t), string(action), outcomeRejected).Add(float64(rejected))
}

// RecordDetach counts one processed dependency reference. Outcome is the
// detach action, or "skipped" for an absent optional reference.
func (m *MetricsService) RecordDetach(entity, table, outcome string) {
	if m == nil {
		return
	}
	m.detachRefs.WithLabelValues(entity, table, outcome).Inc()
}

// Snapshot returns aggregated metrics for the summary endpoint.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationNs)
	txCount := atomic.LoadUint64(&m.txCount)
	txDuration := atomic.LoadUint64(&m.txDurationNs)

	var cacheRatio float64
	if lookups := hits + misses; lookups > 0 {
		cacheRatio = float64(hits) / float64(lookups)
	}

	return MetricsSnapshot{
		CacheHitRatio:            cacheRatio,
		CacheHits:                hits,
		CacheMisses:              misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: averageMs(reqDuration, requests),
		TransactionCount:         txCount,
		AverageTransactionMs:     averageMs(txDuration, txCount),
		LifecycleOperations:      atomic.LoadUint64(&m.opCount),
		LifecycleRejections:      atomic.LoadUint64(&m.opRejectCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}

func averageMs(totalNs, count uint64) float64 {
	if count == 0 {
		return 0
	}
	return float64(totalNs) / float64(count) / float64(time.Millisecond)
}

// outcomeFor classifies typed 4xx errors as rejections and everything else
// as errors.
func outcomeFor(err error) string {
	if err == nil {
		return outcomeSuccess
	}
	if appErr := asAppError(err); appErr != nil && appErr.Status < 500 {
		return outcomeRejected
	}
	return outcomeError
}
