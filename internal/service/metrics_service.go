package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relaycrm/crm-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	sessionLatency  prometheus.Observer
	sessionWrite    prometheus.Observer
	sessionHitRatio prometheus.Gauge
	sessionHits     prometheus.Counter
	sessionMisses   prometheus.Counter
	shareJobs       prometheus.Counter
	exports         *prometheus.CounterVec

	sessionHitCount      uint64
	sessionMissCount     uint64
	requestCount         uint64
	requestDurationTotal uint64
	shareJobCount        uint64
	exportCount          uint64
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

	sessionLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "filter_session_read_seconds",
		Help:    "Latency for filter session lookups",
		Buckets: prometheus.DefBuckets,
	})

	sessionWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "filter_session_write_seconds",
		Help:    "Latency for filter session saves",
		Buckets: prometheus.DefBuckets,
	})

	sessionHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "filter_session_hit_ratio",
		Help: "Ratio of filter session lookups that found saved state",
	})

	sessionHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "filter_session_hits_total",
		Help: "Total filter session lookups that found saved state",
	})

	sessionMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "filter_session_misses_total",
		Help: "Total filter session lookups that started fresh",
	})

	shareJobs := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "share_notifications_total",
		Help: "Total share notification jobs enqueued",
	})

	exports := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "exports_total",
		Help: "Total list exports generated",
	}, []string{"view", "format"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, sessionLatency, sessionWrite, sessionHitRatio, sessionHits, sessionMisses, shareJobs, exports, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		sessionLatency:  sessionLatency,
		sessionWrite:    sessionWrite,
		sessionHitRatio: sessionHitRatio,
		sessionHits:     sessionHits,
		sessionMisses:   sessionMisses,
		shareJobs:       shareJobs,
		exports:         exports,
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
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// ObserveSessionRead records one filter session lookup and updates the hit ratio.
// hit is false when the lookup fell back to a fresh state.
func (m *MetricsService) ObserveSessionRead(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	if m.sessionLatency != nil {
		m.sessionLatency.Observe(duration.Seconds())
	}
	if hit {
		m.sessionHits.Inc()
		atomic.AddUint64(&m.sessionHitCount, 1)
	} else {
		m.sessionMisses.Inc()
		atomic.AddUint64(&m.sessionMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.sessionHitCount)
	misses := atomic.LoadUint64(&m.sessionMissCount)
	total := hits + misses
	if total > 0 {
		m.sessionHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveSessionWrite tracks the duration of one filter session save.
func (m *MetricsService) ObserveSessionWrite(duration time.Duration) {
	if m == nil || m.sessionWrite == nil {
		return
	}
	m.sessionWrite.Observe(duration.Seconds())
}

// RecordShareNotification counts one enqueued share notification job.
func (m *MetricsService) RecordShareNotification() {
	if m == nil {
		return
	}
	m.shareJobs.Inc()
	atomic.AddUint64(&m.shareJobCount, 1)
}

// RecordExport counts one generated list export.
func (m *MetricsService) RecordExport(view, format string) {
	if m == nil {
		return
	}
	m.exports.WithLabelValues(view, format).Inc()
	atomic.AddUint64(&m.exportCount, 1)
}

// Snapshot returns aggregated metrics suitable for the status endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.sessionHitCount)
	misses := atomic.LoadUint64(&m.sessionMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)
	shareJobs := atomic.LoadUint64(&m.shareJobCount)
	exports := atomic.LoadUint64(&m.exportCount)

	var sessionRatio float64
	totalLookups := hits + misses
	if totalLookups > 0 {
		sessionRatio = float64(hits) / float64(totalLookups)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return models.SystemMetrics{
		SessionHitRatio:          sessionRatio,
		SessionHits:              hits,
		SessionMisses:            misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		ShareNotificationsQueued: shareJobs,
		ExportsGenerated:         exports,
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
