// Package observability exposes the application's Prometheus metrics.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics handles application metrics and monitoring
type Metrics struct {
	httpDuration *prometheus.HistogramVec
	cacheHits    *prometheus.CounterVec
	cacheMisses  *prometheus.CounterVec

	auditQueueDepth prometheus.Gauge
	auditDropped    prometheus.Counter
}

// NewMetrics creates a new metrics instance registered against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "backoffice",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status class.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "backoffice",
			Name:      "cache_hits_total",
			Help:      "Repository cache hits by resource and key family.",
		}, []string{"resource", "family"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "backoffice",
			Name:      "cache_misses_total",
			Help:      "Repository cache misses by resource and key family.",
		}, []string{"resource", "family"}),
		auditQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "backoffice",
			Name:      "audit_queue_depth",
			Help:      "Entries waiting in the audit write queue.",
		}),
		auditDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "backoffice",
			Name:      "audit_dropped_total",
			Help:      "Audit entries dropped because the queue was full.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.httpDuration, m.cacheHits, m.cacheMisses, m.auditQueueDepth, m.auditDropped)
	}
	return m
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(route, method, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(route, method, status).Observe(duration.Seconds())
}

// CacheHit records a repository cache hit.
func (m *Metrics) CacheHit(resource, family string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(resource, family).Inc()
}

// CacheMiss records a repository cache miss.
func (m *Metrics) CacheMiss(resource, family string) {
	if m == nil {
		return
	}
	m.cacheMisses.WithLabelValues(resource, family).Inc()
}

// AuditQueueDepth reports the current audit queue backlog.
func (m *Metrics) AuditQueueDepth(n int) {
	if m == nil {
		return
	}
	m.auditQueueDepth.Set(float64(n))
}

// AuditDropped counts one discarded audit entry.
func (m *Metrics) AuditDropped() {
	if m == nil {
		return
	}
	m.auditDropped.Inc()
}
