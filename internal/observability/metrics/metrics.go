package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics exposes Prometheus primitives for the HTTP surface.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewHTTPMetrics registers and returns request-level metrics.
func NewHTTPMetrics() *HTTPMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleettrack_http_requests_total",
		Help: "Counts HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fleettrack_http_request_duration_seconds",
		Help:    "HTTP request latency per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	prometheus.MustRegister(requests, duration)
	return &HTTPMetrics{requests: requests, duration: duration}
}

// GinMiddleware records request counts and latency.
func GinMiddleware(m *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if strings.TrimSpace(route) == "" {
			route = "unknown"
		}
		m.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// IngestMetrics counts snapshot ingestion outcomes.
type IngestMetrics struct {
	snapshots *prometheus.CounterVec
	rows      *prometheus.CounterVec
}

// NewIngestMetrics registers and returns ingestion metrics.
func NewIngestMetrics() *IngestMetrics {
	snapshots := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleettrack_snapshots_total",
		Help: "Counts ingested snapshots by outcome.",
	}, []string{"outcome"})

	rows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleettrack_snapshot_rows_total",
		Help: "Counts processed snapshot rows by outcome.",
	}, []string{"outcome"})

	prometheus.MustRegister(snapshots, rows)
	return &IngestMetrics{snapshots: snapshots, rows: rows}
}

// RecordSnapshot increments the snapshot counter for an outcome
// (ingested, duplicate, rejected).
func (m *IngestMetrics) RecordSnapshot(outcome string) {
	if m == nil {
		return
	}
	m.snapshots.WithLabelValues(outcome).Inc()
}

// RecordRows adds row counts for an outcome (inserted, skipped, blank).
func (m *IngestMetrics) RecordRows(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rows.WithLabelValues(outcome).Add(float64(n))
}
