// Package metrics provides Prometheus metrics export for the planning and
// retrieval pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusExporter exports pipeline metrics in Prometheus format.
type PrometheusExporter struct {
	registry *prometheus.Registry

	// Plan metrics
	planLatency  *prometheus.HistogramVec
	planRequests *prometheus.CounterVec

	// Retrieval metrics
	retrievalHits *prometheus.CounterVec

	// Verification metrics
	verifications      *prometheus.CounterVec
	verifyLatency      *prometheus.HistogramVec
	verificationErrors *prometheus.CounterVec
}

// Config configures the Prometheus exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds)
	LatencyBuckets []float64
}

// DefaultConfig returns default Prometheus configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}
}

// NewPrometheusExporter creates a new Prometheus metrics exporter.
func NewPrometheusExporter(cfg Config) *PrometheusExporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &PrometheusExporter{registry: registry}

	e.planLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mathsense",
			Subsystem: "ai",
			Name:      "plan_latency_seconds",
			Help:      "Plan request latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"verified"},
	)

	e.planRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mathsense",
			Subsystem: "ai",
			Name:      "plan_requests_total",
			Help:      "Total number of plan requests",
		},
		[]string{"verified", "status"},
	)

	e.retrievalHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mathsense",
			Subsystem: "ai",
			Name:      "retrieval_hits_total",
			Help:      "Total retrieval hits returned, by scope",
		},
		[]string{"source"},
	)

	e.verifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mathsense",
			Subsystem: "ai",
			Name:      "verifications_total",
			Help:      "Total number of step verification calls",
		},
		[]string{"tool", "status"},
	)

	e.verifyLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mathsense",
			Subsystem: "ai",
			Name:      "verification_latency_seconds",
			Help:      "Step verification latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"tool"},
	)

	e.verificationErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mathsense",
			Subsystem: "ai",
			Name:      "verification_errors_total",
			Help:      "Total number of failed step verifications",
		},
		[]string{"tool"},
	)

	registry.MustRegister(
		e.planLatency,
		e.planRequests,
		e.retrievalHits,
		e.verifications,
		e.verifyLatency,
		e.verificationErrors,
	)

	return e
}

// RecordPlanRequest records a plan request metric.
func (e *PrometheusExporter) RecordPlanRequest(verified bool, latency time.Duration, success bool) {
	v := "false"
	if verified {
		v = "true"
	}
	status := "success"
	if !success {
		status = "error"
	}
	e.planRequests.WithLabelValues(v, status).Inc()
	e.planLatency.WithLabelValues(v).Observe(latency.Seconds())
}

// RecordRetrievalHits records how many hits a retrieval returned per scope.
func (e *PrometheusExporter) RecordRetrievalHits(source string, count int) {
	e.retrievalHits.WithLabelValues(source).Add(float64(count))
}

// RecordVerification records a single step verification outcome.
func (e *PrometheusExporter) RecordVerification(tool string, latency time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
		e.verificationErrors.WithLabelValues(tool).Inc()
	}
	e.verifications.WithLabelValues(tool, status).Inc()
	e.verifyLatency.WithLabelValues(tool).Observe(latency.Seconds())
}

// Handler returns the HTTP handler for the metrics endpoint.
func (e *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Registry returns the Prometheus registry.
func (e *PrometheusExporter) Registry() *prometheus.Registry {
	return e.registry
}
