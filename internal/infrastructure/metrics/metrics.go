// Package metrics exposes pipeline counters to Prometheus
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/garyjia/open-audit/internal/application/port"
)

const namespace = "open_audit"

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	registry *prometheus.Registry

	DocumentsSubmitted *prometheus.CounterVec
	ExtractionDuration *prometheus.HistogramVec
	DownloadAttempts   *prometheus.CounterVec
	TaxCalculations    *prometheus.CounterVec
	HTTPRequests       *prometheus.CounterVec
}

// New creates and registers all metrics on a dedicated registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		DocumentsSubmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_submitted_total",
			Help:      "Documents submitted, by status after analysis",
		}, []string{"status"}),
		ExtractionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_duration_seconds",
			Help:      "Latency of extraction calls, by outcome",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		}, []string{"outcome"}),
		DownloadAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "download_attempts_total",
			Help:      "Download attempts, by candidate strategy and result",
		}, []string{"strategy", "result"}),
		TaxCalculations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tax_calculations_total",
			Help:      "Tax regime comparisons, by recommended regime",
		}, []string{"recommendation"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests, by method and status code",
		}, []string{"method", "code"}),
	}
}

func (m *Metrics) DocumentSubmitted(status string) {
	m.DocumentsSubmitted.WithLabelValues(status).Inc()
}

func (m *Metrics) ExtractionObserved(outcome string, elapsed time.Duration) {
	m.ExtractionDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func (m *Metrics) DownloadAttempted(strategy string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	m.DownloadAttempts.WithLabelValues(strategy, result).Inc()
}

func (m *Metrics) TaxCalculated(recommendation string) {
	m.TaxCalculations.WithLabelValues(recommendation).Inc()
}

// ObserveRequest counts one served HTTP request
func (m *Metrics) ObserveRequest(method string, code int) {
	m.HTTPRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

var _ port.PipelineMetrics = (*Metrics)(nil)
