// Package metrics exposes extraction and check outcomes to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/dvloznov/statement-review/internal/checks"
	"github.com/dvloznov/statement-review/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "statement_review"

// Collector records extraction outcomes and check results. It implements
// pipeline.Observer and review.ResultObserver.
type Collector struct {
	registry *prometheus.Registry

	extractions        *prometheus.CounterVec
	extractionDuration *prometheus.HistogramVec
	checkResults       *prometheus.CounterVec
}

// NewCollector creates a collector with its own registry, which also carries
// the Go runtime and process collectors.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Extraction outcomes by terminal status and MIME type.",
		}, []string{"status", "mime_type"}),
		extractionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_duration_seconds",
			Help:      "Time from claiming a file to writing its terminal status.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		}, []string{"status"}),
		checkResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "check_results_total",
			Help:      "Check verdicts by check, outcome and reported severity.",
		}, []string{"check", "passed", "severity"}),
	}

	c.registry.MustRegister(
		c.extractions,
		c.extractionDuration,
		c.checkResults,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// ObserveExtraction implements pipeline.Observer.
func (c *Collector) ObserveExtraction(status domain.Status, mimeType string, elapsed time.Duration) {
	if mimeType == "" {
		mimeType = "unknown"
	}
	c.extractions.WithLabelValues(status.String(), mimeType).Inc()
	c.extractionDuration.WithLabelValues(status.String()).Observe(elapsed.Seconds())
}

// ObserveChecks implements review.ResultObserver.
func (c *Collector) ObserveChecks(results []checks.Result) {
	for _, r := range results {
		passed := "false"
		if r.Passed {
			passed = "true"
		}
		c.checkResults.WithLabelValues(r.ID, passed, r.Severity.String()).Inc()
	}
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
