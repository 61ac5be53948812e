package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	dto "github.com/prometheus/client_model/go"
	"github.com/teslashibe/go-rover/pkg/directive"
)

// metrics holds the service's Prometheus collectors. Each Server owns its
// registry so several can run in one process.
type metrics struct {
	registry *prometheus.Registry

	requests    prometheus.Counter
	rejected    prometheus.Counter
	failed      prometheus.Counter
	auditErrors prometheus.Counter
	directives  *prometheus.CounterVec
	inference   prometheus.Histogram
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "classifier_requests_total",
			Help: "Upload requests received.",
		}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "classifier_rejected_total",
			Help: "Uploads rejected with 400.",
		}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "classifier_failed_total",
			Help: "Uploads that failed with 500.",
		}),
		auditErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "classifier_audit_errors_total",
			Help: "Uploads that could not be written to the audit directory.",
		}),
		directives: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "classifier_directives_total",
			Help: "Directives returned, by directive.",
		}, []string{"directive"}),
		inference: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "classifier_inference_seconds",
			Help:    "Model inference latency.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
	}

	// zero series for every directive so dashboards see them before traffic
	for _, d := range directive.All {
		m.directives.WithLabelValues(d.String())
	}

	m.registry.MustRegister(
		m.requests, m.rejected, m.failed, m.auditErrors, m.directives, m.inference,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *metrics) classified(d directive.Directive, latency time.Duration) {
	m.directives.WithLabelValues(d.String()).Inc()
	m.inference.Observe(latency.Seconds())
}

func (m *metrics) directiveCount(d directive.Directive) uint64 {
	return counterValue(m.directives.WithLabelValues(d.String()))
}

// counterValue reads a counter's current value.
func counterValue(c prometheus.Counter) uint64 {
	var out dto.Metric
	if err := c.Write(&out); err != nil {
		return 0
	}
	return uint64(out.GetCounter().GetValue())
}
