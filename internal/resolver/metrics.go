package resolver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "lookalike"

// Metrics holds the pipeline's Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	resolutions *prometheus.CounterVec
	enrichment  *prometheus.CounterVec
	duration    prometheus.Histogram
}

// NewMetrics registers the pipeline collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	auto := promauto.With(reg)
	return &Metrics{
		resolutions: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Resolved matches by where the record came from (oracle, fallback, no_face).",
		}, []string{"source"}),
		enrichment: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichment_total",
			Help:      "Pipeline step results (oracle failures, portrait, stats, compare).",
		}, []string{"step", "result"}),
		duration: auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resolve_duration_seconds",
			Help:      "Wall time of a full resolution including every external call.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
		}),
	}
}

func (m *Metrics) resolved(source string, seconds float64) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(source).Inc()
	m.duration.Observe(seconds)
}

func (m *Metrics) step(step, result string) {
	if m == nil {
		return
	}
	m.enrichment.WithLabelValues(step, result).Inc()
}
