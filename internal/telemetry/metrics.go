package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the generation pipeline collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	Generations        *prometheus.CounterVec
	GenerationDuration *prometheus.HistogramVec
	UpstreamFailures   *prometheus.CounterVec
	Extractions        *prometheus.CounterVec
	RateLimited        prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Generations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "playforge_generations_total",
				Help: "Generated documents by source and fallback variant",
			},
			[]string{"source", "variant"},
		),
		GenerationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "playforge_generation_duration_seconds",
				Help:    "Time spent producing a document",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 2.5, 5, 10, 20, 30},
			},
			[]string{"source"},
		),
		UpstreamFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "playforge_upstream_failures_total",
				Help: "Failed calls to the external generation service",
			},
			[]string{"reason"},
		),
		Extractions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "playforge_extractions_total",
				Help: "Reply extraction results by matching strategy",
			},
			[]string{"strategy"},
		),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "playforge_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Generations, m.GenerationDuration, m.UpstreamFailures, m.Extractions, m.RateLimited)
	}
	return m
}

func (m *Metrics) ObserveGeneration(source, variant string, d time.Duration) {
	if m == nil {
		return
	}
	m.Generations.WithLabelValues(source, variant).Inc()
	m.GenerationDuration.WithLabelValues(source).Observe(d.Seconds())
}

func (m *Metrics) ObserveUpstreamFailure(reason string) {
	if m == nil {
		return
	}
	m.UpstreamFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveExtraction(strategy string) {
	if m == nil {
		return
	}
	m.Extractions.WithLabelValues(strategy).Inc()
}

func (m *Metrics) ObserveRateLimited() {
	if m == nil {
		return
	}
	m.RateLimited.Inc()
}
