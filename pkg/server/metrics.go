package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type metrics struct {
	registry *prometheus.Registry

	analyses *prometheus.CounterVec
	tiers    *prometheus.CounterVec
	duration prometheus.Histogram
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "breathscan_analyses_total",
			Help: "Analysis requests by outcome (ok, bad_input, degraded, error).",
		}, []string{"outcome"}),
		tiers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "breathscan_risk_tier_total",
			Help: "Successful analyses by assigned risk tier.",
		}, []string{"tier"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "breathscan_pipeline_seconds",
			Help:    "Wall time of the full analysis pipeline.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
	}
	m.registry.MustRegister(
		m.analyses,
		m.tiers,
		m.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}
