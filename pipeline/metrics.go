package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
)

// runMetrics is a per-run registry exported as a node_exporter textfile.
type runMetrics struct {
	registry       *prometheus.Registry
	batteries      *prometheus.CounterVec
	fallbacks      *prometheus.CounterVec
	extractSeconds prometheus.Histogram
}

func newRunMetrics() *runMetrics {
	m := &runMetrics{
		registry: prometheus.NewRegistry(),
		batteries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cyclelife_batteries_total",
			Help: "Battery files processed, by outcome.",
		}, []string{"status"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cyclelife_feature_fallbacks_total",
			Help: "Features that resolved to their fallback value, by feature.",
		}, []string{"feature"}),
		extractSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cyclelife_extract_duration_seconds",
			Help:    "Time to load and extract one battery.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	m.registry.MustRegister(m.batteries, m.fallbacks, m.extractSeconds)

	for _, status := range []string{StatusExtracted, StatusSkipped, StatusFailed} {
		m.batteries.WithLabelValues(status).Add(0)
	}
	return m
}

func (m *runMetrics) writeTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
