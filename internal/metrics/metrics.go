// Package metrics exposes attendance outcomes as Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/example/scan-attendance/internal/application"
)

// Metrics records attendance outcomes on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	// Recorded facts by mode
	Recorded *prometheus.CounterVec

	// Rejected record attempts by error kind
	Failures *prometheus.CounterVec

	// Session resolution latency
	ResolveLatency prometheus.Histogram
}

var _ application.MetricsRecorder = (*Metrics)(nil)

// New creates a Metrics instance with every collector registered on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,

		Recorded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_recorded_total",
			Help: "Total attendance facts recorded by mode",
		}, []string{"mode"}), // mode: "scan", "manual"

		Failures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_failures_total",
			Help: "Total rejected attendance attempts by error kind",
		}, []string{"kind"}),

		ResolveLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "attendance_resolve_duration_seconds",
			Help:    "Duration of session resolution for a single person",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		}),
	}
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// AttendanceRecorded counts a persisted fact.
func (m *Metrics) AttendanceRecorded(mode application.RecordMode) {
	if m != nil {
		m.Recorded.WithLabelValues(string(mode)).Inc()
	}
}

// AttendanceFailed counts a rejected attempt.
func (m *Metrics) AttendanceFailed(kind string) {
	if m != nil {
		m.Failures.WithLabelValues(kind).Inc()
	}
}

// ResolveObserved records the duration of one resolution.
func (m *Metrics) ResolveObserved(d time.Duration) {
	if m != nil {
		m.ResolveLatency.Observe(d.Seconds())
	}
}

// WriteTextfile writes the current values in the node exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
