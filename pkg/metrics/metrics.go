// Package metrics collects per-run Prometheus metrics: outcomes by
// category, open sessions and device durations. A run ends by writing the
// registry to a node_exporter textfile.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fireblade-network/fireblade/pkg/fireblade/outcome"
	"github.com/fireblade-network/fireblade/pkg/version"
)

// Metrics is safe to use through a nil pointer; every method is then a no-op.
type Metrics struct {
	registry       *prometheus.Registry
	outcomes       *prometheus.CounterVec
	openSessions   prometheus.Gauge
	deviceDuration *prometheus.HistogramVec
	runDuration    prometheus.Histogram
	lastRun        prometheus.Gauge
}

// New creates a fresh registry with fireblade metrics registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fireblade",
		Name:      "device_outcomes_total",
		Help:      "Device outcomes by operation and category",
	}, []string{"operation", "category"})

	openSessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fireblade",
		Name:      "open_sessions",
		Help:      "Device sessions currently open",
	})

	deviceDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fireblade",
		Name:      "device_duration_seconds",
		Help:      "Time from session open to outcome per device",
		Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200, 2400},
	}, []string{"operation"})

	runDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fireblade",
		Name:      "run_duration_seconds",
		Help:      "Duration of fleet runs from start to finish",
		Buckets:   []float64{10, 30, 60, 300, 600, 1200, 3600, 7200},
	})

	lastRun := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fireblade",
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time the last run finished",
	})

	buildInfo := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   "fireblade",
		Name:        "build_info",
		Help:        "Build of the fireblade binary that wrote these metrics",
		ConstLabels: prometheus.Labels{"version": version.Short()},
	})
	buildInfo.Set(1)

	registry.MustRegister(outcomes, openSessions, deviceDuration, runDuration, lastRun, buildInfo)

	return &Metrics{
		registry:       registry,
		outcomes:       outcomes,
		openSessions:   openSessions,
		deviceDuration: deviceDuration,
		runDuration:    runDuration,
		lastRun:        lastRun,
	}
}

// SessionOpened increments the open session gauge.
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.openSessions.Inc()
}

// SessionClosed decrements the open session gauge.
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.openSessions.Dec()
}

// ObserveOutcome counts o and records its duration.
func (m *Metrics) ObserveOutcome(operation string, o outcome.Outcome) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(operation, string(o.Category)).Inc()
	m.deviceDuration.WithLabelValues(operation).Observe(o.Duration.Seconds())
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(duration time.Duration) {
	if m == nil {
		return
	}
	m.runDuration.Observe(duration.Seconds())
	m.lastRun.SetToCurrentTime()
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// WriteTextfile writes all metrics in text exposition format to path,
// atomically, for the node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}

// Sink counts outcomes as they are collected.
type Sink struct {
	Metrics   *Metrics
	Operation string
}

// Write records o.
func (s *Sink) Write(o outcome.Outcome) error {
	s.Metrics.ObserveOutcome(s.Operation, o)
	return nil
}
