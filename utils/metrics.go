package utils

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Unit outcomes recorded by Metrics.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Metrics counts unit outcomes of a run in a private registry so batch runs
// can drop them into a node_exporter textfile directory.
type Metrics struct {
	Registry *prometheus.Registry

	units    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	merged   *prometheus.GaugeVec
}

// NewMetrics registers the run metrics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		units: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "linemapper_units_total",
			Help: "Processed units by tool and outcome.",
		}, []string{"tool", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "linemapper_unit_duration_seconds",
			Help:    "Wall time of one unit pipeline.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"tool"}),
		merged: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "linemapper_merged_outputs",
			Help: "Per-unit outputs merged into the final result of the last run.",
		}, []string{"tool"}),
	}
}

// ObserveUnit records the outcome of one unit.
func (m *Metrics) ObserveUnit(tool string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusFailed
	}
	m.units.WithLabelValues(tool, status).Inc()
	m.duration.WithLabelValues(tool).Observe(elapsed.Seconds())
}

// SetMerged records how many unit outputs the merger consumed.
func (m *Metrics) SetMerged(tool string, count int) {
	if m == nil {
		return
	}
	m.merged.WithLabelValues(tool).Set(float64(count))
}

// Units returns the counter for a tool and status, for reporting and tests.
func (m *Metrics) Units(tool string, status string) prometheus.Counter {
	return m.units.WithLabelValues(tool, status)
}

// WriteTextfile writes the registry in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("failed to write metrics %s: %w", path, err)
	}
	return nil
}
