// Package metrics provides Prometheus metrics for devterm. A CLI process has
// no scrape endpoint, so the registry is exported as a node-exporter textfile.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for devterm.
type Metrics struct {
	IntentsTotal     *prometheus.CounterVec
	IntentDuration   *prometheus.HistogramVec
	PipelinesTotal   *prometheus.CounterVec
	SelfUpdatesTotal *prometheus.CounterVec
	BusyRejections   prometheus.Counter

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		IntentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devterm_intents_total",
				Help: "Total number of executed intents by intent and outcome status.",
			},
			[]string{"intent", "status"},
		),
		IntentDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "devterm_intent_duration_seconds",
				Help:    "Intent execution duration by intent.",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 180, 600, 1800},
			},
			[]string{"intent"},
		),
		PipelinesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devterm_pipelines_total",
				Help: "Total number of pipelines by name and result.",
			},
			[]string{"pipeline", "result"},
		),
		SelfUpdatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devterm_self_updates_total",
				Help: "Total number of self-update sessions by terminal phase.",
			},
			[]string{"phase"},
		),
		BusyRejections: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "devterm_busy_rejections_total",
				Help: "Operations refused because their target was busy.",
			},
		),
		registry: reg,
	}

	reg.MustRegister(m.IntentsTotal)
	reg.MustRegister(m.IntentDuration)
	reg.MustRegister(m.PipelinesTotal)
	reg.MustRegister(m.SelfUpdatesTotal)
	reg.MustRegister(m.BusyRejections)

	return m
}

// RecordIntent counts an executed intent and observes its duration.
func (m *Metrics) RecordIntent(intent, status string, d time.Duration) {
	m.IntentsTotal.WithLabelValues(intent, status).Inc()
	m.IntentDuration.WithLabelValues(intent).Observe(d.Seconds())
}

// RecordPipeline increments the pipeline counter.
func (m *Metrics) RecordPipeline(pipeline, result string) {
	m.PipelinesTotal.WithLabelValues(pipeline, result).Inc()
}

// RecordSelfUpdate increments the self-update counter for a terminal phase.
func (m *Metrics) RecordSelfUpdate(phase string) {
	m.SelfUpdatesTotal.WithLabelValues(phase).Inc()
}

// RecordBusy increments the busy rejection counter.
func (m *Metrics) RecordBusy() {
	m.BusyRejections.Inc()
}

// WriteTextfile writes the registry in text exposition format to path,
// creating parent directories. The write is atomic.
func (m *Metrics) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
