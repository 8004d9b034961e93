package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Run outcomes used as the status label.
const (
	StatusPublished   = "published"
	StatusFormatError = "format_error"
	StatusTransport   = "transport_error"
	StatusFailed      = "failed"
)

type Metrics struct {
	rowsLoaded     prometheus.Counter
	recordsEmitted *prometheus.CounterVec
	runsTotal      *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		rowsLoaded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tsvhub_rows_loaded_total",
				Help: "Rows read from input files",
			},
		),
		recordsEmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tsvhub_records_emitted_total",
				Help: "Conversation records produced, by destination",
			},
			[]string{"sink"},
		),
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tsvhub_runs_total",
				Help: "Pipeline runs by outcome",
			},
			[]string{"status"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tsvhub_stage_duration_seconds",
				Help:    "Time spent per pipeline stage",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
	}

	reg.MustRegister(m.rowsLoaded, m.recordsEmitted, m.runsTotal, m.stageDuration)
	return m
}

func (m *Metrics) RowsLoaded(n int) {
	m.rowsLoaded.Add(float64(n))
}

// RecordsEmitted counts records handed to a sink ("hub", "api", "stdout").
func (m *Metrics) RecordsEmitted(sink string, n int) {
	m.recordsEmitted.WithLabelValues(sink).Add(float64(n))
}

func (m *Metrics) Run(status string) {
	m.runsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}
