package sas7bdat

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus metrics of an Extractor.
type Metrics struct {
	Passes       *prometheus.CounterVec
	RowsEmitted  prometheus.Counter
	PassDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers the extraction metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	passes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sas7bdat_decode_passes_total",
		Help: "Decode passes run, by mode and outcome",
	}, []string{"mode", "outcome"})

	rows := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sas7bdat_rows_emitted_total",
		Help: "Rows returned by full-data extractions",
	})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sas7bdat_decode_pass_duration_seconds",
		Help:    "Duration of decode passes",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{"mode"})

	reg.MustRegister(passes, rows, duration)

	return &Metrics{
		Passes:       passes,
		RowsEmitted:  rows,
		PassDuration: duration,
	}
}

func (m *Metrics) observe(mode passMode, outcome string, rows int, took time.Duration) {
	if m == nil {
		return
	}
	m.Passes.WithLabelValues(mode.String(), outcome).Inc()
	m.PassDuration.WithLabelValues(mode.String()).Observe(took.Seconds())
	if rows > 0 {
		m.RowsEmitted.Add(float64(rows))
	}
}
