package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BuildMetrics records dashboard build stages, ingested rows and failures.
type BuildMetrics struct {
	duration *prometheus.HistogramVec
	rows     *prometheus.CounterVec
	failure  *prometheus.CounterVec
}

// NewBuildMetrics registers the build metrics on the provided registerer.
func NewBuildMetrics(reg prometheus.Registerer) *BuildMetrics {
	if reg == nil {
		return &BuildMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rfm_build_stage_duration_seconds",
		Help:    "Duration of dashboard build stages in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})
	rows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rfm_rows_ingested_total",
		Help: "Rows read from the dataset source.",
	}, []string{"table"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rfm_build_failure_total",
		Help: "Failed dashboard builds by reason.",
	}, []string{"reason"})
	reg.MustRegister(duration, rows, failure)
	return &BuildMetrics{
		duration: duration,
		rows:     rows,
		failure:  failure,
	}
}

// ObserveStage records the duration of the named stage.
func (m *BuildMetrics) ObserveStage(stage string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(stage)).Observe(duration.Seconds())
}

// AddRows increments the ingested row counter for the named table.
func (m *BuildMetrics) AddRows(table string, n int) {
	if m == nil || m.rows == nil || n <= 0 {
		return
	}
	m.rows.WithLabelValues(normalizeLabel(table)).Add(float64(n))
}

// IncFailure increments the failure counter for the given reason.
func (m *BuildMetrics) IncFailure(reason string) {
	if m == nil || m.failure == nil {
		return
	}
	m.failure.WithLabelValues(normalizeLabel(reason)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
