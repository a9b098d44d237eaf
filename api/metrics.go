package api

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/warp/attendance-engine/attendance"
)

// Metrics holds the Prometheus collectors exposed on /metrics.
type Metrics struct {
	Runs         *prometheus.CounterVec
	Anomalies    *prometheus.CounterVec
	Warnings     prometheus.Counter
	RunDuration  prometheus.Histogram
	JobsInFlight prometheus.Gauge
	SessionDays  prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_runs_total",
			Help: "Reconciliation runs by outcome",
		}, []string{"status"}),
		Anomalies: f.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_anomalies_total",
			Help: "Anomalies detected by kind",
		}, []string{"kind"}),
		Warnings: f.NewCounter(prometheus.CounterOpts{
			Name: "attendance_warnings_total",
			Help: "Recoverable problems reported by runs",
		}),
		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "attendance_run_duration_seconds",
			Help:    "Time from job start to finished reports",
			Buckets: prometheus.DefBuckets,
		}),
		JobsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "attendance_jobs_in_flight",
			Help: "Jobs queued or running",
		}),
		SessionDays: f.NewGauge(prometheus.GaugeOpts{
			Name: "attendance_session_days",
			Help: "Days held in the current session",
		}),
	}
}

// ObserveRun records one finished run. result is nil for failed runs.
func (m *Metrics) ObserveRun(run attendance.Run, result *attendance.DayResult, took time.Duration) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(string(run.Status)).Inc()
	m.RunDuration.Observe(took.Seconds())
	if result == nil {
		return
	}
	m.Warnings.Add(float64(len(result.Warnings)))
	for _, a := range result.Anomalies {
		m.Anomalies.WithLabelValues(string(a.Kind)).Inc()
	}
}

func (m *Metrics) setSessionDays(n int) {
	if m != nil {
		m.SessionDays.Set(float64(n))
	}
}
