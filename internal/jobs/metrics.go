package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for background jobs.
type Metrics struct {
	runs          *prometheus.CounterVec
	failures      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	transitioned  *prometheus.CounterVec
	skipped       *prometheus.CounterVec
	sweepFailures *prometheus.CounterVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the job metrics against the provided registerer. When the
// registerer is nil the default Prometheus registerer is used.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Tracker provides lifecycle instrumentation helpers for a single job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track spawns a tracker for the given job name.
func (m *Metrics) Track(job string) *Tracker {
	if m == nil {
		return &Tracker{job: job, start: time.Now()}
	}
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End finalises the tracker, recording duration, success/failure counts and
// returning the provided error untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
		t.metrics.failures.WithLabelValues(t.job).Inc()
	}
	t.metrics.runs.WithLabelValues(t.job, status).Inc()
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// ObserveSweep records the outcome of one document sweep.
func (m *Metrics) ObserveSweep(document string, transitioned, skipped, failed int) {
	if m == nil {
		return
	}
	if transitioned > 0 {
		m.transitioned.WithLabelValues(document).Add(float64(transitioned))
	}
	if skipped > 0 {
		m.skipped.WithLabelValues(document).Add(float64(skipped))
	}
	if failed > 0 {
		m.sweepFailures.WithLabelValues(document).Add(float64(failed))
	}
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backoffice_jobs_total",
		Help: "Total job executions partitioned by job name and status.",
	}, []string{"job", "status"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backoffice_jobs_failures_total",
		Help: "Total failures observed for background jobs.",
	}, []string{"job"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "backoffice_job_duration_seconds",
		Help:    "Duration in seconds of background job executions.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	transitioned := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backoffice_sweep_transitioned_total",
		Help: "Documents moved by the expiry reconciliation sweep.",
	}, []string{"document"})
	skipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backoffice_sweep_skipped_total",
		Help: "Sweep candidates that changed state before they could be moved.",
	}, []string{"document"})
	sweepFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backoffice_sweep_failures_total",
		Help: "Documents the expiry reconciliation sweep failed to move.",
	}, []string{"document"})
	registerer.MustRegister(runs, failures, duration, transitioned, skipped, sweepFailures)
	return &Metrics{
		runs:          runs,
		failures:      failures,
		duration:      duration,
		transitioned:  transitioned,
		skipped:       skipped,
		sweepFailures: sweepFailures,
	}
}

// Transitioned exposes the transitioned counter for document.
func (m *Metrics) Transitioned(document string) prometheus.Counter {
	return m.transitioned.WithLabelValues(document)
}

// SweepFailures exposes the sweep failure counter for document.
func (m *Metrics) SweepFailures(document string) prometheus.Counter {
	return m.sweepFailures.WithLabelValues(document)
}
