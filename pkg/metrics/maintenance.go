package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "register"

// MaintenanceMetrics records the outcome of scheduled maintenance jobs.
type MaintenanceMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
}

// NewMaintenanceMetrics registers the maintenance job metrics on the provided registerer.
func NewMaintenanceMetrics(reg prometheus.Registerer) *MaintenanceMetrics {
	if reg == nil {
		return &MaintenanceMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "maintenance_job_duration_seconds",
		Help:      "Duration of maintenance jobs in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"job"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "maintenance_job_success_total",
		Help:      "Successful maintenance job executions.",
	}, []string{"job"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "maintenance_job_failure_total",
		Help:      "Failed maintenance job executions.",
	}, []string{"job"})
	reg.MustRegister(duration, success, failure)
	return &MaintenanceMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
	}
}

// ObserveDuration records the duration for the named job.
func (c *MaintenanceMetrics) ObserveDuration(job string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named job.
func (c *MaintenanceMetrics) IncSuccess(job string) {
	if c == nil || c.success == nil {
		return
	}
	c.success.WithLabelValues(normalizeLabel(job)).Inc()
}

// IncFailure increments the failure counter for the named job.
func (c *MaintenanceMetrics) IncFailure(job string) {
	if c == nil || c.failure == nil {
		return
	}
	c.failure.WithLabelValues(normalizeLabel(job)).Inc()
}

func normalizeLabel(job string) string {
	if job == "" {
		return "unknown"
	}
	return job
}
