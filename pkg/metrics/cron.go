package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "chronicle"

// CronJobMetrics records run time, outcome and last success per cron job.
// The last-success gauge is what alerting watches for a stalled weekly job.
type CronJobMetrics struct {
	duration    *prometheus.HistogramVec
	runs        *prometheus.CounterVec
	lastSuccess *prometheus.GaugeVec
	now         func() time.Time
}

// NewCronJobMetrics registers on reg; a nil reg yields a no-op recorder.
func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	m := &CronJobMetrics{now: time.Now}
	if reg == nil {
		return m
	}
	m.duration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "cron",
		Name:      "job_duration_seconds",
		Help:      "Duration of cron jobs in seconds.",
		Buckets:   []float64{.05, .25, 1, 5, 30, 120, 600},
	}, []string{"job"})
	m.runs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cron",
		Name:      "job_runs_total",
		Help:      "Cron job executions by result.",
	}, []string{"job", "result"})
	m.lastSuccess = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "cron",
		Name:      "job_last_success_timestamp_seconds",
		Help:      "Unix time of the last successful run of each cron job.",
	}, []string{"job"})
	reg.MustRegister(m.duration, m.runs, m.lastSuccess)
	return m
}

func (c *CronJobMetrics) ObserveDuration(job string, d time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(labelOrUnknown(job)).Observe(d.Seconds())
}

func (c *CronJobMetrics) IncSuccess(job string) {
	if c == nil || c.runs == nil {
		return
	}
	c.runs.WithLabelValues(labelOrUnknown(job), OutcomeSuccess).Inc()
	c.lastSuccess.WithLabelValues(labelOrUnknown(job)).Set(float64(c.now().Unix()))
}

func (c *CronJobMetrics) IncFailure(job string) {
	if c == nil || c.runs == nil {
		return
	}
	c.runs.WithLabelValues(labelOrUnknown(job), OutcomeError).Inc()
}
