package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// LedgerMetrics tracks ledger mutations by operation and outcome.
type LedgerMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	lockWait   prometheus.Histogram
}

// NewLedgerMetrics registers the ledger metrics on reg. A nil registerer
// yields a no-op recorder.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "operations_total",
		Help:      "Ledger operations by outcome.",
	}, []string{"op", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "operation_duration_seconds",
		Help:      "Duration of ledger operations in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})
	lockWait := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "lock_wait_seconds",
		Help:      "Time spent waiting for ledger locks.",
		Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 2.5, 5},
	})
	reg.MustRegister(operations, duration, lockWait)
	return &LedgerMetrics{
		operations: operations,
		duration:   duration,
		lockWait:   lockWait,
	}
}

// Observe records one finished operation.
func (m *LedgerMetrics) Observe(op, outcome string, d time.Duration) {
	if m == nil || m.operations == nil {
		return
	}
	op = labelOrUnknown(op)
	m.operations.WithLabelValues(op, labelOrUnknown(outcome)).Inc()
	m.duration.WithLabelValues(op).Observe(d.Seconds())
}

// ObserveLockWait records how long lock acquisition took.
func (m *LedgerMetrics) ObserveLockWait(d time.Duration) {
	if m == nil || m.lockWait == nil {
		return
	}
	m.lockWait.Observe(d.Seconds())
}

// OutboxMetrics counts publisher results per event type.
type OutboxMetrics struct {
	published *prometheus.CounterVec
	failed    *prometheus.CounterVec
	dlq       *prometheus.CounterVec
}

// NewOutboxMetrics registers the outbox publisher metrics on reg.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "outbox",
		Name:      "published_total",
		Help:      "Outbox events delivered to NATS.",
	}, []string{"event_type"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "outbox",
		Name:      "failed_total",
		Help:      "Outbox publish attempts that failed and will be retried.",
	}, []string{"event_type"})
	dlq := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "outbox",
		Name:      "dlq_total",
		Help:      "Outbox events moved to the dead letter table.",
	}, []string{"event_type"})
	reg.MustRegister(published, failed, dlq)
	return &OutboxMetrics{published: published, failed: failed, dlq: dlq}
}

func (m *OutboxMetrics) IncPublished(eventType string) {
	if m == nil || m.published == nil {
		return
	}
	m.published.WithLabelValues(labelOrUnknown(eventType)).Inc()
}

func (m *OutboxMetrics) IncFailed(eventType string) {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.WithLabelValues(labelOrUnknown(eventType)).Inc()
}

func (m *OutboxMetrics) IncDLQ(eventType string) {
	if m == nil || m.dlq == nil {
		return
	}
	m.dlq.WithLabelValues(labelOrUnknown(eventType)).Inc()
}

func labelOrUnknown(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
