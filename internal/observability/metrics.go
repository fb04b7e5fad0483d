package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis errors by operation type.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "promptguard_redis_errors_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// ContentChecksTotal counts matcher passes by outcome (clean/flagged).
	ContentChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "promptguard_content_checks_total",
		Help: "Total number of content checks by outcome",
	}, []string{"outcome"})

	// ViolationsRecordedTotal counts persisted violations by severity and action.
	ViolationsRecordedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "promptguard_violations_recorded_total",
		Help: "Total number of violations recorded by severity and action",
	}, []string{"severity", "action"})

	// HistoryFailOpenTotal counts history lookups that degraded to allow
	// because the ledger was unreachable. A nonzero rate here means the
	// fail-open tradeoff is actively letting flagged users through.
	HistoryFailOpenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "promptguard_history_fail_open_total",
		Help: "Total number of user-history checks that failed open",
	})

	// LedgerQueryLatency records ledger query latency by operation.
	LedgerQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "promptguard_ledger_query_latency_seconds",
		Help:    "Ledger query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
)

// ObserveLedgerQuery records the latency of a ledger query started at start.
func ObserveLedgerQuery(operation string, start time.Time) {
	LedgerQueryLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// RecordCheck increments the content-check counter for the outcome.
func RecordCheck(inappropriate bool) {
	outcome := "clean"
	if inappropriate {
		outcome = "flagged"
	}
	ContentChecksTotal.WithLabelValues(outcome).Inc()
}

// RecordViolation increments the recorded-violation counter.
func RecordViolation(severity, action string) {
	ViolationsRecordedTotal.WithLabelValues(severity, action).Inc()
}
