package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RemoteOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "remote_op_duration_seconds",
			Help:    "Remote store operation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation", "table"},
	)

	CacheFallbackCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_fallback_count",
			Help: "Total number of operations served from the local cache because the remote store was unavailable",
		},
		[]string{"operation", "table"},
	)

	RefetchCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refetch_count",
			Help: "Total number of full collection refetches",
		},
		[]string{"table", "trigger"}, // trigger: invalidation, mutation, startup
	)

	OutboxFlushCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_flush_count",
			Help: "Total number of local-only mutations replayed against the remote store",
		},
		[]string{"table", "status"}, // status: success, failed
	)

	RolloverCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rollover_count",
			Help: "Total number of monthly lifecycle rollovers",
		},
		[]string{"status"}, // status: performed, noop, failed
	)

	AgentCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agent_call_latency_ms",
			Help:    "Agent service call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(100, 2, 10), // 100ms to ~100s
		},
		[]string{"endpoint", "status"},
	)
)

// RecordRemoteOp records the duration of one remote store operation.
func RecordRemoteOp(operation, table string, duration time.Duration) {
	RemoteOpDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// IncrementCacheFallback counts a degraded, cache-served operation.
func IncrementCacheFallback(operation, table string) {
	CacheFallbackCount.WithLabelValues(operation, table).Inc()
}

// IncrementRefetch counts one full collection refetch.
func IncrementRefetch(table, trigger string) {
	RefetchCount.WithLabelValues(table, trigger).Inc()
}

// IncrementOutboxFlush counts one replayed local-only mutation.
func IncrementOutboxFlush(table, status string) {
	OutboxFlushCount.WithLabelValues(table, status).Inc()
}

// IncrementRollover counts one lifecycle check outcome.
func IncrementRollover(status string) {
	RolloverCount.WithLabelValues(status).Inc()
}

// RecordAgentCallLatency records an agent service call.
func RecordAgentCallLatency(endpoint, status string, duration time.Duration) {
	AgentCallLatency.WithLabelValues(endpoint, status).Observe(float64(duration.Milliseconds()))
}
