package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	BatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_batches_total",
			Help: "Total number of inbound batches handled (count)",
		},
		[]string{"trigger"},
	)

	BatchProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_batch_duration_ms",
			Help:    "End-to-end duration of one pipeline invocation in milliseconds",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"trigger"},
	)

	MessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_messages_total",
			Help: "Total number of inbound messages by processing outcome (count)",
		},
		[]string{"status"},
	)

	EventsMappedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_events_mapped_total",
			Help: "Total number of canonical events produced by type (count)",
		},
		[]string{"type"},
	)

	GroupsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_groups_published_total",
			Help: "Total number of message groups submitted to the stream by status (count)",
		},
		[]string{"status"},
	)

	PublishRetryAttemptsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_publish_retry_attempts_total",
			Help: "Total number of repeated group write attempts (count)",
		},
	)

	StreamWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_stream_write_duration_ms",
			Help:    "Duration of one batch write to the outbound stream in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		},
		[]string{"backend", "stream"},
	)

	StreamRecordsWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_stream_records_written_total",
			Help: "Total number of records written to the outbound stream (count)",
		},
		[]string{"backend", "stream", "status"},
	)

	RedeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_redeliveries_total",
			Help: "Total number of inbound messages re-enqueued for retry (count)",
		},
		[]string{"topic"},
	)

	DLQMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_dlq_messages_total",
			Help: "Total number of inbound messages sent to DLQ (count)",
		},
		[]string{"topic", "reason"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)
)

func RegisterPipelineMetrics() {
	prometheus.MustRegister(BatchesTotal)
	prometheus.MustRegister(BatchProcessingDuration)
	prometheus.MustRegister(MessagesTotal)
	prometheus.MustRegister(EventsMappedTotal)
	prometheus.MustRegister(GroupsPublishedTotal)
	prometheus.MustRegister(PublishRetryAttemptsTotal)
}

func RegisterStreamMetrics() {
	prometheus.MustRegister(StreamWriteDuration)
	prometheus.MustRegister(StreamRecordsWrittenTotal)
}

func RegisterSourceMetrics() {
	prometheus.MustRegister(RedeliveriesTotal)
	prometheus.MustRegister(DLQMessagesTotal)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerRequests)
	prometheus.MustRegister(CircuitBreakerFailures)
}

func RegisterAPIMetrics() {
	prometheus.MustRegister(RateLimitRequestsTotal)
}

func ObserveBatchDuration(trigger string, duration time.Duration) {
	BatchProcessingDuration.WithLabelValues(trigger).Observe(float64(duration.Milliseconds()))
}

func IncMessages(status string) {
	MessagesTotal.WithLabelValues(status).Inc()
}

func IncEventsMapped(eventType string) {
	EventsMappedTotal.WithLabelValues(eventType).Inc()
}

func IncGroupsPublished(status string) {
	GroupsPublishedTotal.WithLabelValues(status).Inc()
}

func ObserveStreamWrite(backend, stream string, duration time.Duration, written, failed int) {
	StreamWriteDuration.WithLabelValues(backend, stream).Observe(float64(duration.Milliseconds()))
	if written > 0 {
		StreamRecordsWrittenTotal.WithLabelValues(backend, stream, "success").Add(float64(written))
	}
	if failed > 0 {
		StreamRecordsWrittenTotal.WithLabelValues(backend, stream, "failed").Add(float64(failed))
	}
}
