// Package metrics exposes Prometheus counters and histograms for the
// pipeline: requests handled, stage latency, guardrail verdicts, and
// handler invocations. Package-level vars registered against the default
// registry, with Record* helpers wrapping Inc/Observe, the same shape
// kubernaut's pkg/infrastructure/metrics uses.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "brain",
		Name:      "requests_total",
		Help:      "Inbound messages handled, by terminal outcome.",
	}, []string{"outcome"})

	RequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "brain",
		Name:      "request_duration_seconds",
		Help:      "End-to-end latency of one Handle call.",
		Buckets:   prometheus.DefBuckets,
	})

	GuardrailVerdictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "brain",
		Name:      "guardrail_verdicts_total",
		Help:      "Guardrail evaluations, by verdict.",
	}, []string{"verdict"})

	HandlerInvocationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "brain",
		Name:      "handler_invocations_total",
		Help:      "Capability handler invocations, by capability and success.",
	}, []string{"capability_id", "status"})

	HandlerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "brain",
		Name:      "handler_duration_seconds",
		Help:      "Capability handler execution time, by capability.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"capability_id"})

	AnnouncementsFiredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "brain",
		Name:      "announcements_fired_total",
		Help:      "Announcements fired by the scheduler, by skip reason (empty when actually sent).",
	}, []string{"skip_reason"})

	LLMCircuitBreakerTrips = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "brain",
		Name:      "llm_circuit_breaker_trips_total",
		Help:      "Times the LLM circuit breaker opened.",
	})
)

// RecordRequest records one completed Handle call.
func RecordRequest(outcome string, duration time.Duration) {
	RequestsTotal.WithLabelValues(outcome).Inc()
	RequestDuration.Observe(duration.Seconds())
}

// RecordGuardrailVerdict records one guardrail evaluation outcome.
func RecordGuardrailVerdict(verdict string) {
	GuardrailVerdictsTotal.WithLabelValues(verdict).Inc()
}

// RecordHandlerInvocation records one capability handler's outcome and duration.
func RecordHandlerInvocation(capabilityID, status string, duration time.Duration) {
	HandlerInvocationsTotal.WithLabelValues(capabilityID, status).Inc()
	HandlerDuration.WithLabelValues(capabilityID).Observe(duration.Seconds())
}

// RecordAnnouncementFired records one scheduler firing attempt. skipReason
// is empty when the announcement was actually delivered.
func RecordAnnouncementFired(skipReason string) {
	AnnouncementsFiredTotal.WithLabelValues(skipReason).Inc()
}

// RecordCircuitBreakerTrip records one LLM circuit breaker open transition.
func RecordCircuitBreakerTrip() {
	LLMCircuitBreakerTrips.Inc()
}
