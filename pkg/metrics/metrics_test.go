package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordRequest(t *testing.T) {
	initial := testutil.ToFloat64(RequestsTotal.WithLabelValues("handled"))
	RecordRequest("handled", 10*time.Millisecond)
	assert.Equal(t, initial+1, testutil.ToFloat64(RequestsTotal.WithLabelValues("handled")))
}

func TestRecordGuardrailVerdict(t *testing.T) {
	initial := testutil.ToFloat64(GuardrailVerdictsTotal.WithLabelValues("blocked"))
	RecordGuardrailVerdict("blocked")
	assert.Equal(t, initial+1, testutil.ToFloat64(GuardrailVerdictsTotal.WithLabelValues("blocked")))
}

func TestRecordHandlerInvocation(t *testing.T) {
	initial := testutil.ToFloat64(HandlerInvocationsTotal.WithLabelValues("task_create", "ok"))
	RecordHandlerInvocation("task_create", "ok", 5*time.Millisecond)
	assert.Equal(t, initial+1, testutil.ToFloat64(HandlerInvocationsTotal.WithLabelValues("task_create", "ok")))
}

func TestRecordAnnouncementFired(t *testing.T) {
	initial := testutil.ToFloat64(AnnouncementsFiredTotal.WithLabelValues(""))
	RecordAnnouncementFired("")
	assert.Equal(t, initial+1, testutil.ToFloat64(AnnouncementsFiredTotal.WithLabelValues("")))
}

func TestRecordCircuitBreakerTrip(t *testing.T) {
	initial := testutil.ToFloat64(LLMCircuitBreakerTrips)
	RecordCircuitBreakerTrip()
	assert.Equal(t, initial+1, testutil.ToFloat64(LLMCircuitBreakerTrips))
}
