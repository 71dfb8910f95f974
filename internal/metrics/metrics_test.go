package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/captvenkat/faujnet-backend/internal/core"
)

func TestRecorderCountsDecisions(t *testing.T) {
	r := NewRecorder()
	d := &core.Decision{Action: core.ActionSilence, Reason: core.ReasonRateLimited}

	r.ObserveDecision(core.EventAsk, d, 3*time.Millisecond)
	r.ObserveDecision(core.EventAsk, d, 5*time.Millisecond)
	r.ObserveDecision(core.EventSubmit, &core.Decision{Action: core.ActionAccepted, Reason: core.ReasonAccepted}, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.decisions.WithLabelValues("ASK", "SILENCE", "RATE_LIMITED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.decisions.WithLabelValues("SUBMIT", "ACCEPTED", "ACCEPTED")))
	assert.Equal(t, 2, testutil.CollectAndCount(r.decisionDuration))
}

func TestRecorderHandlerExposesMetrics(t *testing.T) {
	r := NewRecorder()
	r.ObserveDelivery("smtp", "success")
	r.ObserveInboundRejected("unknown_recipient")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `faujnet_delivery_total{mode="smtp",status="success"} 1`)
	assert.Contains(t, string(body), `faujnet_inbound_rejected_total{reason="unknown_recipient"} 1`)
}
