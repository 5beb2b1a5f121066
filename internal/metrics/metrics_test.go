package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheus_Counters(t *testing.T) {
	p := NewPrometheus()

	p.PipelineOutcome("ok")
	p.PipelineOutcome("ok")
	p.PipelineOutcome("insufficient_funds")
	p.CreditsDebited("gpt-4o", 50)
	p.CreditsDebited("gpt-4o", 0)
	p.Reconciliation("unpriced_model")
	p.ProviderLatency("mock", 20*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(p.pipelineRequests.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.pipelineRequests.WithLabelValues("insufficient_funds")))
	assert.Equal(t, 50.0, testutil.ToFloat64(p.creditsDebited.WithLabelValues("gpt-4o")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.reconciliationItems.WithLabelValues("unpriced_model")))
}

func TestPrometheus_Handler(t *testing.T) {
	p := NewPrometheus()
	p.HTTPRequest("POST", "/v1/chat/completions", 200, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `gateway_http_requests_total{method="POST",path="/v1/chat/completions",status="200"} 1`)
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.PipelineOutcome("ok")
	r.CreditsDebited("m", 1)
}
