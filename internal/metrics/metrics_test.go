package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.EventIngested("stripe", "webhook", OutcomeStored)
	m.EventIngested("stripe", "webhook", OutcomeDuplicate)
	m.EventIngested("stripe", "webhook", OutcomeDuplicate)
	m.SyncFinished("shopify", true, 120*time.Millisecond)
	m.SyncRejected("shopify")
	m.WebhookRequest("stripe", http.StatusAccepted)
	m.RenderCache(true)
	m.SetQueueDepth(7)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.eventsIngested.WithLabelValues("stripe", "webhook", OutcomeDuplicate)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.syncRuns.WithLabelValues("shopify", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.syncRuns.WithLabelValues("shopify", "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.webhookRequests.WithLabelValues("stripe", "202")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.queueDepth))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.EventIngested("stripe", "poll", OutcomeError)
		m.SyncFinished("stripe", false, time.Second)
		m.RenderCache(false)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.SyncRejected("stripe")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.True(t, strings.Contains(string(body), `socialproof_sync_runs_total{provider="stripe",result="rejected"} 1`))
}
