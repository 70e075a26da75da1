// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Ingest outcomes for a single raw event.
const (
	OutcomeStored    = "stored"
	OutcomeDuplicate = "duplicate"
	OutcomeError     = "error"
)

// Metrics is safe for concurrent use. A nil *Metrics records nothing, so
// components can be built without one in tests.
type Metrics struct {
	registry *prometheus.Registry

	eventsIngested  *prometheus.CounterVec
	syncRuns        *prometheus.CounterVec
	syncDuration    *prometheus.HistogramVec
	webhookRequests *prometheus.CounterVec
	renderCache     *prometheus.CounterVec
	queueDepth      prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		eventsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "socialproof",
			Name:      "events_ingested_total",
			Help:      "Raw provider events processed, by ingestion mode and outcome",
		}, []string{"provider", "mode", "outcome"}),
		syncRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "socialproof",
			Name:      "sync_runs_total",
			Help:      "Polling syncs by result",
		}, []string{"provider", "result"}),
		syncDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "socialproof",
			Name:      "sync_duration_seconds",
			Help:      "Time spent in a polling sync",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		webhookRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "socialproof",
			Name:      "webhook_requests_total",
			Help:      "Inbound webhook calls by HTTP status",
		}, []string{"provider", "code"}),
		renderCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "socialproof",
			Name:      "render_cache_requests_total",
			Help:      "Rendered-event cache lookups",
		}, []string{"result"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "socialproof",
			Name:      "sync_queue_depth",
			Help:      "Connectors waiting in the sync queue",
		}),
	}
	m.registry.MustRegister(
		m.eventsIngested, m.syncRuns, m.syncDuration,
		m.webhookRequests, m.renderCache, m.queueDepth,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) EventIngested(provider, mode, outcome string) {
	if m == nil {
		return
	}
	m.eventsIngested.WithLabelValues(provider, mode, outcome).Inc()
}

func (m *Metrics) SyncFinished(provider string, success bool, took time.Duration) {
	if m == nil {
		return
	}
	result := "failure"
	if success {
		result = "success"
	}
	m.syncRuns.WithLabelValues(provider, result).Inc()
	m.syncDuration.WithLabelValues(provider).Observe(took.Seconds())
}

// SyncRejected counts syncs that never started (already running, throttled).
func (m *Metrics) SyncRejected(provider string) {
	if m == nil {
		return
	}
	m.syncRuns.WithLabelValues(provider, "rejected").Inc()
}

func (m *Metrics) WebhookRequest(provider string, code int) {
	if m == nil {
		return
	}
	m.webhookRequests.WithLabelValues(provider, strconv.Itoa(code)).Inc()
}

func (m *Metrics) RenderCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.renderCache.WithLabelValues("hit").Inc()
		return
	}
	m.renderCache.WithLabelValues("miss").Inc()
}

func (m *Metrics) SetQueueDepth(n int64) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}
