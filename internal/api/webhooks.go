package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tidwall/gjson"

	"github.com/Priya8975/socialproof-pipeline/internal/adapter"
	"github.com/Priya8975/socialproof-pipeline/internal/engine"
	"github.com/Priya8975/socialproof-pipeline/internal/ingest"
	"github.com/Priya8975/socialproof-pipeline/internal/metrics"
)

// ConnectorHeader names the connector a webhook belongs to when the
// provider cannot put it in the URL.
const ConnectorHeader = "X-Connector-ID"

type WebhookHandler struct {
	service  *ingest.Service
	registry *adapter.Registry
	limiter  *engine.RateLimiter
	limit    int
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewWebhookHandler(service *ingest.Service, registry *adapter.Registry, limiter *engine.RateLimiter, limit int, m *metrics.Metrics, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		service:  service,
		registry: registry,
		limiter:  limiter,
		limit:    limit,
		metrics:  m,
		logger:   logger,
	}
}

// Receive accepts one pushed provider event. A new event answers 202, a
// redelivered one 200.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "provider")
	label := "unknown"
	if a, ok := h.registry.Get(providerID); ok {
		label = a.Provider()
	}
	reply := func(status int, v any) {
		h.metrics.WebhookRequest(label, status)
		respondJSON(w, status, v)
	}

	body, err := readBody(w, r)
	if err != nil {
		reply(http.StatusRequestEntityTooLarge, errorResponse{Error: err.Error()})
		return
	}

	ref := connectorRef(r, body)
	if h.limiter != nil && !h.limiter.Allow(r.Context(), rateKey(label, ref), h.limit) {
		reply(http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
		return
	}

	res, err := h.service.ReceiveWebhook(r.Context(), providerID, ref, body)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("webhook ingestion failed", "provider", label, "connector_id", ref.ConnectorID, "error", err)
		} else {
			h.logger.Warn("webhook rejected", "provider", label, "connector_id", ref.ConnectorID, "error", err)
		}
		reply(status, errorResponse{Error: errorMessage(status, err, "failed to store event")})
		return
	}

	if !res.Stored {
		reply(http.StatusOK, res)
		return
	}
	reply(http.StatusAccepted, res)
}

// connectorRef finds the target connector: query string first, then the
// header, then well-known body fields.
func connectorRef(r *http.Request, body []byte) ingest.ConnectorRef {
	if id := r.URL.Query().Get("connector_id"); id != "" {
		return ingest.ConnectorRef{ConnectorID: id}
	}
	if id := r.Header.Get(ConnectorHeader); id != "" {
		return ingest.ConnectorRef{ConnectorID: id}
	}
	fields := gjson.GetManyBytes(body, "connector_id", "user_id")
	return ingest.ConnectorRef{ConnectorID: fields[0].String(), UserID: fields[1].String()}
}

func rateKey(provider string, ref ingest.ConnectorRef) string {
	if ref.ConnectorID != "" {
		return ref.ConnectorID
	}
	return provider + ":" + ref.UserID
}
