package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Priya8975/socialproof-pipeline/internal/domain"
	"github.com/Priya8975/socialproof-pipeline/internal/engine"
	"github.com/Priya8975/socialproof-pipeline/internal/ingest"
)

type ConnectorHandler struct {
	service *ingest.Service
	breaker *engine.CircuitBreaker
	queue   *engine.SyncQueue
	logger  *slog.Logger
}

func NewConnectorHandler(service *ingest.Service, breaker *engine.CircuitBreaker, queue *engine.SyncQueue, logger *slog.Logger) *ConnectorHandler {
	return &ConnectorHandler{service: service, breaker: breaker, queue: queue, logger: logger}
}

type registerConnectorRequest struct {
	ID           string              `json:"id"`
	Provider     string              `json:"provider"`
	UserID       string              `json:"user_id"`
	BaseURL      string              `json:"base_url"`
	APIKey       string              `json:"api_key"`
	PollInterval string              `json:"poll_interval"`
	Rules        []domain.ActionRule `json:"rules"`
}

func (h *ConnectorHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerConnectorRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Provider == "" {
		respondError(w, http.StatusBadRequest, "provider is required")
		return
	}

	var interval time.Duration
	if req.PollInterval != "" {
		d, err := time.ParseDuration(req.PollInterval)
		if err != nil || d <= 0 {
			respondError(w, http.StatusBadRequest, "poll_interval must be a positive duration like 5m")
			return
		}
		interval = d
	}

	c, created, err := h.service.RegisterConnector(r.Context(), domain.Connector{
		ID:           req.ID,
		Provider:     req.Provider,
		UserID:       req.UserID,
		BaseURL:      req.BaseURL,
		APIKey:       req.APIKey,
		PollInterval: interval,
		Rules:        req.Rules,
	})
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("registering connector failed", "provider", req.Provider, "error", err)
		}
		respondError(w, status, errorMessage(status, err, "failed to register connector"))
		return
	}

	if !created {
		respondJSON(w, http.StatusOK, c)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

func (h *ConnectorHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.GetConnector(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		status := statusFor(err)
		respondError(w, status, errorMessage(status, err, "failed to get connector"))
		return
	}
	respondJSON(w, http.StatusOK, c)
}

type syncStatusResponse struct {
	*domain.SyncStatus
	CircuitBreaker *engine.CircuitBreakerState `json:"circuit_breaker,omitempty"`
	NextPollAt     *time.Time                  `json:"next_poll_at,omitempty"`
}

// SyncStatus never triggers a sync.
func (h *ConnectorHandler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	status, err := h.service.GetSyncStatus(r.Context(), id)
	if err != nil {
		code := statusFor(err)
		respondError(w, code, errorMessage(code, err, "failed to get sync status"))
		return
	}

	resp := syncStatusResponse{SyncStatus: status}
	if h.breaker != nil && status.SyncConfig.SupportsPolling {
		state := h.breaker.GetState(r.Context(), id)
		resp.CircuitBreaker = &state
	}
	if h.queue != nil {
		if at, ok, err := h.queue.NextDue(r.Context(), id); err == nil && ok {
			resp.NextPollAt = &at
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

// SyncNow runs a manual poll and answers with its SyncResult. Syncs that
// cannot start get a 4xx with the reason in the result's errors.
func (h *ConnectorHandler) SyncNow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	result, err := h.service.Sync(r.Context(), id, r.URL.Query().Get("provider"))
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("manual sync failed", "connector_id", id, "error", err)
		}
		respondJSON(w, status, domain.SyncResult{
			Success: false,
			Errors:  []string{errorMessage(status, err, "sync could not start")},
		})
		return
	}
	respondJSON(w, http.StatusOK, result)
}
