package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/Priya8975/socialproof-pipeline/internal/store"
)

const Version = "1.0.0"

// Pinger is anything with a liveness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatsStore is the store view behind the health and stats endpoints.
type StatsStore interface {
	Pinger
	GetPipelineStats(ctx context.Context) (*store.PipelineStats, error)
}

// QueueDepther reports how many connectors are waiting to be polled.
type QueueDepther interface {
	Depth(ctx context.Context) (int64, error)
}

// ClientCounter reports connected live-feed clients.
type ClientCounter interface {
	ClientCount() int
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks"`
}

type HealthHandler struct {
	store  StatsStore
	redis  Pinger
	queue  QueueDepther
	hub    ClientCounter
	logger *slog.Logger
}

func NewHealthHandler(s StatsStore, redis Pinger, queue QueueDepther, hub ClientCounter, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{store: s, redis: redis, queue: queue, hub: hub, logger: logger}
}

// Health reports 503 when a backing service is unreachable.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "healthy", Version: Version, Checks: map[string]string{}}
	check := func(name string, p Pinger) {
		if p == nil {
			return
		}
		if err := p.Ping(ctx); err != nil {
			h.logger.Warn("health check failed", "dependency", name, "error", err)
			resp.Checks[name] = "unreachable"
			resp.Status = "degraded"
			return
		}
		resp.Checks[name] = "ok"
	}
	check("store", h.store)
	check("redis", h.redis)

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, resp)
}

type statsResponse struct {
	store.PipelineStats
	QueueDepth       int64 `json:"queue_depth"`
	WebSocketClients int   `json:"websocket_clients"`
}

// Stats returns aggregated pipeline counts for the dashboard.
func (h *HealthHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetPipelineStats(r.Context())
	if err != nil {
		h.logger.Error("loading pipeline stats failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}

	resp := statsResponse{PipelineStats: *stats}
	if h.queue != nil {
		if depth, err := h.queue.Depth(r.Context()); err == nil {
			resp.QueueDepth = depth
		}
	}
	if h.hub != nil {
		resp.WebSocketClients = h.hub.ClientCount()
	}
	respondJSON(w, http.StatusOK, resp)
}
