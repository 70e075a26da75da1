package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Priya8975/socialproof-pipeline/internal/adapter"
	"github.com/Priya8975/socialproof-pipeline/internal/domain"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 500
)

// EventLister reads persisted canonical events for the display layer.
type EventLister interface {
	ListEvents(ctx context.Context, f domain.EventFilter) ([]domain.StoredEvent, error)
}

type EventHandler struct {
	store    EventLister
	registry *adapter.Registry
	logger   *slog.Logger
}

func NewEventHandler(s EventLister, registry *adapter.Registry, logger *slog.Logger) *EventHandler {
	return &EventHandler{store: s, registry: registry, logger: logger}
}

// List returns stored events, newest first. Suppressed events are left out
// unless include_suppressed=true.
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := defaultEventLimit
	if limitStr := q.Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 {
			limit = min(n, maxEventLimit)
		}
	}
	includeSuppressed, _ := strconv.ParseBool(q.Get("include_suppressed"))

	filter := domain.EventFilter{
		ConnectorID:       q.Get("connector_id"),
		IncludeSuppressed: includeSuppressed,
		Limit:             limit,
	}
	if p := q.Get("provider"); p != "" {
		filter.Provider = h.registry.ResolveProviderAlias(p)
	}

	events, err := h.store.ListEvents(r.Context(), filter)
	if err != nil {
		h.logger.Error("listing events failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	respondJSON(w, http.StatusOK, events)
}
