package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/Priya8975/socialproof-pipeline/internal/adapter"
	"github.com/Priya8975/socialproof-pipeline/internal/domain"
)

type ProviderHandler struct {
	registry *adapter.Registry
}

func NewProviderHandler(registry *adapter.Registry) *ProviderHandler {
	return &ProviderHandler{registry: registry}
}

type providerSummary struct {
	ID          string            `json:"id"`
	DisplayName string            `json:"display_name"`
	SyncConfig  domain.SyncConfig `json:"sync_config"`
	FieldCount  int               `json:"field_count"`
}

func (h *ProviderHandler) List(w http.ResponseWriter, r *http.Request) {
	out := lo.Map(h.registry.GetAll(), func(a adapter.Adapter, _ int) providerSummary {
		return providerSummary{
			ID:          a.Provider(),
			DisplayName: a.DisplayName(),
			SyncConfig:  adapter.SyncConfigFor(a),
			FieldCount:  len(a.AvailableFields()),
		}
	})
	respondJSON(w, http.StatusOK, out)
}

func (h *ProviderHandler) Fields(w http.ResponseWriter, r *http.Request) {
	a, ok := h.registry.Get(chi.URLParam(r, "id"))
	if !ok {
		respondError(w, http.StatusNotFound, "provider not found")
		return
	}
	respondJSON(w, http.StatusOK, a.AvailableFields())
}

func (h *ProviderHandler) Samples(w http.ResponseWriter, r *http.Request) {
	a, ok := h.registry.Get(chi.URLParam(r, "id"))
	if !ok {
		respondError(w, http.StatusNotFound, "provider not found")
		return
	}
	respondJSON(w, http.StatusOK, a.SampleEvents())
}
