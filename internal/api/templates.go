package api

import (
	"log/slog"
	"net/http"

	"github.com/Priya8975/socialproof-pipeline/internal/adapter"
	"github.com/Priya8975/socialproof-pipeline/internal/domain"
	"github.com/Priya8975/socialproof-pipeline/internal/metrics"
	"github.com/Priya8975/socialproof-pipeline/internal/template"
)

// PreviewPublisher receives every preview the API computes.
type PreviewPublisher interface {
	PreviewUpdated(templateID string, preview any)
}

type TemplateHandler struct {
	registry  *adapter.Registry
	renderer  *template.Renderer
	publisher PreviewPublisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewTemplateHandler(registry *adapter.Registry, renderer *template.Renderer, publisher PreviewPublisher, m *metrics.Metrics, logger *slog.Logger) *TemplateHandler {
	return &TemplateHandler{
		registry:  registry,
		renderer:  renderer,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}
}

type extractRequest struct {
	HTMLTemplate string `json:"html_template"`
}

type extractResponse struct {
	Placeholders []string `json:"placeholders"`
}

func (h *TemplateHandler) Extract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	placeholders := template.Extract(req.HTMLTemplate)
	if placeholders == nil {
		placeholders = []string{}
	}
	respondJSON(w, http.StatusOK, extractResponse{Placeholders: placeholders})
}

type automapRequest struct {
	Template domain.TemplateConfig `json:"template"`
	// Placeholders overrides extraction from the template when set.
	Placeholders []string `json:"placeholders"`
	Provider     string   `json:"provider"`
	FieldKeys    []string `json:"field_keys"`
}

type automapResponse struct {
	Placeholders []string            `json:"placeholders"`
	Mapping      domain.FieldMapping `json:"mapping"`
	Missing      []string            `json:"missing_fields"`
	Complete     bool                `json:"complete"`
}

func (h *TemplateHandler) AutoMap(w http.ResponseWriter, r *http.Request) {
	var req automapRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	keys := req.FieldKeys
	if req.Provider != "" {
		a, err := h.registry.Lookup(req.Provider)
		if err != nil {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		keys = append(template.FieldKeys(a.AvailableFields()), keys...)
	}

	placeholders := req.Placeholders
	if len(placeholders) == 0 {
		placeholders = template.Extract(req.Template.HTMLTemplate)
	}
	if placeholders == nil {
		placeholders = []string{}
	}

	mapping := template.AutoMap(keys, placeholders)
	missing := template.MissingRequired(req.Template.RequiredFields, mapping)
	respondJSON(w, http.StatusOK, automapResponse{
		Placeholders: placeholders,
		Mapping:      mapping,
		Missing:      missing,
		Complete:     len(missing) == 0,
	})
}

type validateResponse struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

func (h *TemplateHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var cfg domain.TemplateConfig
	if err := decodeJSON(w, r, &cfg); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := template.Validate(cfg); err != nil {
		respondJSON(w, http.StatusUnprocessableEntity, validateResponse{Errors: splitJoined(err)})
		return
	}
	respondJSON(w, http.StatusOK, validateResponse{Valid: true})
}

type renderRequest struct {
	Template domain.TemplateConfig  `json:"template"`
	Mapping  domain.FieldMapping    `json:"mapping"`
	Event    *domain.CanonicalEvent `json:"event,omitempty"`
	// Provider supplies field metadata and, without an Event, a sample
	// event to render.
	Provider string `json:"provider"`
}

// Render renders a template against a concrete event. Repeated renders of
// the same event are served from the render cache.
func (h *TemplateHandler) Render(w http.ResponseWriter, r *http.Request) {
	var req renderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := checkMapping(req.Mapping); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var fields []domain.NormalizedField
	if req.Provider != "" {
		a, err := h.registry.Lookup(req.Provider)
		if err != nil {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		fields = a.AvailableFields()
		if req.Event == nil {
			if samples := a.SampleEvents(); len(samples) > 0 {
				req.Event = &samples[0]
			}
		}
	}
	if req.Event == nil {
		respondError(w, http.StatusBadRequest, "event or provider is required")
		return
	}

	mapping := req.Mapping
	if mapping.Len() == 0 {
		mapping = template.AutoMap(append(template.FieldKeys(fields), req.Event.Normalized.Keys()...), template.Extract(req.Template.HTMLTemplate))
	}

	out, hit := h.renderer.Render(template.Request{
		Template: req.Template,
		Mapping:  mapping,
		Event:    req.Event,
		Fields:   fields,
	})
	h.metrics.RenderCache(hit)
	respondJSON(w, http.StatusOK, out)
}

type previewRequest struct {
	template.PreviewConfig
	// Provider fills Fields from the provider's catalog when they are not
	// sent.
	Provider string `json:"provider"`
}

// Preview computes an editor preview and publishes it to live listeners.
func (h *TemplateHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := checkMapping(req.Mapping); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Provider != "" && len(req.Fields) == 0 {
		a, err := h.registry.Lookup(req.Provider)
		if err != nil {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		req.Fields = a.AvailableFields()
	}

	out := template.ComputePreview(req.PreviewConfig)
	if h.publisher != nil {
		h.publisher.PreviewUpdated(out.TemplateID, out)
	}
	respondJSON(w, http.StatusOK, out)
}

// checkMapping rejects user mappings that try to source a computed field
// from somewhere else. Computed fields mapped to themselves are accepted
// since AutoMap emits them that way.
func checkMapping(m domain.FieldMapping) error {
	var scratch domain.FieldMapping
	for _, k := range m.Keys() {
		src, _ := m.Get(k)
		if domain.IsComputedField(k) && src == k {
			continue
		}
		if err := domain.SetMappingEntry(&scratch, k, src); err != nil {
			return err
		}
	}
	return nil
}

func splitJoined(err error) []string {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		out := make([]string, 0, len(joined.Unwrap()))
		for _, e := range joined.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}
