package template

import (
	"github.com/samber/lo"

	"github.com/Priya8975/socialproof-pipeline/internal/domain"
)

// PreviewConfig is the editor state a preview is computed from. An empty
// Mapping is filled in with AutoMap over Fields.
type PreviewConfig struct {
	Template domain.TemplateConfig    `json:"template"`
	Mapping  domain.FieldMapping      `json:"mapping"`
	Fields   []domain.NormalizedField `json:"fields,omitempty"`
	Event    *domain.CanonicalEvent   `json:"event,omitempty"`
}

// RenderedEvent is a finished notification ready for display.
type RenderedEvent struct {
	TemplateID string              `json:"template_id"`
	EventID    string              `json:"event_id,omitempty"`
	Provider   string              `json:"provider,omitempty"`
	Markup     string              `json:"markup"`
	Text       string              `json:"text"`
	Mapping    domain.FieldMapping `json:"mapping"`
	Complete   bool                `json:"complete"`
	Missing    []string            `json:"missing_fields"`
	Errors     []string            `json:"errors,omitempty"`
}

// ComputePreview renders cfg. It has no side effects; debouncing and
// delivery of the result are up to the caller.
func ComputePreview(cfg PreviewConfig) RenderedEvent {
	mapping := cfg.Mapping
	if mapping.Len() == 0 {
		mapping = AutoMap(FieldKeys(cfg.Fields), Extract(cfg.Template.HTMLTemplate))
	}
	req := Request{Template: cfg.Template, Mapping: mapping, Event: cfg.Event, Fields: cfg.Fields}
	return renderEvent(req, Execute(req))
}

func renderEvent(req Request, res Result) RenderedEvent {
	out := RenderedEvent{
		TemplateID: req.Template.ID,
		Markup:     res.Markup,
		Text:       toText(res.Markup),
		Mapping:    req.Mapping,
		Missing:    MissingRequired(req.Template.RequiredFields, req.Mapping),
		Errors: lo.Map(res.Errors, func(e *RenderError, _ int) string {
			return e.Error()
		}),
	}
	out.Complete = len(out.Missing) == 0
	if req.Event != nil {
		out.EventID = req.Event.EventID
		out.Provider = req.Event.Provider
	}
	if len(out.Errors) == 0 {
		out.Errors = nil
	}
	return out
}
