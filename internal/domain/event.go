package domain

import (
	"encoding/json"
	"time"
)

// Normalized keys prefixed with TemplateNamespace are template-scoped;
// bare keys are adapter-scoped.
const TemplateNamespace = "template."

// CanonicalEvent is the provider-independent shape every adapter produces.
// (Provider, EventID) is the dedup key.
type CanonicalEvent struct {
	EventID           string          `json:"event_id"`
	Provider          string          `json:"provider"`
	ProviderEventType string          `json:"provider_event_type"`
	Timestamp         time.Time       `json:"timestamp"`
	Payload           json.RawMessage `json:"payload"`
	Normalized        Normalized      `json:"normalized"`
}

// DedupKey identifies the external event across sync attempts.
func (e CanonicalEvent) DedupKey() string {
	return e.Provider + ":" + e.EventID
}

// Clone returns a copy whose Normalized map can be mutated independently.
func (e CanonicalEvent) Clone() CanonicalEvent {
	out := e
	out.Normalized = e.Normalized.Clone()
	if e.Payload != nil {
		out.Payload = append(json.RawMessage(nil), e.Payload...)
	}
	return out
}

// StoredEvent is the persisted record consumed by the display layer.
type StoredEvent struct {
	ID          string `json:"id"`
	ConnectorID string `json:"connector_id"`
	CanonicalEvent
	Suppressed   bool      `json:"suppressed"`
	AppliedRules []string  `json:"applied_rules"`
	CreatedAt    time.Time `json:"created_at"`
}

// EventFilter narrows ListEvents queries.
type EventFilter struct {
	ConnectorID       string
	Provider          string
	IncludeSuppressed bool
	Limit             int
}
