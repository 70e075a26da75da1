// Package adapter translates provider-specific payloads into canonical
// events and describes the fields each provider can emit.
package adapter

import (
	"github.com/Priya8975/socialproof-pipeline/internal/domain"
)

// Adapter is the extension point for a third-party or native event source.
// Normalize must be pure: the same payload always yields the same event,
// and missing fields become nil rather than errors.
type Adapter interface {
	Provider() string
	DisplayName() string
	AvailableFields() []domain.NormalizedField
	// SampleEvents returns deterministic fixtures for previews. No network.
	SampleEvents() []domain.CanonicalEvent
	Normalize(raw []byte) (domain.CanonicalEvent, error)
}

// PollSpec tells the HTTP fetcher how to page a provider's event list.
type PollSpec struct {
	DefaultBaseURL string
	Path           string
	// ItemsPath is a gjson path selecting the array of raw events.
	ItemsPath string
	// CursorParam carries the last seen cursor on the next request.
	CursorParam string
	// CursorPath is evaluated on a raw item to produce the next cursor.
	CursorPath string
	// CursorFromFirst takes the cursor from the first item instead of the
	// last, for APIs that list newest first.
	CursorFromFirst bool
	Query           map[string]string
	APIKeyHeader    string
}

// Poller is implemented by adapters whose provider exposes a pageable
// event list in addition to webhooks.
type Poller interface {
	Adapter
	PollSpec() PollSpec
}

// SyncConfigFor reports the ingestion modes an adapter supports.
func SyncConfigFor(a Adapter) domain.SyncConfig {
	_, polls := a.(Poller)
	return domain.SyncConfig{
		SupportsWebhook: true,
		SupportsPolling: polls,
	}
}
