package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Priya8975/socialproof-pipeline/internal/domain"
)

// eventRow is a StoredEvent flattened into column values shared by the
// Postgres and SQLite stores.
type eventRow struct {
	id           string
	normalized   []byte
	payload      []byte
	appliedRules []byte
	createdAt    time.Time
}

func encodeEvent(e *domain.StoredEvent) (eventRow, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	normalized, err := json.Marshal(e.Normalized)
	if err != nil {
		return eventRow{}, fmt.Errorf("encoding normalized fields: %w", err)
	}
	applied := e.AppliedRules
	if applied == nil {
		applied = []string{}
	}
	appliedJSON, err := json.Marshal(applied)
	if err != nil {
		return eventRow{}, fmt.Errorf("encoding applied rules: %w", err)
	}

	var payload []byte
	if len(e.Payload) > 0 {
		payload = e.Payload
	}
	return eventRow{
		id:           e.ID,
		normalized:   normalized,
		payload:      payload,
		appliedRules: appliedJSON,
		createdAt:    e.CreatedAt,
	}, nil
}

func decodeEventJSON(e *domain.StoredEvent, normalized, payload, applied []byte) error {
	if err := json.Unmarshal(normalized, &e.Normalized); err != nil {
		return fmt.Errorf("decoding normalized fields: %w", err)
	}
	if len(applied) > 0 {
		if err := json.Unmarshal(applied, &e.AppliedRules); err != nil {
			return fmt.Errorf("decoding applied rules: %w", err)
		}
	}
	if len(payload) > 0 {
		e.Payload = json.RawMessage(payload)
	}
	return nil
}

func encodeRules(rules []domain.ActionRule) ([]byte, error) {
	if rules == nil {
		rules = []domain.ActionRule{}
	}
	b, err := json.Marshal(rules)
	if err != nil {
		return nil, fmt.Errorf("encoding rules: %w", err)
	}
	return b, nil
}

func decodeRules(b []byte) ([]domain.ActionRule, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var rules []domain.ActionRule
	if err := json.Unmarshal(b, &rules); err != nil {
		return nil, fmt.Errorf("decoding rules: %w", err)
	}
	if len(rules) == 0 {
		return nil, nil
	}
	return rules, nil
}

func applyConnectorDefaults(c *domain.Connector) {
	if c.Status == "" {
		c.Status = domain.ConnectorPending
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
}
