package domain

import "time"

type ConnectorStatus string

const (
	ConnectorPending ConnectorStatus = "pending"
	ConnectorActive  ConnectorStatus = "active"
)

type SyncConfig struct {
	SupportsWebhook bool `json:"supportsWebhook"`
	SupportsPolling bool `json:"supportsPolling"`
}

type SyncOutcome struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Connector is one configured installation of a provider integration.
type Connector struct {
	ID             string          `json:"id"`
	Provider       string          `json:"provider"`
	UserID         string          `json:"user_id,omitempty"`
	Status         ConnectorStatus `json:"status"`
	BaseURL        string          `json:"base_url,omitempty"`
	APIKey         string          `json:"-"`
	PollInterval   time.Duration   `json:"poll_interval"`
	Rules          []ActionRule    `json:"rules,omitempty"`
	SyncConfig     SyncConfig      `json:"sync_config"`
	Cursor         string          `json:"cursor,omitempty"`
	LastSync       *time.Time      `json:"last_sync"`
	LastSyncStatus SyncOutcome     `json:"last_sync_status"`
	CreatedAt      time.Time       `json:"created_at"`
}

// SyncStatus is the read model returned by GetSyncStatus.
type SyncStatus struct {
	ConnectorID    string          `json:"connector_id"`
	Status         ConnectorStatus `json:"status"`
	TotalEvents    int             `json:"total_events"`
	LastSync       *time.Time      `json:"last_sync"`
	LastSyncStatus SyncOutcome     `json:"last_sync_status"`
	CanSyncNow     bool            `json:"can_sync_now"`
	SyncConfig     SyncConfig      `json:"sync_config"`
}

// SyncAttempt is what the sync service records after every attempt.
type SyncAttempt struct {
	At      time.Time
	Success bool
	Error   string
	// Cursor is only persisted when non-empty.
	Cursor string
}

type SyncResult struct {
	Success       bool     `json:"success"`
	EventsSynced  int      `json:"events_synced"`
	EventsSkipped int      `json:"events_skipped"`
	Errors        []string `json:"errors"`
}
