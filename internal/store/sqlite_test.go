package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/Priya8975/socialproof-pipeline/internal/domain"
)

func setupSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "proof.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedConnector(t *testing.T, s *SQLiteStore, id, provider string) *domain.Connector {
	t.Helper()
	c := &domain.Connector{
		ID:           id,
		Provider:     provider,
		UserID:       "user_" + id,
		PollInterval: 5 * time.Minute,
		SyncConfig:   domain.SyncConfig{SupportsWebhook: true, SupportsPolling: true},
		Rules: []domain.ActionRule{
			{Type: domain.RuleHideEvent, Condition: `city = "Nowhere"`},
		},
	}
	created, err := s.CreateConnector(context.Background(), c)
	if err != nil {
		t.Fatalf("CreateConnector() failed: %v", err)
	}
	if !created {
		t.Fatalf("expected connector %s to be created", id)
	}
	return c
}

func storedEvent(connectorID, provider, eventID string) *domain.StoredEvent {
	return &domain.StoredEvent{
		ConnectorID: connectorID,
		CanonicalEvent: domain.CanonicalEvent{
			EventID:           eventID,
			Provider:          provider,
			ProviderEventType: "charge.succeeded",
			Timestamp:         time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
			Payload:           json.RawMessage(`{"id":"` + eventID + `"}`),
			Normalized:        domain.NormalizedOf("customer_name", "Sarah", "amount", 49.99, "city", nil),
		},
	}
}

func TestSQLite_ConnectorLifecycle(t *testing.T) {
	s := setupSQLite(t)
	ctx := context.Background()
	seedConnector(t, s, "conn_1", "shopify")

	again, err := s.CreateConnector(ctx, &domain.Connector{ID: "conn_1", Provider: "stripe"})
	if err != nil {
		t.Fatalf("CreateConnector() failed: %v", err)
	}
	if again {
		t.Error("re-registering an existing connector should be a no-op")
	}

	c, err := s.GetConnector(ctx, "conn_1")
	if err != nil || c == nil {
		t.Fatalf("GetConnector() = %v, %v", c, err)
	}
	if c.Provider != "shopify" || c.Status != domain.ConnectorPending {
		t.Errorf("got provider=%s status=%s", c.Provider, c.Status)
	}
	if c.PollInterval != 5*time.Minute || !c.SyncConfig.SupportsPolling {
		t.Errorf("sync settings not persisted: %+v", c)
	}
	if len(c.Rules) != 1 || c.Rules[0].Type != domain.RuleHideEvent {
		t.Errorf("rules not persisted: %+v", c.Rules)
	}
	if c.LastSync != nil {
		t.Error("new connector should have no last sync")
	}

	if err := s.ActivateConnector(ctx, "conn_1"); err != nil {
		t.Fatalf("ActivateConnector() failed: %v", err)
	}
	c, _ = s.GetConnector(ctx, "conn_1")
	if c.Status != domain.ConnectorActive {
		t.Errorf("status = %s, want active", c.Status)
	}

	byUser, err := s.FindConnectorByUser(ctx, "shopify", "user_conn_1")
	if err != nil || byUser == nil || byUser.ID != "conn_1" {
		t.Errorf("FindConnectorByUser() = %v, %v", byUser, err)
	}

	missing, err := s.GetConnector(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("GetConnector(nope) = %v, %v; want nil, nil", missing, err)
	}
}

func TestSQLite_RecordSyncAttempt(t *testing.T) {
	s := setupSQLite(t)
	ctx := context.Background()
	seedConnector(t, s, "conn_1", "stripe")

	at := time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)
	if err := s.RecordSyncAttempt(ctx, "conn_1", domain.SyncAttempt{At: at, Success: true, Cursor: "evt_9"}); err != nil {
		t.Fatalf("RecordSyncAttempt() failed: %v", err)
	}
	if err := s.RecordSyncAttempt(ctx, "conn_1", domain.SyncAttempt{At: at.Add(time.Minute), Error: "timeout"}); err != nil {
		t.Fatalf("RecordSyncAttempt() failed: %v", err)
	}

	c, _ := s.GetConnector(ctx, "conn_1")
	if c.Cursor != "evt_9" {
		t.Errorf("cursor = %q, want evt_9 kept after failed attempt", c.Cursor)
	}
	if c.LastSync == nil || !c.LastSync.Equal(at.Add(time.Minute)) {
		t.Errorf("last sync = %v", c.LastSync)
	}
	if c.LastSyncStatus.Success || c.LastSyncStatus.Error != "timeout" {
		t.Errorf("last sync status = %+v", c.LastSyncStatus)
	}
}

func TestSQLite_InsertEventDedup(t *testing.T) {
	s := setupSQLite(t)
	ctx := context.Background()
	seedConnector(t, s, "conn_1", "stripe")

	inserted, err := s.InsertEvent(ctx, storedEvent("conn_1", "stripe", "evt_123"))
	if err != nil || !inserted {
		t.Fatalf("first InsertEvent() = %v, %v", inserted, err)
	}
	inserted, err = s.InsertEvent(ctx, storedEvent("conn_1", "stripe", "evt_123"))
	if err != nil {
		t.Fatalf("second InsertEvent() failed: %v", err)
	}
	if inserted {
		t.Error("duplicate (provider, event_id) must not insert")
	}

	n, err := s.CountEvents(ctx, "conn_1")
	if err != nil {
		t.Fatalf("CountEvents() failed: %v", err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}

func TestSQLite_ListEvents(t *testing.T) {
	s := setupSQLite(t)
	ctx := context.Background()
	seedConnector(t, s, "conn_1", "stripe")
	seedConnector(t, s, "conn_2", "shopify")

	hidden := storedEvent("conn_1", "stripe", "evt_hidden")
	hidden.Suppressed = true
	hidden.AppliedRules = []string{"0:hide_event"}
	for _, e := range []*domain.StoredEvent{
		storedEvent("conn_1", "stripe", "evt_1"),
		hidden,
		storedEvent("conn_2", "shopify", "1001"),
	} {
		if _, err := s.InsertEvent(ctx, e); err != nil {
			t.Fatalf("InsertEvent() failed: %v", err)
		}
	}

	visible, err := s.ListEvents(ctx, domain.EventFilter{ConnectorID: "conn_1"})
	if err != nil {
		t.Fatalf("ListEvents() failed: %v", err)
	}
	if len(visible) != 1 || visible[0].EventID != "evt_1" {
		t.Fatalf("visible events = %+v", visible)
	}
	got := visible[0]
	if keys := got.Normalized.Keys(); len(keys) != 3 || keys[0] != "customer_name" || keys[2] != "city" {
		t.Errorf("normalized key order lost: %v", keys)
	}
	if v, _ := got.Normalized.Get("amount"); v != 49.99 {
		t.Errorf("amount = %v", v)
	}
	if !got.Timestamp.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("timestamp = %v", got.Timestamp)
	}

	all, _ := s.ListEvents(ctx, domain.EventFilter{ConnectorID: "conn_1", IncludeSuppressed: true})
	if len(all) != 2 {
		t.Errorf("with suppressed = %d events, want 2", len(all))
	}

	shopify, _ := s.ListEvents(ctx, domain.EventFilter{Provider: "shopify", Limit: 10})
	if len(shopify) != 1 || shopify[0].ConnectorID != "conn_2" {
		t.Errorf("provider filter = %+v", shopify)
	}

	stats, err := s.GetPipelineStats(ctx)
	if err != nil {
		t.Fatalf("GetPipelineStats() failed: %v", err)
	}
	if stats.TotalEvents != 3 || stats.SuppressedEvents != 1 || stats.EventsByProvider["stripe"] != 2 {
		t.Errorf("stats = %+v", stats)
	}
}
