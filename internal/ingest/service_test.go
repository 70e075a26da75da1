package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Priya8975/socialproof-pipeline/internal/adapter"
	"github.com/Priya8975/socialproof-pipeline/internal/domain"
	"github.com/Priya8975/socialproof-pipeline/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fetchFunc adapts a function to Fetcher.
type fetchFunc func(ctx context.Context, conn domain.Connector, spec adapter.PollSpec) (Page, error)

func (f fetchFunc) Fetch(ctx context.Context, conn domain.Connector, spec adapter.PollSpec) (Page, error) {
	return f(ctx, conn, spec)
}

func staticPage(cursor string, items ...string) Fetcher {
	return fetchFunc(func(context.Context, domain.Connector, adapter.PollSpec) (Page, error) {
		p := Page{Cursor: cursor}
		for _, it := range items {
			p.Items = append(p.Items, json.RawMessage(it))
		}
		return p, nil
	})
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.StoredEvent
	syncs  []domain.SyncResult
}

func (n *recordingNotifier) EventIngested(ev domain.StoredEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) SyncCompleted(_ string, res domain.SyncResult) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.syncs = append(n.syncs, res)
}

type recordingScheduler struct {
	scheduled []string
}

func (s *recordingScheduler) Schedule(_ context.Context, id string, _ time.Time) error {
	s.scheduled = append(s.scheduled, id)
	return nil
}

func setupService(t *testing.T, fetcher Fetcher, cfg Config, opts ...Option) (*Service, *store.SQLiteStore) {
	t.Helper()
	reg, err := adapter.NewDefaultRegistry()
	require.NoError(t, err)
	st, err := store.OpenSQLite(filepath.Join(t.TempDir(), "ingest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return NewService(reg, st, fetcher, testLogger(), cfg, opts...), st
}

func register(t *testing.T, svc *Service, c domain.Connector) *domain.Connector {
	t.Helper()
	got, created, err := svc.RegisterConnector(context.Background(), c)
	require.NoError(t, err)
	require.True(t, created)
	return got
}

func stripeEvent(id, name, city string) string {
	return fmt.Sprintf(`{"id":%q,"type":"charge.succeeded","created":1714557600,"data":{"object":{"amount":4999,"currency":"usd","billing_details":{"name":%q,"address":{"city":%q}}}}}`, id, name, city)
}

func TestRegisterConnector(t *testing.T) {
	sched := &recordingScheduler{}
	svc, _ := setupService(t, nil, Config{}, WithScheduler(sched))
	ctx := context.Background()

	c := register(t, svc, domain.Connector{ID: "conn_shop", Provider: "shopify_orders", UserID: "shop-1"})
	assert.Equal(t, "shopify", c.Provider, "aliases resolve to the current provider id")
	assert.Equal(t, domain.ConnectorPending, c.Status)
	assert.Equal(t, domain.SyncConfig{SupportsWebhook: true, SupportsPolling: true}, c.SyncConfig)
	assert.Equal(t, DefaultPollInterval, c.PollInterval)
	assert.Equal(t, []string{"conn_shop"}, sched.scheduled)

	again, created, err := svc.RegisterConnector(ctx, domain.Connector{ID: "conn_shop", Provider: "stripe"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "shopify", again.Provider, "re-registration must not change the connector")

	form := register(t, svc, domain.Connector{Provider: "typeform"})
	assert.NotEmpty(t, form.ID)
	assert.False(t, form.SyncConfig.SupportsPolling)
	assert.Len(t, sched.scheduled, 1, "webhook-only connectors are not scheduled")
}

func TestRegisterConnector_Rejects(t *testing.T) {
	svc, _ := setupService(t, nil, Config{})
	ctx := context.Background()

	_, _, err := svc.RegisterConnector(ctx, domain.Connector{Provider: "myspace"})
	var unknown *adapter.UnknownProviderError
	assert.ErrorAs(t, err, &unknown)

	_, _, err = svc.RegisterConnector(ctx, domain.Connector{
		Provider: "stripe",
		Rules:    []domain.ActionRule{{Type: domain.RuleHideEvent, Condition: `city ~ "x"`}},
	})
	assert.ErrorIs(t, err, ErrInvalidConnector)
}

func TestReceiveWebhook_Dedup(t *testing.T) {
	notes := &recordingNotifier{}
	svc, st := setupService(t, nil, Config{}, WithNotifier(notes))
	ctx := context.Background()
	register(t, svc, domain.Connector{ID: "conn_stripe", Provider: "stripe"})

	body := []byte(stripeEvent("evt_123", "Sarah Connor", "Denver"))
	first, err := svc.ReceiveWebhook(ctx, "stripe", ConnectorRef{ConnectorID: "conn_stripe"}, body)
	require.NoError(t, err)
	assert.True(t, first.Stored)
	assert.Equal(t, "evt_123", first.EventID)

	second, err := svc.ReceiveWebhook(ctx, "stripe", ConnectorRef{ConnectorID: "conn_stripe"}, body)
	require.NoError(t, err)
	assert.False(t, second.Stored, "redelivery is a duplicate, not an error")

	n, err := st.CountEvents(ctx, "conn_stripe")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, notes.events, 1, "only new events are announced")

	c, _ := st.GetConnector(ctx, "conn_stripe")
	assert.Equal(t, domain.ConnectorActive, c.Status, "first webhook activates the connector")

	events, _ := st.ListEvents(ctx, domain.EventFilter{ConnectorID: "conn_stripe"})
	require.Len(t, events, 1)
	amount, _ := events[0].Normalized.Get("amount")
	assert.Equal(t, 49.99, amount)
}

func TestReceiveWebhook_ResolvesConnector(t *testing.T) {
	svc, _ := setupService(t, nil, Config{})
	ctx := context.Background()
	register(t, svc, domain.Connector{ID: "conn_stripe", Provider: "stripe", UserID: "acct_9"})
	register(t, svc, domain.Connector{ID: "conn_shop", Provider: "shopify"})
	body := []byte(stripeEvent("evt_1", "Sam", "Oslo"))

	res, err := svc.ReceiveWebhook(ctx, "stripe_payments", ConnectorRef{UserID: "acct_9"}, body)
	require.NoError(t, err)
	assert.Equal(t, "conn_stripe", res.ConnectorID)

	tests := []struct {
		name     string
		provider string
		ref      ConnectorRef
		want     error
	}{
		{"unknown id", "stripe", ConnectorRef{ConnectorID: "nope"}, ErrUnknownConnector},
		{"unknown user", "stripe", ConnectorRef{UserID: "acct_0"}, ErrUnknownConnector},
		{"no reference", "stripe", ConnectorRef{}, ErrUnknownConnector},
		{"wrong provider", "stripe", ConnectorRef{ConnectorID: "conn_shop"}, ErrProviderMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ReceiveWebhook(ctx, tt.provider, tt.ref, body)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err = svc.ReceiveWebhook(ctx, "friendster", ConnectorRef{ConnectorID: "conn_stripe"}, body)
	var unknown *adapter.UnknownProviderError
	assert.ErrorAs(t, err, &unknown)
}

func TestReceiveWebhook_NormalizationError(t *testing.T) {
	svc, st := setupService(t, nil, Config{})
	ctx := context.Background()
	register(t, svc, domain.Connector{ID: "conn_stripe", Provider: "stripe"})

	_, err := svc.ReceiveWebhook(ctx, "stripe", ConnectorRef{ConnectorID: "conn_stripe"}, []byte(`not json`))
	var nerr *adapter.NormalizationError
	require.ErrorAs(t, err, &nerr)

	n, _ := st.CountEvents(ctx, "conn_stripe")
	assert.Zero(t, n)
	c, _ := st.GetConnector(ctx, "conn_stripe")
	assert.Equal(t, domain.ConnectorPending, c.Status, "a rejected payload does not activate")
}

func TestReceiveWebhook_AppliesRules(t *testing.T) {
	svc, st := setupService(t, nil, Config{})
	ctx := context.Background()
	register(t, svc, domain.Connector{
		ID:       "conn_stripe",
		Provider: "stripe",
		Rules: []domain.ActionRule{
			{Type: domain.RuleReplaceVariable, Condition: `customer_name = "Sam"`, Value: "A happy customer"},
			{Type: domain.RuleHideEvent, Condition: `city contains "test"`},
		},
	})
	ref := ConnectorRef{ConnectorID: "conn_stripe"}

	res, err := svc.ReceiveWebhook(ctx, "stripe", ref, []byte(stripeEvent("evt_1", "Sam Smith", "Oslo")))
	require.NoError(t, err)
	assert.False(t, res.Suppressed)
	assert.Equal(t, []string{"0:replace_variable"}, res.Applied)

	res, err = svc.ReceiveWebhook(ctx, "stripe", ref, []byte(stripeEvent("evt_2", "Ann", "Testville")))
	require.NoError(t, err)
	assert.True(t, res.Suppressed)

	visible, _ := st.ListEvents(ctx, domain.EventFilter{ConnectorID: "conn_stripe"})
	require.Len(t, visible, 1)
	name, _ := visible[0].Normalized.Get("customer_name")
	assert.Equal(t, "A happy customer", name)

	all, _ := st.ListEvents(ctx, domain.EventFilter{ConnectorID: "conn_stripe", IncludeSuppressed: true})
	assert.Len(t, all, 2, "suppressed events are stored, just hidden")
}

func TestSync_DedupAcrossOverlappingPolls(t *testing.T) {
	notes := &recordingNotifier{}
	fetcher := staticPage("evt_2",
		stripeEvent("evt_2", "Sarah", "Denver"),
		stripeEvent("evt_1", "Sam", "Oslo"),
	)
	svc, st := setupService(t, fetcher, Config{}, WithNotifier(notes))
	ctx := context.Background()
	register(t, svc, domain.Connector{ID: "conn_stripe", Provider: "stripe"})

	first := svc.SyncNow(ctx, "conn_stripe", "stripe")
	assert.True(t, first.Success)
	assert.Equal(t, 2, first.EventsSynced)
	assert.Zero(t, first.EventsSkipped)
	assert.Empty(t, first.Errors)

	second := svc.SyncNow(ctx, "conn_stripe", "stripe")
	assert.True(t, second.Success)
	assert.Zero(t, second.EventsSynced)
	assert.Equal(t, 2, second.EventsSkipped)

	status, err := svc.GetSyncStatus(ctx, "conn_stripe")
	require.NoError(t, err)
	assert.Equal(t, 2, status.TotalEvents)
	assert.True(t, status.LastSyncStatus.Success)
	assert.NotNil(t, status.LastSync)
	assert.Equal(t, domain.ConnectorActive, status.Status)

	c, _ := st.GetConnector(ctx, "conn_stripe")
	assert.Equal(t, "evt_2", c.Cursor)
	assert.Len(t, notes.syncs, 2)
}

func TestSync_FailureIsolation(t *testing.T) {
	fetcher := staticPage("evt_3",
		stripeEvent("evt_1", "Sarah", "Denver"),
		`["not","an","object"]`,
		`{"type":"charge.succeeded"}`,
		stripeEvent("evt_1", "Sarah", "Denver"),
		stripeEvent("evt_3", "Kim", "Seoul"),
	)
	svc, st := setupService(t, fetcher, Config{})
	ctx := context.Background()
	register(t, svc, domain.Connector{ID: "conn_stripe", Provider: "stripe"})

	res := svc.SyncNow(ctx, "conn_stripe", "")
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.EventsSynced)
	assert.Equal(t, 1, res.EventsSkipped)
	require.Len(t, res.Errors, 2)
	assert.Contains(t, res.Errors[0], "event 1")
	assert.Contains(t, res.Errors[1], "missing event id")

	c, _ := st.GetConnector(ctx, "conn_stripe")
	assert.Equal(t, "evt_3", c.Cursor, "malformed payloads do not hold the cursor back")
	assert.Equal(t, "2 of 5 events failed", c.LastSyncStatus.Error)
}

func TestSync_FetchFailureKeepsCursor(t *testing.T) {
	fail := false
	fetcher := fetchFunc(func(context.Context, domain.Connector, adapter.PollSpec) (Page, error) {
		if fail {
			return Page{}, errors.New("provider returned status 503")
		}
		return Page{Items: []json.RawMessage{json.RawMessage(stripeEvent("evt_1", "A", "B"))}, Cursor: "evt_1"}, nil
	})
	svc, st := setupService(t, fetcher, Config{})
	ctx := context.Background()
	register(t, svc, domain.Connector{ID: "conn_stripe", Provider: "stripe"})

	require.True(t, svc.SyncNow(ctx, "conn_stripe", "").Success)

	fail = true
	res := svc.SyncNow(ctx, "conn_stripe", "")
	assert.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "503")

	c, _ := st.GetConnector(ctx, "conn_stripe")
	assert.Equal(t, "evt_1", c.Cursor)
	assert.False(t, c.LastSyncStatus.Success)
	assert.Contains(t, c.LastSyncStatus.Error, "503")
}

func TestSync_TimeoutDoesNotAdvanceCursor(t *testing.T) {
	slow := fetchFunc(func(ctx context.Context, _ domain.Connector, _ adapter.PollSpec) (Page, error) {
		<-ctx.Done()
		// A fetcher that ignores cancellation and still returns data.
		return Page{Items: []json.RawMessage{json.RawMessage(stripeEvent("evt_9", "A", "B"))}, Cursor: "evt_9"}, nil
	})
	svc, st := setupService(t, slow, Config{PollTimeout: 20 * time.Millisecond})
	ctx := context.Background()
	register(t, svc, domain.Connector{ID: "conn_stripe", Provider: "stripe"})

	res := svc.SyncNow(ctx, "conn_stripe", "")
	assert.False(t, res.Success)
	require.NotEmpty(t, res.Errors)
	assert.Contains(t, res.Errors[0], "timed out")

	c, _ := st.GetConnector(ctx, "conn_stripe")
	assert.Empty(t, c.Cursor)
	assert.NotNil(t, c.LastSync, "the attempt is still recorded")
	n, _ := st.CountEvents(ctx, "conn_stripe")
	assert.Zero(t, n)
}

func TestSync_ErrorListIsBounded(t *testing.T) {
	var bad []string
	for i := 0; i < MaxReportedErrors+5; i++ {
		bad = append(bad, `42`)
	}
	svc, _ := setupService(t, staticPage("", bad...), Config{})
	register(t, svc, domain.Connector{ID: "conn_stripe", Provider: "stripe"})

	res := svc.SyncNow(context.Background(), "conn_stripe", "")
	require.Len(t, res.Errors, MaxReportedErrors+1)
	assert.Equal(t, "... and 5 more", res.Errors[MaxReportedErrors])
}

func TestSync_Preconditions(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	svc, _ := setupService(t, staticPage(""), Config{MinSyncInterval: time.Minute}, WithClock(clock))
	ctx := context.Background()
	register(t, svc, domain.Connector{ID: "conn_stripe", Provider: "stripe"})
	register(t, svc, domain.Connector{ID: "conn_form", Provider: "typeform"})

	_, err := svc.Sync(ctx, "missing", "")
	assert.ErrorIs(t, err, ErrUnknownConnector)

	_, err = svc.Sync(ctx, "conn_form", "typeform")
	assert.ErrorIs(t, err, ErrPollingUnsupported)

	_, err = svc.Sync(ctx, "conn_stripe", "shopify")
	assert.ErrorIs(t, err, ErrProviderMismatch)

	_, err = svc.Sync(ctx, "conn_stripe", "stripe_payments")
	require.NoError(t, err)

	_, err = svc.Sync(ctx, "conn_stripe", "")
	assert.ErrorIs(t, err, ErrSyncTooSoon)
	status, _ := svc.GetSyncStatus(ctx, "conn_stripe")
	assert.False(t, status.CanSyncNow)

	now = now.Add(61 * time.Second)
	status, _ = svc.GetSyncStatus(ctx, "conn_stripe")
	assert.True(t, status.CanSyncNow)

	res := svc.SyncNow(ctx, "conn_form", "")
	assert.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.True(t, strings.Contains(res.Errors[0], "polling"))
}

func TestSync_SerializedPerConnector(t *testing.T) {
	locker := NewLocalLocker()
	svc, _ := setupService(t, staticPage(""), Config{}, WithLocker(locker))
	ctx := context.Background()
	register(t, svc, domain.Connector{ID: "conn_stripe", Provider: "stripe"})

	release, ok, _ := locker.TryLock(ctx, "conn_stripe")
	require.True(t, ok)

	_, err := svc.Sync(ctx, "conn_stripe", "")
	assert.ErrorIs(t, err, ErrSyncInProgress)

	release()
	_, err = svc.Sync(ctx, "conn_stripe", "")
	assert.NoError(t, err)
}

func TestGetSyncStatus_IsPureRead(t *testing.T) {
	calls := 0
	fetcher := fetchFunc(func(context.Context, domain.Connector, adapter.PollSpec) (Page, error) {
		calls++
		return Page{}, nil
	})
	svc, _ := setupService(t, fetcher, Config{})
	register(t, svc, domain.Connector{ID: "conn_stripe", Provider: "stripe"})

	status, err := svc.GetSyncStatus(context.Background(), "conn_stripe")
	require.NoError(t, err)
	assert.Zero(t, calls)
	assert.Nil(t, status.LastSync)
	assert.True(t, status.CanSyncNow)
	assert.Zero(t, status.TotalEvents)

	_, err = svc.GetSyncStatus(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnknownConnector)
}
