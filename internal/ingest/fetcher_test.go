package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Priya8975/socialproof-pipeline/internal/adapter"
	"github.com/Priya8975/socialproof-pipeline/internal/domain"
)

func pollSpecOf(t *testing.T, provider string) adapter.PollSpec {
	t.Helper()
	reg, err := adapter.NewDefaultRegistry()
	require.NoError(t, err)
	a, ok := reg.Get(provider)
	require.True(t, ok)
	p, ok := a.(adapter.Poller)
	require.True(t, ok, "%s should be pollable", provider)
	return p.PollSpec()
}

func TestHTTPFetcher_ShopifyPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/api/2024-01/orders.json", r.URL.Path)
		assert.Equal(t, "1001", r.URL.Query().Get("since_id"))
		assert.Equal(t, "any", r.URL.Query().Get("status"))
		assert.Equal(t, "shpat_secret", r.Header.Get("X-Shopify-Access-Token"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"orders":[{"id":1002,"customer":{"first_name":"Ann"}},{"id":1003}]}`))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(testLogger(), 0)
	conn := domain.Connector{ID: "c1", Provider: "shopify", BaseURL: srv.URL + "/", APIKey: "shpat_secret", Cursor: "1001"}

	page, err := f.Fetch(context.Background(), conn, pollSpecOf(t, "shopify"))
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, "1003", page.Cursor)
	assert.JSONEq(t, `{"id":1002,"customer":{"first_name":"Ann"}}`, string(page.Items[0]))
}

func TestHTTPFetcher_NewestFirstCursor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		assert.Empty(t, r.URL.Query().Get("ending_before"), "no cursor on the first poll")
		w.Write([]byte(`{"data":[{"id":"evt_3"},{"id":"evt_2"}],"has_more":false}`))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(testLogger(), 0)
	conn := domain.Connector{ID: "c1", Provider: "stripe", BaseURL: srv.URL, APIKey: "sk_test"}

	page, err := f.Fetch(context.Background(), conn, pollSpecOf(t, "stripe"))
	require.NoError(t, err)
	assert.Equal(t, "evt_3", page.Cursor)
}

func TestHTTPFetcher_EmptyPageHasNoCursor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	conn := domain.Connector{ID: "c1", Provider: "woocommerce", BaseURL: srv.URL, Cursor: "2024-01-01T00:00:00"}
	page, err := NewHTTPFetcher(testLogger(), 0).Fetch(context.Background(), conn, pollSpecOf(t, "woocommerce"))
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Empty(t, page.Cursor)
}

func TestHTTPFetcher_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"orders":[]}`))
	}))
	defer srv.Close()

	conn := domain.Connector{ID: "c1", Provider: "shopify", BaseURL: srv.URL}
	_, err := NewHTTPFetcher(testLogger(), 2).Fetch(context.Background(), conn, pollSpecOf(t, "shopify"))
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestHTTPFetcher_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("since_id") {
		case "forbidden":
			w.WriteHeader(http.StatusForbidden)
		case "html":
			w.Write([]byte(`<html>maintenance</html>`))
		default:
			w.Write([]byte(`{"message":"ok"}`))
		}
	}))
	defer srv.Close()
	spec := pollSpecOf(t, "shopify")
	f := NewHTTPFetcher(testLogger(), 0)

	tests := []struct {
		name   string
		conn   domain.Connector
		substr string
	}{
		{"status", domain.Connector{BaseURL: srv.URL, Cursor: "forbidden"}, "status 403"},
		{"not json", domain.Connector{BaseURL: srv.URL, Cursor: "html"}, "not valid JSON"},
		{"no list", domain.Connector{BaseURL: srv.URL}, "no event list"},
		{"no base url", domain.Connector{}, "no base_url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.conn.ID, tt.conn.Provider = "c1", "shopify"
			_, err := f.Fetch(context.Background(), tt.conn, spec)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.substr)
		})
	}
}
