package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"

	"github.com/Priya8975/socialproof-pipeline/internal/adapter"
	"github.com/Priya8975/socialproof-pipeline/internal/domain"
)

const maxPageBytes = 8 << 20

// Page is one batch of raw provider events plus the cursor to resume from
// once they are stored. Cursor is empty when the page had no items.
type Page struct {
	Items  []json.RawMessage
	Cursor string
}

// Fetcher retrieves the events a connector has not seen yet.
type Fetcher interface {
	Fetch(ctx context.Context, conn domain.Connector, spec adapter.PollSpec) (Page, error)
}

// HTTPFetcher pages provider REST APIs described by a PollSpec.
type HTTPFetcher struct {
	client *retryablehttp.Client
}

// NewHTTPFetcher retries transient failures (connection errors, 429, 5xx)
// up to retryMax times with exponential backoff.
func NewHTTPFetcher(logger *slog.Logger, retryMax int) *HTTPFetcher {
	c := retryablehttp.NewClient()
	c.RetryMax = retryMax
	c.RetryWaitMin = 200 * time.Millisecond
	c.RetryWaitMax = 2 * time.Second
	c.Logger = logger
	return &HTTPFetcher{client: c}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, conn domain.Connector, spec adapter.PollSpec) (Page, error) {
	u, err := pollURL(conn, spec)
	if err != nil {
		return Page{}, err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Page{}, fmt.Errorf("building poll request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "socialproof-pipeline/1.0")
	if conn.APIKey != "" {
		if spec.APIKeyHeader != "" {
			req.Header.Set(spec.APIKeyHeader, conn.APIKey)
		} else {
			req.Header.Set("Authorization", "Bearer "+conn.APIKey)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("polling %s: %w", conn.Provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return Page{}, fmt.Errorf("reading %s response: %w", conn.Provider, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Page{}, fmt.Errorf("polling %s: provider returned status %d", conn.Provider, resp.StatusCode)
	}
	return parsePage(body, spec)
}

func pollURL(conn domain.Connector, spec adapter.PollSpec) (string, error) {
	base := conn.BaseURL
	if base == "" {
		base = spec.DefaultBaseURL
	}
	if base == "" {
		return "", fmt.Errorf("%w: connector %s has no base_url", ErrInvalidConnector, conn.ID)
	}

	u, err := url.Parse(strings.TrimRight(base, "/") + spec.Path)
	if err != nil {
		return "", fmt.Errorf("parsing poll url: %w", err)
	}
	q := u.Query()
	for k, v := range spec.Query {
		q.Set(k, v)
	}
	if conn.Cursor != "" && spec.CursorParam != "" {
		q.Set(spec.CursorParam, conn.Cursor)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func parsePage(body []byte, spec adapter.PollSpec) (Page, error) {
	if !gjson.ValidBytes(body) {
		return Page{}, fmt.Errorf("provider response is not valid JSON")
	}
	items := gjson.GetBytes(body, spec.ItemsPath)
	if !items.IsArray() {
		return Page{}, fmt.Errorf("provider response has no event list at %q", spec.ItemsPath)
	}

	var page Page
	items.ForEach(func(_, item gjson.Result) bool {
		page.Items = append(page.Items, json.RawMessage(item.Raw))
		return true
	})
	if len(page.Items) == 0 || spec.CursorPath == "" {
		return page, nil
	}

	edge := page.Items[len(page.Items)-1]
	if spec.CursorFromFirst {
		edge = page.Items[0]
	}
	page.Cursor = gjson.GetBytes(edge, spec.CursorPath).String()
	return page, nil
}
