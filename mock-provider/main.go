// Command mock-provider serves fake provider APIs for polling development.
// It exposes the Shopify, Stripe, WooCommerce and Google Reviews list
// endpoints the pollers read, and keeps appending new events over time.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const pageSize = 5

var (
	names    = []string{"Sarah Connor", "Liam Park", "Ana Souza", "Kenji Ito", "Maya Cohen", "Tom Berg"}
	cities   = []string{"Denver", "Lisbon", "Osaka", "Austin", "Oslo", "Leeds"}
	products = []string{"Trail Runner", "Pro plan", "Espresso Kit", "Wool Beanie", "Desk Lamp"}
	stars    = []string{"FIVE", "FOUR", "FIVE", "THREE", "FIVE"}
)

var requestCount atomic.Int64

// feed is the growing list of fake purchases every endpoint renders from.
type feed struct {
	mu     sync.RWMutex
	events []purchase
}

type purchase struct {
	seq  int
	at   time.Time
	name string
	city string
	item string
}

func (f *feed) add(now time.Time) purchase {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.events)
	p := purchase{
		seq:  n + 1,
		at:   now.UTC().Truncate(time.Second),
		name: names[n%len(names)],
		city: cities[(n/2)%len(cities)],
		item: products[n%len(products)],
	}
	f.events = append(f.events, p)
	return p
}

// after returns up to pageSize events with seq > seq, oldest first.
func (f *feed) after(seq int) []purchase {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if seq < 0 {
		seq = 0
	}
	if seq >= len(f.events) {
		return nil
	}
	end := min(seq+pageSize, len(f.events))
	return append([]purchase(nil), f.events[seq:end]...)
}

func (f *feed) since(t time.Time) []purchase {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []purchase
	for _, p := range f.events {
		if p.at.After(t) {
			out = append(out, p)
			if len(out) == pageSize {
				break
			}
		}
	}
	return out
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	port := getEnv("PORT", "9090")
	interval := 10 * time.Second
	if v, err := time.ParseDuration(os.Getenv("MOCK_EVENT_INTERVAL")); err == nil && v > 0 {
		interval = v
	}
	failEvery, _ := strconv.Atoi(os.Getenv("MOCK_FAIL_EVERY"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	f := &feed{}
	for i := 0; i < 8; i++ {
		f.add(time.Now().Add(time.Duration(i-8) * time.Minute))
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				p := f.add(now)
				logger.Info("new purchase", "seq", p.seq, "name", p.name, "item", p.item)
			}
		}
	}()

	server := &http.Server{Addr: ":" + port, Handler: newRouter(f, failEvery, logger)}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	logger.Info("mock provider starting", "port", port, "event_interval", interval.String(), "fail_every", failEvery)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func newRouter(f *feed, failEvery int, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			count := requestCount.Add(1)
			logger.Info("request", "n", count, "method", req.Method, "path", req.URL.Path, "query", req.URL.RawQuery)
			// Every Nth call fails so retries and the circuit breaker can be watched.
			if failEvery > 0 && count%int64(failEvery) == 0 {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "temporarily unavailable"})
				return
			}
			next.ServeHTTP(w, req)
		})
	})

	r.Get("/admin/api/2024-01/orders.json", func(w http.ResponseWriter, req *http.Request) {
		since, _ := strconv.Atoi(req.URL.Query().Get("since_id"))
		orders := []map[string]any{}
		for _, p := range f.after(since - 1000) {
			first, _, _ := strings.Cut(p.name, " ")
			orders = append(orders, map[string]any{
				"id":              1000 + p.seq,
				"created_at":      p.at.Format(time.RFC3339),
				"total_price":     fmt.Sprintf("%d.00", 20+p.seq%50),
				"currency":        "USD",
				"customer":        map[string]any{"first_name": first},
				"line_items":      []map[string]any{{"title": p.item}},
				"billing_address": map[string]any{"city": p.city, "country": "United States"},
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
	})

	// Stripe lists newest first and pages backwards from ending_before.
	r.Get("/v1/events", func(w http.ResponseWriter, req *http.Request) {
		cursor := 0
		if v := req.URL.Query().Get("ending_before"); v != "" {
			fmt.Sscanf(v, "evt_mock_%d", &cursor)
		}
		page := f.after(cursor)
		data := make([]map[string]any, len(page))
		for i, p := range page {
			data[len(page)-1-i] = map[string]any{
				"id":      fmt.Sprintf("evt_mock_%d", p.seq),
				"type":    "charge.succeeded",
				"created": p.at.Unix(),
				"data": map[string]any{"object": map[string]any{
					"amount":      (20 + p.seq%50) * 100,
					"currency":    "usd",
					"description": p.item,
					"billing_details": map[string]any{
						"name":    p.name,
						"address": map[string]any{"city": p.city, "country": "US"},
					},
				}},
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"object": "list", "data": data, "has_more": false})
	})

	r.Get("/wp-json/wc/v3/orders", func(w http.ResponseWriter, req *http.Request) {
		after, _ := time.Parse("2006-01-02T15:04:05", req.URL.Query().Get("after"))
		orders := []map[string]any{}
		for _, p := range f.since(after) {
			first, last, _ := strings.Cut(p.name, " ")
			orders = append(orders, map[string]any{
				"id":               5000 + p.seq,
				"date_created_gmt": p.at.Format("2006-01-02T15:04:05"),
				"total":            fmt.Sprintf("%d.00", 20+p.seq%50),
				"currency":         "EUR",
				"billing":          map[string]any{"first_name": first, "last_name": last, "city": p.city, "country": "PT"},
				"line_items":       []map[string]any{{"name": p.item}},
			})
		}
		writeJSON(w, http.StatusOK, orders)
	})

	r.Get("/v4/reviews", func(w http.ResponseWriter, req *http.Request) {
		after, _ := time.Parse(time.RFC3339, req.URL.Query().Get("updated_after"))
		reviews := []map[string]any{}
		for _, p := range f.since(after) {
			reviews = append(reviews, map[string]any{
				"reviewId":   fmt.Sprintf("rev_mock_%d", p.seq),
				"reviewer":   map[string]any{"displayName": p.name},
				"starRating": stars[p.seq%len(stars)],
				"comment":    "Loved the " + p.item,
				"createTime": p.at.Format(time.RFC3339),
				"updateTime": p.at.Format(time.RFC3339),
				"location":   map[string]any{"title": p.city + " store"},
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"reviews": reviews})
	})

	r.Get("/stats", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.RLock()
		n := len(f.events)
		f.mu.RUnlock()
		writeJSON(w, http.StatusOK, map[string]int64{"total_requests": requestCount.Load(), "events": int64(n)})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
