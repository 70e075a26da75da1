package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/Priya8975/socialproof-pipeline/internal/adapter"
	"github.com/Priya8975/socialproof-pipeline/internal/engine"
	"github.com/Priya8975/socialproof-pipeline/internal/ingest"
	"github.com/Priya8975/socialproof-pipeline/internal/metrics"
	"github.com/Priya8975/socialproof-pipeline/internal/template"
	ws "github.com/Priya8975/socialproof-pipeline/internal/websocket"
)

// Store is the persistence the HTTP layer reads from directly.
type Store interface {
	EventLister
	StatsStore
}

// Deps wires the router. Redis, Breaker, Queue, Limiter, Hub and Metrics
// are optional.
type Deps struct {
	Registry *adapter.Registry
	Service  *ingest.Service
	Store    Store
	Renderer *template.Renderer
	Redis    Pinger
	Breaker  *engine.CircuitBreaker
	Queue    *engine.SyncQueue
	Limiter  *engine.RateLimiter
	Hub      *ws.Hub
	Metrics  *metrics.Metrics
	// WebhookRateLimit is requests per second per connector; 0 disables it.
	WebhookRateLimit int
	Logger           *slog.Logger
}

// NewRouter creates and configures the HTTP router.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", ConnectorHeader},
		MaxAge:         900,
	}).Handler)

	var (
		queue     QueueDepther
		hub       ClientCounter
		publisher PreviewPublisher
		limiter   *engine.RateLimiter
	)
	if d.Queue != nil {
		queue = d.Queue
	}
	if d.Hub != nil {
		hub, publisher = d.Hub, d.Hub
	}
	if d.WebhookRateLimit > 0 {
		limiter = d.Limiter
	}

	webhookHandler := NewWebhookHandler(d.Service, d.Registry, limiter, d.WebhookRateLimit, d.Metrics, d.Logger)
	connHandler := NewConnectorHandler(d.Service, d.Breaker, d.Queue, d.Logger)
	tmplHandler := NewTemplateHandler(d.Registry, d.Renderer, publisher, d.Metrics, d.Logger)
	eventHandler := NewEventHandler(d.Store, d.Registry, d.Logger)
	providerHandler := NewProviderHandler(d.Registry)
	healthHandler := NewHealthHandler(d.Store, d.Redis, queue, hub, d.Logger)

	if d.Hub != nil {
		r.Get("/ws", d.Hub.HandleWebSocket)
	}
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics.Handler())
	}

	r.Post("/webhooks/{provider}", webhookHandler.Receive)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.Health)
		r.Get("/stats", healthHandler.Stats)

		r.Route("/connectors", func(r chi.Router) {
			r.Post("/", connHandler.Register)
			r.Get("/{id}", connHandler.Get)
			r.Get("/{id}/sync-status", connHandler.SyncStatus)
			r.Post("/{id}/sync", connHandler.SyncNow)
		})

		r.Route("/templates", func(r chi.Router) {
			r.Post("/extract", tmplHandler.Extract)
			r.Post("/automap", tmplHandler.AutoMap)
			r.Post("/validate", tmplHandler.Validate)
			r.Post("/render", tmplHandler.Render)
		})
		r.Post("/preview", tmplHandler.Preview)

		r.Get("/events", eventHandler.List)

		r.Route("/providers", func(r chi.Router) {
			r.Get("/", providerHandler.List)
			r.Get("/{id}/fields", providerHandler.Fields)
			r.Get("/{id}/samples", providerHandler.Samples)
		})
	})

	return r
}
