package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/Priya8975/socialproof-pipeline/internal/adapter"
	"github.com/Priya8975/socialproof-pipeline/internal/api"
	"github.com/Priya8975/socialproof-pipeline/internal/config"
	"github.com/Priya8975/socialproof-pipeline/internal/domain"
	"github.com/Priya8975/socialproof-pipeline/internal/engine"
	"github.com/Priya8975/socialproof-pipeline/internal/ingest"
	"github.com/Priya8975/socialproof-pipeline/internal/metrics"
	"github.com/Priya8975/socialproof-pipeline/internal/store"
	"github.com/Priya8975/socialproof-pipeline/internal/template"
	ws "github.com/Priya8975/socialproof-pipeline/internal/websocket"
	"github.com/Priya8975/socialproof-pipeline/internal/worker"
)

// pipelineStore is implemented by both the Postgres and SQLite stores.
type pipelineStore interface {
	ingest.EventStore
	api.Store
	ListConnectors(ctx context.Context) ([]domain.Connector, error)
}

func main() {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(logger, level); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(logger *slog.Logger, level *slog.LevelVar) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	level.Set(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	rs, err := store.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer rs.Close()
	logger.Info("connected to Redis")

	registry, err := adapter.NewDefaultRegistry()
	if err != nil {
		return fmt.Errorf("building adapter registry: %w", err)
	}
	renderer, err := template.NewRenderer(cfg.RenderCacheSize)
	if err != nil {
		return err
	}

	m := metrics.New()
	hub := ws.NewHub(logger)
	queue := engine.NewSyncQueue(rs.Client(), logger)
	breaker := engine.NewCircuitBreaker(rs.Client(), logger, 0, 0)

	service := ingest.NewService(registry, st, ingest.NewHTTPFetcher(logger, 3), logger,
		ingest.Config{
			PollTimeout:     cfg.PollTimeout,
			MinSyncInterval: cfg.MinSyncInterval,
			PollInterval:    cfg.PollInterval,
		},
		ingest.WithLocker(engine.NewSyncLock(rs.Client(), logger, cfg.PollTimeout+time.Minute)),
		ingest.WithScheduler(queue),
		ingest.WithNotifier(hub),
		ingest.WithMetrics(m),
	)

	if err := seedConnectors(ctx, cfg, service, st, queue, logger); err != nil {
		return err
	}

	syncer := worker.NewSyncer(service, breaker, queue, logger, cfg.PollInterval)
	pool := worker.NewPool(cfg.NumWorkers, syncer, logger)
	dispatcher := worker.NewDispatcher(queue, pool, m, logger)

	router := api.NewRouter(api.Deps{
		Registry:         registry,
		Service:          service,
		Store:            st,
		Renderer:         renderer,
		Redis:            rs,
		Breaker:          breaker,
		Queue:            queue,
		Limiter:          engine.NewRateLimiter(rs.Client(), logger),
		Hub:              hub,
		Metrics:          m,
		WebhookRateLimit: cfg.WebhookRateLimit,
		Logger:           logger,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.PollTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	pool.Start(gctx)
	g.Go(func() error {
		dispatcher.Start(gctx)
		return nil
	})

	g.Go(func() error {
		logger.Info("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	// The dispatcher has returned, so nothing submits any more.
	pool.Stop()
	return err
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (pipelineStore, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		st, err := store.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		logger.Info("opened SQLite store", "path", cfg.SQLitePath)
		return st, func() { st.Close() }, nil

	default:
		st, err := store.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		logger.Info("connected to PostgreSQL")

		if err := st.RunMigrations(ctx); err != nil {
			st.Close()
			return nil, nil, fmt.Errorf("running migrations: %w", err)
		}
		logger.Info("database migrations applied")
		return st, st.Close, nil
	}
}

// seedConnectors registers the connectors from CONNECTORS_FILE and makes
// sure every pollable connector has a slot in the sync queue, which may
// have been lost if Redis was flushed.
func seedConnectors(ctx context.Context, cfg *config.Config, service *ingest.Service, st pipelineStore, queue *engine.SyncQueue, logger *slog.Logger) error {
	if cfg.ConnectorsFile != "" {
		seeds, err := config.LoadConnectors(cfg.ConnectorsFile)
		if err != nil {
			return err
		}
		for _, c := range seeds {
			if _, created, err := service.RegisterConnector(ctx, c); err != nil {
				return fmt.Errorf("seeding connector %s: %w", c.ID, err)
			} else if created {
				logger.Info("seeded connector", "connector_id", c.ID, "provider", c.Provider)
			}
		}
	}

	connectors, err := st.ListConnectors(ctx)
	if err != nil {
		return fmt.Errorf("listing connectors: %w", err)
	}
	pollable := lo.FilterMap(connectors, func(c domain.Connector, _ int) (string, bool) {
		return c.ID, c.SyncConfig.SupportsPolling
	})
	added, err := queue.ScheduleAll(ctx, pollable, time.Now())
	if err != nil {
		return fmt.Errorf("scheduling connectors: %w", err)
	}
	logger.Info("sync queue primed", "pollable_connectors", len(pollable), "newly_scheduled", added)
	return nil
}
