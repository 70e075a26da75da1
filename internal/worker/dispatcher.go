package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/Priya8975/socialproof-pipeline/internal/engine"
	"github.com/Priya8975/socialproof-pipeline/internal/metrics"
)

// Dispatcher moves due connectors from the Redis sync queue into the pool.
type Dispatcher struct {
	queue        *engine.SyncQueue
	pool         *Pool
	metrics      *metrics.Metrics
	logger       *slog.Logger
	pollInterval time.Duration
	batchSize    int64
}

func NewDispatcher(queue *engine.SyncQueue, pool *Pool, m *metrics.Metrics, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		queue:        queue,
		pool:         pool,
		metrics:      m,
		logger:       logger,
		pollInterval: time.Second,
		batchSize:    10,
	}
}

// Start runs until ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Info("dispatcher started")

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopping")
			return
		case <-ticker.C:
			d.dispatch(ctx)
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context) {
	jobs, err := d.queue.Claim(ctx, time.Now(), d.batchSize)
	if err != nil {
		d.logger.Error("failed to poll sync queue", "error", err)
		return
	}

	for i, job := range jobs {
		if !d.pool.Submit(ctx, job) {
			for _, rest := range jobs[i:] {
				d.pool.syncer.Requeue(ctx, rest)
			}
			return
		}
	}

	if depth, err := d.queue.Depth(ctx); err == nil {
		d.metrics.SetQueueDepth(depth)
	}
}
