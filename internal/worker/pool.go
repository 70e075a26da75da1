package worker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Priya8975/socialproof-pipeline/internal/engine"
)

// Pool runs scheduled syncs on a fixed number of goroutines.
type Pool struct {
	numWorkers int
	jobs       chan engine.SyncJob
	syncer     *Syncer
	logger     *slog.Logger
	wg         sync.WaitGroup
}

func NewPool(numWorkers int, syncer *Syncer, logger *slog.Logger) *Pool {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	return &Pool{
		numWorkers: numWorkers,
		jobs:       make(chan engine.SyncJob, numWorkers*2),
		syncer:     syncer,
		logger:     logger,
	}
}

// Start launches the workers. They run until Stop closes the job channel.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	p.logger.Info("worker pool started", "num_workers", p.numWorkers)
}

// Submit hands a job to a worker, waiting for a free slot. It reports
// false if ctx ends first; the caller still owns the job then.
func (p *Pool) Submit(ctx context.Context, job engine.SyncJob) bool {
	select {
	case p.jobs <- job:
		return true
	case <-ctx.Done():
		return false
	}
}

// Stop closes the job channel and waits for the workers to drain it. No
// Submit may run concurrently with or after Stop.
func (p *Pool) Stop() {
	close(p.jobs)
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()

	for job := range p.jobs {
		if ctx.Err() != nil {
			p.syncer.Requeue(ctx, job)
			continue
		}
		p.syncer.Run(ctx, job)
	}
}
