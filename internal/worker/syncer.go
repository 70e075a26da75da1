package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Priya8975/socialproof-pipeline/internal/domain"
	"github.com/Priya8975/socialproof-pipeline/internal/engine"
	"github.com/Priya8975/socialproof-pipeline/internal/ingest"
)

// SyncService is the slice of the ingest service the workers drive.
type SyncService interface {
	Sync(ctx context.Context, connectorID, providerID string) (domain.SyncResult, error)
	GetConnector(ctx context.Context, connectorID string) (*domain.Connector, error)
}

// retryDelay is used when the connector could not even be loaded.
const retryDelay = time.Minute

// Syncer runs one scheduled poll and puts the connector back on the queue
// for its next turn.
type Syncer struct {
	service         SyncService
	breaker         *engine.CircuitBreaker
	queue           *engine.SyncQueue
	logger          *slog.Logger
	defaultInterval time.Duration
	now             func() time.Time
}

func NewSyncer(service SyncService, breaker *engine.CircuitBreaker, queue *engine.SyncQueue, logger *slog.Logger, defaultInterval time.Duration) *Syncer {
	if defaultInterval <= 0 {
		defaultInterval = ingest.DefaultPollInterval
	}
	return &Syncer{
		service:         service,
		breaker:         breaker,
		queue:           queue,
		logger:          logger,
		defaultInterval: defaultInterval,
		now:             time.Now,
	}
}

// Run polls the job's connector unless its circuit is open.
func (s *Syncer) Run(ctx context.Context, job engine.SyncJob) {
	conn, err := s.service.GetConnector(ctx, job.ConnectorID)
	if errors.Is(err, ingest.ErrUnknownConnector) {
		s.logger.Warn("dropping sync job for deleted connector", "connector_id", job.ConnectorID)
		return
	}
	if err != nil {
		s.logger.Error("loading connector for sync", "connector_id", job.ConnectorID, "error", err)
		s.reschedule(ctx, job.ConnectorID, retryDelay)
		return
	}
	if !conn.SyncConfig.SupportsPolling {
		return
	}

	interval := conn.PollInterval
	if interval <= 0 {
		interval = s.defaultInterval
	}
	defer s.reschedule(ctx, conn.ID, interval)

	if state, allowed := s.breaker.AllowRequest(ctx, conn.ID); !allowed {
		s.logger.Debug("skipping sync, circuit open", "connector_id", conn.ID, "state", state)
		return
	}

	res, err := s.service.Sync(ctx, conn.ID, conn.Provider)
	switch {
	case errors.Is(err, ingest.ErrSyncInProgress), errors.Is(err, ingest.ErrSyncTooSoon):
		// A manual sync got there first.
		s.logger.Debug("scheduled sync skipped", "connector_id", conn.ID, "reason", err)
	case err != nil:
		s.logger.Error("scheduled sync could not start", "connector_id", conn.ID, "error", err)
		s.breaker.RecordFailure(ctx, conn.ID)
	case res.Success:
		s.breaker.RecordSuccess(ctx, conn.ID)
	default:
		s.breaker.RecordFailure(ctx, conn.ID)
	}
}

// Requeue puts a claimed job back so it is not lost on shutdown.
func (s *Syncer) Requeue(ctx context.Context, job engine.SyncJob) {
	s.reschedule(ctx, job.ConnectorID, 0)
}

func (s *Syncer) reschedule(ctx context.Context, connectorID string, after time.Duration) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.queue.Schedule(ctx, connectorID, s.now().Add(after)); err != nil {
		s.logger.Error("rescheduling sync", "connector_id", connectorID, "error", err)
	}
}
