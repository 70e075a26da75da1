package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const SyncQueueKey = "sync_queue"

// SyncJob asks a worker to poll one connector.
type SyncJob struct {
	ConnectorID string
	DueAt       time.Time
}

// SyncQueue is a Redis sorted set of connector ids scored by the time
// their next poll is due. A connector appears at most once.
type SyncQueue struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

func NewSyncQueue(redisClient *redis.Client, logger *slog.Logger) *SyncQueue {
	return &SyncQueue{redisClient: redisClient, logger: logger}
}

func score(t time.Time) float64 {
	return float64(t.UnixMicro())
}

// Schedule sets (or moves) the connector's next due time.
func (q *SyncQueue) Schedule(ctx context.Context, connectorID string, at time.Time) error {
	err := q.redisClient.ZAdd(ctx, SyncQueueKey, redis.Z{
		Score:  score(at),
		Member: connectorID,
	}).Err()
	if err != nil {
		return fmt.Errorf("scheduling sync for %s: %w", connectorID, err)
	}
	return nil
}

// ScheduleAll enqueues connectors that are not queued yet, leaving any
// existing due time alone. It returns how many were added.
func (q *SyncQueue) ScheduleAll(ctx context.Context, connectorIDs []string, at time.Time) (int, error) {
	if len(connectorIDs) == 0 {
		return 0, nil
	}

	pipe := q.redisClient.Pipeline()
	cmds := make([]*redis.IntCmd, 0, len(connectorIDs))
	for _, id := range connectorIDs {
		cmds = append(cmds, pipe.ZAddNX(ctx, SyncQueueKey, redis.Z{Score: score(at), Member: id}))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("queuing connectors to redis: %w", err)
	}

	added := 0
	for _, cmd := range cmds {
		added += int(cmd.Val())
	}
	q.logger.Info("sync queue seeded", "connectors", len(connectorIDs), "added", added)
	return added, nil
}

// Claim removes and returns up to max connectors due at or before now.
// ZREM decides ownership, so two dispatchers never claim the same entry.
func (q *SyncQueue) Claim(ctx context.Context, now time.Time, max int64) ([]SyncJob, error) {
	entries, err := q.redisClient.ZRangeByScoreWithScores(ctx, SyncQueueKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatFloat(score(now), 'f', 0, 64),
		Count: max,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("reading due syncs: %w", err)
	}

	jobs := make([]SyncJob, 0, len(entries))
	for _, z := range entries {
		id, ok := z.Member.(string)
		if !ok {
			continue
		}
		removed, err := q.redisClient.ZRem(ctx, SyncQueueKey, id).Result()
		if err != nil {
			q.logger.Error("claiming sync job", "connector_id", id, "error", err)
			continue
		}
		if removed == 0 {
			continue
		}
		jobs = append(jobs, SyncJob{
			ConnectorID: id,
			DueAt:       time.UnixMicro(int64(z.Score)),
		})
	}
	return jobs, nil
}

// Remove drops a connector from the schedule.
func (q *SyncQueue) Remove(ctx context.Context, connectorID string) error {
	return q.redisClient.ZRem(ctx, SyncQueueKey, connectorID).Err()
}

// NextDue returns when the connector is next scheduled, or false if it is
// not queued.
func (q *SyncQueue) NextDue(ctx context.Context, connectorID string) (time.Time, bool, error) {
	s, err := q.redisClient.ZScore(ctx, SyncQueueKey, connectorID).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return time.UnixMicro(int64(s)), true, nil
}

// Depth returns the number of connectors waiting in the queue.
func (q *SyncQueue) Depth(ctx context.Context) (int64, error) {
	return q.redisClient.ZCard(ctx, SyncQueueKey).Result()
}
