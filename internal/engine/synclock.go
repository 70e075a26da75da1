package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SyncLock serializes polls for a connector across processes. The lease
// expires on its own so a crashed holder cannot wedge the connector.
type SyncLock struct {
	redisClient *redis.Client
	logger      *slog.Logger
	ttl         time.Duration
}

// Deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`)

// NewSyncLock takes a lease ttl that should exceed the poll timeout.
func NewSyncLock(redisClient *redis.Client, logger *slog.Logger, ttl time.Duration) *SyncLock {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &SyncLock{redisClient: redisClient, logger: logger, ttl: ttl}
}

func lockKey(connectorID string) string {
	return fmt.Sprintf("lock:sync:%s", connectorID)
}

// TryLock acquires the connector's lease without waiting. When acquired
// is false another sync holds it and release is nil.
func (l *SyncLock) TryLock(ctx context.Context, connectorID string) (release func(), acquired bool, err error) {
	key := lockKey(connectorID)
	token := uuid.NewString()

	ok, err := l.redisClient.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquiring sync lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	release = func() {
		// The caller's context may already be done.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.redisClient, []string{key}, token).Err(); err != nil {
			l.logger.Error("releasing sync lock", "connector_id", connectorID, "error", err)
		}
	}
	return release, true, nil
}
