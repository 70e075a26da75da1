package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RateLimiter caps inbound webhook calls per connector with a one-second
// sliding window kept in a Redis sorted set.
type RateLimiter struct {
	redisClient *redis.Client
	logger      *slog.Logger
	script      *redis.Script
	window      time.Duration
}

// Drops entries older than the window, then admits the call only if the
// remaining count is under the limit.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

if redis.call('ZCARD', key) < limit then
    redis.call('ZADD', key, now, member)
    redis.call('PEXPIRE', key, window + 1000)
    return 1
end
return 0
`)

func NewRateLimiter(redisClient *redis.Client, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{
		redisClient: redisClient,
		logger:      logger,
		script:      slidingWindowScript,
		window:      time.Second,
	}
}

func rlKey(connectorID string) string {
	return fmt.Sprintf("rl:webhook:%s", connectorID)
}

// Allow reports whether another webhook call for the connector fits in the
// current window. A non-positive limit disables limiting, and Redis
// failures let the call through.
func (rl *RateLimiter) Allow(ctx context.Context, connectorID string, limit int) bool {
	if limit <= 0 {
		return true
	}

	now := time.Now().UnixMilli()
	result, err := rl.script.Run(ctx, rl.redisClient, []string{rlKey(connectorID)},
		now, rl.window.Milliseconds(), limit, uuid.NewString(),
	).Int64()
	if err != nil {
		rl.logger.Error("rate limiter script failed", "connector_id", connectorID, "error", err)
		return true
	}

	if result == 0 {
		rl.logger.Debug("webhook rate limited", "connector_id", connectorID, "limit", limit)
		return false
	}
	return true
}
