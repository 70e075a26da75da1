package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Circuit breaker states
const (
	StateClosed   = "closed"
	StateOpen     = "open"
	StateHalfOpen = "half-open"
)

const (
	DefaultFailureThreshold = 5
	DefaultCooldown         = 10 * time.Minute
)

// CircuitBreaker tracks consecutive poll failures per connector in Redis
// so that a provider that keeps failing is not hammered on every tick.
//
// - Closed: syncs run, failures are counted.
// - Open: scheduled syncs are skipped until the cooldown has passed.
// - Half-Open: one probe sync runs. Success closes, failure re-opens.
type CircuitBreaker struct {
	redisClient      *redis.Client
	logger           *slog.Logger
	failureThreshold int
	cooldownPeriod   time.Duration
}

// CircuitBreakerState is the breaker view exposed on the sync-status API.
type CircuitBreakerState struct {
	State        string `json:"state"`
	Failures     int    `json:"failures"`
	LastFailedAt string `json:"last_failed_at,omitempty"`
}

// NewCircuitBreaker uses the defaults for a non-positive threshold or
// cooldown.
func NewCircuitBreaker(redisClient *redis.Client, logger *slog.Logger, threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &CircuitBreaker{
		redisClient:      redisClient,
		logger:           logger,
		failureThreshold: threshold,
		cooldownPeriod:   cooldown,
	}
}

func cbKey(connectorID string) string {
	return fmt.Sprintf("cb:sync:%s", connectorID)
}

func (cb *CircuitBreaker) cooledDown(lastFailedAt int64) bool {
	return time.Now().Unix()-lastFailedAt >= int64(cb.cooldownPeriod.Seconds())
}

// AllowRequest reports whether a scheduled sync for the connector may run.
// Redis errors fail open.
func (cb *CircuitBreaker) AllowRequest(ctx context.Context, connectorID string) (string, bool) {
	key := cbKey(connectorID)

	data, err := cb.redisClient.HGetAll(ctx, key).Result()
	if err != nil {
		cb.logger.Error("reading circuit breaker", "connector_id", connectorID, "error", err)
		return StateClosed, true
	}
	if len(data) == 0 {
		return StateClosed, true
	}

	switch data["state"] {
	case StateOpen:
		lastFailedAt, _ := strconv.ParseInt(data["last_failed_at"], 10, 64)
		if !cb.cooledDown(lastFailedAt) {
			return StateOpen, false
		}
		flipped, err := cb.transition(ctx, key, StateOpen, StateHalfOpen)
		if err != nil {
			cb.logger.Error("half-opening circuit breaker", "connector_id", connectorID, "error", err)
			return StateOpen, false
		}
		if flipped {
			cb.logger.Info("sync circuit half-open", "connector_id", connectorID)
		}
		return StateHalfOpen, true

	case StateHalfOpen:
		// Probes for one connector are already serialized by the sync lock.
		return StateHalfOpen, true

	default:
		return StateClosed, true
	}
}

var transitionScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'state') == ARGV[1] then
    redis.call('HSET', KEYS[1], 'state', ARGV[2])
    return 1
end
return 0
`)

func (cb *CircuitBreaker) transition(ctx context.Context, key, from, to string) (bool, error) {
	n, err := transitionScript.Run(ctx, cb.redisClient, []string{key}, from, to).Int()
	return n == 1, err
}

// RecordSuccess closes the circuit and clears the failure count.
func (cb *CircuitBreaker) RecordSuccess(ctx context.Context, connectorID string) {
	key := cbKey(connectorID)

	prev, _ := cb.redisClient.HGet(ctx, key, "state").Result()
	if err := cb.redisClient.HSet(ctx, key, "state", StateClosed, "failures", 0).Err(); err != nil {
		cb.logger.Error("resetting circuit breaker", "connector_id", connectorID, "error", err)
		return
	}
	if prev == StateHalfOpen || prev == StateOpen {
		cb.logger.Info("sync circuit closed", "connector_id", connectorID)
	}
}

// RecordFailure counts a failed sync and opens the circuit at the threshold
// or when a half-open probe fails.
func (cb *CircuitBreaker) RecordFailure(ctx context.Context, connectorID string) {
	key := cbKey(connectorID)

	var incr *redis.IntCmd
	var state *redis.StringCmd
	_, err := cb.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.HIncrBy(ctx, key, "failures", 1)
		pipe.HSet(ctx, key, "last_failed_at", time.Now().Unix())
		state = pipe.HGet(ctx, key, "state")
		return nil
	})
	if err != nil && err != redis.Nil {
		cb.logger.Error("recording circuit breaker failure", "connector_id", connectorID, "error", err)
		return
	}
	failures := incr.Val()

	switch {
	case state.Val() == StateHalfOpen:
		cb.redisClient.HSet(ctx, key, "state", StateOpen)
		cb.logger.Warn("sync circuit re-opened after failed probe", "connector_id", connectorID)
	case state.Val() != StateOpen && failures >= int64(cb.failureThreshold):
		cb.redisClient.HSet(ctx, key, "state", StateOpen)
		cb.logger.Warn("sync circuit opened",
			"connector_id", connectorID,
			"failures", failures,
			"threshold", cb.failureThreshold,
		)
	case state.Val() == "":
		cb.redisClient.HSet(ctx, key, "state", StateClosed)
	}
}

// GetState reports the breaker without changing it. An open circuit past
// its cooldown is reported as half-open.
func (cb *CircuitBreaker) GetState(ctx context.Context, connectorID string) CircuitBreakerState {
	data, err := cb.redisClient.HGetAll(ctx, cbKey(connectorID)).Result()
	if err != nil || len(data) == 0 {
		return CircuitBreakerState{State: StateClosed}
	}

	failures, _ := strconv.Atoi(data["failures"])
	lastFailedAt, _ := strconv.ParseInt(data["last_failed_at"], 10, 64)

	state := data["state"]
	if state == "" {
		state = StateClosed
	}
	if state == StateOpen && cb.cooledDown(lastFailedAt) {
		state = StateHalfOpen
	}

	result := CircuitBreakerState{State: state, Failures: failures}
	if lastFailedAt > 0 {
		result.LastFailedAt = time.Unix(lastFailedAt, 0).UTC().Format(time.RFC3339)
	}
	return result
}
