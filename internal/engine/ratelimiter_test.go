package engine

import (
	"context"
	"testing"
)

func setupTestRL(t *testing.T) *RateLimiter {
	t.Helper()
	client, _ := setupRedis(t)
	return NewRateLimiter(client, testLogger())
}

func TestRateLimiter_AllowsWithinLimit(t *testing.T) {
	rl := setupTestRL(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if !rl.Allow(ctx, "conn_1", 5) {
			t.Errorf("call %d should be allowed (limit=5)", i+1)
		}
	}
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	rl := setupTestRL(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		rl.Allow(ctx, "conn_1", 3)
	}
	if rl.Allow(ctx, "conn_1", 3) {
		t.Error("fourth call in the window should be blocked")
	}
}

func TestRateLimiter_ZeroLimitAllowsAll(t *testing.T) {
	rl := setupTestRL(t)
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		if !rl.Allow(ctx, "conn_1", 0) {
			t.Fatalf("call %d should be allowed with limit=0", i+1)
		}
	}
}

func TestRateLimiter_IsolationBetweenConnectors(t *testing.T) {
	rl := setupTestRL(t)
	ctx := context.Background()

	rl.Allow(ctx, "conn_1", 2)
	rl.Allow(ctx, "conn_1", 2)

	if rl.Allow(ctx, "conn_1", 2) {
		t.Error("conn_1 should be blocked")
	}
	if !rl.Allow(ctx, "conn_2", 2) {
		t.Error("conn_2 has its own window")
	}
}

func TestRateLimiter_FailsOpen(t *testing.T) {
	client, mr := setupRedis(t)
	rl := NewRateLimiter(client, testLogger())
	mr.Close()

	if !rl.Allow(context.Background(), "conn_1", 1) {
		t.Error("limiter should let calls through when redis is down")
	}
}
