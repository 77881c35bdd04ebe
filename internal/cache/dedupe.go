// Package cache de-duplicates crisis escalations so that one conversation in
// crisis produces one supervisor alert per window rather than one per
// message.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "mshauri:escalation:"

// Deduper hands out at most one acquisition per key per ttl.
type Deduper interface {
	// Acquire returns true if the caller is the first to claim key within ttl.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// EscalationKey builds the dedupe key for a session reference.
func EscalationKey(sessionRef string) string {
	return keyPrefix + sessionRef
}

// ─── REDIS ────────────────────────────────────────────────────────────────────

type redisDeduper struct {
	client *redis.Client
}

// NewRedisDeduper shares dedupe state across every instance pointing at the
// same Redis.
func NewRedisDeduper(client *redis.Client) Deduper {
	return &redisDeduper{client: client}
}

func (d *redisDeduper) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := d.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("cache: setnx %s: %w", key, err)
	}
	return ok, nil
}

// NewRedisClient dials addr and verifies the connection with a PING.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: ping %s: %w", addr, err)
	}
	return client, nil
}

// ─── IN-PROCESS ───────────────────────────────────────────────────────────────

// Memory is a per-process Deduper. Expired keys are swept on each Acquire.
type Memory struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

// NewMemoryDeduper returns an empty Memory deduper.
func NewMemoryDeduper() *Memory {
	return &Memory{expires: make(map[string]time.Time), now: time.Now}
}

// WithClock overrides the time source. Intended for tests.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func (m *Memory) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for k, exp := range m.expires {
		if !now.Before(exp) {
			delete(m.expires, k)
		}
	}

	if _, held := m.expires[key]; held {
		return false, nil
	}
	m.expires[key] = now.Add(ttl)
	return true, nil
}
