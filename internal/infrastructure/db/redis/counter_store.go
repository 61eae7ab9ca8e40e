package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/autoforum/license-service/internal/ratelimit"
)

// CounterStore backs the rate limiter with expiring Redis integers.
type CounterStore struct {
	client *redis.Client
}

var _ ratelimit.CounterStore = (*CounterStore)(nil)

func NewCounterStore(client *redis.Client) *CounterStore {
	return &CounterStore{client: client}
}

func (s *CounterStore) Count(ctx context.Context, key string) (int64, time.Duration, error) {
	var get *redis.StringCmd
	var ttl *redis.DurationCmd
	_, err := s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		get = p.Get(ctx, key)
		ttl = p.PTTL(ctx, key)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, 0, fmt.Errorf("counter get: %w", err)
	}

	n, err := get.Int64()
	if errors.Is(err, redis.Nil) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("counter parse: %w", err)
	}
	// PTTL reports negative values for keys without expiry.
	remaining := ttl.Val()
	if remaining < 0 {
		remaining = 0
	}
	return n, remaining, nil
}

// Incr increments and re-arms the expiry inside MULTI/EXEC so a counter can
// never be left without a TTL.
func (s *CounterStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, key)
		p.PExpire(ctx, key, window)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("counter incr: %w", err)
	}
	return incr.Val(), nil
}

func (s *CounterStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("counter delete: %w", err)
	}
	return nil
}
