// Package ratelimit counts attempts per key over a sliding window.
//
// Each recorded attempt increments the counter and pushes its expiry out to a
// full window, so a client that keeps trying stays locked out until it stops
// for at least one window.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/autoforum/license-service/internal/core/ports"
)

const keyPrefix = "rl:"

// CounterStore is an atomic, expiring integer counter.
type CounterStore interface {
	// Count returns the counter value and its remaining lifetime. A missing or
	// expired counter reports zero.
	Count(ctx context.Context, key string) (n int64, ttl time.Duration, err error)
	// Incr increments the counter and resets its lifetime to window in one
	// atomic step.
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
	Delete(ctx context.Context, key string) error
}

// Limiter implements ports.RateLimiter over a CounterStore.
type Limiter struct {
	store CounterStore
}

var _ ports.RateLimiter = (*Limiter)(nil)

// New returns a Limiter backed by store.
func New(store CounterStore) *Limiter {
	return &Limiter{store: store}
}

// IsLimited reports whether key has reached maxAttempts within the open window.
func (l *Limiter) IsLimited(ctx context.Context, key string, maxAttempts int, window time.Duration) (ports.Decision, error) {
	n, ttl, err := l.store.Count(ctx, keyPrefix+key)
	if err != nil {
		return ports.Decision{}, fmt.Errorf("rate limit count %s: %w", key, err)
	}
	if n < int64(maxAttempts) {
		return ports.Decision{}, nil
	}
	if ttl <= 0 {
		ttl = window
	}
	return ports.Decision{Limited: true, RetryAfter: ttl}, nil
}

// RecordAttempt counts one attempt against key and extends its window.
func (l *Limiter) RecordAttempt(ctx context.Context, key string, window time.Duration) error {
	if _, err := l.store.Incr(ctx, keyPrefix+key, window); err != nil {
		return fmt.Errorf("rate limit record %s: %w", key, err)
	}
	return nil
}

// Clear forgets all attempts for key.
func (l *Limiter) Clear(ctx context.Context, key string) error {
	if err := l.store.Delete(ctx, keyPrefix+key); err != nil {
		return fmt.Errorf("rate limit clear %s: %w", key, err)
	}
	return nil
}
