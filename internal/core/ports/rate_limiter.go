package ports

import (
	"context"
	"time"
)

// Decision is the outcome of a rate-limit check.
type Decision struct {
	Limited bool
	// RetryAfter is how long until the window closes; zero when not limited.
	RetryAfter time.Duration
}

// RateLimiter tracks attempts per key within a sliding window.
type RateLimiter interface {
	IsLimited(ctx context.Context, key string, maxAttempts int, window time.Duration) (Decision, error)
	RecordAttempt(ctx context.Context, key string, window time.Duration) error
	Clear(ctx context.Context, key string) error
}
