package ports

import (
	"context"
	"time"
)

// SessionRevocationStore records logged-out session ids until their tokens expire.
type SessionRevocationStore interface {
	Revoke(ctx context.Context, sessionID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
}

// ActionTokenStore holds single-use anti-replay tokens for admin actions.
type ActionTokenStore interface {
	Put(ctx context.Context, key, token string, ttl time.Duration) error
	// Take returns and deletes the token stored under key. ok is false when absent.
	Take(ctx context.Context, key string) (token string, ok bool, err error)
}

// EventDedup remembers processed webhook event ids.
type EventDedup interface {
	// Claim marks id as seen and reports whether this call was the first to do so.
	Claim(ctx context.Context, id string) (bool, error)
	// Release forgets id so a redelivery is processed again.
	Release(ctx context.Context, id string) error
}
