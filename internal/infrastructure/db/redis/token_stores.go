package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/autoforum/license-service/internal/core/ports"
)

const (
	revokedPrefix     = "auth:revoked:"
	actionTokenPrefix = "admin:token:"
	dedupPrefix       = "webhook:event:"
	dedupTTL          = 24 * time.Hour
)

// RevocationStore remembers logged-out session ids until their tokens expire.
type RevocationStore struct {
	client *redis.Client
}

var _ ports.SessionRevocationStore = (*RevocationStore)(nil)

func NewRevocationStore(client *redis.Client) *RevocationStore {
	return &RevocationStore{client: client}
}

func (s *RevocationStore) Revoke(ctx context.Context, sessionID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, revokedPrefix+sessionID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func (s *RevocationStore) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.client.Exists(ctx, revokedPrefix+sessionID).Result()
	if err != nil {
		return false, fmt.Errorf("revocation check: %w", err)
	}
	return n > 0, nil
}

// ActionTokenStore keeps single-use admin action tokens.
type ActionTokenStore struct {
	client *redis.Client
}

var _ ports.ActionTokenStore = (*ActionTokenStore)(nil)

func NewActionTokenStore(client *redis.Client) *ActionTokenStore {
	return &ActionTokenStore{client: client}
}

func (s *ActionTokenStore) Put(ctx context.Context, key, token string, ttl time.Duration) error {
	if err := s.client.Set(ctx, actionTokenPrefix+key, token, ttl).Err(); err != nil {
		return fmt.Errorf("store action token: %w", err)
	}
	return nil
}

// Take uses GETDEL so two concurrent submissions cannot both consume a token.
func (s *ActionTokenStore) Take(ctx context.Context, key string) (string, bool, error) {
	token, err := s.client.GetDel(ctx, actionTokenPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("take action token: %w", err)
	}
	return token, true, nil
}

// DedupChecker provides idempotency checks for webhook deliveries.
// Key format: webhook:event:<event_id>
type DedupChecker struct {
	client *redis.Client
}

var _ ports.EventDedup = (*DedupChecker)(nil)

// NewDedupChecker creates a DedupChecker wrapping the given Redis client.
func NewDedupChecker(client *redis.Client) *DedupChecker {
	return &DedupChecker{client: client}
}

// Claim marks the event as seen; only the first caller gets true.
func (d *DedupChecker) Claim(ctx context.Context, id string) (bool, error) {
	ok, err := d.client.SetNX(ctx, dedupPrefix+id, "1", dedupTTL).Result()
	if err != nil {
		return false, fmt.Errorf("dedup claim: %w", err)
	}
	return ok, nil
}

// Release forgets the event so a redelivery is processed again.
func (d *DedupChecker) Release(ctx context.Context, id string) error {
	if err := d.client.Del(ctx, dedupPrefix+id).Err(); err != nil {
		return fmt.Errorf("dedup release: %w", err)
	}
	return nil
}
