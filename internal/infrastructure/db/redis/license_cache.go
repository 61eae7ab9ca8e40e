package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/autoforum/license-service/internal/core/domain"
	"github.com/autoforum/license-service/internal/core/ports"
)

const (
	licenseKeyPrefix  = "license:key:"
	licenseUserPrefix = "license:user:"
	defaultCacheTTL   = 5 * time.Minute
)

// LicenseCache caches license lookups as JSON. Misses are cached too, as an
// entry with a null license, so unknown keys do not hammer Mongo.
type LicenseCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ ports.LicenseCache = (*LicenseCache)(nil)

func NewLicenseCache(client *redis.Client, ttl time.Duration) *LicenseCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &LicenseCache{client: client, ttl: ttl}
}

type cachedLicense struct {
	License *domain.License `json:"license"`
}

func (c *LicenseCache) GetByKey(ctx context.Context, key string) (*domain.License, bool, error) {
	var entry cachedLicense
	hit, err := c.get(ctx, licenseKeyPrefix+key, &entry)
	if err != nil || !hit {
		return nil, false, err
	}
	return entry.License, true, nil
}

func (c *LicenseCache) SetByKey(ctx context.Context, key string, l *domain.License) error {
	return c.set(ctx, licenseKeyPrefix+key, cachedLicense{License: l})
}

func (c *LicenseCache) GetForUser(ctx context.Context, userID string) ([]domain.License, bool, error) {
	var ls []domain.License
	hit, err := c.get(ctx, licenseUserPrefix+userID, &ls)
	if err != nil || !hit {
		return nil, false, err
	}
	return ls, true, nil
}

func (c *LicenseCache) SetForUser(ctx context.Context, userID string, ls []domain.License) error {
	if ls == nil {
		ls = []domain.License{}
	}
	return c.set(ctx, licenseUserPrefix+userID, ls)
}

func (c *LicenseCache) InvalidateKeys(ctx context.Context, keys ...string) error {
	return c.del(ctx, licenseKeyPrefix, keys)
}

func (c *LicenseCache) InvalidateUsers(ctx context.Context, userIDs ...string) error {
	return c.del(ctx, licenseUserPrefix, userIDs)
}

func (c *LicenseCache) get(ctx context.Context, key string, dst any) (bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		// A corrupt entry is treated as a miss and overwritten on the next fill.
		return false, nil
	}
	return true, nil
}

func (c *LicenseCache) set(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

func (c *LicenseCache) del(ctx context.Context, prefix string, ids []string) error {
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			keys = append(keys, prefix+id)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}
