package ports

import (
	"context"

	"github.com/autoforum/license-service/internal/core/domain"
)

// LicenseCache is a best-effort read-through cache in front of LicenseRepository.
type LicenseCache interface {
	// GetByKey reports hit=true for both cached licenses and cached misses;
	// a cached miss returns a nil license.
	GetByKey(ctx context.Context, key string) (l *domain.License, hit bool, err error)
	// SetByKey caches l, or a miss when l is nil.
	SetByKey(ctx context.Context, key string, l *domain.License) error
	GetForUser(ctx context.Context, userID string) (ls []domain.License, hit bool, err error)
	SetForUser(ctx context.Context, userID string, ls []domain.License) error
	InvalidateKeys(ctx context.Context, keys ...string) error
	InvalidateUsers(ctx context.Context, userIDs ...string) error
}
