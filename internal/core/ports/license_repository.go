package ports

import (
	"context"
	"time"

	"github.com/autoforum/license-service/internal/core/domain"
)

// LicenseRepository defines persistence operations for licenses.
//
// The conditional methods carry the expected state in the update filter and
// return domain.ErrConflict when the stored document no longer matches, so
// concurrent writers on the same license are serialised by the store.
type LicenseRepository interface {
	// Create returns domain.ErrLicenseKeyExists on a duplicate key.
	Create(ctx context.Context, l *domain.License) (*domain.License, error)
	FindByID(ctx context.Context, id string) (*domain.License, error)
	FindByKey(ctx context.Context, key string) (*domain.License, error)
	FindByOwner(ctx context.Context, ownerID string) ([]domain.License, error)
	FindByOrder(ctx context.Context, orderID string) ([]domain.License, error)
	FindByOrderProduct(ctx context.Context, orderID, productID string) (*domain.License, error)
	KeyExists(ctx context.Context, key string) (bool, error)
	// Update replaces the mutable fields of an existing license unconditionally.
	Update(ctx context.Context, l *domain.License) (*domain.License, error)
	Delete(ctx context.Context, id string) error

	// BindHWID attaches hwid only while the license is active and unbound.
	BindHWID(ctx context.Context, id, hwid string) (*domain.License, error)
	// ResetHWID clears the fingerprint, increments reset_count and stamps
	// last_reset_at, only while active with reset_count == expectedResets.
	ResetHWID(ctx context.Context, id string, expectedResets int, at time.Time) (*domain.License, error)
	// ForceReset clears the fingerprint and zeroes reset_count unconditionally.
	ForceReset(ctx context.Context, id string) (*domain.License, error)
	// Transition moves the license to `to` only if its status is one of from.
	// A non-nil expiresAt is written alongside the status.
	Transition(ctx context.Context, id string, from []domain.LicenseStatus, to domain.LicenseStatus, expiresAt *time.Time) (*domain.License, error)
}
