package ports

import (
	"context"
	"time"

	"github.com/autoforum/license-service/internal/core/domain"
)

// LicenseService is the cached system of record for licenses.
type LicenseService interface {
	FindByKey(ctx context.Context, key string) (*domain.License, error)
	FindByID(ctx context.Context, id string) (*domain.License, error)
	FindForUser(ctx context.Context, userID string) ([]domain.License, error)
	UserHasActiveLicense(ctx context.Context, userID string) (bool, error)
	GenerateKey(ctx context.Context) (string, error)

	Create(ctx context.Context, l *domain.License) (*domain.License, error)
	Update(ctx context.Context, l *domain.License) (*domain.License, error)
	SetStatus(ctx context.Context, id string, status domain.LicenseStatus) (*domain.License, error)
	Delete(ctx context.Context, id string) error

	// Invalidate drops cached entries for the given licenses after an
	// out-of-band write. Failures are logged, never returned.
	Invalidate(ctx context.Context, ls ...*domain.License)
}

// LicenseView is a license as shown on the member dashboard.
type LicenseView struct {
	License       domain.License
	ResetsUsed    int
	ResetsAllowed int
	// NextResetAt is set only while a reset cooldown is running.
	NextResetAt *time.Time
}

// HWIDService binds licenses to device fingerprints.
type HWIDService interface {
	ValidateAndBind(ctx context.Context, key, hwid string) (domain.ValidationResult, error)
	UserResetHWID(ctx context.Context, userID, licenseID, clientIP string) (domain.ResetResult, error)
	ForceReset(ctx context.Context, licenseID string) (*domain.License, error)
	LicenseInfo(ctx context.Context, userID string) ([]LicenseView, error)
}

// AccessGate decides whether a viewer may read premium content.
type AccessGate interface {
	CanView(ctx context.Context, viewer *domain.Session, premium bool) bool
}
