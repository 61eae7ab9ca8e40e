package ports

import (
	"context"

	"github.com/autoforum/license-service/internal/core/domain"
)

// UserRepository defines persistence operations for forum members.
type UserRepository interface {
	// Create inserts a new member. Returns domain.ErrUsernameTaken or
	// domain.ErrEmailTaken when a unique index rejects the document.
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	// FindByLogin matches either the username or the email address.
	FindByLogin(ctx context.Context, login string) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	// MigratePassword stores hash as the canonical credential and removes both
	// legacy fields in a single update.
	MigratePassword(ctx context.Context, id, hash string) error
	UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate) (*domain.User, error)
	SetBanned(ctx context.Context, id string, banned bool) (*domain.User, error)
	IncrementPostCount(ctx context.Context, id string) error
	AdjustReputation(ctx context.Context, id string, delta int) error
}
