package ports

import (
	"context"

	"github.com/autoforum/license-service/internal/core/domain"
)

// LoginInput carries a login attempt. Login is a username or an email address.
type LoginInput struct {
	Login    string
	Password string
	Remember bool
	ClientIP string
}

// RegisterInput carries a registration attempt.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	ClientIP string
}

// AuthResult is a freshly issued session plus the member it belongs to.
type AuthResult struct {
	Session *domain.Session
	User    *domain.User
}

// MemberOverview is the dashboard view of the current member.
type MemberOverview struct {
	User     *domain.User
	Licenses []domain.License
}

// AuthService defines member authentication and profile use cases.
type AuthService interface {
	Login(ctx context.Context, in LoginInput) (*AuthResult, error)
	Register(ctx context.Context, in RegisterInput) (*AuthResult, error)
	Logout(ctx context.Context, session *domain.Session) error
	// Authenticate resolves a bearer token into a live session.
	Authenticate(ctx context.Context, token string) (*domain.Session, error)
	UpdateProfile(ctx context.Context, userID string, update domain.ProfileUpdate) (*domain.User, error)
	Me(ctx context.Context, userID string) (*MemberOverview, error)
}

// Authenticator verifies a password for a member. Authenticators run in
// ascending Priority; each receives the error produced by the earlier ones.
type Authenticator interface {
	Priority() int
	Authenticate(ctx context.Context, user *domain.User, password string, prior error) error
}
