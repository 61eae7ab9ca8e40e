package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/autoforum/license-service/internal/core/domain"
	"github.com/autoforum/license-service/internal/core/ports"
)

const (
	maxDisplayNameLen = 60
	maxBioLen         = 500
	maxLocationLen    = 100
	maxSignatureLen   = 500
	minPasswordLen    = 8
	maxPasswordLen    = 72
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9 _.@-]{3,60}$`)

// AuthConfig carries session and throttling policy for AuthService.
type AuthConfig struct {
	JWTSecret           string
	SessionTTL          time.Duration
	RememberTTL         time.Duration
	LoginMaxAttempts    int
	LoginWindow         time.Duration
	RegisterMaxAttempts int
	RegisterWindow      time.Duration
	BcryptCost          int
}

func (c AuthConfig) withDefaults() AuthConfig {
	if c.SessionTTL <= 0 {
		c.SessionTTL = 24 * time.Hour
	}
	if c.RememberTTL <= 0 {
		c.RememberTTL = 14 * 24 * time.Hour
	}
	if c.LoginMaxAttempts <= 0 {
		c.LoginMaxAttempts = 5
	}
	if c.LoginWindow <= 0 {
		c.LoginWindow = 15 * time.Minute
	}
	if c.RegisterMaxAttempts <= 0 {
		c.RegisterMaxAttempts = 3
	}
	if c.RegisterWindow <= 0 {
		c.RegisterWindow = time.Hour
	}
	if c.BcryptCost == 0 {
		c.BcryptCost = bcrypt.DefaultCost
	}
	return c
}

// AuthService implements login, registration, sessions and profile edits.
type AuthService struct {
	users          ports.UserRepository
	licenses       ports.LicenseService
	limiter        ports.RateLimiter
	revocations    ports.SessionRevocationStore
	authenticators []ports.Authenticator
	cfg            AuthConfig
	validate       *validator.Validate
	signatures     *bluemonday.Policy
	dummyHash      []byte
	log            zerolog.Logger
	now            func() time.Time
}

var _ ports.AuthService = (*AuthService)(nil)

// NewAuthService returns an AuthService. authenticators are sorted by priority;
// when none are given only the bcrypt check runs.
func NewAuthService(
	users ports.UserRepository,
	licenses ports.LicenseService,
	limiter ports.RateLimiter,
	revocations ports.SessionRevocationStore,
	cfg AuthConfig,
	log zerolog.Logger,
	authenticators ...ports.Authenticator,
) (*AuthService, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("auth service: jwt secret is required")
	}
	cfg = cfg.withDefaults()
	if len(authenticators) == 0 {
		authenticators = []ports.Authenticator{PasswordAuthenticator{}}
	}
	sorted := append([]ports.Authenticator(nil), authenticators...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority() < sorted[j].Priority() })

	dummy, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("auth service: dummy hash: %w", err)
	}

	return &AuthService{
		users:          users,
		licenses:       licenses,
		limiter:        limiter,
		revocations:    revocations,
		authenticators: sorted,
		cfg:            cfg,
		validate:       validator.New(),
		signatures:     signaturePolicy(),
		dummyHash:      dummy,
		log:            log,
		now:            time.Now,
	}, nil
}

func loginKey(ip string) string    { return "login:" + ip }
func registerKey(ip string) string { return "register:" + ip }

// Login authenticates a member by username or email. Unknown members and
// wrong passwords are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, in ports.LoginInput) (*ports.AuthResult, error) {
	login := strings.TrimSpace(in.Login)
	if login == "" || in.Password == "" {
		return nil, domain.NewValidationError("username", "Username and password are required.")
	}

	key := loginKey(in.ClientIP)
	d, err := s.limiter.IsLimited(ctx, key, s.cfg.LoginMaxAttempts, s.cfg.LoginWindow)
	if err != nil {
		return nil, domain.StorageError("login limit", err)
	}
	if d.Limited {
		s.log.Warn().Str("ip", in.ClientIP).Msg("login rate limited")
		return nil, &domain.RateLimitedError{
			Message:    "Too many login attempts. Please try again later.",
			RetryAfter: d.RetryAfter,
		}
	}

	user, err := s.users.FindByLogin(ctx, login)
	if errors.Is(err, domain.ErrUserNotFound) {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(in.Password))
		s.recordFailure(ctx, key, in.ClientIP)
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := s.verify(ctx, user, in.Password); err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			s.recordFailure(ctx, key, in.ClientIP)
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if user.Banned {
		return nil, domain.ErrBanned
	}

	if err := s.limiter.Clear(ctx, key); err != nil {
		s.log.Warn().Err(err).Str("ip", in.ClientIP).Msg("failed to clear login counter")
	}

	ttl := s.cfg.SessionTTL
	if in.Remember {
		ttl = s.cfg.RememberTTL
	}
	session, err := s.issue(user, ttl)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("user_id", user.ID).Str("ip", in.ClientIP).Msg("login succeeded")
	return &ports.AuthResult{Session: session, User: user}, nil
}

func (s *AuthService) verify(ctx context.Context, user *domain.User, password string) error {
	var err error = domain.ErrInvalidCredentials
	for _, a := range s.authenticators {
		err = a.Authenticate(ctx, user, password, err)
	}
	return err
}

func (s *AuthService) recordFailure(ctx context.Context, key, ip string) {
	if err := s.limiter.RecordAttempt(ctx, key, s.cfg.LoginWindow); err != nil {
		s.log.Warn().Err(err).Str("ip", ip).Msg("failed to record login attempt")
	}
	s.log.Info().Str("ip", ip).Msg("login failed")
}

// Register creates a member account and signs it in.
func (s *AuthService) Register(ctx context.Context, in ports.RegisterInput) (*ports.AuthResult, error) {
	key := registerKey(in.ClientIP)
	d, err := s.limiter.IsLimited(ctx, key, s.cfg.RegisterMaxAttempts, s.cfg.RegisterWindow)
	if err != nil {
		return nil, domain.StorageError("register limit", err)
	}
	if d.Limited {
		s.log.Warn().Str("ip", in.ClientIP).Msg("registration rate limited")
		return nil, &domain.RateLimitedError{
			Message:    "Too many registrations from this address. Please try again later.",
			RetryAfter: d.RetryAfter,
		}
	}

	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if !usernamePattern.MatchString(username) {
		return nil, domain.NewValidationError("username",
			"Username must be 3-60 characters: letters, numbers, spaces and _ . @ - only.")
	}
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, domain.NewValidationError("email", "Please enter a valid email address.")
	}
	if n := utf8.RuneCountInString(in.Password); n < minPasswordLen || len(in.Password) > maxPasswordLen {
		return nil, domain.NewValidationError("password",
			fmt.Sprintf("Password must be between %d and %d characters.", minPasswordLen, maxPasswordLen))
	}

	if _, err := s.users.FindByUsername(ctx, username); err == nil {
		return nil, domain.ErrUsernameTaken
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, domain.ErrEmailTaken
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	user, err := s.users.Create(ctx, &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         domain.RoleMember,
		JoinedAt:     now,
		UpdatedAt:    now,
	})
	if err != nil {
		return nil, err
	}

	if err := s.limiter.RecordAttempt(ctx, key, s.cfg.RegisterWindow); err != nil {
		s.log.Warn().Err(err).Str("ip", in.ClientIP).Msg("failed to record registration")
	}

	session, err := s.issue(user, s.cfg.SessionTTL)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("user_id", user.ID).Str("ip", in.ClientIP).Msg("member registered")
	return &ports.AuthResult{Session: session, User: user}, nil
}

// Logout revokes the session until its token would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, session *domain.Session) error {
	if session == nil || session.ID == "" {
		return domain.ErrUnauthenticated
	}
	ttl := session.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.revocations.Revoke(ctx, session.ID, ttl); err != nil {
		return domain.StorageError("revoke session", err)
	}
	return nil
}

// Authenticate parses a bearer token and rejects revoked sessions.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.Session, error) {
	claims := jwt.MapClaims{}
	tkn, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil || !tkn.Valid {
		return nil, domain.ErrUnauthenticated
	}

	sub, _ := claims["sub"].(string)
	sid, _ := claims["sid"].(string)
	username, _ := claims["username"].(string)
	role, _ := claims["role"].(string)
	exp, err := claims.GetExpirationTime()
	if sub == "" || sid == "" || err != nil || exp == nil {
		return nil, domain.ErrUnauthenticated
	}

	revoked, err := s.revocations.IsRevoked(ctx, sid)
	if err != nil {
		return nil, domain.StorageError("session revocation lookup", err)
	}
	if revoked {
		return nil, domain.ErrUnauthenticated
	}

	return &domain.Session{
		ID:        sid,
		UserID:    sub,
		Username:  username,
		Role:      domain.Role(role),
		Token:     token,
		ExpiresAt: exp.Time,
	}, nil
}

func (s *AuthService) issue(user *domain.User, ttl time.Duration) (*domain.Session, error) {
	now := s.now()
	session := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Username:  user.Username,
		Role:      user.Role,
		ExpiresAt: now.Add(ttl).UTC(),
	}
	claims := jwt.MapClaims{
		"sub":      session.UserID,
		"sid":      session.ID,
		"username": session.Username,
		"role":     string(session.Role),
		"iat":      now.Unix(),
		"exp":      session.ExpiresAt.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("sign session: %w", err)
	}
	session.Token = signed
	return session, nil
}

// UpdateProfile edits the member's own profile fields.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, update domain.ProfileUpdate) (*domain.User, error) {
	clean := domain.ProfileUpdate{}
	if update.DisplayName != nil {
		v := truncate(*update.DisplayName, maxDisplayNameLen)
		clean.DisplayName = &v
	}
	if update.Bio != nil {
		v := truncate(*update.Bio, maxBioLen)
		clean.Bio = &v
	}
	if update.Location != nil {
		v := truncate(*update.Location, maxLocationLen)
		clean.Location = &v
	}
	if update.Signature != nil {
		v := s.signatures.Sanitize(truncate(*update.Signature, maxSignatureLen))
		clean.Signature = &v
	}
	if update.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*update.Email))
		if err := s.validate.Var(email, "required,email"); err != nil {
			return nil, domain.NewValidationError("email", "Please enter a valid email address.")
		}
		existing, err := s.users.FindByEmail(ctx, email)
		switch {
		case err == nil && existing.ID != userID:
			return nil, domain.ErrEmailTaken
		case err != nil && !errors.Is(err, domain.ErrUserNotFound):
			return nil, err
		}
		clean.Email = &email
	}
	return s.users.UpdateProfile(ctx, userID, clean)
}

// Me returns the member with the licenses the dashboard shows.
func (s *AuthService) Me(ctx context.Context, userID string) (*ports.MemberOverview, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	all, err := s.licenses.FindForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	shown := make([]domain.License, 0, len(all))
	for _, l := range all {
		if l.Status == domain.LicenseActive || l.Status == domain.LicenseSuspended {
			shown = append(shown, l)
		}
	}
	return &ports.MemberOverview{User: user, Licenses: shown}, nil
}
