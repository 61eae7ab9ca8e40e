package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/autoforum/license-service/internal/core/domain"
	"github.com/autoforum/license-service/internal/core/ports"
)

const (
	primaryPriority = 20
	legacyPriority  = 30
)

// PasswordAuthenticator checks the canonical bcrypt hash.
type PasswordAuthenticator struct{}

var _ ports.Authenticator = PasswordAuthenticator{}

func (PasswordAuthenticator) Priority() int { return primaryPriority }

func (PasswordAuthenticator) Authenticate(_ context.Context, user *domain.User, password string, _ error) error {
	if user.PasswordHash == "" || user.PasswordHash == domain.LegacyPasswordSentinel {
		return domain.ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return domain.ErrInvalidCredentials
	}
	return nil
}

// LegacyBridge accepts passwords of accounts imported from the previous forum,
// stored as HMAC-SHA512(key, password), and upgrades them to bcrypt on first
// successful login.
type LegacyBridge struct {
	users ports.UserRepository
	cost  int
	log   zerolog.Logger
}

var _ ports.Authenticator = (*LegacyBridge)(nil)

// NewLegacyBridge returns a LegacyBridge persisting migrated hashes through users.
func NewLegacyBridge(users ports.UserRepository, bcryptCost int, log zerolog.Logger) *LegacyBridge {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &LegacyBridge{users: users, cost: bcryptCost, log: log}
}

func (b *LegacyBridge) Priority() int { return legacyPriority }

// Authenticate only acts on a credential failure from an earlier authenticator.
// Any problem with the legacy data leaves that failure untouched.
func (b *LegacyBridge) Authenticate(ctx context.Context, user *domain.User, password string, prior error) error {
	if prior == nil || !errors.Is(prior, domain.ErrInvalidCredentials) {
		return prior
	}
	if !user.HasLegacyCredentials() {
		return prior
	}

	key, err := hex.DecodeString(user.LegacyKey)
	if err != nil {
		b.log.Warn().Str("user_id", user.ID).Msg("legacy key is not valid hex")
		return prior
	}
	want, err := hex.DecodeString(user.LegacyDigest)
	if err != nil {
		b.log.Warn().Str("user_id", user.ID).Msg("legacy digest is not valid hex")
		return prior
	}

	mac := hmac.New(sha512.New, key)
	mac.Write([]byte(password))
	if !hmac.Equal(mac.Sum(nil), want) {
		return prior
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		b.log.Error().Err(err).Str("user_id", user.ID).Msg("legacy password re-hash failed")
		return nil
	}
	if err := b.users.MigratePassword(ctx, user.ID, string(hash)); err != nil {
		// The password was proven; the next login retries the migration.
		b.log.Error().Err(err).Str("user_id", user.ID).Msg("legacy password migration not persisted")
		return nil
	}

	user.PasswordHash = string(hash)
	user.LegacyKey = ""
	user.LegacyDigest = ""
	b.log.Info().Str("user_id", user.ID).Msg("legacy password migrated")
	return nil
}
