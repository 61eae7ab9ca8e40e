package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/autoforum/license-service/internal/core/domain"
	"github.com/autoforum/license-service/internal/core/ports"
)

const (
	// keyAlphabet omits 0/O and 1/I so keys survive being read aloud or retyped.
	keyAlphabet    = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"
	keyGroups      = 4
	keyGroupLen    = 4
	maxKeyAttempts = 6
	// DefaultKeyPrefix is used when no prefix is configured.
	DefaultKeyPrefix = "ESYT"
)

// LicenseService is the cached system of record for licenses.
type LicenseService struct {
	repo   ports.LicenseRepository
	cache  ports.LicenseCache
	group  singleflight.Group
	// gen advances on every invalidation; a fill that overlapped one is dropped.
	gen    atomic.Uint64
	prefix string
	log    zerolog.Logger
	now    func() time.Time
}

var _ ports.LicenseService = (*LicenseService)(nil)

// NewLicenseService returns a LicenseService. An empty prefix falls back to DefaultKeyPrefix.
func NewLicenseService(repo ports.LicenseRepository, cache ports.LicenseCache, prefix string, log zerolog.Logger) *LicenseService {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &LicenseService{
		repo:   repo,
		cache:  cache,
		prefix: strings.ToUpper(prefix),
		log:    log,
		now:    time.Now,
	}
}

// NormalizeKey canonicalises a license key as typed by a user.
func NormalizeKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}

// FindByKey looks a license up by key, consulting the cache first. Concurrent
// misses for the same key share one store read.
func (s *LicenseService) FindByKey(ctx context.Context, key string) (*domain.License, error) {
	key = NormalizeKey(key)
	if key == "" {
		return nil, domain.ErrLicenseNotFound
	}

	cached, hit, err := s.cache.GetByKey(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Msg("license cache read failed, falling back to store")
	} else if hit {
		if cached == nil {
			return nil, domain.ErrLicenseNotFound
		}
		return cached, nil
	}

	v, err, _ := s.group.Do("key:"+key, func() (any, error) {
		gen := s.gen.Load()
		l, err := s.repo.FindByKey(ctx, key)
		if errors.Is(err, domain.ErrLicenseNotFound) {
			s.storeKey(ctx, gen, key, nil)
			return nil, err
		}
		if err != nil {
			return nil, err
		}
		s.storeKey(ctx, gen, key, l)
		return l, nil
	})
	if err != nil {
		return nil, err
	}
	l := *v.(*domain.License)
	return &l, nil
}

// FindByID reads straight from the store.
func (s *LicenseService) FindByID(ctx context.Context, id string) (*domain.License, error) {
	return s.repo.FindByID(ctx, id)
}

// FindForUser returns every license owned by userID, cached per user.
func (s *LicenseService) FindForUser(ctx context.Context, userID string) ([]domain.License, error) {
	if userID == "" {
		return nil, nil
	}

	cached, hit, err := s.cache.GetForUser(ctx, userID)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("license cache read failed, falling back to store")
	} else if hit {
		return cached, nil
	}

	v, err, _ := s.group.Do("user:"+userID, func() (any, error) {
		gen := s.gen.Load()
		ls, err := s.repo.FindByOwner(ctx, userID)
		if err != nil {
			return nil, err
		}
		s.fill(ctx, gen,
			func() error { return s.cache.SetForUser(ctx, userID, ls) },
			func() error { return s.cache.InvalidateUsers(ctx, userID) },
		)
		return ls, nil
	})
	if err != nil {
		return nil, err
	}
	shared := v.([]domain.License)
	out := make([]domain.License, len(shared))
	copy(out, shared)
	return out, nil
}

// UserHasActiveLicense reports whether userID owns a license that is active
// and not past its expiry. It is the only source of premium entitlement.
func (s *LicenseService) UserHasActiveLicense(ctx context.Context, userID string) (bool, error) {
	ls, err := s.FindForUser(ctx, userID)
	if err != nil {
		return false, err
	}
	now := s.now()
	for i := range ls {
		if ls[i].ActiveAt(now) {
			return true, nil
		}
	}
	return false, nil
}

// KeyExists reports whether key is already assigned, bypassing the cache.
func (s *LicenseService) KeyExists(ctx context.Context, key string) (bool, error) {
	return s.repo.KeyExists(ctx, NormalizeKey(key))
}

// GenerateKey returns a fresh key not present in the store. After repeated
// collisions the key is widened by one group before giving up.
func (s *LicenseService) GenerateKey(ctx context.Context) (string, error) {
	for groups := keyGroups; groups <= keyGroups+1; groups++ {
		for attempt := 0; attempt < maxKeyAttempts; attempt++ {
			key, err := s.randomKey(groups)
			if err != nil {
				return "", fmt.Errorf("generate key: %w", err)
			}
			exists, err := s.repo.KeyExists(ctx, key)
			if err != nil {
				return "", fmt.Errorf("generate key: %w", err)
			}
			if !exists {
				return key, nil
			}
			s.log.Warn().Int("groups", groups).Int("attempt", attempt).Msg("license key collision")
		}
	}
	return "", domain.ErrKeyGenerationFailed
}

func (s *LicenseService) randomKey(groups int) (string, error) {
	var b strings.Builder
	b.WriteString(s.prefix)
	base := big.NewInt(int64(len(keyAlphabet)))
	for g := 0; g < groups; g++ {
		b.WriteByte('-')
		for i := 0; i < keyGroupLen; i++ {
			n, err := rand.Int(rand.Reader, base)
			if err != nil {
				return "", err
			}
			b.WriteByte(keyAlphabet[n.Int64()])
		}
	}
	return b.String(), nil
}

// Create persists a new license. A blank key is generated; a blank status means active.
func (s *LicenseService) Create(ctx context.Context, l *domain.License) (*domain.License, error) {
	l.Key = NormalizeKey(l.Key)
	if l.Key == "" {
		key, err := s.GenerateKey(ctx)
		if err != nil {
			return nil, err
		}
		l.Key = key
	}
	if l.Status == "" {
		l.Status = domain.LicenseActive
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = s.now().UTC()
	}

	created, err := s.repo.Create(ctx, l)
	if err != nil {
		return nil, err
	}
	s.Invalidate(ctx, created)
	return created, nil
}

// Update replaces a license and drops cache entries for both its old and new key and owner.
func (s *LicenseService) Update(ctx context.Context, l *domain.License) (*domain.License, error) {
	previous, err := s.repo.FindByID(ctx, l.ID)
	if err != nil {
		return nil, err
	}
	l.Key = NormalizeKey(l.Key)

	updated, err := s.repo.Update(ctx, l)
	if err != nil {
		return nil, err
	}
	s.Invalidate(ctx, previous, updated)
	return updated, nil
}

// SetStatus moves a license to status regardless of the normal lifecycle.
func (s *LicenseService) SetStatus(ctx context.Context, id string, status domain.LicenseStatus) (*domain.License, error) {
	if !status.Valid() {
		return nil, domain.NewValidationError("status", fmt.Sprintf("Unknown license status %q.", status))
	}
	previous, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if previous.Status == status {
		return previous, nil
	}
	next := *previous
	next.Status = status
	updated, err := s.repo.Update(ctx, &next)
	if err != nil {
		return nil, err
	}
	s.Invalidate(ctx, previous, updated)
	return updated, nil
}

// Delete removes a license.
func (s *LicenseService) Delete(ctx context.Context, id string) error {
	previous, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.Invalidate(ctx, previous)
	return nil
}

// Invalidate drops the key and owner cache entries of every given license.
// Call it after the store write has completed.
func (s *LicenseService) Invalidate(ctx context.Context, ls ...*domain.License) {
	s.gen.Add(1)
	var keys, owners []string
	for _, l := range ls {
		if l == nil {
			continue
		}
		if l.Key != "" {
			keys = append(keys, l.Key)
		}
		if l.OwnerID != "" {
			owners = append(owners, l.OwnerID)
		}
	}
	if len(keys) > 0 {
		if err := s.cache.InvalidateKeys(ctx, keys...); err != nil {
			s.log.Warn().Err(err).Strs("keys", maskKeys(keys)).Msg("license key cache invalidation failed")
		}
	}
	if len(owners) > 0 {
		if err := s.cache.InvalidateUsers(ctx, owners...); err != nil {
			s.log.Warn().Err(err).Strs("user_ids", owners).Msg("license user cache invalidation failed")
		}
	}
}

func (s *LicenseService) storeKey(ctx context.Context, gen uint64, key string, l *domain.License) {
	s.fill(ctx, gen,
		func() error { return s.cache.SetByKey(ctx, key, l) },
		func() error { return s.cache.InvalidateKeys(ctx, key) },
	)
}

// fill writes a value read from the store while the generation was gen. If an
// invalidation ran since, the value may predate that write and is not cached;
// one landing between the check and the write is undone by the second check.
func (s *LicenseService) fill(ctx context.Context, gen uint64, set, undo func() error) {
	if s.gen.Load() != gen {
		return
	}
	if err := set(); err != nil {
		s.log.Warn().Err(err).Msg("license cache write failed")
		return
	}
	if s.gen.Load() != gen {
		if err := undo(); err != nil {
			s.log.Warn().Err(err).Msg("license cache rollback failed")
		}
	}
}

// maskKey keeps the prefix and last group of a key for log correlation.
func maskKey(key string) string {
	first := strings.IndexByte(key, '-')
	last := strings.LastIndexByte(key, '-')
	if first < 0 || first == last {
		return "****"
	}
	return key[:first] + "-****" + key[last:]
}

func maskKeys(keys []string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = maskKey(k)
	}
	return out
}
