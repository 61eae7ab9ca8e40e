package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/autoforum/license-service/internal/core/domain"
	"github.com/autoforum/license-service/internal/ratelimit"
)

// ── Clock ─────────────────────────────────────────────────────────────────────

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// ── Users ─────────────────────────────────────────────────────────────────────

type stubUserRepo struct {
	mu            sync.Mutex
	users         map[string]*domain.User
	seq           int
	findCalls     int
	migrateCalls  int
	migrateErr    error
	reputationErr error
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[string]*domain.User)}
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}

// seed stores u directly, assigning an id when missing.
func (r *stubUserRepo) seed(u *domain.User) *domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.ID == "" {
		r.seq++
		u.ID = fmt.Sprintf("user-%d", r.seq)
	}
	r.users[u.ID] = cloneUser(u)
	return cloneUser(u)
}

func (r *stubUserRepo) get(id string) *domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneUser(r.users[id])
}

func (r *stubUserRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Username, user.Username) {
			return nil, domain.ErrUsernameTaken
		}
		if u.Email == user.Email {
			return nil, domain.ErrEmailTaken
		}
	}
	r.seq++
	copy := cloneUser(user)
	copy.ID = fmt.Sprintf("user-%d", r.seq)
	r.users[copy.ID] = cloneUser(copy)
	return copy, nil
}

func (r *stubUserRepo) find(match func(*domain.User) bool) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findCalls++
	for _, u := range r.users {
		if match(u) {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.ID == id })
}

func (r *stubUserRepo) FindByLogin(_ context.Context, login string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool {
		return strings.EqualFold(u.Username, login) || strings.EqualFold(u.Email, login)
	})
}

func (r *stubUserRepo) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return strings.EqualFold(u.Username, username) })
}

func (r *stubUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return strings.EqualFold(u.Email, email) })
}

func (r *stubUserRepo) MigratePassword(_ context.Context, id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.migrateCalls++
	if r.migrateErr != nil {
		return r.migrateErr
	}
	u, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.PasswordHash = hash
	u.LegacyKey = ""
	u.LegacyDigest = ""
	return nil
}

func (r *stubUserRepo) UpdateProfile(_ context.Context, id string, update domain.ProfileUpdate) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	if update.DisplayName != nil {
		u.DisplayName = *update.DisplayName
	}
	if update.Bio != nil {
		u.Bio = *update.Bio
	}
	if update.Location != nil {
		u.Location = *update.Location
	}
	if update.Signature != nil {
		u.Signature = *update.Signature
	}
	if update.Email != nil {
		u.Email = *update.Email
	}
	return cloneUser(u), nil
}

func (r *stubUserRepo) SetBanned(_ context.Context, id string, banned bool) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	u.Banned = banned
	return cloneUser(u), nil
}

func (r *stubUserRepo) IncrementPostCount(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.PostCount++
	return nil
}

func (r *stubUserRepo) AdjustReputation(_ context.Context, id string, delta int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reputationErr != nil {
		return r.reputationErr
	}
	u, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.Reputation += delta
	return nil
}

// ── Licenses ──────────────────────────────────────────────────────────────────

type stubLicenseRepo struct {
	mu             sync.Mutex
	byID           map[string]*domain.License
	seq            int
	collisions     int
	keyExistsCalls int
	findByKeyCalls int
	err            error

	// afterRead runs once a Find* call has taken its snapshot.
	afterRead func()
}

func newStubLicenseRepo() *stubLicenseRepo {
	return &stubLicenseRepo{byID: make(map[string]*domain.License)}
}

func cloneLicense(l *domain.License) *domain.License {
	if l == nil {
		return nil
	}
	clone := *l
	if l.LastResetAt != nil {
		t := *l.LastResetAt
		clone.LastResetAt = &t
	}
	if l.ExpiresAt != nil {
		t := *l.ExpiresAt
		clone.ExpiresAt = &t
	}
	return &clone
}

func (r *stubLicenseRepo) seed(l *domain.License) *domain.License {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l.ID == "" {
		r.seq++
		l.ID = fmt.Sprintf("lic-%d", r.seq)
	}
	if l.Status == "" {
		l.Status = domain.LicenseActive
	}
	r.byID[l.ID] = cloneLicense(l)
	return cloneLicense(l)
}

func (r *stubLicenseRepo) get(id string) *domain.License {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneLicense(r.byID[id])
}

func (r *stubLicenseRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

func (r *stubLicenseRepo) sorted(match func(*domain.License) bool) []domain.License {
	out := make([]domain.License, 0)
	for _, l := range r.byID {
		if match(l) {
			out = append(out, *cloneLicense(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *stubLicenseRepo) Create(_ context.Context, l *domain.License) (*domain.License, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, existing := range r.byID {
		if existing.Key == l.Key {
			return nil, domain.ErrLicenseKeyExists
		}
		if l.OrderID != "" && existing.OrderID == l.OrderID && existing.ProductID == l.ProductID {
			return nil, domain.ErrConflict
		}
	}
	r.seq++
	copy := cloneLicense(l)
	copy.ID = fmt.Sprintf("lic-%d", r.seq)
	r.byID[copy.ID] = cloneLicense(copy)
	return copy, nil
}

func (r *stubLicenseRepo) FindByID(_ context.Context, id string) (*domain.License, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	l, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrLicenseNotFound
	}
	return cloneLicense(l), nil
}

func (r *stubLicenseRepo) FindByKey(_ context.Context, key string) (*domain.License, error) {
	defer r.runAfterRead()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findByKeyCalls++
	if r.err != nil {
		return nil, r.err
	}
	for _, l := range r.byID {
		if l.Key == key {
			return cloneLicense(l), nil
		}
	}
	return nil, domain.ErrLicenseNotFound
}

func (r *stubLicenseRepo) FindByOwner(_ context.Context, ownerID string) ([]domain.License, error) {
	defer r.runAfterRead()
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return r.sorted(func(l *domain.License) bool { return l.OwnerID == ownerID }), nil
}

func (r *stubLicenseRepo) FindByOrder(_ context.Context, orderID string) ([]domain.License, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return r.sorted(func(l *domain.License) bool { return l.OrderID == orderID }), nil
}

func (r *stubLicenseRepo) FindByOrderProduct(_ context.Context, orderID, productID string) (*domain.License, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, l := range r.byID {
		if l.OrderID == orderID && l.ProductID == productID {
			return cloneLicense(l), nil
		}
	}
	return nil, domain.ErrLicenseNotFound
}

func (r *stubLicenseRepo) KeyExists(_ context.Context, key string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keyExistsCalls++
	if r.err != nil {
		return false, r.err
	}
	if r.collisions > 0 {
		r.collisions--
		return true, nil
	}
	for _, l := range r.byID {
		if l.Key == key {
			return true, nil
		}
	}
	return false, nil
}

func (r *stubLicenseRepo) Update(_ context.Context, l *domain.License) (*domain.License, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	if _, ok := r.byID[l.ID]; !ok {
		return nil, domain.ErrLicenseNotFound
	}
	for id, existing := range r.byID {
		if id != l.ID && existing.Key == l.Key {
			return nil, domain.ErrLicenseKeyExists
		}
	}
	r.byID[l.ID] = cloneLicense(l)
	return cloneLicense(l), nil
}

func (r *stubLicenseRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if _, ok := r.byID[id]; !ok {
		return domain.ErrLicenseNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *stubLicenseRepo) runAfterRead() {
	r.mu.Lock()
	hook := r.afterRead
	r.afterRead = nil
	r.mu.Unlock()
	if hook != nil {
		hook()
	}
}

// mutate applies fn under the lock when cond holds, else reports a conflict.
func (r *stubLicenseRepo) mutate(id string, cond func(*domain.License) bool, fn func(*domain.License)) (*domain.License, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	l, ok := r.byID[id]
	if !ok || !cond(l) {
		return nil, domain.ErrConflict
	}
	fn(l)
	return cloneLicense(l), nil
}

func (r *stubLicenseRepo) BindHWID(_ context.Context, id, hwid string) (*domain.License, error) {
	return r.mutate(id,
		func(l *domain.License) bool {
			return l.Status == domain.LicenseActive && l.HWID == ""
		},
		func(l *domain.License) {
			l.HWID = hwid
		},
	)
}

func (r *stubLicenseRepo) ResetHWID(_ context.Context, id string, expectedResets int, at time.Time) (*domain.License, error) {
	return r.mutate(id,
		func(l *domain.License) bool {
			return l.Status == domain.LicenseActive && l.ResetCount == expectedResets
		},
		func(l *domain.License) {
			l.HWID = ""
			l.ResetCount++
			t := at
			l.LastResetAt = &t
		},
	)
}

func (r *stubLicenseRepo) ForceReset(_ context.Context, id string) (*domain.License, error) {
	l, err := r.mutate(id,
		func(*domain.License) bool { return true },
		func(l *domain.License) {
			l.HWID = ""
			l.ResetCount = 0
		})
	if err == domain.ErrConflict {
		return nil, domain.ErrLicenseNotFound
	}
	return l, err
}

func (r *stubLicenseRepo) Transition(_ context.Context, id string, from []domain.LicenseStatus, to domain.LicenseStatus, expiresAt *time.Time) (*domain.License, error) {
	return r.mutate(id,
		func(l *domain.License) bool { return statusIn(l.Status, from) },
		func(l *domain.License) {
			l.Status = to
			if expiresAt != nil {
				t := *expiresAt
				l.ExpiresAt = &t
			}
		})
}

// ── License cache ─────────────────────────────────────────────────────────────

type stubLicenseCache struct {
	mu     sync.Mutex
	byKey  map[string]*domain.License
	byUser map[string][]domain.License
	getErr error
}

func newStubLicenseCache() *stubLicenseCache {
	return &stubLicenseCache{
		byKey:  make(map[string]*domain.License),
		byUser: make(map[string][]domain.License),
	}
}

func (c *stubLicenseCache) GetByKey(_ context.Context, key string) (*domain.License, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	l, ok := c.byKey[key]
	return cloneLicense(l), ok, nil
}

func (c *stubLicenseCache) SetByKey(_ context.Context, key string, l *domain.License) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byKey[key] = cloneLicense(l)
	return nil
}

func (c *stubLicenseCache) GetForUser(_ context.Context, userID string) ([]domain.License, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	ls, ok := c.byUser[userID]
	if !ok {
		return nil, false, nil
	}
	return append([]domain.License(nil), ls...), true, nil
}

func (c *stubLicenseCache) SetForUser(_ context.Context, userID string, ls []domain.License) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byUser[userID] = append([]domain.License(nil), ls...)
	return nil
}

func (c *stubLicenseCache) InvalidateKeys(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.byKey, k)
	}
	return nil
}

func (c *stubLicenseCache) InvalidateUsers(_ context.Context, userIDs ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range userIDs {
		delete(c.byUser, id)
	}
	return nil
}

// ── Token stores ──────────────────────────────────────────────────────────────

type stubRevocations struct {
	mu      sync.Mutex
	revoked map[string]time.Duration
}

func newStubRevocations() *stubRevocations {
	return &stubRevocations{revoked: make(map[string]time.Duration)}
}

func (s *stubRevocations) Revoke(_ context.Context, sid string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[sid] = ttl
	return nil
}

func (s *stubRevocations) IsRevoked(_ context.Context, sid string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.revoked[sid]
	return ok, nil
}

type stubActionTokens struct {
	mu     sync.Mutex
	tokens map[string]string
}

func newStubActionTokens() *stubActionTokens {
	return &stubActionTokens{tokens: make(map[string]string)}
}

func (s *stubActionTokens) Put(_ context.Context, key, token string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[key] = token
	return nil
}

func (s *stubActionTokens) Take(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[key]
	delete(s.tokens, key)
	return token, ok, nil
}

// ── Fixture ───────────────────────────────────────────────────────────────────

type fixture struct {
	clock    *testClock
	users    *stubUserRepo
	repo     *stubLicenseRepo
	cache    *stubLicenseCache
	limiter  *ratelimit.Limiter
	licenses *LicenseService
	hwid     *HWIDService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		clock: newTestClock(),
		users: newStubUserRepo(),
		repo:  newStubLicenseRepo(),
		cache: newStubLicenseCache(),
	}
	f.limiter = ratelimit.New(ratelimit.NewMemoryStore(f.clock.Now))
	f.licenses = NewLicenseService(f.repo, f.cache, "", zerolog.Nop())
	f.licenses.now = f.clock.Now
	f.hwid = NewHWIDService(f.licenses, f.repo, f.limiter, HWIDConfig{}, zerolog.Nop())
	f.hwid.now = f.clock.Now
	return f
}

func (f *fixture) member(t *testing.T, username string) *domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return f.users.seed(&domain.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: string(hash),
		Role:         domain.RoleMember,
		JoinedAt:     f.clock.Now(),
	})
}

func (f *fixture) license(owner string, mutate ...func(*domain.License)) *domain.License {
	l := &domain.License{
		OwnerID:   owner,
		Key:       fmt.Sprintf("ESYT-TEST-%04d-AAAA-BBBB", f.repo.count()+1),
		Status:    domain.LicenseActive,
		CreatedAt: f.clock.Now(),
	}
	for _, m := range mutate {
		m(l)
	}
	return f.repo.seed(l)
}

func timePtr(t time.Time) *time.Time { return &t }
