package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/autoforum/license-service/internal/core/domain"
)

// ── ValidateAndBind ───────────────────────────────────────────────────────────

func TestHWID_FirstActivationBindsAndRevalidates(t *testing.T) {
	f := newFixture(t)
	l := f.license("")
	ctx := context.Background()

	res, err := f.hwid.ValidateAndBind(ctx, l.Key, "HWID-AAAA")
	if err != nil {
		t.Fatalf("ValidateAndBind returned error: %v", err)
	}
	if res.Status != domain.ValidationValid {
		t.Fatalf("expected valid, got %s", res.Status)
	}
	if got := f.repo.get(l.ID).HWID; got != "HWID-AAAA" {
		t.Fatalf("expected fingerprint stored, got %q", got)
	}

	for i := 0; i < 3; i++ {
		res, err = f.hwid.ValidateAndBind(ctx, l.Key, "HWID-AAAA")
		if err != nil || res.Status != domain.ValidationValid {
			t.Fatalf("revalidation %d: status=%s err=%v", i, res.Status, err)
		}
	}
}

func TestHWID_MismatchNeverOverwrites(t *testing.T) {
	f := newFixture(t)
	l := f.license("", func(l *domain.License) { l.HWID = "HWID-AAAA" })

	res, err := f.hwid.ValidateAndBind(context.Background(), l.Key, "HWID-BBBB")
	if err != nil {
		t.Fatalf("ValidateAndBind returned error: %v", err)
	}
	if res.Status != domain.ValidationHWIDMismatch {
		t.Fatalf("expected hwid_mismatch, got %s", res.Status)
	}
	if got := f.repo.get(l.ID).HWID; got != "HWID-AAAA" {
		t.Fatalf("binding was overwritten: %q", got)
	}
}

func TestHWID_UnknownKeyIsInvalid(t *testing.T) {
	f := newFixture(t)

	res, err := f.hwid.ValidateAndBind(context.Background(), "ESYT-NOPE-NOPE-NOPE-NOPE", "HWID-AAAA")
	if err != nil {
		t.Fatalf("ValidateAndBind returned error: %v", err)
	}
	if res.Status != domain.ValidationInvalid {
		t.Fatalf("expected invalid, got %s", res.Status)
	}
	if res.Message() != "License key not found." {
		t.Fatalf("unexpected message %q", res.Message())
	}
}

func TestHWID_NonActiveStatusesAreDistinct(t *testing.T) {
	cases := []struct {
		status domain.LicenseStatus
		want   domain.ValidationStatus
	}{
		{domain.LicenseSuspended, domain.ValidationSuspended},
		{domain.LicenseRevoked, domain.ValidationRevoked},
		{domain.LicenseExpired, domain.ValidationExpired},
	}
	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			f := newFixture(t)
			l := f.license("", func(l *domain.License) { l.Status = tc.status })

			res, err := f.hwid.ValidateAndBind(context.Background(), l.Key, "HWID-AAAA")
			if err != nil {
				t.Fatalf("ValidateAndBind returned error: %v", err)
			}
			if res.Status != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, res.Status)
			}
			if f.repo.get(l.ID).HWID != "" {
				t.Fatalf("non-active license must not bind")
			}
		})
	}
}

func TestHWID_LazyExpiry(t *testing.T) {
	f := newFixture(t)
	l := f.license("", func(l *domain.License) {
		l.ExpiresAt = timePtr(f.clock.Now().Add(-time.Minute))
	})

	res, err := f.hwid.ValidateAndBind(context.Background(), l.Key, "HWID-AAAA")
	if err != nil {
		t.Fatalf("ValidateAndBind returned error: %v", err)
	}
	if res.Status != domain.ValidationExpired {
		t.Fatalf("expected expired, got %s", res.Status)
	}
	stored := f.repo.get(l.ID)
	if stored.Status != domain.LicenseExpired {
		t.Fatalf("expected stored status expired, got %s", stored.Status)
	}
	if stored.HWID != "" {
		t.Fatalf("expired license must not bind")
	}

	res, _ = f.hwid.ValidateAndBind(context.Background(), l.Key, "HWID-AAAA")
	if res.Status != domain.ValidationExpired {
		t.Fatalf("expected expired on second call, got %s", res.Status)
	}
}

func TestHWID_ConcurrentFirstActivationHasOneWinner(t *testing.T) {
	f := newFixture(t)
	l := f.license("")

	const n = 20
	results := make([]domain.ValidationStatus, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.hwid.ValidateAndBind(context.Background(), l.Key, fmt.Sprintf("HWID-%04d", i))
			if err != nil {
				t.Errorf("goroutine %d: %v", i, err)
				return
			}
			results[i] = res.Status
		}(i)
	}
	wg.Wait()

	valid, mismatch := 0, 0
	winner := -1
	for i, s := range results {
		switch s {
		case domain.ValidationValid:
			valid++
			winner = i
		case domain.ValidationHWIDMismatch:
			mismatch++
		}
	}
	if valid != 1 || mismatch != n-1 {
		t.Fatalf("expected 1 valid and %d mismatches, got %d valid %d mismatch", n-1, valid, mismatch)
	}
	if got := f.repo.get(l.ID).HWID; got != fmt.Sprintf("HWID-%04d", winner) {
		t.Fatalf("stored fingerprint %q does not belong to the winner", got)
	}
}

func TestHWID_ConcurrentSameDeviceAllValid(t *testing.T) {
	f := newFixture(t)
	l := f.license("")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.hwid.ValidateAndBind(context.Background(), l.Key, "HWID-SAME")
			if err != nil || res.Status != domain.ValidationValid {
				t.Errorf("expected valid, got %s err=%v", res.Status, err)
			}
		}()
	}
	wg.Wait()
}

func TestHWID_StoreFailureFailsClosed(t *testing.T) {
	f := newFixture(t)
	l := f.license("")
	f.repo.err = domain.StorageError("find license", errors.New("i/o timeout"))

	res, err := f.hwid.ValidateAndBind(context.Background(), l.Key, "HWID-AAAA")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !errors.Is(err, domain.ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if res.Status != domain.ValidationInvalid {
		t.Fatalf("expected invalid on store failure, got %s", res.Status)
	}
}

// ── UserResetHWID ─────────────────────────────────────────────────────────────

func TestHWID_ResetSuccess(t *testing.T) {
	f := newFixture(t)
	owner := f.member(t, "alice")
	l := f.license(owner.ID)
	ctx := context.Background()

	if res, _ := f.hwid.ValidateAndBind(ctx, l.Key, "HWID-OLD1"); res.Status != domain.ValidationValid {
		t.Fatalf("bind failed: %s", res.Status)
	}

	res, err := f.hwid.UserResetHWID(ctx, owner.ID, l.ID, "10.0.0.1")
	if err != nil {
		t.Fatalf("UserResetHWID returned error: %v", err)
	}
	if res.Outcome != domain.ResetSuccess {
		t.Fatalf("expected success, got %s", res.Outcome)
	}
	if res.ResetsUsed != 1 || res.ResetsAllowed != 3 {
		t.Fatalf("expected 1 of 3, got %d of %d", res.ResetsUsed, res.ResetsAllowed)
	}
	if res.Message() != "HWID cleared. Bind your new device on next launch." {
		t.Fatalf("unexpected message %q", res.Message())
	}

	stored := f.repo.get(l.ID)
	if stored.HWID != "" || stored.ResetCount != 1 || stored.LastResetAt == nil {
		t.Fatalf("unexpected stored state: %+v", stored)
	}

	bound, err := f.hwid.ValidateAndBind(ctx, l.Key, "HWID-NEW1")
	if err != nil || bound.Status != domain.ValidationValid {
		t.Fatalf("expected new device to bind, got %s err=%v", bound.Status, err)
	}
}

func TestHWID_ResetCooldownRoundsUp(t *testing.T) {
	f := newFixture(t)
	owner := f.member(t, "alice")
	l := f.license(owner.ID)
	ctx := context.Background()

	if res, _ := f.hwid.UserResetHWID(ctx, owner.ID, l.ID, "ip"); res.Outcome != domain.ResetSuccess {
		t.Fatalf("first reset: %s", res.Outcome)
	}

	res, err := f.hwid.UserResetHWID(ctx, owner.ID, l.ID, "ip")
	if err != nil {
		t.Fatalf("UserResetHWID returned error: %v", err)
	}
	if res.Outcome != domain.ResetOnCooldown {
		t.Fatalf("expected cooldown, got %s", res.Outcome)
	}
	if res.HoursLeft != 168 {
		t.Fatalf("expected 168 hours left, got %d", res.HoursLeft)
	}
	if res.Message() != "HWID reset on cooldown. Try again in 168 hours." {
		t.Fatalf("unexpected message %q", res.Message())
	}

	f.clock.Advance(7*24*time.Hour - 30*time.Minute)
	res, _ = f.hwid.UserResetHWID(ctx, owner.ID, l.ID, "ip2")
	if res.Outcome != domain.ResetOnCooldown || res.HoursLeft != 1 {
		t.Fatalf("expected 1 hour left, got %s %d", res.Outcome, res.HoursLeft)
	}

	f.clock.Advance(30 * time.Minute)
	res, _ = f.hwid.UserResetHWID(ctx, owner.ID, l.ID, "ip3")
	if res.Outcome != domain.ResetSuccess {
		t.Fatalf("expected success after cooldown, got %s", res.Outcome)
	}
}

func TestHWID_ResetCapThenForceReset(t *testing.T) {
	f := newFixture(t)
	owner := f.member(t, "alice")
	l := f.license(owner.ID, func(l *domain.License) {
		l.HWID = "HWID-AAAA"
		l.ResetCount = 3
		l.LastResetAt = timePtr(f.clock.Now().Add(-30 * 24 * time.Hour))
	})
	ctx := context.Background()

	res, err := f.hwid.UserResetHWID(ctx, owner.ID, l.ID, "ip")
	if err != nil {
		t.Fatalf("UserResetHWID returned error: %v", err)
	}
	if res.Outcome != domain.ResetMaxReached {
		t.Fatalf("expected max_resets, got %s", res.Outcome)
	}
	if f.repo.get(l.ID).HWID != "HWID-AAAA" {
		t.Fatalf("capped reset must not clear binding")
	}

	forced, err := f.hwid.ForceReset(ctx, l.ID)
	if err != nil {
		t.Fatalf("ForceReset returned error: %v", err)
	}
	if forced.HWID != "" || forced.ResetCount != 0 {
		t.Fatalf("force reset left state: %+v", forced)
	}

	res, _ = f.hwid.UserResetHWID(ctx, owner.ID, l.ID, "ip")
	if res.Outcome != domain.ResetSuccess || res.ResetsUsed != 1 {
		t.Fatalf("expected self-service to work again, got %s used=%d", res.Outcome, res.ResetsUsed)
	}
}

func TestHWID_ResetForbiddenHidesExistence(t *testing.T) {
	f := newFixture(t)
	alice := f.member(t, "alice")
	bob := f.member(t, "bob")
	l := f.license(alice.ID)
	ctx := context.Background()

	other, err := f.hwid.UserResetHWID(ctx, bob.ID, l.ID, "ip")
	if err != nil {
		t.Fatalf("UserResetHWID returned error: %v", err)
	}
	missing, err := f.hwid.UserResetHWID(ctx, bob.ID, "lic-does-not-exist", "ip")
	if err != nil {
		t.Fatalf("UserResetHWID returned error: %v", err)
	}
	if other.Outcome != domain.ResetForbidden || missing.Outcome != domain.ResetForbidden {
		t.Fatalf("expected forbidden for both, got %s and %s", other.Outcome, missing.Outcome)
	}
	if other != missing {
		t.Fatalf("forbidden results differ: %+v vs %+v", other, missing)
	}
}

func TestHWID_ResetRequiresActive(t *testing.T) {
	f := newFixture(t)
	owner := f.member(t, "alice")
	l := f.license(owner.ID, func(l *domain.License) { l.Status = domain.LicenseSuspended })

	res, err := f.hwid.UserResetHWID(context.Background(), owner.ID, l.ID, "ip")
	if err != nil {
		t.Fatalf("UserResetHWID returned error: %v", err)
	}
	if res.Outcome != domain.ResetNotActive {
		t.Fatalf("expected not_active, got %s", res.Outcome)
	}
}

func TestHWID_ResetRateLimitedPerUserAcrossIPs(t *testing.T) {
	f := newFixture(t)
	owner := f.member(t, "alice")
	l := f.license(owner.ID)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		res, err := f.hwid.UserResetHWID(ctx, owner.ID, "lic-missing", fmt.Sprintf("10.0.0.%d", i))
		if err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
		if res.Outcome != domain.ResetForbidden {
			t.Fatalf("attempt %d: expected forbidden, got %s", i, res.Outcome)
		}
	}

	res, err := f.hwid.UserResetHWID(ctx, owner.ID, l.ID, "10.0.0.99")
	if err != nil {
		t.Fatalf("UserResetHWID returned error: %v", err)
	}
	if res.Outcome != domain.ResetRateLimited {
		t.Fatalf("expected rate_limited, got %s", res.Outcome)
	}
	if res.RetryAfter <= 0 {
		t.Fatalf("expected retry-after")
	}
	if f.repo.get(l.ID).ResetCount != 0 {
		t.Fatalf("rate-limited reset must not change the license")
	}
}

func TestHWID_ResetRateLimitedPerUserAndIP(t *testing.T) {
	f := newFixture(t)
	owner := f.member(t, "alice")
	other := f.member(t, "bob")
	l := f.license(owner.ID)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = f.hwid.UserResetHWID(ctx, owner.ID, "lic-missing", "10.0.0.1")
	}
	if res, _ := f.hwid.UserResetHWID(ctx, owner.ID, l.ID, "10.0.0.1"); res.Outcome != domain.ResetRateLimited {
		t.Fatalf("expected rate_limited, got %s", res.Outcome)
	}

	if res, _ := f.hwid.UserResetHWID(ctx, other.ID, "lic-missing", "10.0.0.1"); res.Outcome != domain.ResetForbidden {
		t.Fatalf("other member on same ip should not be limited, got %s", res.Outcome)
	}
}

// ── LicenseInfo ───────────────────────────────────────────────────────────────

func TestHWID_LicenseInfoNextResetOnlyInFuture(t *testing.T) {
	f := newFixture(t)
	owner := f.member(t, "alice")
	recent := f.license(owner.ID, func(l *domain.License) {
		l.ResetCount = 1
		l.LastResetAt = timePtr(f.clock.Now().Add(-24 * time.Hour))
	})
	old := f.license(owner.ID, func(l *domain.License) {
		l.ResetCount = 2
		l.LastResetAt = timePtr(f.clock.Now().Add(-30 * 24 * time.Hour))
	})

	views, err := f.hwid.LicenseInfo(context.Background(), owner.ID)
	if err != nil {
		t.Fatalf("LicenseInfo returned error: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 views, got %d", len(views))
	}
	for _, v := range views {
		switch v.License.ID {
		case recent.ID:
			want := recent.LastResetAt.Add(7 * 24 * time.Hour)
			if v.NextResetAt == nil || !v.NextResetAt.Equal(want) {
				t.Fatalf("expected next reset %v, got %v", want, v.NextResetAt)
			}
		case old.ID:
			if v.NextResetAt != nil {
				t.Fatalf("expected no next reset for elapsed cooldown")
			}
			if v.ResetsUsed != 2 || v.ResetsAllowed != 3 {
				t.Fatalf("unexpected counters %d/%d", v.ResetsUsed, v.ResetsAllowed)
			}
		}
	}
}
