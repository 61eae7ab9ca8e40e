package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/autoforum/license-service/internal/core/domain"
	"github.com/autoforum/license-service/internal/core/ports"
)

const maxResetRetries = 3

// HWIDConfig carries the self-service reset policy.
type HWIDConfig struct {
	ResetCooldown    time.Duration
	MaxResets        int
	ResetMaxAttempts int
	ResetWindow      time.Duration
}

func (c HWIDConfig) withDefaults() HWIDConfig {
	if c.ResetCooldown <= 0 {
		c.ResetCooldown = 7 * 24 * time.Hour
	}
	if c.MaxResets <= 0 {
		c.MaxResets = 3
	}
	if c.ResetMaxAttempts <= 0 {
		c.ResetMaxAttempts = 5
	}
	if c.ResetWindow <= 0 {
		c.ResetWindow = time.Hour
	}
	return c
}

// HWIDService implements device binding and HWID resets.
type HWIDService struct {
	licenses *LicenseService
	repo     ports.LicenseRepository
	limiter  ports.RateLimiter
	cfg      HWIDConfig
	log      zerolog.Logger
	now      func() time.Time
}

var _ ports.HWIDService = (*HWIDService)(nil)

// NewHWIDService returns an HWIDService. Zero config values take their defaults.
func NewHWIDService(licenses *LicenseService, repo ports.LicenseRepository, limiter ports.RateLimiter, cfg HWIDConfig, log zerolog.Logger) *HWIDService {
	return &HWIDService{
		licenses: licenses,
		repo:     repo,
		limiter:  limiter,
		cfg:      cfg.withDefaults(),
		log:      log,
		now:      time.Now,
	}
}

// ValidateAndBind checks key against the presented fingerprint, binding it on
// first activation. Store failures return ValidationInvalid together with the
// error so the caller always denies.
func (s *HWIDService) ValidateAndBind(ctx context.Context, key, hwid string) (domain.ValidationResult, error) {
	hwid = strings.TrimSpace(hwid)
	invalid := domain.ValidationResult{Status: domain.ValidationInvalid}
	if hwid == "" {
		return invalid, nil
	}

	l, err := s.licenses.FindByKey(ctx, key)
	if errors.Is(err, domain.ErrLicenseNotFound) {
		return invalid, nil
	}
	if err != nil {
		return invalid, fmt.Errorf("validate license: %w", err)
	}

	for attempt := 0; attempt < maxResetRetries; attempt++ {
		result, retry, err := s.evaluate(ctx, l, hwid)
		if err != nil || !retry {
			return result, err
		}
		if l, err = s.repo.FindByID(ctx, l.ID); err != nil {
			if errors.Is(err, domain.ErrLicenseNotFound) {
				return invalid, nil
			}
			return invalid, fmt.Errorf("validate license: %w", err)
		}
	}
	return invalid, fmt.Errorf("validate license %s: %w", l.ID, domain.ErrConflict)
}

// evaluate runs one pass of the binding state machine against l. retry is true
// when a conditional write lost a race and l must be re-read.
func (s *HWIDService) evaluate(ctx context.Context, l *domain.License, hwid string) (domain.ValidationResult, bool, error) {
	invalid := domain.ValidationResult{Status: domain.ValidationInvalid}

	if l.Status != domain.LicenseActive {
		return domain.ValidationResult{Status: domain.StatusResult(l.Status), License: l}, false, nil
	}

	if l.ExpiredAt(s.now()) {
		expired, err := s.repo.Transition(ctx, l.ID, []domain.LicenseStatus{domain.LicenseActive}, domain.LicenseExpired, nil)
		if errors.Is(err, domain.ErrConflict) {
			return invalid, true, nil
		}
		if err != nil {
			return invalid, false, fmt.Errorf("expire license: %w", err)
		}
		s.licenses.Invalidate(ctx, expired)
		s.log.Info().Str("license_id", l.ID).Msg("license expired on validation")
		return domain.ValidationResult{Status: domain.ValidationExpired, License: expired}, false, nil
	}

	if !l.Bound() {
		bound, err := s.repo.BindHWID(ctx, l.ID, hwid)
		if errors.Is(err, domain.ErrConflict) {
			return invalid, true, nil
		}
		if err != nil {
			return invalid, false, fmt.Errorf("bind license: %w", err)
		}
		s.licenses.Invalidate(ctx, bound)
		s.log.Info().Str("license_id", l.ID).Msg("license bound to device")
		return domain.ValidationResult{Status: domain.ValidationValid, License: bound}, false, nil
	}

	if subtle.ConstantTimeCompare([]byte(l.HWID), []byte(hwid)) == 1 {
		return domain.ValidationResult{Status: domain.ValidationValid, License: l}, false, nil
	}

	s.log.Warn().Str("license_id", l.ID).Msg("hwid mismatch")
	return domain.ValidationResult{Status: domain.ValidationHWIDMismatch, License: l}, false, nil
}

func resetUserIPKey(userID, ip string) string { return "hwid_reset:" + userID + ":" + ip }
func resetUserKey(userID string) string       { return "hwid_reset_user:" + userID }

// UserResetHWID performs a capped, cooled-down self-service reset. Every
// outcome is a typed result; only store failures are returned as errors.
func (s *HWIDService) UserResetHWID(ctx context.Context, userID, licenseID, clientIP string) (domain.ResetResult, error) {
	keys := []string{resetUserIPKey(userID, clientIP), resetUserKey(userID)}

	var retryAfter time.Duration
	for _, key := range keys {
		d, err := s.limiter.IsLimited(ctx, key, s.cfg.ResetMaxAttempts, s.cfg.ResetWindow)
		if err != nil {
			return domain.ResetResult{Outcome: domain.ResetRateLimited}, domain.StorageError("hwid reset limit", err)
		}
		if d.Limited && d.RetryAfter > retryAfter {
			retryAfter = d.RetryAfter
		}
	}
	for _, key := range keys {
		if err := s.limiter.RecordAttempt(ctx, key, s.cfg.ResetWindow); err != nil {
			return domain.ResetResult{Outcome: domain.ResetRateLimited}, domain.StorageError("hwid reset limit", err)
		}
	}
	if retryAfter > 0 {
		s.log.Warn().Str("user_id", userID).Str("ip", clientIP).Msg("hwid reset rate limited")
		return domain.ResetResult{Outcome: domain.ResetRateLimited, RetryAfter: retryAfter}, nil
	}

	for attempt := 0; attempt < maxResetRetries; attempt++ {
		l, err := s.repo.FindByID(ctx, licenseID)
		if errors.Is(err, domain.ErrLicenseNotFound) {
			return domain.ResetResult{Outcome: domain.ResetForbidden}, nil
		}
		if err != nil {
			return domain.ResetResult{Outcome: domain.ResetForbidden}, fmt.Errorf("reset hwid: %w", err)
		}

		result := s.checkReset(l, userID)
		if result.Outcome != domain.ResetSuccess {
			return result, nil
		}

		reset, err := s.repo.ResetHWID(ctx, l.ID, l.ResetCount, s.now().UTC())
		if errors.Is(err, domain.ErrConflict) {
			continue
		}
		if err != nil {
			return domain.ResetResult{Outcome: domain.ResetNotActive}, fmt.Errorf("reset hwid: %w", err)
		}
		s.licenses.Invalidate(ctx, l, reset)
		s.log.Info().
			Str("license_id", l.ID).
			Str("user_id", userID).
			Int("resets_used", reset.ResetCount).
			Msg("hwid reset by owner")
		return domain.ResetResult{
			Outcome:       domain.ResetSuccess,
			ResetsUsed:    reset.ResetCount,
			ResetsAllowed: s.cfg.MaxResets,
			License:       reset,
		}, nil
	}
	return domain.ResetResult{Outcome: domain.ResetNotActive}, fmt.Errorf("reset hwid %s: %w", licenseID, domain.ErrConflict)
}

// checkReset applies ownership, status, cap and cooldown rules. A result of
// ResetSuccess means the reset may proceed.
func (s *HWIDService) checkReset(l *domain.License, userID string) domain.ResetResult {
	base := domain.ResetResult{ResetsUsed: l.ResetCount, ResetsAllowed: s.cfg.MaxResets}

	if l.OwnerID == "" || subtle.ConstantTimeCompare([]byte(l.OwnerID), []byte(userID)) != 1 {
		return domain.ResetResult{Outcome: domain.ResetForbidden}
	}
	if l.Status != domain.LicenseActive {
		base.Outcome = domain.ResetNotActive
		return base
	}
	if l.ResetCount >= s.cfg.MaxResets {
		base.Outcome = domain.ResetMaxReached
		return base
	}
	if next := l.NextResetAt(s.cfg.ResetCooldown); next != nil {
		if now := s.now(); now.Before(*next) {
			base.Outcome = domain.ResetOnCooldown
			base.HoursLeft = domain.HoursUntil(now, *next)
			return base
		}
	}
	base.Outcome = domain.ResetSuccess
	return base
}

// ForceReset clears the fingerprint and reset counter with no limits applied.
func (s *HWIDService) ForceReset(ctx context.Context, licenseID string) (*domain.License, error) {
	previous, err := s.repo.FindByID(ctx, licenseID)
	if err != nil {
		return nil, err
	}
	l, err := s.repo.ForceReset(ctx, licenseID)
	if err != nil {
		return nil, fmt.Errorf("force reset: %w", err)
	}
	s.licenses.Invalidate(ctx, previous, l)
	return l, nil
}

// LicenseInfo lists the member's licenses with their reset counters.
func (s *HWIDService) LicenseInfo(ctx context.Context, userID string) ([]ports.LicenseView, error) {
	ls, err := s.licenses.FindForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	views := make([]ports.LicenseView, 0, len(ls))
	for _, l := range ls {
		v := ports.LicenseView{
			License:       l,
			ResetsUsed:    l.ResetCount,
			ResetsAllowed: s.cfg.MaxResets,
		}
		if next := l.NextResetAt(s.cfg.ResetCooldown); next != nil && next.After(now) {
			v.NextResetAt = next
		}
		views = append(views, v)
	}
	return views, nil
}
