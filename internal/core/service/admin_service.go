package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/autoforum/license-service/internal/core/domain"
	"github.com/autoforum/license-service/internal/core/ports"
)

// NewRecordID is the record id used for action tokens that create a record.
const NewRecordID = "new"

// AdminService implements capability-gated license and member administration.
type AdminService struct {
	licenses *LicenseService
	hwid     *HWIDService
	users    ports.UserRepository
	tokens   ports.ActionTokenStore
	tokenTTL time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

var _ ports.AdminService = (*AdminService)(nil)

// NewAdminService returns an AdminService. A zero tokenTTL means ten minutes.
func NewAdminService(licenses *LicenseService, hwid *HWIDService, users ports.UserRepository, tokens ports.ActionTokenStore, tokenTTL time.Duration, log zerolog.Logger) *AdminService {
	if tokenTTL <= 0 {
		tokenTTL = 10 * time.Minute
	}
	return &AdminService{
		licenses: licenses,
		hwid:     hwid,
		users:    users,
		tokens:   tokens,
		tokenTTL: tokenTTL,
		log:      log,
		now:      time.Now,
	}
}

func actionTokenKey(actorID string, action ports.AdminAction, recordID string) string {
	return actorID + ":" + string(action) + ":" + recordID
}

// IssueActionToken mints a single-use token scoped to actor, action and record.
func (s *AdminService) IssueActionToken(ctx context.Context, actor *domain.Session, action ports.AdminAction, recordID string) (*ports.ActionToken, error) {
	if !action.Valid() {
		return nil, domain.NewValidationError("action", fmt.Sprintf("Unknown action %q.", action))
	}
	if !actor.Can(action.Capability()) {
		return nil, domain.ErrForbidden
	}
	recordID = strings.TrimSpace(recordID)
	if recordID == "" {
		return nil, domain.NewValidationError("record_id", "record_id is required")
	}

	token := uuid.NewString()
	if err := s.tokens.Put(ctx, actionTokenKey(actor.UserID, action, recordID), token, s.tokenTTL); err != nil {
		return nil, domain.StorageError("issue action token", err)
	}
	return &ports.ActionToken{Token: token, ExpiresAt: s.now().Add(s.tokenTTL).UTC()}, nil
}

// consume checks the capability and burns the actor's token for this action and record.
func (s *AdminService) consume(ctx context.Context, actor *domain.Session, action ports.AdminAction, recordID, token string) error {
	if !actor.Can(action.Capability()) {
		return domain.ErrForbidden
	}
	if token == "" {
		return domain.ErrInvalidActionToken
	}
	stored, ok, err := s.tokens.Take(ctx, actionTokenKey(actor.UserID, action, recordID))
	if err != nil {
		return domain.StorageError("consume action token", err)
	}
	if !ok || subtle.ConstantTimeCompare([]byte(stored), []byte(token)) != 1 {
		s.log.Warn().
			Str("actor_id", actor.UserID).
			Str("action", string(action)).
			Str("record_id", recordID).
			Msg("rejected admin action token")
		return domain.ErrInvalidActionToken
	}
	return nil
}

func (s *AdminService) audit(actor *domain.Session, action ports.AdminAction, recordID string) {
	s.log.Info().
		Str("actor_id", actor.UserID).
		Str("action", string(action)).
		Str("record_id", recordID).
		Msg("admin action")
}

func (s *AdminService) checkOwner(ctx context.Context, ownerID string) error {
	if ownerID == "" {
		return nil
	}
	if _, err := s.users.FindByID(ctx, ownerID); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.NewValidationError("owner_id", "Owner does not exist.")
		}
		return err
	}
	return nil
}

func (s *AdminService) checkKeyFree(ctx context.Context, key string) error {
	exists, err := s.licenses.KeyExists(ctx, key)
	if err != nil {
		return err
	}
	if exists {
		return domain.ErrLicenseKeyExists
	}
	return nil
}

// AddLicense creates a license, generating a key when none is given.
func (s *AdminService) AddLicense(ctx context.Context, actor *domain.Session, token string, in ports.LicenseInput) (*domain.License, error) {
	if err := s.consume(ctx, actor, ports.ActionAddLicense, NewRecordID, token); err != nil {
		return nil, err
	}
	if in.Status == "" {
		in.Status = domain.LicenseActive
	}
	if !in.Status.Valid() {
		return nil, domain.NewValidationError("status", fmt.Sprintf("Unknown license status %q.", in.Status))
	}
	if err := s.checkOwner(ctx, in.OwnerID); err != nil {
		return nil, err
	}
	key := NormalizeKey(in.Key)
	if key != "" {
		if err := s.checkKeyFree(ctx, key); err != nil {
			return nil, err
		}
	}

	l, err := s.licenses.Create(ctx, &domain.License{
		OwnerID:   in.OwnerID,
		Key:       key,
		ProductID: in.ProductID,
		OrderID:   in.OrderID,
		HWID:      strings.TrimSpace(in.HWID),
		Status:    in.Status,
		ExpiresAt: in.ExpiresAt,
	})
	if err != nil {
		return nil, err
	}
	s.audit(actor, ports.ActionAddLicense, l.ID)
	return l, nil
}

// EditLicense replaces the editable fields of a license. Reset history is kept.
func (s *AdminService) EditLicense(ctx context.Context, actor *domain.Session, token, licenseID string, in ports.LicenseInput) (*domain.License, error) {
	if err := s.consume(ctx, actor, ports.ActionEditLicense, licenseID, token); err != nil {
		return nil, err
	}
	existing, err := s.licenses.FindByID(ctx, licenseID)
	if err != nil {
		return nil, err
	}
	if in.Status == "" {
		in.Status = existing.Status
	}
	if !in.Status.Valid() {
		return nil, domain.NewValidationError("status", fmt.Sprintf("Unknown license status %q.", in.Status))
	}

	key := NormalizeKey(in.Key)
	if key == "" {
		key = existing.Key
	}
	if key != existing.Key {
		if err := s.checkKeyFree(ctx, key); err != nil {
			return nil, err
		}
	}
	if err := s.checkOwner(ctx, in.OwnerID); err != nil {
		return nil, err
	}

	next := *existing
	next.Key = key
	next.OwnerID = in.OwnerID
	next.ProductID = in.ProductID
	next.OrderID = in.OrderID
	next.HWID = strings.TrimSpace(in.HWID)
	next.Status = in.Status
	next.ExpiresAt = in.ExpiresAt

	updated, err := s.licenses.Update(ctx, &next)
	if err != nil {
		return nil, err
	}
	s.audit(actor, ports.ActionEditLicense, licenseID)
	return updated, nil
}

// DeleteLicense removes a license permanently.
func (s *AdminService) DeleteLicense(ctx context.Context, actor *domain.Session, token, licenseID string) error {
	if err := s.consume(ctx, actor, ports.ActionDeleteLicense, licenseID, token); err != nil {
		return err
	}
	if err := s.licenses.Delete(ctx, licenseID); err != nil {
		return err
	}
	s.audit(actor, ports.ActionDeleteLicense, licenseID)
	return nil
}

// ForceReset clears the binding and the reset counter.
func (s *AdminService) ForceReset(ctx context.Context, actor *domain.Session, token, licenseID string) (*domain.License, error) {
	if err := s.consume(ctx, actor, ports.ActionForceReset, licenseID, token); err != nil {
		return nil, err
	}
	l, err := s.hwid.ForceReset(ctx, licenseID)
	if err != nil {
		return nil, err
	}
	s.audit(actor, ports.ActionForceReset, licenseID)
	return l, nil
}

// RevokeLicense permanently revokes a license.
func (s *AdminService) RevokeLicense(ctx context.Context, actor *domain.Session, token, licenseID string) (*domain.License, error) {
	if err := s.consume(ctx, actor, ports.ActionRevoke, licenseID, token); err != nil {
		return nil, err
	}
	l, err := s.licenses.SetStatus(ctx, licenseID, domain.LicenseRevoked)
	if err != nil {
		return nil, err
	}
	s.audit(actor, ports.ActionRevoke, licenseID)
	return l, nil
}

// ToggleBan flips a member's banned flag. Administrators cannot ban themselves.
func (s *AdminService) ToggleBan(ctx context.Context, actor *domain.Session, token, userID string) (*domain.User, error) {
	if err := s.consume(ctx, actor, ports.ActionToggleBan, userID, token); err != nil {
		return nil, err
	}
	if userID == actor.UserID {
		return nil, domain.ErrSelfBan
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	updated, err := s.users.SetBanned(ctx, userID, !user.Banned)
	if err != nil {
		return nil, err
	}
	s.audit(actor, ports.ActionToggleBan, userID)
	return updated, nil
}
