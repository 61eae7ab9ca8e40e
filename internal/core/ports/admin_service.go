package ports

import (
	"context"
	"time"

	"github.com/autoforum/license-service/internal/core/domain"
)

// AdminAction names an administrative mutation protected by an action token.
type AdminAction string

const (
	ActionAddLicense    AdminAction = "add_license"
	ActionEditLicense   AdminAction = "edit_license"
	ActionDeleteLicense AdminAction = "delete_license"
	ActionForceReset    AdminAction = "force_reset"
	ActionRevoke        AdminAction = "revoke_license"
	ActionToggleBan     AdminAction = "toggle_ban"
)

// Capability returns the capability an action requires.
func (a AdminAction) Capability() domain.Capability {
	if a == ActionToggleBan {
		return domain.CapBanMembers
	}
	return domain.CapManageLicenses
}

// Valid reports whether a is a known action.
func (a AdminAction) Valid() bool {
	switch a {
	case ActionAddLicense, ActionEditLicense, ActionDeleteLicense,
		ActionForceReset, ActionRevoke, ActionToggleBan:
		return true
	}
	return false
}

// LicenseInput carries the administrator-editable license fields.
type LicenseInput struct {
	Key       string
	OwnerID   string
	ProductID string
	OrderID   string
	HWID      string
	Status    domain.LicenseStatus
	ExpiresAt *time.Time
}

// ActionToken authorises exactly one admin action on one record.
type ActionToken struct {
	Token     string
	ExpiresAt time.Time
}

// AdminService defines capability-gated administration of licenses and members.
// Every mutating call consumes the action token issued for it.
type AdminService interface {
	IssueActionToken(ctx context.Context, actor *domain.Session, action AdminAction, recordID string) (*ActionToken, error)
	AddLicense(ctx context.Context, actor *domain.Session, token string, in LicenseInput) (*domain.License, error)
	EditLicense(ctx context.Context, actor *domain.Session, token, licenseID string, in LicenseInput) (*domain.License, error)
	DeleteLicense(ctx context.Context, actor *domain.Session, token, licenseID string) error
	ForceReset(ctx context.Context, actor *domain.Session, token, licenseID string) (*domain.License, error)
	RevokeLicense(ctx context.Context, actor *domain.Session, token, licenseID string) (*domain.License, error)
	ToggleBan(ctx context.Context, actor *domain.Session, token, userID string) (*domain.User, error)
}
