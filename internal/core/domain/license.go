package domain

import "time"

// LicenseStatus represents the lifecycle state of a license.
type LicenseStatus string

const (
	LicenseActive    LicenseStatus = "active"
	LicenseSuspended LicenseStatus = "suspended"
	LicenseExpired   LicenseStatus = "expired"
	LicenseRevoked   LicenseStatus = "revoked"
)

// validLicenseTransitions is the normal (non-administrative) lifecycle.
// Revoked and expired are terminal; only an administrator may move a license
// out of them.
var validLicenseTransitions = map[LicenseStatus][]LicenseStatus{
	LicenseActive:    {LicenseSuspended, LicenseExpired, LicenseRevoked},
	LicenseSuspended: {LicenseActive, LicenseRevoked},
}

// Valid reports whether s is one of the known statuses.
func (s LicenseStatus) Valid() bool {
	switch s {
	case LicenseActive, LicenseSuspended, LicenseExpired, LicenseRevoked:
		return true
	}
	return false
}

// CanTransitionTo reports whether the normal lifecycle allows moving to next.
func (s LicenseStatus) CanTransitionTo(next LicenseStatus) bool {
	for _, allowed := range validLicenseTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// License is a purchased entitlement bound to at most one device fingerprint.
type License struct {
	ID          string        `json:"id"`
	OwnerID     string        `json:"owner_id,omitempty"`
	Key         string        `json:"license_key"`
	ProductID   string        `json:"product_id,omitempty"`
	OrderID     string        `json:"order_id,omitempty"`
	HWID        string        `json:"hwid"`
	ResetCount  int           `json:"reset_count"`
	LastResetAt *time.Time    `json:"last_reset_at,omitempty"`
	Status      LicenseStatus `json:"status"`
	ExpiresAt   *time.Time    `json:"expires_at,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Bound reports whether a device fingerprint is currently attached.
func (l *License) Bound() bool {
	return l.HWID != ""
}

// ExpiredAt reports whether the expiry instant has passed. A nil expiry never expires.
func (l *License) ExpiredAt(now time.Time) bool {
	return l.ExpiresAt != nil && l.ExpiresAt.Before(now)
}

// ActiveAt reports whether the license currently grants access.
func (l *License) ActiveAt(now time.Time) bool {
	return l.Status == LicenseActive && !l.ExpiredAt(now)
}

// NextResetAt returns the earliest instant a self-service reset is allowed,
// or nil when no reset has happened yet.
func (l *License) NextResetAt(cooldown time.Duration) *time.Time {
	if l.LastResetAt == nil {
		return nil
	}
	next := l.LastResetAt.Add(cooldown)
	return &next
}

// HoursUntil returns the whole hours remaining until t, rounded up so that any
// remaining time reports at least one hour.
func HoursUntil(now, t time.Time) int {
	remaining := t.Sub(now)
	if remaining <= 0 {
		return 0
	}
	hours := remaining / time.Hour
	if remaining%time.Hour != 0 {
		hours++
	}
	return int(hours)
}
