package domain

import (
	"fmt"
	"time"
)

// ValidationStatus is the outcome of presenting a license key and device fingerprint.
// Each value has its own remedy on the client, so they are results, not errors.
type ValidationStatus string

const (
	ValidationValid        ValidationStatus = "valid"
	ValidationInvalid      ValidationStatus = "invalid"
	ValidationSuspended    ValidationStatus = "suspended"
	ValidationExpired      ValidationStatus = "expired"
	ValidationRevoked      ValidationStatus = "revoked"
	ValidationHWIDMismatch ValidationStatus = "hwid_mismatch"
)

// ValidationResult is returned by the binding engine.
type ValidationResult struct {
	Status  ValidationStatus
	License *License
}

// Message is the display text for the result.
func (r ValidationResult) Message() string {
	switch r.Status {
	case ValidationValid:
		return "License is valid."
	case ValidationInvalid:
		return "License key not found."
	case ValidationExpired:
		return "License has expired."
	case ValidationHWIDMismatch:
		return "License is bound to a different device. Reset HWID from your dashboard."
	default:
		return fmt.Sprintf("License is %s.", r.Status)
	}
}

// StatusResult maps a non-active license status onto its validation outcome.
func StatusResult(s LicenseStatus) ValidationStatus {
	switch s {
	case LicenseSuspended:
		return ValidationSuspended
	case LicenseExpired:
		return ValidationExpired
	case LicenseRevoked:
		return ValidationRevoked
	default:
		return ValidationInvalid
	}
}

// ResetOutcome is the outcome of a self-service HWID reset.
type ResetOutcome string

const (
	ResetSuccess     ResetOutcome = "success"
	ResetRateLimited ResetOutcome = "rate_limited"
	ResetForbidden   ResetOutcome = "forbidden"
	ResetNotActive   ResetOutcome = "not_active"
	ResetMaxReached  ResetOutcome = "max_resets"
	ResetOnCooldown  ResetOutcome = "cooldown"
)

// ResetResult carries the outcome plus the counters the dashboard displays.
type ResetResult struct {
	Outcome       ResetOutcome
	ResetsUsed    int
	ResetsAllowed int
	// HoursLeft is set for ResetOnCooldown.
	HoursLeft int
	// RetryAfter is set for ResetRateLimited.
	RetryAfter time.Duration
	License    *License
}

// Message is the display text for the outcome.
func (r ResetResult) Message() string {
	switch r.Outcome {
	case ResetSuccess:
		return "HWID cleared. Bind your new device on next launch."
	case ResetRateLimited:
		return "Too many HWID reset attempts. Please try again later."
	case ResetForbidden:
		return "License not found."
	case ResetNotActive:
		return "License is not active."
	case ResetMaxReached:
		return "Maximum HWID resets reached. Please contact support."
	case ResetOnCooldown:
		return fmt.Sprintf("HWID reset on cooldown. Try again in %d hours.", r.HoursLeft)
	default:
		return string(r.Outcome)
	}
}
