package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUnauthenticated    = errors.New("authentication required")
	ErrForbidden          = errors.New("access forbidden")
	ErrBanned             = errors.New("account is banned")
	ErrPremiumRequired    = errors.New("an active license is required to view this content")

	ErrUserNotFound    = errors.New("user not found")
	ErrLicenseNotFound = errors.New("license not found")
	ErrTopicNotFound   = errors.New("topic not found")
	ErrPostNotFound    = errors.New("post not found")

	ErrUsernameTaken    = errors.New("username is already taken")
	ErrEmailTaken       = errors.New("email is already registered")
	ErrLicenseKeyExists = errors.New("license key already exists")
	ErrAlreadyThanked   = errors.New("post already thanked")

	ErrTopicLocked         = errors.New("topic is locked")
	ErrSelfThank           = errors.New("cannot thank your own post")
	ErrSelfBan             = errors.New("cannot ban yourself")
	ErrInvalidActionToken  = errors.New("invalid or expired action token")
	ErrInvalidSignature    = errors.New("invalid webhook signature")
	ErrKeyGenerationFailed = errors.New("could not generate a unique license key")

	// ErrConflict reports that a conditional write lost to a concurrent writer.
	ErrConflict = errors.New("concurrent modification")

	// ErrStorage wraps any persistence or cache failure. Details are logged, not returned.
	ErrStorage = errors.New("storage failure")
)

// StorageError tags err as an infrastructure failure for op.
func StorageError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}

// ValidationError is a malformed input whose message is safe to show the user.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// RateLimitedError reports that the caller exceeded an attempt budget.
type RateLimitedError struct {
	Message    string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "too many attempts, try again later"
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds.
func (e *RateLimitedError) RetryAfterSeconds() int {
	secs := e.RetryAfter / time.Second
	if e.RetryAfter%time.Second != 0 {
		secs++
	}
	return int(secs)
}
