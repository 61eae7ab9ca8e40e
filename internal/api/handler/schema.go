package handler

import (
	"time"

	"github.com/autoforum/license-service/internal/core/domain"
)

// ── auth ──────────────────────────────────────────────────────────────────────

type loginRequest struct {
	Username string `json:"username" validate:"max=254"`
	Password string `json:"password" validate:"max=1024"`
	Remember bool   `json:"remember"`
}

type registerRequest struct {
	Username string `json:"username" validate:"required,max=60"`
	Email    string `json:"email"    validate:"required,max=254"`
	Password string `json:"password" validate:"required,max=1024"`
}

type sessionResponse struct {
	User      *domain.User `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
}

type profileRequest struct {
	DisplayName *string `json:"display_name"`
	Bio         *string `json:"bio"`
	Location    *string `json:"location"`
	Signature   *string `json:"signature"`
	Email       *string `json:"email"`
}

type meResponse struct {
	User     *domain.User     `json:"user"`
	Licenses []domain.License `json:"licenses"`
}

// ── licensing ─────────────────────────────────────────────────────────────────

type validateRequest struct {
	Key  string `json:"key"  validate:"required,min=10,max=64"`
	HWID string `json:"hwid" validate:"required,min=4,max=256"`
}

type validateResponse struct {
	Status    domain.ValidationStatus `json:"status"`
	Message   string                  `json:"message"`
	ExpiresAt *time.Time              `json:"expires_at,omitempty"`
}

type licenseInfoItem struct {
	ID            string               `json:"id"`
	LicenseKey    string               `json:"license_key"`
	ProductID     string               `json:"product_id,omitempty"`
	HWID          *string              `json:"hwid"` // null while unbound
	Status        domain.LicenseStatus `json:"status"`
	ResetsUsed    int                  `json:"resets_used"`
	ResetsAllowed int                  `json:"resets_allowed"`
	NextResetAt   *time.Time           `json:"next_reset_at,omitempty"`
	ExpiresAt     *time.Time           `json:"expires_at,omitempty"`
}

type resetRequest struct {
	LicenseID string `json:"license_id" validate:"required,max=64"`
}

type resetResponse struct {
	Message       string `json:"message"`
	ResetsUsed    int    `json:"resets_used"`
	ResetsAllowed int    `json:"resets_allowed"`
}

// ── admin ─────────────────────────────────────────────────────────────────────

type actionTokenRequest struct {
	Action   string `json:"action"    validate:"required,oneof=add_license edit_license delete_license force_reset revoke_license toggle_ban"`
	RecordID string `json:"record_id" validate:"required,max=64"`
}

type actionTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type licenseRequest struct {
	Key       string     `json:"license_key" validate:"omitempty,min=10,max=64"`
	OwnerID   string     `json:"owner_id"    validate:"max=64"`
	ProductID string     `json:"product_id"  validate:"max=64"`
	OrderID   string     `json:"order_id"    validate:"max=64"`
	HWID      string     `json:"hwid"        validate:"max=256"`
	Status    string     `json:"status"      validate:"omitempty,oneof=active suspended expired revoked"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// ── forum ─────────────────────────────────────────────────────────────────────

type createTopicRequest struct {
	Title   string `json:"title"   validate:"required,max=200"`
	Content string `json:"content" validate:"required"`
	Premium bool   `json:"premium"`
}

type replyRequest struct {
	Content string `json:"content" validate:"required"`
}

type topicDetailResponse struct {
	Topic domain.Topic  `json:"topic"`
	Posts []domain.Post `json:"posts"`
}

// ── commerce webhook ──────────────────────────────────────────────────────────

type webhookLineItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type webhookOrder struct {
	ID         string            `json:"id"`
	CustomerID string            `json:"customer_id"`
	Items      []webhookLineItem `json:"line_items"`
}

type webhookSubscription struct {
	ID            string `json:"id"`
	ParentOrderID string `json:"parent_order_id"`
}

type webhookEvent struct {
	ID           string               `json:"id"   validate:"required,max=128"`
	Type         string               `json:"type" validate:"required,max=64"`
	Order        *webhookOrder        `json:"order"`
	Subscription *webhookSubscription `json:"subscription"`
}

type messageResponse struct {
	Message string `json:"message"`
}
