package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/autoforum/license-service/internal/core/domain"
	"github.com/autoforum/license-service/internal/core/ports"
)

// OrderReactorConfig carries the licensing policy for purchases.
type OrderReactorConfig struct {
	// ProductIDs is the allow-list of products that grant a license.
	ProductIDs      []string
	LicenseDuration time.Duration
}

// OrderReactor turns commerce lifecycle events into license transitions.
type OrderReactor struct {
	licenses *LicenseService
	repo     ports.LicenseRepository
	users    ports.UserRepository
	products map[string]struct{}
	duration time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

var (
	_ ports.OrderReactor        = (*OrderReactor)(nil)
	_ ports.OrderEventProcessor = (*OrderReactor)(nil)
)

// NewOrderReactor returns an OrderReactor. A zero duration means 365 days.
func NewOrderReactor(licenses *LicenseService, repo ports.LicenseRepository, users ports.UserRepository, cfg OrderReactorConfig, log zerolog.Logger) *OrderReactor {
	products := make(map[string]struct{}, len(cfg.ProductIDs))
	for _, id := range cfg.ProductIDs {
		if id = strings.TrimSpace(id); id != "" {
			products[id] = struct{}{}
		}
	}
	if cfg.LicenseDuration <= 0 {
		cfg.LicenseDuration = 365 * 24 * time.Hour
	}
	return &OrderReactor{
		licenses: licenses,
		repo:     repo,
		users:    users,
		products: products,
		duration: cfg.LicenseDuration,
		log:      log,
		now:      time.Now,
	}
}

// Process routes a verified event to the matching handler.
func (r *OrderReactor) Process(ctx context.Context, event domain.OrderEvent) error {
	switch event.Type {
	case domain.OrderCompleted:
		if event.Order == nil {
			return domain.NewValidationError("order", "order.completed requires an order")
		}
		return r.OrderCompleted(ctx, *event.Order)
	case domain.OrderRefunded, domain.OrderCancelled:
		if event.Order == nil || event.Order.ID == "" {
			return domain.NewValidationError("order", string(event.Type)+" requires an order id")
		}
		if event.Type == domain.OrderRefunded {
			return r.OrderRefunded(ctx, event.Order.ID)
		}
		return r.OrderCancelled(ctx, event.Order.ID)
	case domain.SubscriptionRenewed, domain.SubscriptionOnHold, domain.SubscriptionCancelled, domain.SubscriptionExpired:
		if event.Subscription == nil || event.Subscription.ParentOrderID == "" {
			return domain.NewValidationError("subscription", string(event.Type)+" requires a parent order id")
		}
		sub := *event.Subscription
		switch event.Type {
		case domain.SubscriptionRenewed:
			return r.SubscriptionRenewed(ctx, sub)
		case domain.SubscriptionOnHold:
			return r.SubscriptionOnHold(ctx, sub)
		default:
			return r.SubscriptionEnded(ctx, sub)
		}
	}
	return domain.NewValidationError("type", fmt.Sprintf("unsupported event type %q", event.Type))
}

// OrderCompleted issues one license per allow-listed product on the order.
// Guest orders and unknown customers get nothing; replays are no-ops.
func (r *OrderReactor) OrderCompleted(ctx context.Context, order domain.Order) error {
	if order.CustomerID == "" {
		r.log.Info().Str("order_id", order.ID).Msg("guest order, no license issued")
		return nil
	}
	if _, err := r.users.FindByID(ctx, order.CustomerID); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			r.log.Warn().Str("order_id", order.ID).Str("customer_id", order.CustomerID).Msg("order customer has no account")
			return nil
		}
		return fmt.Errorf("order completed %s: %w", order.ID, err)
	}

	for _, item := range order.Items {
		if _, ok := r.products[item.ProductID]; !ok {
			continue
		}

		_, err := r.repo.FindByOrderProduct(ctx, order.ID, item.ProductID)
		if err == nil {
			r.log.Debug().Str("order_id", order.ID).Str("product_id", item.ProductID).Msg("license already issued")
			continue
		}
		if !errors.Is(err, domain.ErrLicenseNotFound) {
			return fmt.Errorf("order completed %s: %w", order.ID, err)
		}

		expires := r.now().Add(r.duration).UTC()
		l, err := r.licenses.Create(ctx, &domain.License{
			OwnerID:   order.CustomerID,
			ProductID: item.ProductID,
			OrderID:   order.ID,
			Status:    domain.LicenseActive,
			ExpiresAt: &expires,
		})
		if errors.Is(err, domain.ErrConflict) {
			continue
		}
		if err != nil {
			return fmt.Errorf("order completed %s: issue license: %w", order.ID, err)
		}
		r.log.Info().
			Str("order_id", order.ID).
			Str("product_id", item.ProductID).
			Str("license_id", l.ID).
			Msg("license issued")
	}
	return nil
}

// OrderRefunded suspends the order's active licenses.
func (r *OrderReactor) OrderRefunded(ctx context.Context, orderID string) error {
	return r.transitionOrder(ctx, orderID, []domain.LicenseStatus{domain.LicenseActive}, domain.LicenseSuspended, nil, "refunded")
}

// OrderCancelled suspends the order's active licenses.
func (r *OrderReactor) OrderCancelled(ctx context.Context, orderID string) error {
	return r.transitionOrder(ctx, orderID, []domain.LicenseStatus{domain.LicenseActive}, domain.LicenseSuspended, nil, "cancelled")
}

// SubscriptionRenewed reactivates suspended licenses and extends their expiry.
// Already active licenses are left alone so duplicate renewals never double-extend.
func (r *OrderReactor) SubscriptionRenewed(ctx context.Context, sub domain.Subscription) error {
	expires := r.now().Add(r.duration).UTC()
	return r.transitionOrder(ctx, sub.ParentOrderID, []domain.LicenseStatus{domain.LicenseSuspended}, domain.LicenseActive, &expires, "renewed")
}

// SubscriptionOnHold suspends active licenses after a failed payment.
func (r *OrderReactor) SubscriptionOnHold(ctx context.Context, sub domain.Subscription) error {
	return r.transitionOrder(ctx, sub.ParentOrderID, []domain.LicenseStatus{domain.LicenseActive}, domain.LicenseSuspended, nil, "on_hold")
}

// SubscriptionEnded revokes active and suspended licenses.
func (r *OrderReactor) SubscriptionEnded(ctx context.Context, sub domain.Subscription) error {
	from := []domain.LicenseStatus{domain.LicenseActive, domain.LicenseSuspended}
	return r.transitionOrder(ctx, sub.ParentOrderID, from, domain.LicenseRevoked, nil, "ended")
}

func (r *OrderReactor) transitionOrder(ctx context.Context, orderID string, from []domain.LicenseStatus, to domain.LicenseStatus, expiresAt *time.Time, reason string) error {
	ls, err := r.repo.FindByOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("order %s %s: %w", orderID, reason, err)
	}

	for i := range ls {
		l := &ls[i]
		if !statusIn(l.Status, from) {
			continue
		}
		updated, err := r.repo.Transition(ctx, l.ID, from, to, expiresAt)
		if errors.Is(err, domain.ErrConflict) {
			continue
		}
		if err != nil {
			return fmt.Errorf("order %s %s: license %s: %w", orderID, reason, l.ID, err)
		}
		r.licenses.Invalidate(ctx, l, updated)
		r.log.Info().
			Str("order_id", orderID).
			Str("license_id", l.ID).
			Str("from", string(l.Status)).
			Str("to", string(to)).
			Str("reason", reason).
			Msg("license status changed")
	}
	return nil
}

func statusIn(s domain.LicenseStatus, set []domain.LicenseStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
