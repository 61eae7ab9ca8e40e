package ports

import (
	"context"

	"github.com/autoforum/license-service/internal/core/domain"
)

// OrderReactor applies commerce lifecycle events to licenses. Every method is
// idempotent so redelivered events are harmless.
type OrderReactor interface {
	OrderCompleted(ctx context.Context, order domain.Order) error
	OrderRefunded(ctx context.Context, orderID string) error
	OrderCancelled(ctx context.Context, orderID string) error
	SubscriptionRenewed(ctx context.Context, sub domain.Subscription) error
	SubscriptionOnHold(ctx context.Context, sub domain.Subscription) error
	SubscriptionEnded(ctx context.Context, sub domain.Subscription) error
}

// OrderEventProcessor routes a verified event to the matching reactor method.
type OrderEventProcessor interface {
	Process(ctx context.Context, event domain.OrderEvent) error
}
