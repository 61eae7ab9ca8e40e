package domain

import "time"

// OrderEventType identifies a commerce lifecycle notification.
type OrderEventType string

const (
	OrderCompleted        OrderEventType = "order.completed"
	OrderRefunded         OrderEventType = "order.refunded"
	OrderCancelled        OrderEventType = "order.cancelled"
	SubscriptionRenewed   OrderEventType = "subscription.renewed"
	SubscriptionOnHold    OrderEventType = "subscription.on_hold"
	SubscriptionCancelled OrderEventType = "subscription.cancelled"
	SubscriptionExpired   OrderEventType = "subscription.expired"
)

// Valid reports whether t is an event the reactor handles.
func (t OrderEventType) Valid() bool {
	switch t {
	case OrderCompleted, OrderRefunded, OrderCancelled,
		SubscriptionRenewed, SubscriptionOnHold, SubscriptionCancelled, SubscriptionExpired:
		return true
	}
	return false
}

// LineItem is one purchased product on an order.
type LineItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Order as reported by the commerce platform. CustomerID is empty for guest checkouts.
type Order struct {
	ID         string     `json:"id"`
	CustomerID string     `json:"customer_id"`
	Items      []LineItem `json:"items"`
}

// Subscription links recurring billing to the order that created it.
type Subscription struct {
	ID            string `json:"id"`
	ParentOrderID string `json:"parent_order_id"`
}

// OrderEvent is a verified, deduplicated commerce notification.
type OrderEvent struct {
	ID           string         `json:"id"`
	Type         OrderEventType `json:"type"`
	Order        *Order         `json:"order,omitempty"`
	Subscription *Subscription  `json:"subscription,omitempty"`
	ReceivedAt   time.Time      `json:"received_at"`
}

// OrderID returns the order the event concerns, used to keep per-order ordering.
func (e OrderEvent) OrderID() string {
	if e.Order != nil && e.Order.ID != "" {
		return e.Order.ID
	}
	if e.Subscription != nil {
		return e.Subscription.ParentOrderID
	}
	return ""
}
