package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/autoforum/license-service/internal/api/metrics"
	"github.com/autoforum/license-service/internal/core/domain"
	"github.com/autoforum/license-service/internal/core/ports"
)

const (
	// SignatureHeader carries base64(HMAC-SHA256(secret, raw body)).
	SignatureHeader = "X-Webhook-Signature"
	maxWebhookBody  = 1 << 20
)

// EventDispatcher applies an event in per-order sequence and reports the outcome.
type EventDispatcher interface {
	Dispatch(ctx context.Context, event domain.OrderEvent) error
}

// WebhookHandler receives commerce lifecycle notifications.
type WebhookHandler struct {
	secret     []byte
	validate   echo.Validator
	dedup      ports.EventDedup
	dispatcher EventDispatcher
	log        zerolog.Logger
	now        func() time.Time
}

// NewWebhookHandler creates a WebhookHandler. Deliveries are rejected when
// secret is empty.
func NewWebhookHandler(secret string, dedup ports.EventDedup, dispatcher EventDispatcher, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		secret:     []byte(secret),
		validate:   NewValidator(),
		dedup:      dedup,
		dispatcher: dispatcher,
		log:        log,
		now:        time.Now,
	}
}

// Receive handles POST /webhooks/commerce: verifies the signature, drops
// redeliveries and applies the event before answering. A failed event is
// released from dedup and answered with 503 so the platform redelivers it.
//
// @Summary      Commerce webhook
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Param        X-Webhook-Signature  header    string        true  "base64 HMAC-SHA256 of the body"
// @Param        body                 body      webhookEvent  true  "Commerce event"
// @Success      200                  {object}  messageResponse
// @Success      202                  {object}  messageResponse  "ignored event type"
// @Failure      401                  {object}  ErrorResponse
// @Failure      422                  {object}  ErrorResponse
// @Failure      503                  {object}  ErrorResponse
// @Router       /webhooks/commerce [post]
func (h *WebhookHandler) Receive(c echo.Context) error {
	body, err := io.ReadAll(http.MaxBytesReader(c.Response(), c.Request().Body, maxWebhookBody))
	if err != nil {
		return domain.NewValidationError("", "Request body too large or unreadable.")
	}
	if !h.verify(body, c.Request().Header.Get(SignatureHeader)) {
		h.log.Warn().Str("remote_ip", c.RealIP()).Msg("webhook signature rejected")
		return domain.ErrInvalidSignature
	}

	var req webhookEvent
	if err := json.Unmarshal(body, &req); err != nil {
		return domain.NewValidationError("", "Invalid request payload.")
	}
	if err := h.validate.Validate(&req); err != nil {
		return err
	}

	event := toOrderEvent(req, h.now())
	if !event.Type.Valid() {
		h.log.Debug().Str("event_id", event.ID).Str("event_type", req.Type).Msg("webhook event ignored")
		return c.JSON(http.StatusAccepted, messageResponse{Message: "event ignored"})
	}

	ctx := c.Request().Context()
	first, err := h.dedup.Claim(ctx, event.ID)
	if err != nil {
		return domain.StorageError("webhook dedup", err)
	}
	if !first {
		metrics.OrderEventsDedupTotal.WithLabelValues("hit").Inc()
		return c.JSON(http.StatusOK, messageResponse{Message: "duplicate event"})
	}
	metrics.OrderEventsDedupTotal.WithLabelValues("miss").Inc()

	if err := h.dispatcher.Dispatch(ctx, event); err != nil {
		if rerr := h.dedup.Release(context.WithoutCancel(ctx), event.ID); rerr != nil {
			h.log.Warn().Err(rerr).Str("event_id", event.ID).Msg("release dedup claim failed")
		}
		if errors.Is(err, domain.ErrStorage) {
			return err
		}
		return domain.StorageError("webhook dispatch", err)
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "event processed"})
}

func (h *WebhookHandler) verify(body []byte, signature string) bool {
	if len(h.secret) == 0 || signature == "" {
		return false
	}
	got, err := base64.StdEncoding.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// Sign returns the signature header value for body. Exposed for senders and tests.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func toOrderEvent(req webhookEvent, receivedAt time.Time) domain.OrderEvent {
	event := domain.OrderEvent{
		ID:         req.ID,
		Type:       domain.OrderEventType(req.Type),
		ReceivedAt: receivedAt,
	}
	if req.Order != nil {
		order := &domain.Order{ID: req.Order.ID, CustomerID: req.Order.CustomerID}
		for _, it := range req.Order.Items {
			order.Items = append(order.Items, domain.LineItem{ProductID: it.ProductID, Quantity: it.Quantity})
		}
		event.Order = order
	}
	if req.Subscription != nil {
		event.Subscription = &domain.Subscription{ID: req.Subscription.ID, ParentOrderID: req.Subscription.ParentOrderID}
	}
	return event
}
