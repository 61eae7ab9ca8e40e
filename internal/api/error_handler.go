package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/autoforum/license-service/internal/api/handler"
	"github.com/autoforum/license-service/internal/core/domain"
)

// errorMapping binds a sentinel to its status and stable code. The sentinel's
// own text is the client message unless message is set.
type errorMapping struct {
	err     error
	status  int
	code    string
	message string
}

var errorMappings = []errorMapping{
	{domain.ErrInvalidCredentials, http.StatusUnauthorized, "auth_failed", "Invalid username or password."},
	{domain.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated", ""},
	{domain.ErrInvalidSignature, http.StatusUnauthorized, "invalid_signature", ""},
	{domain.ErrBanned, http.StatusForbidden, "banned", ""},
	{domain.ErrPremiumRequired, http.StatusForbidden, "premium_required", ""},
	{domain.ErrInvalidActionToken, http.StatusForbidden, "invalid_action_token", ""},
	{domain.ErrForbidden, http.StatusForbidden, "forbidden", ""},
	{domain.ErrTopicLocked, http.StatusForbidden, "forbidden", ""},
	{domain.ErrSelfThank, http.StatusForbidden, "forbidden", ""},
	{domain.ErrSelfBan, http.StatusForbidden, "forbidden", ""},
	{domain.ErrUserNotFound, http.StatusNotFound, "not_found", ""},
	{domain.ErrLicenseNotFound, http.StatusNotFound, "not_found", ""},
	{domain.ErrTopicNotFound, http.StatusNotFound, "not_found", ""},
	{domain.ErrPostNotFound, http.StatusNotFound, "not_found", ""},
	{domain.ErrUsernameTaken, http.StatusConflict, "conflict", ""},
	{domain.ErrEmailTaken, http.StatusConflict, "conflict", ""},
	{domain.ErrLicenseKeyExists, http.StatusConflict, "conflict", ""},
	{domain.ErrConflict, http.StatusConflict, "conflict", ""},
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their appropriate HTTP status codes.
//   - Logs unexpected and infrastructure errors without leaking details to the client.
//   - Renders a consistent JSON envelope: {"error": {"code": ..., "message": ...}}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := resolveError(err, log, c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = handler.WriteError(c, status, body)
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, handler.ErrorBody) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return http.StatusUnprocessableEntity, handler.ErrorBody{Code: "validation_failed", Message: ve.Message, Field: ve.Field}
	}

	var rl *domain.RateLimitedError
	if errors.As(err, &rl) {
		return http.StatusTooManyRequests, handler.ErrorBody{
			Code:       "rate_limited",
			Message:    rl.Message,
			RetryAfter: rl.RetryAfterSeconds(),
		}
	}

	// Echo's own errors (router 404/405, body size limits, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, handler.ErrorBody{Code: httpErrorCode(he.Code), Message: fmt.Sprintf("%v", he.Message)}
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			msg := m.message
			if msg == "" {
				msg = m.err.Error()
			}
			return m.status, handler.ErrorBody{Code: m.code, Message: msg}
		}
	}

	if errors.Is(err, domain.ErrStorage) {
		logError(log, c, err, "storage failure")
		return http.StatusServiceUnavailable, handler.ErrorBody{
			Code:    "unavailable",
			Message: "service temporarily unavailable",
		}
	}

	// Unexpected error: log the real cause, return a generic message.
	logError(log, c, err, "unhandled error")
	return http.StatusInternalServerError, handler.ErrorBody{Code: "internal", Message: "internal server error"}
}

func logError(log zerolog.Logger, c echo.Context, err error, msg string) {
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
		Msg(msg)
}

func httpErrorCode(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		return "validation_failed"
	case http.StatusUnauthorized:
		return "unauthenticated"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusTooManyRequests:
		return "rate_limited"
	case http.StatusServiceUnavailable:
		return "unavailable"
	default:
		return "http_error"
	}
}
