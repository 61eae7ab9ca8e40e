package handler

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// ErrorBody is the payload of every error response.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// RetryAfter is in seconds and mirrors the Retry-After header.
	RetryAfter int    `json:"retry_after,omitempty"`
	HoursLeft  int    `json:"hours_left,omitempty"`
	Field      string `json:"field,omitempty"`
}

// ErrorResponse is the canonical error envelope: {"error": {...}}.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// WriteError renders body with status, adding Retry-After when set.
func WriteError(c echo.Context, status int, body ErrorBody) error {
	if body.RetryAfter > 0 {
		c.Response().Header().Set("Retry-After", strconv.Itoa(body.RetryAfter))
	}
	return c.JSON(status, ErrorResponse{Error: body})
}
