package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/autoforum/license-service/internal/api/middleware"
	"github.com/autoforum/license-service/internal/core/domain"
)

// requireSession returns the session injected by the Auth middleware and
// fails fast when a route was mounted without it.
func requireSession(c echo.Context) (*domain.Session, error) {
	s := middleware.SessionFrom(c)
	if s == nil || s.UserID == "" {
		return nil, domain.ErrUnauthenticated
	}
	return s, nil
}

// bindAndValidate decodes the request body into req and runs struct validation.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return domain.NewValidationError("", "Invalid request payload.")
	}
	return c.Validate(req)
}

func requestID(c echo.Context) string {
	return c.Response().Header().Get(echo.HeaderXRequestID)
}
