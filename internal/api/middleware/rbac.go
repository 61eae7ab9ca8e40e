package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/autoforum/license-service/internal/core/domain"
)

// RequireCapability enforces capability-based access control. It must run
// after Auth.
func RequireCapability(capability domain.Capability) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			session := SessionFrom(c)
			if session == nil {
				return domain.ErrUnauthenticated
			}
			if !session.Can(capability) {
				return domain.ErrForbidden
			}
			return next(c)
		}
	}
}
