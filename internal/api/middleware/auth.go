package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/autoforum/license-service/internal/core/domain"
)

const sessionKey = "session"

// SessionAuthenticator resolves a bearer token into a live session.
type SessionAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.Session, error)
}

// Auth requires a valid bearer token and injects the session into context.
func Auth(auth SessionAuthenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, err := bearerToken(c)
			if err != nil {
				return err
			}
			if token == "" {
				return domain.ErrUnauthenticated
			}
			if err := authenticate(c, auth, token); err != nil {
				return err
			}
			return next(c)
		}
	}
}

// OptionalAuth injects the session when a bearer token is present and lets
// anonymous requests through. A token that is present but invalid is rejected.
func OptionalAuth(auth SessionAuthenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, err := bearerToken(c)
			if err != nil {
				return err
			}
			if token != "" {
				if err := authenticate(c, auth, token); err != nil {
					return err
				}
			}
			return next(c)
		}
	}
}

// SessionFrom returns the session set by Auth or OptionalAuth, or nil.
func SessionFrom(c echo.Context) *domain.Session {
	s, _ := c.Get(sessionKey).(*domain.Session)
	return s
}

func authenticate(c echo.Context, auth SessionAuthenticator, token string) error {
	session, err := auth.Authenticate(c.Request().Context(), token)
	if err != nil {
		if errors.Is(err, domain.ErrStorage) {
			return err
		}
		return domain.ErrUnauthenticated
	}
	c.Set(sessionKey, session)
	return nil
}

func bearerToken(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
	if authHeader == "" {
		return "", nil
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", domain.ErrUnauthenticated
	}
	return strings.TrimSpace(parts[1]), nil
}
