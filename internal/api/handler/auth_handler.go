package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/autoforum/license-service/internal/api/metrics"
	"github.com/autoforum/license-service/internal/core/domain"
	"github.com/autoforum/license-service/internal/core/ports"
)

type AuthHandler struct {
	authService ports.AuthService
}

func NewAuthHandler(authService ports.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Register creates a new member account and signs it in.
//
// @Summary      Register a new member
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "Registration details"
// @Success      201   {object}  sessionResponse
// @Failure      409   {object}  ErrorResponse
// @Failure      422   {object}  ErrorResponse
// @Failure      429   {object}  ErrorResponse
// @Router       /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	res, err := h.authService.Register(c.Request().Context(), ports.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		ClientIP: c.RealIP(),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toSessionResponse(res))
}

// Login authenticates a member by username or email and returns a session token.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  sessionResponse
// @Failure      401   {object}  ErrorResponse
// @Failure      403   {object}  ErrorResponse
// @Failure      422   {object}  ErrorResponse
// @Failure      429   {object}  ErrorResponse
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	res, err := h.authService.Login(c.Request().Context(), ports.LoginInput{
		Login:    req.Username,
		Password: req.Password,
		Remember: req.Remember,
		ClientIP: c.RealIP(),
	})
	metrics.LoginAttemptsTotal.WithLabelValues(loginResult(err)).Inc()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toSessionResponse(res))
}

// Logout revokes the current session.
//
// @Summary      Logout
// @Tags         auth
// @Security     BearerAuth
// @Success      204
// @Failure      401  {object}  ErrorResponse
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	session, err := requireSession(c)
	if err != nil {
		return err
	}
	if err := h.authService.Logout(c.Request().Context(), session); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the current member and their visible licenses.
//
// @Summary      Current member
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  meResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /auth/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	session, err := requireSession(c)
	if err != nil {
		return err
	}
	overview, err := h.authService.Me(c.Request().Context(), session.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, meResponse{User: overview.User, Licenses: overview.Licenses})
}

// UpdateProfile edits the current member's profile fields.
//
// @Summary      Update profile
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      profileRequest  true  "Fields to change"
// @Success      200   {object}  domain.User
// @Failure      401   {object}  ErrorResponse
// @Failure      409   {object}  ErrorResponse
// @Failure      422   {object}  ErrorResponse
// @Router       /auth/profile [put]
func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	session, err := requireSession(c)
	if err != nil {
		return err
	}
	var req profileRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.authService.UpdateProfile(c.Request().Context(), session.UserID, domain.ProfileUpdate{
		DisplayName: req.DisplayName,
		Bio:         req.Bio,
		Location:    req.Location,
		Signature:   req.Signature,
		Email:       req.Email,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

func toSessionResponse(res *ports.AuthResult) sessionResponse {
	return sessionResponse{User: res.User, Token: res.Session.Token, ExpiresAt: res.Session.ExpiresAt}
}

func loginResult(err error) string {
	var rl *domain.RateLimitedError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &rl):
		return "rate_limited"
	case errors.Is(err, domain.ErrBanned):
		return "banned"
	default:
		return "failed"
	}
}
