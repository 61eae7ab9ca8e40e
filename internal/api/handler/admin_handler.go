package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/autoforum/license-service/internal/api/metrics"
	"github.com/autoforum/license-service/internal/core/domain"
	"github.com/autoforum/license-service/internal/core/ports"
)

// ActionTokenHeader carries the single-use token issued for an admin action.
const ActionTokenHeader = "X-Action-Token"

type AdminHandler struct {
	admin ports.AdminService
}

func NewAdminHandler(admin ports.AdminService) *AdminHandler {
	return &AdminHandler{admin: admin}
}

// IssueActionToken mints a token for one action on one record. Use record_id
// "new" when adding a license.
//
// @Summary      Issue an admin action token
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      actionTokenRequest  true  "Action and target record"
// @Success      201   {object}  actionTokenResponse
// @Failure      403   {object}  ErrorResponse
// @Failure      422   {object}  ErrorResponse
// @Router       /admin/action-tokens [post]
func (h *AdminHandler) IssueActionToken(c echo.Context) error {
	actor, err := requireSession(c)
	if err != nil {
		return err
	}
	var req actionTokenRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	tok, err := h.admin.IssueActionToken(c.Request().Context(), actor, ports.AdminAction(req.Action), req.RecordID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, actionTokenResponse{Token: tok.Token, ExpiresAt: tok.ExpiresAt})
}

// AddLicense creates a license; a blank license_key is generated.
//
// @Summary      Add a license
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        X-Action-Token  header    string          true  "Action token"
// @Param        body            body      licenseRequest  true  "License fields"
// @Success      201             {object}  domain.License
// @Failure      403             {object}  ErrorResponse
// @Failure      409             {object}  ErrorResponse
// @Failure      422             {object}  ErrorResponse
// @Router       /admin/licenses [post]
func (h *AdminHandler) AddLicense(c echo.Context) error {
	actor, err := requireSession(c)
	if err != nil {
		return err
	}
	var req licenseRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	l, err := h.admin.AddLicense(c.Request().Context(), actor, actionToken(c), toLicenseInput(req))
	if err != nil {
		return err
	}
	metrics.LicensesIssuedTotal.WithLabelValues("admin").Inc()
	return c.JSON(http.StatusCreated, l)
}

// EditLicense replaces the editable fields of a license.
//
// @Summary      Edit a license
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id              path      string          true  "License ID"
// @Param        X-Action-Token  header    string          true  "Action token"
// @Param        body            body      licenseRequest  true  "License fields"
// @Success      200             {object}  domain.License
// @Failure      403             {object}  ErrorResponse
// @Failure      404             {object}  ErrorResponse
// @Failure      409             {object}  ErrorResponse
// @Router       /admin/licenses/{id} [put]
func (h *AdminHandler) EditLicense(c echo.Context) error {
	actor, err := requireSession(c)
	if err != nil {
		return err
	}
	var req licenseRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	l, err := h.admin.EditLicense(c.Request().Context(), actor, actionToken(c), c.Param("id"), toLicenseInput(req))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, l)
}

// DeleteLicense removes a license.
//
// @Summary      Delete a license
// @Tags         admin
// @Security     BearerAuth
// @Param        id              path    string  true  "License ID"
// @Param        X-Action-Token  header  string  true  "Action token"
// @Success      204
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /admin/licenses/{id} [delete]
func (h *AdminHandler) DeleteLicense(c echo.Context) error {
	actor, err := requireSession(c)
	if err != nil {
		return err
	}
	if err := h.admin.DeleteLicense(c.Request().Context(), actor, actionToken(c), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ForceReset clears the binding and the reset counter of a license.
//
// @Summary      Force an HWID reset
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id              path      string  true  "License ID"
// @Param        X-Action-Token  header    string  true  "Action token"
// @Success      200             {object}  domain.License
// @Failure      403             {object}  ErrorResponse
// @Failure      404             {object}  ErrorResponse
// @Router       /admin/licenses/{id}/force-reset [post]
func (h *AdminHandler) ForceReset(c echo.Context) error {
	actor, err := requireSession(c)
	if err != nil {
		return err
	}
	l, err := h.admin.ForceReset(c.Request().Context(), actor, actionToken(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, l)
}

// RevokeLicense permanently revokes a license.
//
// @Summary      Revoke a license
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id              path      string  true  "License ID"
// @Param        X-Action-Token  header    string  true  "Action token"
// @Success      200             {object}  domain.License
// @Failure      403             {object}  ErrorResponse
// @Failure      404             {object}  ErrorResponse
// @Router       /admin/licenses/{id}/revoke [post]
func (h *AdminHandler) RevokeLicense(c echo.Context) error {
	actor, err := requireSession(c)
	if err != nil {
		return err
	}
	l, err := h.admin.RevokeLicense(c.Request().Context(), actor, actionToken(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, l)
}

// ToggleBan bans or unbans a member.
//
// @Summary      Toggle a member ban
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id              path      string  true  "Member ID"
// @Param        X-Action-Token  header    string  true  "Action token"
// @Success      200             {object}  domain.User
// @Failure      403             {object}  ErrorResponse
// @Failure      404             {object}  ErrorResponse
// @Router       /admin/members/{id}/ban [post]
func (h *AdminHandler) ToggleBan(c echo.Context) error {
	actor, err := requireSession(c)
	if err != nil {
		return err
	}
	u, err := h.admin.ToggleBan(c.Request().Context(), actor, actionToken(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

func actionToken(c echo.Context) string {
	return c.Request().Header.Get(ActionTokenHeader)
}

func toLicenseInput(req licenseRequest) ports.LicenseInput {
	return ports.LicenseInput{
		Key:       req.Key,
		OwnerID:   req.OwnerID,
		ProductID: req.ProductID,
		OrderID:   req.OrderID,
		HWID:      req.HWID,
		Status:    domain.LicenseStatus(req.Status),
		ExpiresAt: req.ExpiresAt,
	}
}
