package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/autoforum/license-service/internal/api/metrics"
	"github.com/autoforum/license-service/internal/core/domain"
	"github.com/autoforum/license-service/internal/core/ports"
)

const unavailableMessage = "License service temporarily unavailable. Please try again shortly."

// LicenseHandler serves the desktop-client validation endpoint and the
// member dashboard license endpoints.
type LicenseHandler struct {
	hwid ports.HWIDService
	log  zerolog.Logger
}

func NewLicenseHandler(hwid ports.HWIDService, log zerolog.Logger) *LicenseHandler {
	return &LicenseHandler{hwid: hwid, log: log}
}

// Validate checks a license key and binds it to the device on first use.
// Every outcome other than an unreadable request is a 200 with a status, so
// clients can branch on it; a storage failure answers 503 with status invalid.
//
// @Summary      Validate a license key
// @Tags         licenses
// @Accept       json
// @Produce      json
// @Param        body  body      validateRequest  true  "License key and device fingerprint"
// @Success      200   {object}  validateResponse
// @Failure      422   {object}  ErrorResponse
// @Failure      503   {object}  validateResponse
// @Router       /v1/licenses/validate [post]
func (h *LicenseHandler) Validate(c echo.Context) error {
	var req validateRequest
	if err := bindAndValidate(c, &req); err != nil {
		metrics.LicenseValidationsTotal.WithLabelValues("bad_request").Inc()
		return err
	}

	res, err := h.hwid.ValidateAndBind(c.Request().Context(), req.Key, req.HWID)
	if err != nil {
		metrics.LicenseValidationsTotal.WithLabelValues("error").Inc()
		h.log.Error().Err(err).Str("request_id", requestID(c)).Msg("license validation failed")
		return c.JSON(http.StatusServiceUnavailable, validateResponse{
			Status:  domain.ValidationInvalid,
			Message: unavailableMessage,
		})
	}

	metrics.LicenseValidationsTotal.WithLabelValues(string(res.Status)).Inc()
	resp := validateResponse{Status: res.Status, Message: res.Message()}
	if res.Status == domain.ValidationValid && res.License != nil {
		resp.ExpiresAt = res.License.ExpiresAt
	}
	return c.JSON(http.StatusOK, resp)
}

// LicenseInfo lists the current member's licenses with reset counters.
//
// @Summary      Dashboard license info
// @Tags         licenses
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   licenseInfoItem
// @Failure      401  {object}  ErrorResponse
// @Router       /v1/license-info [get]
func (h *LicenseHandler) LicenseInfo(c echo.Context) error {
	session, err := requireSession(c)
	if err != nil {
		return err
	}
	views, err := h.hwid.LicenseInfo(c.Request().Context(), session.UserID)
	if err != nil {
		return err
	}

	items := make([]licenseInfoItem, 0, len(views))
	for _, v := range views {
		items = append(items, licenseInfoItem{
			ID:            v.License.ID,
			LicenseKey:    v.License.Key,
			ProductID:     v.License.ProductID,
			HWID:          boundHWID(v.License.HWID),
			Status:        v.License.Status,
			ResetsUsed:    v.ResetsUsed,
			ResetsAllowed: v.ResetsAllowed,
			NextResetAt:   v.NextResetAt,
			ExpiresAt:     v.License.ExpiresAt,
		})
	}
	return c.JSON(http.StatusOK, items)
}

func boundHWID(hwid string) *string {
	if hwid == "" {
		return nil
	}
	return &hwid
}

// ResetHWID clears the device binding of one of the member's licenses.
//
// @Summary      Self-service HWID reset
// @Tags         licenses
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      resetRequest  true  "License to reset"
// @Success      200   {object}  resetResponse
// @Failure      403   {object}  ErrorResponse
// @Failure      409   {object}  ErrorResponse
// @Failure      429   {object}  ErrorResponse
// @Router       /v1/user/reset-hwid [post]
func (h *LicenseHandler) ResetHWID(c echo.Context) error {
	session, err := requireSession(c)
	if err != nil {
		return err
	}
	var req resetRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	res, err := h.hwid.UserResetHWID(c.Request().Context(), session.UserID, req.LicenseID, c.RealIP())
	if err != nil {
		metrics.HWIDResetsTotal.WithLabelValues("error").Inc()
		return err
	}
	metrics.HWIDResetsTotal.WithLabelValues(string(res.Outcome)).Inc()

	if res.Outcome == domain.ResetSuccess {
		return c.JSON(http.StatusOK, resetResponse{
			Message:       res.Message(),
			ResetsUsed:    res.ResetsUsed,
			ResetsAllowed: res.ResetsAllowed,
		})
	}
	return WriteError(c, resetStatus(res.Outcome), resetErrorBody(res))
}

func resetStatus(o domain.ResetOutcome) int {
	switch o {
	case domain.ResetOnCooldown, domain.ResetRateLimited:
		return http.StatusTooManyRequests
	case domain.ResetMaxReached, domain.ResetForbidden:
		return http.StatusForbidden
	case domain.ResetNotActive:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func resetErrorBody(res domain.ResetResult) ErrorBody {
	body := ErrorBody{Code: string(res.Outcome), Message: res.Message()}
	switch res.Outcome {
	case domain.ResetOnCooldown:
		body.HoursLeft = res.HoursLeft
		body.RetryAfter = res.HoursLeft * 3600
	case domain.ResetRateLimited:
		body.RetryAfter = (&domain.RateLimitedError{RetryAfter: res.RetryAfter}).RetryAfterSeconds()
	}
	return body
}
