package handler

import (
	"errors"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/autoforum/license-service/internal/core/domain"
	"github.com/autoforum/license-service/internal/core/ports"
)

var adminSession = &domain.Session{ID: "sid", UserID: "a1", Role: domain.RoleAdmin}

func TestAdminHandler_IssueActionToken(t *testing.T) {
	stub := &stubAdminService{}
	c, rec := newJSONContext(http.MethodPost, "/admin/action-tokens", `{"action":"force_reset","record_id":"l1"}`)
	withSession(c, adminSession)

	if err := NewAdminHandler(stub).IssueActionToken(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if stub.lastAction != ports.ActionForceReset || stub.lastRecord != "l1" {
		t.Fatalf("unexpected args: %s %s", stub.lastAction, stub.lastRecord)
	}
}

func TestAdminHandler_IssueActionToken_UnknownAction(t *testing.T) {
	c, _ := newJSONContext(http.MethodPost, "/admin/action-tokens", `{"action":"drop_tables","record_id":"l1"}`)
	withSession(c, adminSession)

	var ve *domain.ValidationError
	if err := NewAdminHandler(&stubAdminService{}).IssueActionToken(c); !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAdminHandler_PassesActionTokenHeader(t *testing.T) {
	stub := &stubAdminService{}
	c, rec := newJSONContext(http.MethodPost, "/admin/licenses",
		`{"owner_id":"u1","product_id":"42","status":"suspended"}`)
	c.Request().Header.Set(ActionTokenHeader, "tok-1")
	withSession(c, adminSession)

	if err := NewAdminHandler(stub).AddLicense(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if stub.lastToken != "tok-1" || stub.lastInput.OwnerID != "u1" || stub.lastInput.Status != domain.LicenseSuspended {
		t.Fatalf("unexpected call: token=%q input=%+v", stub.lastToken, stub.lastInput)
	}
}

func TestAdminHandler_RecordRoutes(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		call     func(h *AdminHandler) echo.HandlerFunc
		wantCode int
	}{
		{"delete", http.MethodDelete, func(h *AdminHandler) echo.HandlerFunc { return h.DeleteLicense }, http.StatusNoContent},
		{"force reset", http.MethodPost, func(h *AdminHandler) echo.HandlerFunc { return h.ForceReset }, http.StatusOK},
		{"revoke", http.MethodPost, func(h *AdminHandler) echo.HandlerFunc { return h.RevokeLicense }, http.StatusOK},
		{"ban", http.MethodPost, func(h *AdminHandler) echo.HandlerFunc { return h.ToggleBan }, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubAdminService{}
			c, rec := newJSONContext(tt.method, "/admin/x/rec-7", "")
			c.SetParamNames("id")
			c.SetParamValues("rec-7")
			c.Request().Header.Set(ActionTokenHeader, "tok-2")
			withSession(c, adminSession)

			if err := tt.call(NewAdminHandler(stub))(c); err != nil {
				t.Fatalf("handler error: %v", err)
			}
			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, rec.Code)
			}
			if stub.lastRecord != "rec-7" || stub.lastToken != "tok-2" {
				t.Fatalf("unexpected call: record=%q token=%q", stub.lastRecord, stub.lastToken)
			}
		})
	}
}

func TestAdminHandler_PropagatesTokenRejection(t *testing.T) {
	stub := &stubAdminService{err: domain.ErrInvalidActionToken}
	c, _ := newJSONContext(http.MethodDelete, "/admin/licenses/l1", "")
	c.SetParamNames("id")
	c.SetParamValues("l1")
	withSession(c, adminSession)

	if err := NewAdminHandler(stub).DeleteLicense(c); !errors.Is(err, domain.ErrInvalidActionToken) {
		t.Fatalf("expected ErrInvalidActionToken, got %v", err)
	}
}
