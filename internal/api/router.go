package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/autoforum/license-service/internal/api/handler"
	"github.com/autoforum/license-service/internal/api/middleware"
	"github.com/autoforum/license-service/internal/core/domain"
	"github.com/autoforum/license-service/internal/infrastructure/http/handlers"
)

const bodyLimit = "1M"

// RouterConfig carries the fully constructed handlers; the router only wires routes.
type RouterConfig struct {
	Log               zerolog.Logger
	TrustProxyHeaders bool
	Sessions          middleware.SessionAuthenticator

	Auth     *handler.AuthHandler
	Licenses *handler.LicenseHandler
	Forum    *handler.ForumHandler
	Admin    *handler.AdminHandler
	Webhooks *handler.WebhookHandler
	Health   *handlers.HealthHandler
	Ready    *handlers.HealthDependenciesHandler
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(cfg RouterConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(cfg.Log)

	// Forwarded headers are only honoured behind a trusted proxy; otherwise a
	// client could pick its own rate-limit bucket.
	if cfg.TrustProxyHeaders {
		e.IPExtractor = echo.ExtractIPFromXFFHeader()
	} else {
		e.IPExtractor = echo.ExtractIPDirect()
	}

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(cfg.Log))
	e.Use(echomiddleware.BodyLimit(bodyLimit))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace: "autoforum",
		Subsystem: "http",
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics" || strings.HasPrefix(c.Path(), "/health")
		},
	}))

	requireAuth := middleware.Auth(cfg.Sessions)
	optionalAuth := middleware.OptionalAuth(cfg.Sessions)

	// --- Auth routes ---
	auth := e.Group("/auth")
	auth.POST("/register", cfg.Auth.Register)
	auth.POST("/login", cfg.Auth.Login)
	auth.POST("/logout", cfg.Auth.Logout, requireAuth)
	auth.GET("/me", cfg.Auth.Me, requireAuth)
	auth.PUT("/profile", cfg.Auth.UpdateProfile, requireAuth)

	// --- Licensing and forum ---
	v1 := e.Group("/v1")
	v1.POST("/licenses/validate", cfg.Licenses.Validate)
	v1.GET("/license-info", cfg.Licenses.LicenseInfo, requireAuth)
	v1.POST("/user/reset-hwid", cfg.Licenses.ResetHWID, requireAuth)

	v1.GET("/topics", cfg.Forum.ListTopics)
	v1.GET("/topics/:id", cfg.Forum.GetTopic, optionalAuth)
	v1.POST("/topics", cfg.Forum.CreateTopic, requireAuth)
	v1.POST("/topics/:id/posts", cfg.Forum.Reply, requireAuth)
	v1.POST("/posts/:id/thanks", cfg.Forum.Thank, requireAuth)

	// --- Administration ---
	admin := e.Group("/admin", requireAuth)
	admin.POST("/action-tokens", cfg.Admin.IssueActionToken)

	licenses := admin.Group("/licenses", middleware.RequireCapability(domain.CapManageLicenses))
	licenses.POST("", cfg.Admin.AddLicense)
	licenses.PUT("/:id", cfg.Admin.EditLicense)
	licenses.DELETE("/:id", cfg.Admin.DeleteLicense)
	licenses.POST("/:id/force-reset", cfg.Admin.ForceReset)
	licenses.POST("/:id/revoke", cfg.Admin.RevokeLicense)

	admin.POST("/members/:id/ban", cfg.Admin.ToggleBan, middleware.RequireCapability(domain.CapBanMembers))

	// --- Commerce webhooks (signature auth) ---
	e.POST("/webhooks/commerce", cfg.Webhooks.Receive)

	// --- Health probes, metrics and docs (no auth required) ---
	e.GET("/health", cfg.Health.Liveness)       // process is alive
	e.GET("/health/ready", cfg.Ready.Readiness) // dependencies are reachable
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			evt := log.Info()
			if v.Status >= http.StatusInternalServerError {
				evt = log.Error()
			}
			evt.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
