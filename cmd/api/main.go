// Command api runs the AutoForum license and forum HTTP service.
//
// @title                       AutoForum License API
// @version                     1.0
// @description                 License validation, HWID binding, member auth and premium forum access.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/crypto/bcrypt"

	_ "github.com/autoforum/license-service/docs"
	"github.com/autoforum/license-service/internal/api"
	"github.com/autoforum/license-service/internal/api/handler"
	"github.com/autoforum/license-service/internal/core/service"
	"github.com/autoforum/license-service/internal/infrastructure/config"
	mongodb "github.com/autoforum/license-service/internal/infrastructure/db/mongo"
	redisdb "github.com/autoforum/license-service/internal/infrastructure/db/redis"
	"github.com/autoforum/license-service/internal/infrastructure/http/handlers"
	"github.com/autoforum/license-service/internal/infrastructure/queue"
	"github.com/autoforum/license-service/internal/ratelimit"
	"github.com/autoforum/license-service/pkg/logger"
)

const (
	serviceName     = "autoforum-license"
	shutdownTimeout = 15 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		log := logger.Init(logger.Options{Service: serviceName})
		log.Fatal().Err(err).Msg("load configuration")
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: serviceName,
	})

	// --- Backing stores ---
	mongoClient, db, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database, Timeout: cfg.StoreTimeout})
	if err != nil {
		log.Fatal().Err(err).Msg("connect mongodb")
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = mongoClient.Disconnect(dctx)
	}()
	if err := mongodb.EnsureIndexes(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("ensure mongodb indexes")
	}

	rdb, err := redisdb.Connect(ctx, redisdb.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB, Timeout: cfg.StoreTimeout})
	if err != nil {
		log.Fatal().Err(err).Msg("connect redis")
	}
	defer rdb.Close()

	users := mongodb.NewUserRepository(db, cfg.StoreTimeout)
	licenseRepo := mongodb.NewLicenseRepository(db, cfg.StoreTimeout)
	forumRepo := mongodb.NewForumRepository(db, cfg.StoreTimeout)

	limiter := ratelimit.New(redisdb.NewCounterStore(rdb))
	dedup := redisdb.NewDedupChecker(rdb)

	// --- Core services ---
	licenses := service.NewLicenseService(licenseRepo, redisdb.NewLicenseCache(rdb, cfg.Licensing.CacheTTL),
		cfg.Licensing.KeyPrefix, logger.Component("licenses"))
	hwid := service.NewHWIDService(licenses, licenseRepo, limiter, service.HWIDConfig{
		ResetCooldown:    cfg.Licensing.ResetCooldown(),
		MaxResets:        cfg.Licensing.MaxHWIDResets,
		ResetMaxAttempts: cfg.Limits.HWIDResetMaxAttempts,
		ResetWindow:      cfg.Limits.HWIDResetWindow,
	}, logger.Component("hwid"))

	authService, err := service.NewAuthService(users, licenses, limiter, redisdb.NewRevocationStore(rdb), service.AuthConfig{
		JWTSecret:           cfg.Auth.JWTSecret,
		SessionTTL:          cfg.Auth.SessionTTL,
		RememberTTL:         cfg.Auth.RememberTTL,
		LoginMaxAttempts:    cfg.Limits.LoginMaxAttempts,
		LoginWindow:         cfg.Limits.LoginWindow,
		RegisterMaxAttempts: cfg.Limits.RegisterMaxAttempts,
		RegisterWindow:      cfg.Limits.RegisterWindow,
		BcryptCost:          bcrypt.DefaultCost,
	}, logger.Component("auth"),
		service.PasswordAuthenticator{},
		service.NewLegacyBridge(users, bcrypt.DefaultCost, logger.Component("legacy")),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("build auth service")
	}

	gate := service.NewAccessGate(licenses, logger.Component("gate"))
	forum := service.NewForumService(forumRepo, users, gate, logger.Component("forum"))
	admin := service.NewAdminService(licenses, hwid, users, redisdb.NewActionTokenStore(rdb),
		cfg.Auth.ActionTokenTTL, logger.Component("admin"))
	reactor := service.NewOrderReactor(licenses, licenseRepo, users, service.OrderReactorConfig{
		ProductIDs:      cfg.Licensing.ProductIDs,
		LicenseDuration: cfg.Licensing.LicenseDuration(),
	}, logger.Component("orders"))

	// --- Commerce event workers ---
	dispatcher := queue.NewDispatcher(cfg.Webhook.Workers, reactor, logger.Component("dispatcher"))
	dispatcher.Start()

	// --- HTTP ---
	e := api.NewRouter(api.RouterConfig{
		Log:               logger.Component("http"),
		TrustProxyHeaders: cfg.TrustProxyHeaders,
		Sessions:          authService,
		Auth:              handler.NewAuthHandler(authService),
		Licenses:          handler.NewLicenseHandler(hwid, logger.Component("licenses")),
		Forum:             handler.NewForumHandler(forum),
		Admin:             handler.NewAdminHandler(admin),
		Webhooks:          handler.NewWebhookHandler(cfg.Webhook.Secret, dedup, dispatcher, logger.Component("webhooks")),
		Health:            handlers.NewHealthHandler(serviceName),
		Ready: handlers.NewHealthDependenciesHandler(
			handlers.MongoDependency(db),
			handlers.RedisDependency(rdb),
		),
	})

	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("http server starting")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	// In-flight webhook requests have returned; finish anything still buffered.
	dispatcher.Stop()
}
