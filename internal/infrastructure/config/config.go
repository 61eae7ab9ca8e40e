package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port              string        `env:"PORT,                default=8080"`
	Env               string        `env:"ENV,                 default=development"`
	LogLevel          string        `env:"LOG_LEVEL,           default=info"`
	TrustProxyHeaders bool          `env:"TRUST_PROXY_HEADERS, default=false"`
	StoreTimeout      time.Duration `env:"STORE_TIMEOUT,       default=3s"`

	Auth      AuthConfig
	Licensing LicensingConfig
	Limits    LimitsConfig
	Webhook   WebhookConfig
	Mongo     MongoConfig
	Redis     RedisConfig
}

type AuthConfig struct {
	JWTSecret      string        `env:"JWT_SECRET"`
	SessionTTL     time.Duration `env:"SESSION_TTL,      default=24h"`
	RememberTTL    time.Duration `env:"REMEMBER_TTL,     default=336h"`
	ActionTokenTTL time.Duration `env:"ACTION_TOKEN_TTL, default=10m"`
}

type LicensingConfig struct {
	KeyPrefix         string        `env:"LICENSE_KEY_PREFIX,       default=ESYT"`
	DurationDays      int           `env:"LICENSE_DURATION_DAYS,    default=365"`
	ProductIDs        []string      `env:"LICENSE_PRODUCT_IDS"`
	CacheTTL          time.Duration `env:"LICENSE_CACHE_TTL,        default=5m"`
	ResetCooldownDays int           `env:"HWID_RESET_COOLDOWN_DAYS, default=7"`
	MaxHWIDResets     int           `env:"MAX_HWID_RESETS,          default=3"`
}

type LimitsConfig struct {
	LoginMaxAttempts     int           `env:"LOGIN_MAX_ATTEMPTS,      default=5"`
	LoginWindow          time.Duration `env:"LOGIN_WINDOW,            default=15m"`
	RegisterMaxAttempts  int           `env:"REGISTER_MAX_ATTEMPTS,   default=3"`
	RegisterWindow       time.Duration `env:"REGISTER_WINDOW,         default=1h"`
	HWIDResetMaxAttempts int           `env:"HWID_RESET_MAX_ATTEMPTS, default=5"`
	HWIDResetWindow      time.Duration `env:"HWID_RESET_WINDOW,       default=1h"`
}

type WebhookConfig struct {
	Secret  string `env:"WEBHOOK_SECRET"`
	Workers int    `env:"WEBHOOK_WORKERS, default=8"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=autoforum"`
}

type RedisConfig struct {
	Addr string `env:"REDIS_ADDR, default=localhost:6379"`
	DB   int    `env:"REDIS_DB,   default=0"`
}

// IsDevelopment reports whether the process runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, "development")
}

// LicenseDuration returns the validity period of a purchased license.
func (c LicensingConfig) LicenseDuration() time.Duration {
	return time.Duration(c.DurationDays) * 24 * time.Hour
}

// ResetCooldown returns the minimum time between self-service HWID resets.
func (c LicensingConfig) ResetCooldown() time.Duration {
	return time.Duration(c.ResetCooldownDays) * 24 * time.Hour
}

// Validate rejects configurations that would run insecurely or nonsensically.
func (c *Config) Validate() error {
	var errs []error
	if c.Auth.JWTSecret == "" {
		if !c.IsDevelopment() {
			errs = append(errs, errors.New("JWT_SECRET is required outside development"))
		}
	} else if !c.IsDevelopment() && len(c.Auth.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 bytes"))
	}
	if c.Webhook.Secret == "" && !c.IsDevelopment() {
		errs = append(errs, errors.New("WEBHOOK_SECRET is required outside development"))
	}
	if c.Licensing.DurationDays <= 0 {
		errs = append(errs, fmt.Errorf("LICENSE_DURATION_DAYS must be positive, got %d", c.Licensing.DurationDays))
	}
	if c.Licensing.ResetCooldownDays <= 0 {
		errs = append(errs, fmt.Errorf("HWID_RESET_COOLDOWN_DAYS must be positive, got %d", c.Licensing.ResetCooldownDays))
	}
	if c.Licensing.MaxHWIDResets <= 0 {
		errs = append(errs, fmt.Errorf("MAX_HWID_RESETS must be positive, got %d", c.Licensing.MaxHWIDResets))
	}
	if c.StoreTimeout <= 0 {
		errs = append(errs, errors.New("STORE_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

// Load reads an optional .env file, then the environment, then validates.
func Load(ctx context.Context) (*Config, error) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.IsDevelopment() && cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = "development-only-secret-change-me"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
