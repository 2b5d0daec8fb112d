package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "CHECKOUT"

	AppEnvDev  = "dev"
	AppEnvProd = "production"

	PersistenceMemory = "memory"
	PersistenceRedis  = "redis"
	PersistenceSQL    = "sql"

	DBDriverSQLite   = "sqlite"
	DBDriverPostgres = "postgres"
)

// Environment variable names, exported for tests and deployment manifests.
const (
	EnvAppEnv             = "CHECKOUT_APP_ENV"
	EnvPort               = "CHECKOUT_APP_PORT"
	EnvLogLevel           = "CHECKOUT_LOG_LEVEL"
	EnvPersistenceBackend = "CHECKOUT_PERSISTENCE_BACKEND"
	EnvRedisURL           = "CHECKOUT_REDIS_URL"
	EnvDBDriver           = "CHECKOUT_DB_DRIVER"
	EnvDBDSN              = "CHECKOUT_DB_DSN"
	EnvMarketplaceURL     = "CHECKOUT_MARKETPLACE_BASE_URL"
	EnvJWTSecret          = "CHECKOUT_JWT_SECRET"
	EnvJWTIssuer          = "CHECKOUT_JWT_ISSUER"
	EnvSuccessURL         = "CHECKOUT_PAYMENT_SUCCESS_URL"
	EnvCancelURL          = "CHECKOUT_PAYMENT_CANCEL_URL"
	EnvCORSOrigins        = "CHECKOUT_CORS_ALLOWED_ORIGINS"
)

type Config struct {
	App         AppConfig
	Persistence PersistenceConfig
	Redis       RedisConfig
	DB          DBConfig
	Marketplace MarketplaceConfig
	JWT         JWTConfig
	Checkout    CheckoutConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CHECKOUT_APP_ENV" required:"true"`
	Port         string `envconfig:"CHECKOUT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CHECKOUT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CHECKOUT_LOG_WARN_STACK" default:"false"`

	CORSAllowedOrigins []string `envconfig:"CHECKOUT_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// PersistenceConfig selects where cart, address and contact snapshots live.
type PersistenceConfig struct {
	Backend string        `envconfig:"CHECKOUT_PERSISTENCE_BACKEND" default:"memory"`
	TTL     time.Duration `envconfig:"CHECKOUT_PERSISTENCE_TTL" default:"720h"`
}

// Normalized returns the lower-cased backend name.
func (p PersistenceConfig) Normalized() string {
	return strings.ToLower(strings.TrimSpace(p.Backend))
}

type RedisConfig struct {
	URL          string        `envconfig:"CHECKOUT_REDIS_URL"`
	Address      string        `envconfig:"CHECKOUT_REDIS_ADDR"`
	Password     string        `envconfig:"CHECKOUT_REDIS_PASSWORD"`
	DB           int           `envconfig:"CHECKOUT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CHECKOUT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CHECKOUT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CHECKOUT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CHECKOUT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CHECKOUT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type DBConfig struct {
	Driver string `envconfig:"CHECKOUT_DB_DRIVER" default:"sqlite"`
	DSN    string `envconfig:"CHECKOUT_DB_DSN" default:"file:checkout.db?_busy_timeout=5000"`

	MaxOpenConns    int           `envconfig:"CHECKOUT_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"CHECKOUT_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"CHECKOUT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CHECKOUT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// MarketplaceConfig points at the marketplace REST backend.
type MarketplaceConfig struct {
	BaseURL string        `envconfig:"CHECKOUT_MARKETPLACE_BASE_URL" required:"true"`
	Timeout time.Duration `envconfig:"CHECKOUT_MARKETPLACE_TIMEOUT" default:"10s"`
}

// JWTConfig verifies bearer tokens minted by the marketplace backend.
type JWTConfig struct {
	Secret string `envconfig:"CHECKOUT_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"CHECKOUT_JWT_ISSUER" required:"true"`
}

type CheckoutConfig struct {
	PaymentSuccessURL  string        `envconfig:"CHECKOUT_PAYMENT_SUCCESS_URL" required:"true"`
	PaymentCancelURL   string        `envconfig:"CHECKOUT_PAYMENT_CANCEL_URL" required:"true"`
	NoticeDismissAfter time.Duration `envconfig:"CHECKOUT_NOTICE_DISMISS_AFTER" default:"5s"`
	SessionIdleTTL     time.Duration `envconfig:"CHECKOUT_SESSION_IDLE_TTL" default:"30m"`
	SessionCookieName  string        `envconfig:"CHECKOUT_SESSION_COOKIE" default:"checkout_session"`
}

func (c *Config) validate() error {
	switch c.Persistence.Normalized() {
	case PersistenceMemory:
	case PersistenceRedis:
		if c.Redis.URL == "" && c.Redis.Address == "" {
			return fmt.Errorf("%s or CHECKOUT_REDIS_ADDR is required for redis persistence", EnvRedisURL)
		}
	case PersistenceSQL:
		driver := strings.ToLower(strings.TrimSpace(c.DB.Driver))
		if driver != DBDriverSQLite && driver != DBDriverPostgres {
			return fmt.Errorf("unsupported %s %q", EnvDBDriver, c.DB.Driver)
		}
		if strings.TrimSpace(c.DB.DSN) == "" {
			return fmt.Errorf("%s is required for sql persistence", EnvDBDSN)
		}
	default:
		return fmt.Errorf("unsupported %s %q", EnvPersistenceBackend, c.Persistence.Backend)
	}

	for name, raw := range map[string]string{
		EnvMarketplaceURL: c.Marketplace.BaseURL,
		EnvSuccessURL:     c.Checkout.PaymentSuccessURL,
		EnvCancelURL:      c.Checkout.PaymentCancelURL,
	} {
		parsed, err := url.Parse(raw)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("%s must be an absolute url", name)
		}
	}
	return nil
}
