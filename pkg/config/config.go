package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App         AppConfig
	Backoffice  BackofficeConfig
	Register    RegisterConfig
	Auth        AuthConfig
	DB          DBConfig
	Redis       RedisConfig
	Journal     JournalConfig
	Maintenance MaintenanceConfig
	Metrics     MetricsConfig
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

func (c *Config) validate() error {
	if err := c.Backoffice.validate(); err != nil {
		return err
	}
	if _, err := c.Register.Tax(); err != nil {
		return err
	}
	if c.Register.CatalogPageSize <= 0 {
		return fmt.Errorf("%s must be positive", EnvCatalogPageSize)
	}
	switch strings.ToLower(c.DB.Driver) {
	case DBDriverSQLite, DBDriverPostgres:
	default:
		return fmt.Errorf("%s must be %s or %s", EnvDBDriver, DBDriverSQLite, DBDriverPostgres)
	}
	return nil
}

type AppConfig struct {
	Env             string        `envconfig:"REGISTER_APP_ENV" required:"true"`
	Port            string        `envconfig:"REGISTER_APP_PORT" default:"8080"`
	LogLevel        string        `envconfig:"REGISTER_LOG_LEVEL" default:"info"`
	LogWarnStack    bool          `envconfig:"REGISTER_LOG_WARN_STACK" default:"false"`
	ShutdownTimeout time.Duration `envconfig:"REGISTER_SHUTDOWN_TIMEOUT" default:"10s"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev) || strings.EqualFold(a.Env, AppEnvLocal)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// BackofficeConfig points the register at the store's back-office REST API.
type BackofficeConfig struct {
	BaseURL        string        `envconfig:"REGISTER_BACKOFFICE_BASE_URL" required:"true"`
	Timeout        time.Duration `envconfig:"REGISTER_BACKOFFICE_TIMEOUT" default:"10s"`
	MaxIdleConns   int           `envconfig:"REGISTER_BACKOFFICE_MAX_IDLE_CONNS" default:"16"`
	BreakerTrips   uint32        `envconfig:"REGISTER_BACKOFFICE_BREAKER_FAILURES" default:"5"`
	BreakerTimeout time.Duration `envconfig:"REGISTER_BACKOFFICE_BREAKER_TIMEOUT" default:"30s"`
}

func (b BackofficeConfig) validate() error {
	parsed, err := url.Parse(strings.TrimSpace(b.BaseURL))
	if err != nil {
		return fmt.Errorf("parsing %s: %w", EnvBackofficeBaseURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) url", EnvBackofficeBaseURL)
	}
	return nil
}

// RegisterConfig holds the till behaviour shared by every register session.
type RegisterConfig struct {
	StoreName           string        `envconfig:"REGISTER_STORE_NAME" default:"The Vault"`
	TaxRate             string        `envconfig:"REGISTER_TAX_RATE" default:"0.16"`
	CurrencyPrefix      string        `envconfig:"REGISTER_CURRENCY_PREFIX" default:"KSh"`
	CatalogPageSize     int           `envconfig:"REGISTER_CATALOG_PAGE_SIZE" default:"30"`
	CatalogDebounce     time.Duration `envconfig:"REGISTER_CATALOG_DEBOUNCE" default:"300ms"`
	CheckoutTimeout     time.Duration `envconfig:"REGISTER_CHECKOUT_TIMEOUT" default:"15s"`
	SendIdempotencyKey  bool          `envconfig:"REGISTER_CHECKOUT_SEND_IDEMPOTENCY_KEY" default:"true"`
	ReceiptBaseURL      string        `envconfig:"REGISTER_RECEIPT_BASE_URL" default:"http://localhost:5173"`
	SessionIdleTTL      time.Duration `envconfig:"REGISTER_SESSION_IDLE_TTL" default:"12h"`
	SalesHistoryPerPage int           `envconfig:"REGISTER_SALES_HISTORY_PER_PAGE" default:"20"`
}

// Tax parses the configured rate; it must lie in [0, 1).
func (r RegisterConfig) Tax() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(strings.TrimSpace(r.TaxRate))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing %s: %w", EnvTaxRate, err)
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("%s must be in [0, 1), got %s", EnvTaxRate, rate)
	}
	return rate, nil
}

// AuthConfig controls how bearer tokens issued by the back office are read.
// With no secret the token is decoded without signature verification and the
// back office remains the authority.
type AuthConfig struct {
	JWTSecret string        `envconfig:"REGISTER_JWT_SECRET"`
	Leeway    time.Duration `envconfig:"REGISTER_JWT_LEEWAY" default:"30s"`
}

type DBConfig struct {
	DSN         string `envconfig:"REGISTER_DB_DSN" default:"file:register.db?_foreign_keys=on"`
	Driver      string `envconfig:"REGISTER_DB_DRIVER" default:"sqlite"`
	AutoMigrate bool   `envconfig:"REGISTER_AUTO_MIGRATE" default:"true"`

	MaxOpenConns    int           `envconfig:"REGISTER_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"REGISTER_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"REGISTER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"REGISTER_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the journal lives in a local SQLite file.
func (d DBConfig) IsSQLite() bool {
	return strings.EqualFold(d.Driver, DBDriverSQLite)
}

// RedisConfig is optional; without a URL the register falls back to in-process
// locking and skips HTTP idempotency replay.
type RedisConfig struct {
	URL          string        `envconfig:"REGISTER_REDIS_URL"`
	PoolSize     int           `envconfig:"REGISTER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"REGISTER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"REGISTER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"REGISTER_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"REGISTER_REDIS_WRITE_TIMEOUT" default:"3s"`
	ReplayTTL    time.Duration `envconfig:"REGISTER_IDEMPOTENCY_REPLAY_TTL" default:"24h"`
}

// Enabled reports whether a Redis endpoint is configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != ""
}

type JournalConfig struct {
	Retention time.Duration `envconfig:"REGISTER_JOURNAL_RETENTION" default:"2160h"`
}

type MaintenanceConfig struct {
	Interval time.Duration `envconfig:"REGISTER_MAINTENANCE_INTERVAL" default:"15m"`
	LockTTL  time.Duration `envconfig:"REGISTER_MAINTENANCE_LOCK_TTL" default:"10m"`
}

type MetricsConfig struct {
	Enabled bool `envconfig:"REGISTER_METRICS_ENABLED" default:"true"`
}
