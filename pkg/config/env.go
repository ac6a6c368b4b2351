package config

// EnvPrefix namespaces every variable read by envconfig.
const EnvPrefix = "REGISTER"

const (
	AppEnvDev   = "dev"
	AppEnvLocal = "local"
	AppEnvProd  = "prod"
)

const (
	EnvAppEnv       = "REGISTER_APP_ENV"
	EnvPort         = "REGISTER_APP_PORT"
	EnvLogLevel     = "REGISTER_LOG_LEVEL"
	EnvLogWarnStack = "REGISTER_LOG_WARN_STACK"

	EnvBackofficeBaseURL        = "REGISTER_BACKOFFICE_BASE_URL"
	EnvBackofficeTimeout        = "REGISTER_BACKOFFICE_TIMEOUT"
	EnvBackofficeBreakerTrips   = "REGISTER_BACKOFFICE_BREAKER_FAILURES"
	EnvBackofficeBreakerTimeout = "REGISTER_BACKOFFICE_BREAKER_TIMEOUT"

	EnvStoreName             = "REGISTER_STORE_NAME"
	EnvTaxRate               = "REGISTER_TAX_RATE"
	EnvCurrencyPrefix        = "REGISTER_CURRENCY_PREFIX"
	EnvCatalogPageSize       = "REGISTER_CATALOG_PAGE_SIZE"
	EnvCatalogDebounce       = "REGISTER_CATALOG_DEBOUNCE"
	EnvCheckoutTimeout       = "REGISTER_CHECKOUT_TIMEOUT"
	EnvCheckoutSendIdemKey   = "REGISTER_CHECKOUT_SEND_IDEMPOTENCY_KEY"
	EnvReceiptBaseURL        = "REGISTER_RECEIPT_BASE_URL"
	EnvSessionIdleTTL        = "REGISTER_SESSION_IDLE_TTL"
	EnvSalesHistoryPerPage   = "REGISTER_SALES_HISTORY_PER_PAGE"
	EnvAuthJWTSecret         = "REGISTER_JWT_SECRET"
	EnvAuthJWTLeeway         = "REGISTER_JWT_LEEWAY"
	EnvDBDSN                 = "REGISTER_DB_DSN"
	EnvDBDriver              = "REGISTER_DB_DRIVER"
	EnvAutoMigrate           = "REGISTER_AUTO_MIGRATE"
	EnvRedisURL              = "REGISTER_REDIS_URL"
	EnvJournalRetention      = "REGISTER_JOURNAL_RETENTION"
	EnvMaintenanceInterval   = "REGISTER_MAINTENANCE_INTERVAL"
	EnvMetricsEnabled        = "REGISTER_METRICS_ENABLED"
	EnvShutdownTimeout       = "REGISTER_SHUTDOWN_TIMEOUT"
	EnvIdempotencyReplayTTL  = "REGISTER_IDEMPOTENCY_REPLAY_TTL"
	EnvMaintenanceLockTTL    = "REGISTER_MAINTENANCE_LOCK_TTL"
	EnvBackofficeMaxIdleConn = "REGISTER_BACKOFFICE_MAX_IDLE_CONNS"
)

const (
	DBDriverSQLite   = "sqlite"
	DBDriverPostgres = "postgres"
)
