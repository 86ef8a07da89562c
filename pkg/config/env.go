package config

// EnvPrefix is handed to envconfig; every field carries its full name in the tag.
const EnvPrefix = "CHRONICLE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	LockBackendMemory = "memory"
	LockBackendRedis  = "redis"

	DenialPolicyForfeit = "forfeit"
	DenialPolicyRefund  = "refund"
)

const (
	EnvAppEnv = "CHRONICLE_APP_ENV"
	EnvPort   = "CHRONICLE_APP_PORT"

	EnvDBDSN  = "CHRONICLE_DB_DSN"
	EnvDBHost = "CHRONICLE_DB_HOST"
	EnvDBUser = "CHRONICLE_DB_USER"
	EnvDBName = "CHRONICLE_DB_NAME"

	EnvRedisURL = "CHRONICLE_REDIS_URL"

	EnvLedgerLockBackend  = "CHRONICLE_LEDGER_LOCK_BACKEND"
	EnvLedgerLockTimeout  = "CHRONICLE_LEDGER_LOCK_TIMEOUT"
	EnvLedgerDenialPolicy = "CHRONICLE_LEDGER_DENIAL_POLICY"

	EnvUseSQLite = "CHRONICLE_USE_SQLITE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
