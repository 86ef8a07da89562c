package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Ledger       LedgerConfig
	NATS         NATSConfig
	Outbox       OutboxConfig
	Cron         CronConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Ledger.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CHRONICLE_APP_ENV" required:"true"`
	Port         string `envconfig:"CHRONICLE_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"CHRONICLE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CHRONICLE_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"CHRONICLE_LOG_FORMAT" default:"json"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev) || strings.EqualFold(a.Env, "development")
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"CHRONICLE_SERVICE_KIND" default:"cron-worker"`
}

type DBConfig struct {
	DSN    string `envconfig:"CHRONICLE_DB_DSN"`
	Driver string `envconfig:"CHRONICLE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CHRONICLE_DB_HOST"`
	LegacyPort     int    `envconfig:"CHRONICLE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CHRONICLE_DB_USER"`
	LegacyPassword string `envconfig:"CHRONICLE_DB_PASSWORD"`
	LegacyName     string `envconfig:"CHRONICLE_DB_NAME"`
	LegacySSLMode  string `envconfig:"CHRONICLE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CHRONICLE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CHRONICLE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CHRONICLE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CHRONICLE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CHRONICLE_REDIS_URL"`
	Address      string        `envconfig:"CHRONICLE_REDIS_ADDR"`
	Password     string        `envconfig:"CHRONICLE_REDIS_PASSWORD"`
	DB           int           `envconfig:"CHRONICLE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CHRONICLE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CHRONICLE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CHRONICLE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CHRONICLE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CHRONICLE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether any redis endpoint is configured.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

// LedgerConfig tunes the XP engine's locking and denial behaviour.
type LedgerConfig struct {
	LockBackend  string        `envconfig:"CHRONICLE_LEDGER_LOCK_BACKEND" default:"memory"`
	LockTimeout  time.Duration `envconfig:"CHRONICLE_LEDGER_LOCK_TIMEOUT" default:"5s"`
	LockTTL      time.Duration `envconfig:"CHRONICLE_LEDGER_LOCK_TTL" default:"30s"`
	DenialPolicy string        `envconfig:"CHRONICLE_LEDGER_DENIAL_POLICY" default:"forfeit"`
}

func (l LedgerConfig) validate() error {
	switch strings.ToLower(l.LockBackend) {
	case LockBackendMemory, LockBackendRedis:
	default:
		return fmt.Errorf("invalid %s %q, must be %q or %q", EnvLedgerLockBackend, l.LockBackend, LockBackendMemory, LockBackendRedis)
	}
	switch strings.ToLower(l.DenialPolicy) {
	case DenialPolicyForfeit, DenialPolicyRefund:
	default:
		return fmt.Errorf("invalid %s %q, must be %q or %q", EnvLedgerDenialPolicy, l.DenialPolicy, DenialPolicyForfeit, DenialPolicyRefund)
	}
	if l.LockTimeout <= 0 {
		return fmt.Errorf("%s must be positive", EnvLedgerLockTimeout)
	}
	return nil
}

type NATSConfig struct {
	URL           string        `envconfig:"CHRONICLE_NATS_URL" default:"nats://localhost:4222"`
	SubjectPrefix string        `envconfig:"CHRONICLE_NATS_SUBJECT_PREFIX" default:"chronicle.xp"`
	ClientName    string        `envconfig:"CHRONICLE_NATS_CLIENT_NAME" default:"chronicle"`
	FlushTimeout  time.Duration `envconfig:"CHRONICLE_NATS_FLUSH_TIMEOUT" default:"5s"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"CHRONICLE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"CHRONICLE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"CHRONICLE_OUTBOX_MAX_ATTEMPTS" default:"10"`

	Retention time.Duration `envconfig:"CHRONICLE_OUTBOX_RETENTION" default:"720h"`
}

type CronConfig struct {
	Interval          time.Duration `envconfig:"CHRONICLE_CRON_INTERVAL" default:"1h"`
	WeeklyGrace       time.Duration `envconfig:"CHRONICLE_CRON_WEEKLY_GRACE" default:"72h"`
	WeeklyAutoApprove bool          `envconfig:"CHRONICLE_CRON_WEEKLY_AUTO_APPROVE" default:"false"`
	WeeklyApprover    string        `envconfig:"CHRONICLE_CRON_WEEKLY_APPROVER" default:"system:weekly-award"`
	WeeklyBatchSize   int           `envconfig:"CHRONICLE_CRON_WEEKLY_BATCH_SIZE" default:"200"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"CHRONICLE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"CHRONICLE_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite {
		db.Driver = "sqlite"
	}
	if db.DSN != "" {
		return nil
	}
	if useSQLite {
		db.DSN = "file:chronicle.db?cache=shared"
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
