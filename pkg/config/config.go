package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	Gateway      GatewayConfig
	Notify       NotifyConfig
	Sweep        SweepConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BAKEHOUSE_APP_ENV" required:"true"`
	Port         string `envconfig:"BAKEHOUSE_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"BAKEHOUSE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BAKEHOUSE_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"BAKEHOUSE_CORS_ORIGINS" default:"*"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"BAKEHOUSE_DB_DSN"`
	Driver string `envconfig:"BAKEHOUSE_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"BAKEHOUSE_DB_HOST"`
	Port     int    `envconfig:"BAKEHOUSE_DB_PORT" default:"5432"`
	User     string `envconfig:"BAKEHOUSE_DB_USER"`
	Password string `envconfig:"BAKEHOUSE_DB_PASSWORD"`
	Name     string `envconfig:"BAKEHOUSE_DB_NAME"`
	SSLMode  string `envconfig:"BAKEHOUSE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BAKEHOUSE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BAKEHOUSE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BAKEHOUSE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BAKEHOUSE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BAKEHOUSE_REDIS_URL"`
	Address      string        `envconfig:"BAKEHOUSE_REDIS_ADDR"`
	Password     string        `envconfig:"BAKEHOUSE_REDIS_PASSWORD"`
	DB           int           `envconfig:"BAKEHOUSE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BAKEHOUSE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BAKEHOUSE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BAKEHOUSE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BAKEHOUSE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BAKEHOUSE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"BAKEHOUSE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"BAKEHOUSE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"BAKEHOUSE_JWT_EXPIRATION_MINUTES" default:"60"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"BAKEHOUSE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"BAKEHOUSE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"BAKEHOUSE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"BAKEHOUSE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"BAKEHOUSE_ARGON_KEY_LEN" default:"32"`
}

// GatewayConfig points at the external card payment gateway.
type GatewayConfig struct {
	BaseURL      string        `envconfig:"BAKEHOUSE_GATEWAY_BASE_URL"`
	APIKey       string        `envconfig:"BAKEHOUSE_GATEWAY_API_KEY"`
	Timeout      time.Duration `envconfig:"BAKEHOUSE_GATEWAY_TIMEOUT" default:"10s"`
	MaxRetries   uint64        `envconfig:"BAKEHOUSE_GATEWAY_MAX_RETRIES" default:"3"`
	RetryBase    time.Duration `envconfig:"BAKEHOUSE_GATEWAY_RETRY_BASE" default:"250ms"`
	WebhookKey   string        `envconfig:"BAKEHOUSE_GATEWAY_WEBHOOK_KEY"`
	SurchargePct int           `envconfig:"BAKEHOUSE_GATEWAY_SURCHARGE_PCT" default:"10"`
}

// NotifyConfig points at the external notification relay (WhatsApp bridge).
type NotifyConfig struct {
	WebhookURL string        `envconfig:"BAKEHOUSE_NOTIFY_WEBHOOK_URL"`
	Timeout    time.Duration `envconfig:"BAKEHOUSE_NOTIFY_TIMEOUT" default:"5s"`
}

// SweepConfig tunes the stale pending-payment follow-up job.
type SweepConfig struct {
	PendingPaymentAge time.Duration `envconfig:"BAKEHOUSE_SWEEP_PENDING_PAYMENT_AGE" default:"24h"`
	Interval          time.Duration `envconfig:"BAKEHOUSE_SWEEP_INTERVAL" default:"1h"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"BAKEHOUSE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"BAKEHOUSE_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		"BAKEHOUSE_DB_HOST": db.Host,
		"BAKEHOUSE_DB_USER": db.User,
		"BAKEHOUSE_DB_NAME": db.Name,
	}
	for _, key := range []string{"BAKEHOUSE_DB_HOST", "BAKEHOUSE_DB_USER", "BAKEHOUSE_DB_NAME"} {
		if values[key] == "" {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either BAKEHOUSE_DB_DSN or %s are required", strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
