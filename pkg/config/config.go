package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix namespaces every environment variable the backend reads.
const EnvPrefix = "codeseek"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	SMTP         SMTPConfig
	Webhooks     WebhookConfig
	Cron         CronConfig
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
	Env          string `envconfig:"CODESEEK_APP_ENV" required:"true"`
	Port         string `envconfig:"CODESEEK_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"CODESEEK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CODESEEK_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"CODESEEK_DB_DSN"`

	Host     string `envconfig:"CODESEEK_DB_HOST"`
	Port     int    `envconfig:"CODESEEK_DB_PORT" default:"5432"`
	User     string `envconfig:"CODESEEK_DB_USER"`
	Password string `envconfig:"CODESEEK_DB_PASSWORD"`
	Name     string `envconfig:"CODESEEK_DB_NAME"`
	SSLMode  string `envconfig:"CODESEEK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CODESEEK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CODESEEK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CODESEEK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CODESEEK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" {
		return nil
	}
	if d.Host == "" || d.User == "" || d.Name == "" {
		return fmt.Errorf("database DSN or host/user/name must be provided")
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.Name,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	d.DSN = u.String()
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"CODESEEK_REDIS_URL"`
	Address      string        `envconfig:"CODESEEK_REDIS_ADDR"`
	Password     string        `envconfig:"CODESEEK_REDIS_PASSWORD"`
	DB           int           `envconfig:"CODESEEK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CODESEEK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CODESEEK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CODESEEK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CODESEEK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CODESEEK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"CODESEEK_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"CODESEEK_JWT_ISSUER" default:"codeseek"`
	ExpirationMinutes int    `envconfig:"CODESEEK_JWT_EXPIRATION_MINUTES" default:"60"`
}

type SMTPConfig struct {
	Host        string        `envconfig:"CODESEEK_SMTP_HOST"`
	Port        int           `envconfig:"CODESEEK_SMTP_PORT" default:"587"`
	User        string        `envconfig:"CODESEEK_SMTP_USER"`
	Password    string        `envconfig:"CODESEEK_SMTP_PASSWORD"`
	FromAddress string        `envconfig:"CODESEEK_SMTP_FROM" default:"noreply@codeseek.app"`
	FromName    string        `envconfig:"CODESEEK_SMTP_FROM_NAME" default:"CodeSeek"`
	SendTimeout time.Duration `envconfig:"CODESEEK_SMTP_SEND_TIMEOUT" default:"15s"`
}

// WebhookConfig tunes the in-process dispatch queue and the redis guard
// that keeps a retry from racing an in-flight run of the same log row.
type WebhookConfig struct {
	QueueSize      int           `envconfig:"CODESEEK_WEBHOOK_QUEUE_SIZE" default:"256"`
	Workers        int           `envconfig:"CODESEEK_WEBHOOK_WORKERS" default:"4"`
	EnqueueTimeout time.Duration `envconfig:"CODESEEK_WEBHOOK_ENQUEUE_TIMEOUT" default:"5s"`
	GuardTTL       time.Duration `envconfig:"CODESEEK_WEBHOOK_GUARD_TTL" default:"5m"`
	DrainTimeout   time.Duration `envconfig:"CODESEEK_WEBHOOK_DRAIN_TIMEOUT" default:"30s"`
}

type CronConfig struct {
	Interval             time.Duration `envconfig:"CODESEEK_CRON_INTERVAL" default:"1h"`
	LockTTL              time.Duration `envconfig:"CODESEEK_CRON_LOCK_TTL" default:"2h"`
	WebhookRetentionDays int           `envconfig:"CODESEEK_WEBHOOK_RETENTION_DAYS" default:"30"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"CODESEEK_FEATURE_AUTO_MIGRATE" default:"false"`
}
