package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "GYMFLOW"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	Stripe   StripeConfig
	Razorpay RazorpayConfig
	Billing  BillingConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"GYMFLOW_APP_ENV" required:"true"`
	Port         string `envconfig:"GYMFLOW_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"GYMFLOW_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"GYMFLOW_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"GYMFLOW_DB_DSN" required:"true"`

	MaxOpenConns    int           `envconfig:"GYMFLOW_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"GYMFLOW_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"GYMFLOW_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"GYMFLOW_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"GYMFLOW_REDIS_URL"`
	Address      string        `envconfig:"GYMFLOW_REDIS_ADDR"`
	Password     string        `envconfig:"GYMFLOW_REDIS_PASSWORD"`
	DB           int           `envconfig:"GYMFLOW_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"GYMFLOW_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"GYMFLOW_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"GYMFLOW_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"GYMFLOW_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"GYMFLOW_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type StripeConfig struct {
	APIKey      string `envconfig:"GYMFLOW_STRIPE_API_KEY"`
	Environment string `envconfig:"GYMFLOW_STRIPE_ENV" default:"test"`
}

type RazorpayConfig struct {
	KeyID     string `envconfig:"GYMFLOW_RAZORPAY_KEY_ID"`
	KeySecret string `envconfig:"GYMFLOW_RAZORPAY_KEY_SECRET"`
}

type BillingConfig struct {
	// VerifyGuardTTL bounds the redis window in which a duplicate verification
	// for the same artifacts is suppressed.
	VerifyGuardTTL time.Duration `envconfig:"GYMFLOW_BILLING_VERIFY_GUARD_TTL" default:"15s"`
	SuccessURL     string        `envconfig:"GYMFLOW_BILLING_SUCCESS_URL"`
	CancelURL      string        `envconfig:"GYMFLOW_BILLING_CANCEL_URL"`
}
