package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	HTTPAddr string

	// Billing provider credentials. Both are required at startup.
	BillingSecretKey     string
	BillingWebhookSecret string

	// Identity provider credentials. Required at startup.
	IdentitySecretKey string
	IdentityBaseURL   string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	RedisAddr     string
	RedisPassword string

	// CorrelationRetryDelay bounds the single wait-and-retry customer fetch
	// performed when a webhook arrives before the billing provider has
	// propagated the identity linkage.
	CorrelationRetryDelay time.Duration

	// SweepInterval drives the background pass that retries identity writes
	// for records whose projection is still pending. Zero disables the sweep.
	SweepInterval time.Duration
}

// Load loads configuration from environment variables and .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "courtside"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),

		HTTPAddr: getenv("HTTP_ADDR", ":8080"),

		BillingSecretKey:     strings.TrimSpace(os.Getenv("BILLING_SECRET_KEY")),
		BillingWebhookSecret: strings.TrimSpace(os.Getenv("BILLING_WEBHOOK_SECRET")),
		IdentitySecretKey:    strings.TrimSpace(os.Getenv("IDENTITY_SECRET_KEY")),
		IdentityBaseURL:      getenv("IDENTITY_BASE_URL", "https://api.clerk.com"),

		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "courtside"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),

		RedisAddr:     strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		CorrelationRetryDelay: getenvDuration("CORRELATION_RETRY_DELAY", 2*time.Second),
		SweepInterval:         getenvDuration("SWEEP_INTERVAL", 5*time.Minute),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// validate enforces the fail-fast contract for provider credentials.
func (c Config) validate() error {
	missing := []string{}
	if c.BillingSecretKey == "" {
		missing = append(missing, "BILLING_SECRET_KEY")
	}
	if c.BillingWebhookSecret == "" {
		missing = append(missing, "BILLING_WEBHOOK_SECRET")
	}
	if c.IdentitySecretKey == "" {
		missing = append(missing, "IDENTITY_SECRET_KEY")
	}
	if len(missing) > 0 {
		return errors.New("missing required environment: " + strings.Join(missing, ", "))
	}
	return nil
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
