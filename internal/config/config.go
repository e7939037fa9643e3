package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration, loaded once at startup. Nothing
// else in the service reads the environment after Load returns.
type Config struct {
	ListenAddr  string
	Environment string // "development" or "production"
	PostgresDSN string

	Auth      AuthConfig
	SMTP      SMTPConfig
	RateLimit RateLimitConfig
}

// AuthConfig drives token issuance and ledger TTLs.
type AuthConfig struct {
	SigningSecret string
	Issuer        string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	OTPTTL        time.Duration
}

// SMTPConfig configures the outbound reset-code mailer. An empty Host means
// the service falls back to the log-only development mailer.
type SMTPConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	FromName    string
	FromAddress string
	SendTimeout time.Duration
}

// RateLimitConfig is the per-IP token bucket applied to the auth endpoints.
type RateLimitConfig struct {
	Burst     int
	PerSecond int
}

// Production reports whether cookies must carry the Secure attribute.
func (c *Config) Production() bool {
	return c.Environment == "production"
}

// Load reads configuration from the environment, with an optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ListenAddr:  getEnv("JOBGATE_LISTEN_ADDR", ":8080"),
		Environment: getEnv("JOBGATE_ENV", "development"),
		PostgresDSN: os.Getenv("JOBGATE_PG_DSN"),
		Auth: AuthConfig{
			SigningSecret: os.Getenv("JOBGATE_AUTH_SECRET"),
			Issuer:        getEnv("JOBGATE_AUTH_ISSUER", "jobgate"),
			AccessTTL:     time.Duration(getEnvInt("JOBGATE_ACCESS_TTL_MIN", 15)) * time.Minute,
			RefreshTTL:    time.Duration(getEnvInt("JOBGATE_REFRESH_TTL_DAYS", 14)) * 24 * time.Hour,
			OTPTTL:        time.Duration(getEnvInt("JOBGATE_OTP_TTL_MIN", 15)) * time.Minute,
		},
		SMTP: SMTPConfig{
			Host:        os.Getenv("JOBGATE_SMTP_HOST"),
			Port:        getEnvInt("JOBGATE_SMTP_PORT", 587),
			Username:    os.Getenv("JOBGATE_SMTP_USER"),
			Password:    os.Getenv("JOBGATE_SMTP_PASS"),
			FromName:    getEnv("JOBGATE_SMTP_FROM_NAME", "JobGate"),
			FromAddress: getEnv("JOBGATE_SMTP_FROM_ADDRESS", "noreply@jobgate.example"),
			SendTimeout: time.Duration(getEnvInt("JOBGATE_SMTP_TIMEOUT_SEC", 10)) * time.Second,
		},
		RateLimit: RateLimitConfig{
			Burst:     getEnvInt("JOBGATE_RATE_BURST", 20),
			PerSecond: getEnvInt("JOBGATE_RATE_PER_SECOND", 5),
		},
	}

	if cfg.Auth.SigningSecret == "" {
		return nil, errors.New("config: JOBGATE_AUTH_SECRET is required")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
