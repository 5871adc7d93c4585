// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// AuthAddr is the address the HTTP server listens on (e.g. :3001).
	AuthAddr string `mapstructure:"AUTH_ADDR"`
	// DatabaseURL is the Postgres DSN; when empty the server runs on in-memory
	// stores (dev mode, nothing survives a restart).
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// JWTSecret is the HS256 signing secret for signin assertions. Required
	// when APP_ENV=production.
	JWTSecret string `mapstructure:"JWT_SECRET"`
	// JWTIssuer is the iss claim on signin assertions.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTTTL is the assertion lifetime (e.g. "24h").
	JWTTTL string `mapstructure:"JWT_TTL"`
	// BcryptCost is the bcrypt cost factor (4-31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// OTPTTL is the challenge time-to-live (e.g. "10m"). A challenge older
	// than this is treated as absent.
	OTPTTL string `mapstructure:"OTP_TTL"`
	// SMTPHost is the mail relay host. Empty means delivery always fails,
	// which the issuance path absorbs (useful for local development).
	SMTPHost string `mapstructure:"SMTP_HOST"`
	// SMTPPort is the mail relay port.
	SMTPPort string `mapstructure:"SMTP_PORT"`
	// SMTPUser is the relay username; empty disables AUTH.
	SMTPUser string `mapstructure:"SMTP_USER"`
	// SMTPPass is the relay password.
	SMTPPass string `mapstructure:"SMTP_PASS"`
	// FromEmail is the From address on outbound OTP mail.
	FromEmail string `mapstructure:"FROM_EMAIL"`
	// MailTimeout bounds a single delivery attempt (e.g. "15s").
	MailTimeout string `mapstructure:"MAIL_TIMEOUT"`
	// SweepSchedule is the cron spec for the expired-challenge sweep
	// (e.g. "@every 10m"); empty disables it.
	SweepSchedule string `mapstructure:"OTP_SWEEP_SCHEDULE"`
	// OTLPEndpoint is the OTLP gRPC endpoint for traces and metrics; empty
	// means no-op telemetry.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("AUTH_ADDR", ":3001")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ISSUER", "mynotes-auth")
	v.SetDefault("JWT_TTL", "24h")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("OTP_TTL", "10m")
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", "587")
	v.SetDefault("SMTP_USER", "")
	v.SetDefault("SMTP_PASS", "")
	v.SetDefault("FROM_EMAIL", "noreply@mynotes.app")
	v.SetDefault("MAIL_TIMEOUT", "15s")
	v.SetDefault("OTP_SWEEP_SCHEDULE", "@every 10m")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.AuthAddr == "" {
		return nil, errors.New("config: AUTH_ADDR must be set")
	}
	if cfg.Env == "production" {
		if cfg.JWTSecret == "" {
			return nil, errors.New("config: JWT_SECRET must be set when APP_ENV=production")
		}
		if cfg.DatabaseURL == "" {
			return nil, errors.New("config: DATABASE_URL must be set when APP_ENV=production")
		}
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "dev-secret"
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	return &cfg, nil
}

// OTPLifetime parses OTPTTL as a time.Duration. Returns 10m if unset or invalid.
func (c *Config) OTPLifetime() time.Duration {
	d, err := time.ParseDuration(c.OTPTTL)
	if err != nil || d <= 0 {
		return 10 * time.Minute
	}
	return d
}

// TokenTTL parses JWTTTL as a time.Duration. Returns 24h if unset or invalid.
func (c *Config) TokenTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTTTL)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

// MailSendTimeout parses MailTimeout as a time.Duration. Returns 15s if unset or invalid.
func (c *Config) MailSendTimeout() time.Duration {
	d, err := time.ParseDuration(c.MailTimeout)
	if err != nil || d <= 0 {
		return 15 * time.Second
	}
	return d
}
