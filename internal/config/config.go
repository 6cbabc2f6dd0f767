// Package config loads authsvc configuration using koanf, following an
// env-vars-over-compiled-defaults precedence.
package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/authplatform/auth-service/internal/domain"
)

// Config holds all authsvc configuration.
type Config struct {
	// Environment identifier: "local", "dev", "prod"
	Environment string `koanf:"environment"`

	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`

	HTTP HTTPConfig `koanf:"http"`

	// JWT holds the signing secrets/issuer/audience for every token
	// family C1 mints: access, session, service, and the OTP-encryption
	// key C7 uses to wrap TOTP secrets at rest.
	JWT JWTConfig `koanf:"jwt"`

	DynamoDB DynamoDBConfig `koanf:"dynamodb"`
	Redis    RedisConfig    `koanf:"redis"`
	AWS      AWSConfig      `koanf:"aws"`

	// UserDirectory is the sibling service C4 calls over HTTP.
	UserDirectory UserDirectoryConfig `koanf:"user_directory"`

	// Events carries the SNS topic ARNs sns_events.go publishes to, one
	// per message-bus event name in §6.
	Events EventsConfig `koanf:"events"`

	Email EmailConfig `koanf:"email"`

	OTEL OTELConfig `koanf:"otel"`

	// Password holds the HMAC pepper internal/password mixes into every
	// stored credential hash, on top of bcrypt's own per-hash salt.
	Password PasswordConfig `koanf:"password"`
}

// HTTPConfig holds the authsvc HTTP listener configuration.
type HTTPConfig struct {
	Port int `koanf:"port"`
}

// JWTConfig holds token secrets, issuer/audience, and TTLs.
type JWTConfig struct {
	Issuer   string `koanf:"issuer"`
	Audience string `koanf:"audience"`

	AccessSecret  string `koanf:"access_secret"`
	SessionSecret string `koanf:"session_secret"`
	ServiceSecret string `koanf:"service_secret"`

	// OTPSecretKey wraps TOTP secrets at rest via internal/password's
	// AES-256-GCM envelope; must be exactly 32 bytes once decoded.
	OTPSecretKey string `koanf:"otp_secret_key"`

	AccessTTL  time.Duration `koanf:"access_ttl"`
	SessionTTL time.Duration `koanf:"session_ttl"`
	ServiceTTL time.Duration `koanf:"service_ttl"`
}

// DynamoDBConfig holds document-store configuration.
type DynamoDBConfig struct {
	Endpoint string        `koanf:"endpoint"` // Empty for production (uses default AWS endpoint)
	Timeout  time.Duration `koanf:"timeout"`
}

// RedisConfig holds ephemeral-store / rate-limiter / revocation-cache
// configuration.
type RedisConfig struct {
	Addr     string        `koanf:"addr"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db"`
	Timeout  time.Duration `koanf:"timeout"`
}

// AWSConfig holds AWS SDK configuration shared by DynamoDB, SES, and SNS
// clients.
type AWSConfig struct {
	Region   string `koanf:"region"`
	Endpoint string `koanf:"endpoint"` // LocalStack endpoint for development
}

// UserDirectoryConfig holds C4's sibling-service base URL and timeout.
type UserDirectoryConfig struct {
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

// EventsConfig maps event names to SNS topic ARNs.
type EventsConfig struct {
	EmailRequestTopicARN string `koanf:"email_request_topic_arn"`
	UserCreatedTopicARN  string `koanf:"user_created_topic_arn"`
	NotificationTopicARN string `koanf:"notification_topic_arn"`
}

// EmailConfig holds the SES sender identity for verification codes.
type EmailConfig struct {
	SenderAddress string `koanf:"sender_address"`
}

// OTELConfig holds OpenTelemetry configuration.
type OTELConfig struct {
	Endpoint    string `koanf:"endpoint"` // Empty disables OTLP export
	ServiceName string `koanf:"service_name"`
}

// PasswordConfig holds the password-hashing pepper.
type PasswordConfig struct {
	Pepper string `koanf:"pepper"`
}

// defaults returns a Config with compiled default values.
func defaults() *Config {
	return &Config{
		Environment: "local",
		LogLevel:    "info",
		LogFormat:   "json",

		HTTP: HTTPConfig{Port: 8080},

		JWT: JWTConfig{
			Issuer:       "auth-service",
			Audience:     "auth-api",
			AccessTTL:    domain.AccessTokenLifetime,
			SessionTTL:   domain.SessionLifetime,
			ServiceTTL:   domain.ServiceTokenLifetime,
			OTPSecretKey: "local-otp-secret-key-32-bytes-ok",
		},

		DynamoDB: DynamoDBConfig{
			Timeout: domain.DocumentStoreTimeout,
		},
		Redis: RedisConfig{
			Addr:    "localhost:6379",
			DB:      0,
			Timeout: domain.EphemeralStoreTimeout,
		},
		AWS: AWSConfig{
			Region: "us-east-1",
		},
		UserDirectory: UserDirectoryConfig{
			Timeout: domain.ServiceCallTimeout,
		},
		Email: EmailConfig{
			SenderAddress: "no-reply@auth-service.local",
		},
		OTEL: OTELConfig{
			ServiceName: "auth-service",
		},
		Password: PasswordConfig{
			Pepper: "local-dev-pepper-not-for-prod",
		},
	}
}

// Load loads configuration following the precedence:
//  1. Environment variables (highest)
//  2. Compiled defaults (lowest)
//
// Required keys missing in a non-local environment cause startup failure;
// optional keys missing fall back to defaults.
func Load(_ context.Context) (*Config, error) {
	k := koanf.New(".")

	cfg := defaults()

	// "__" separates nesting levels; a lone "_" stays put so multi-word
	// leaf keys (ACCESS_SECRET, BASE_URL, ...) survive the transform
	// intact instead of colliding with the section delimiter.
	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validateRequired(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateRequired checks that required configuration is present outside
// local development.
func validateRequired(cfg *Config) error {
	if cfg.Environment == "local" {
		return nil
	}

	if cfg.JWT.AccessSecret == "" {
		return fmt.Errorf("%w: jwt.access_secret", domain.ErrConfigRequired)
	}
	if cfg.JWT.SessionSecret == "" {
		return fmt.Errorf("%w: jwt.session_secret", domain.ErrConfigRequired)
	}
	if cfg.JWT.ServiceSecret == "" {
		return fmt.Errorf("%w: jwt.service_secret", domain.ErrConfigRequired)
	}
	if cfg.JWT.OTPSecretKey == "" {
		return fmt.Errorf("%w: jwt.otp_secret_key", domain.ErrConfigRequired)
	}
	if cfg.Redis.Addr == "" {
		return fmt.Errorf("%w: redis.addr", domain.ErrConfigRequired)
	}
	if cfg.UserDirectory.BaseURL == "" {
		return fmt.Errorf("%w: user_directory.base_url", domain.ErrConfigRequired)
	}
	if cfg.Password.Pepper == "" {
		return fmt.Errorf("%w: password.pepper", domain.ErrConfigRequired)
	}

	return nil
}

// IsLocal returns true if running in local development environment.
func (c *Config) IsLocal() bool {
	return c.Environment == "local"
}

// IsProd returns true if running in production environment.
func (c *Config) IsProd() bool {
	return c.Environment == "prod"
}
