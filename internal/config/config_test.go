package config_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authplatform/auth-service/internal/config"
	"github.com/authplatform/auth-service/internal/domain"
)

func TestDefaults(t *testing.T) {
	cfg, err := config.Load(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "local", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)

	assert.Equal(t, 8080, cfg.HTTP.Port)

	assert.Equal(t, "auth-service", cfg.JWT.Issuer)
	assert.Equal(t, "auth-api", cfg.JWT.Audience)
	assert.Equal(t, domain.AccessTokenLifetime, cfg.JWT.AccessTTL)
	assert.Equal(t, domain.SessionLifetime, cfg.JWT.SessionTTL)
	assert.Equal(t, domain.ServiceTokenLifetime, cfg.JWT.ServiceTTL)
	assert.Len(t, cfg.JWT.OTPSecretKey, 32)

	assert.Equal(t, domain.DocumentStoreTimeout, cfg.DynamoDB.Timeout)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 0, cfg.Redis.DB)
	assert.Equal(t, domain.EphemeralStoreTimeout, cfg.Redis.Timeout)
	assert.Equal(t, "us-east-1", cfg.AWS.Region)
	assert.Equal(t, domain.ServiceCallTimeout, cfg.UserDirectory.Timeout)
	assert.NotEmpty(t, cfg.Password.Pepper)
}

func TestIsLocal(t *testing.T) {
	tests := []struct {
		name string
		env  string
		want bool
	}{
		{"local returns true", "local", true},
		{"prod returns false", "prod", false},
		{"dev returns false", "dev", false},
		{"empty returns false", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{Environment: tt.env}

			assert.Equal(t, tt.want, cfg.IsLocal())
		})
	}
}

func TestIsProd(t *testing.T) {
	tests := []struct {
		name string
		env  string
		want bool
	}{
		{"prod returns true", "prod", true},
		{"local returns false", "local", false},
		{"dev returns false", "dev", false},
		{"empty returns false", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{Environment: tt.env}

			assert.Equal(t, tt.want, cfg.IsProd())
		})
	}
}

func TestValidateRequired_LocalAllowsMissingFields(t *testing.T) {
	t.Setenv("ENVIRONMENT", "local")

	cfg, err := config.Load(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "local", cfg.Environment)
}

func setAllRequiredProdEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ENVIRONMENT", "prod")
	t.Setenv("JWT__ACCESS_SECRET", "access-secret-32-bytes-long-ok!")
	t.Setenv("JWT__SESSION_SECRET", "session-secret-32-bytes-long-ok")
	t.Setenv("JWT__SERVICE_SECRET", "service-secret-32-bytes-long-ok")
	t.Setenv("JWT__OTP_SECRET_KEY", "otp-secret-key-32-bytes-long-ok!")
	t.Setenv("REDIS__ADDR", "redis:6379")
	t.Setenv("USER_DIRECTORY__BASE_URL", "http://user-directory.internal")
	t.Setenv("PASSWORD__PEPPER", "prod-pepper-32-bytes-long-ok!!!")
}

func TestValidateRequired_ProdRequiresAccessSecret(t *testing.T) {
	setAllRequiredProdEnv(t)
	t.Setenv("JWT__ACCESS_SECRET", "")

	_, err := config.Load(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfigRequired)
	assert.Contains(t, err.Error(), "jwt.access_secret")
}

func TestValidateRequired_ProdRequiresRedisAddr(t *testing.T) {
	setAllRequiredProdEnv(t)
	t.Setenv("REDIS__ADDR", "")

	_, err := config.Load(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfigRequired)
	assert.Contains(t, err.Error(), "redis.addr")
}

func TestValidateRequired_ProdRequiresUserDirectoryBaseURL(t *testing.T) {
	setAllRequiredProdEnv(t)
	t.Setenv("USER_DIRECTORY__BASE_URL", "")

	_, err := config.Load(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfigRequired)
	assert.Contains(t, err.Error(), "user_directory.base_url")
}

func TestValidateRequired_ProdRequiresPasswordPepper(t *testing.T) {
	setAllRequiredProdEnv(t)
	t.Setenv("PASSWORD__PEPPER", "")

	_, err := config.Load(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfigRequired)
	assert.Contains(t, err.Error(), "password.pepper")
}

func TestLoadWithEnvOverride(t *testing.T) {
	setAllRequiredProdEnv(t)

	cfg, err := config.Load(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "prod", cfg.Environment)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "http://user-directory.internal", cfg.UserDirectory.BaseURL)
	assert.Equal(t, "access-secret-32-bytes-long-ok!", cfg.JWT.AccessSecret)
}
