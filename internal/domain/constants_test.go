package domain_test

import (
	"testing"
	"time"

	"github.com/authplatform/auth-service/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestTokenLifetimes(t *testing.T) {
	// Access tokens are short relative to the session they're minted from.
	assert.Less(t, domain.AccessTokenLifetime, domain.SessionLifetime)
	assert.Equal(t, 24*time.Hour, domain.AccessTokenLifetime)
	assert.Equal(t, 30*24*time.Hour, domain.SessionLifetime)
	assert.Equal(t, 60*time.Second, domain.SSOTokenLifetime)
}

func TestEphemeralTTLs(t *testing.T) {
	tests := []struct {
		name string
		got  time.Duration
		want time.Duration
	}{
		{"register info", domain.RegisterInfoTTL, time.Hour},
		{"email verification code", domain.EmailVerificationCodeTTL, 5 * time.Minute},
		{"fingerprint email verification", domain.FingerprintEmailVerificationTTL, 5 * time.Minute},
		{"change password verification", domain.ChangePasswordVerificationTTL, 5 * time.Minute},
		{"otp login session", domain.OTPLoginSessionTTL, 5 * time.Minute},
		{"otp verify fingerprint session", domain.OTPVerifyFingerprintSessionTTL, 5 * time.Minute},
		{"wallet pass token", domain.WalletPassTokenTTL, 5 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestPasswordEngineParameters(t *testing.T) {
	assert.Equal(t, 12, domain.BcryptCost)
	assert.Equal(t, 8, domain.PasswordMinLength)
	assert.Equal(t, 3, domain.PasswordMinScore)
	assert.Equal(t, 4, domain.PasswordMaxScore)
	assert.LessOrEqual(t, domain.PasswordMinScore, domain.PasswordMaxScore)
	assert.InDelta(t, 0.7, domain.PasswordResetSimilarityCap, 0.0001)
}

func TestTOTPParameters(t *testing.T) {
	assert.Equal(t, 6, domain.TOTPDigits)
	assert.Equal(t, 30*time.Second, domain.TOTPPeriod)
	assert.Equal(t, 1, domain.TOTPSkew)
}

func TestRateLimitParameters(t *testing.T) {
	assert.Equal(t, 3, domain.OTPRequestRateLimitPerEmail)
	assert.Equal(t, 10, domain.OTPRequestRateLimitPerIP)
	assert.Equal(t, 15*time.Minute, domain.OTPRateLimitWindow)
	assert.Equal(t, 5, domain.MaxOTPVerifyAttempts)
	assert.Equal(t, 15*time.Minute, domain.OTPLockoutDuration)
}

func TestOpaqueTokenShape(t *testing.T) {
	assert.Equal(t, 6, domain.VerificationCodeLength)
	assert.LessOrEqual(t, domain.OpaqueTokenMinLength, domain.OpaqueTokenMaxLength)
}
