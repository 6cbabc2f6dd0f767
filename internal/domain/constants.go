package domain

import "time"

// Token lifetimes and session limits.
const (
	AccessTokenLifetime  = 24 * time.Hour      // JWT access token validity
	SessionLifetime      = 30 * 24 * time.Hour // Session (refresh token) validity
	ServiceTokenLifetime = 5 * time.Minute     // Inter-service token validity
	SSOTokenLifetime     = 60 * time.Second    // Single-use SSO handoff token
	MaxSessionsPerUser   = 5                   // Max concurrent active sessions per user
)

// Ephemeral record TTLs (C2), keyed by domain prefix.
const (
	RegisterInfoTTL                   = 1 * time.Hour
	EmailVerificationCodeTTL          = 5 * time.Minute
	FingerprintEmailVerificationTTL   = 5 * time.Minute
	ChangePasswordVerificationTTL     = 5 * time.Minute
	OTPLoginSessionTTL                = 5 * time.Minute
	OTPVerifyFingerprintSessionTTL    = 5 * time.Minute
	WalletPassTokenTTL                = 5 * time.Minute
)

// Code and opaque-token shape.
const (
	VerificationCodeLength = 6  // 6-character opaque code, URL-safe alphabet
	OpaqueTokenMinLength   = 6
	OpaqueTokenMaxLength   = 32
)

// Password Engine (C3) parameters.
const (
	BcryptCost                  = 12
	PasswordMinLength           = 8
	PasswordMinScore            = 3   // pass/fail threshold out of 0-4
	PasswordMaxScore            = 4
	PasswordResetSimilarityCap  = 0.7 // reject new password if similarity exceeds this
)

// TOTP (C7) parameters - RFC 6238.
const (
	TOTPDigits = 6
	TOTPPeriod = 30 * time.Second
	TOTPSkew   = 1 // allowed steps of clock drift, each direction
)

// Rate limiting and lockout (supplemental to the distilled spec; closes the
// "no abuse controls on OTP endpoints" gap).
const (
	OTPRequestRateLimitPerEmail = 3
	OTPRequestRateLimitPerIP    = 10
	OTPRateLimitWindow          = 15 * time.Minute
	MaxOTPVerifyAttempts        = 5
	OTPLockoutDuration          = 15 * time.Minute
)

// Infrastructure timeout contracts.
const (
	DocumentStoreTimeout = 5 * time.Second  // Max time for document-store operations
	EphemeralStoreTimeout = 2 * time.Second // Max time for cache/ephemeral-store operations
	EventBusPublishTimeout = 10 * time.Second
	ServiceCallTimeout   = 10 * time.Second // Max time for inter-service HTTP calls

	GracefulShutdownTimeout = 30 * time.Second

	// Shutdown phases within GracefulShutdownTimeout: let in-flight
	// requests drain before closing listeners, bound how long the HTTP
	// server waits for active handlers, then bound the OTEL exporter
	// flush.
	ShutdownDrainDelay  = 2 * time.Second
	ShutdownHTTPTimeout = 15 * time.Second
	ShutdownOTELTimeout = 5 * time.Second
)

// Pagination defaults for list operations (e.g. list_active sessions).
const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)
