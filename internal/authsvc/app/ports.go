package app

import (
	"context"
	"time"

	"github.com/authplatform/auth-service/internal/auth"
)

// The Record/interface types below structurally mirror their
// internal/authsvc/adapter counterparts rather than importing them
// directly, so this package never depends on a specific storage
// technology — only on the shape of data it needs. The composition root
// wires the real adapters in; tests wire in fakes built from the same
// shapes.

// FingerprintRecord is this package's view of a device fingerprint row.
type FingerprintRecord struct {
	FingerprintID   string
	UserID          string
	FingerprintHash string
	Browser         string
	Device          string
	IsTrusted       bool
	CreatedAt       string
	UpdatedAt       string
}

// FingerprintStore is the storage port for C5.
type FingerprintStore interface {
	FindByHash(ctx context.Context, userID, hash string) (*FingerprintRecord, error)
	GetByID(ctx context.Context, fingerprintID string) (*FingerprintRecord, error)
	CreateUntrusted(ctx context.Context, fingerprintID, userID, hash, browser, device string) (*FingerprintRecord, error)
	SetTrusted(ctx context.Context, fingerprintID string, trusted bool) error
	ListTrusted(ctx context.Context, userID string) ([]FingerprintRecord, error)
}

// SessionRecord is this package's view of a session row.
type SessionRecord struct {
	SessionID           string
	UserID              string
	DeviceFingerprintID string
	App                 string
	SessionTokenHash    string
	PrevTokenHash       string
	IsActive            bool
	CreatedAt           string
	LastUsedAt          string
	ExpiresAt           string
	RevokedAt           string
	TTL                 int64
}

// SessionRotation holds the fields written on refresh-token rotation.
type SessionRotation struct {
	SessionTokenHash string
	PrevTokenHash    string
	LastUsedAt       string
	ExpiresAt        string
	TTL              int64
}

// SessionStore is the storage port for C6.
type SessionStore interface {
	Create(ctx context.Context, session SessionRecord) error
	GetByID(ctx context.Context, sessionID string) (*SessionRecord, error)
	GetByTokenHash(ctx context.Context, tokenHash string) (*SessionRecord, error)
	GetByPrevTokenHash(ctx context.Context, tokenHash string) (*SessionRecord, error)
	ListActiveByUser(ctx context.Context, userID string) ([]SessionRecord, error)
	ListByDeviceFingerprint(ctx context.Context, userID, deviceFingerprintID string) ([]SessionRecord, error)
	Rotate(ctx context.Context, sessionID string, rotation SessionRotation) error
	Revoke(ctx context.Context, sessionID string) error
}

// OTPConfigRecord is this package's view of a user's TOTP configuration.
type OTPConfigRecord struct {
	UserID             string
	OTPSecretEncrypted string
	OTPEnabled         bool
	CreatedAt          string
	UpdatedAt          string
}

// OTPConfigStore is the storage port for C7.
type OTPConfigStore interface {
	Create(ctx context.Context, userID, secretEncrypted string) (*OTPConfigRecord, error)
	Get(ctx context.Context, userID string) (*OTPConfigRecord, error)
	SetEnabled(ctx context.Context, userID string, enabled bool) error
}

// TrustFingerprintAndCreateSessionParams mirrors the adapter transactor's
// input shape for the one cross-table atomic write this service needs
// (C7's fingerprint_trust_verify_otp invariant).
type TrustFingerprintAndCreateSessionParams struct {
	FingerprintID string
	Session       SessionRecord
}

// Transactor is the port over the one multi-item atomic write this
// service's orchestration needs.
type Transactor interface {
	TrustFingerprintAndCreateSession(ctx context.Context, p TrustFingerprintAndCreateSessionParams) error
}

// EphemeralStore is the narrow slice of internal/ephemeral.Store every
// handshake (OTP codes, pending registration, 2FA gate tokens) is staged
// through.
type EphemeralStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string, dest any) error
	GetAndDelete(ctx context.Context, key string, dest any) error
	Delete(ctx context.Context, key string) error
	DeleteAll(ctx context.Context, keys ...string) error
}

// RateLimiter is the port over request/verify-attempt throttling.
type RateLimiter interface {
	CheckAndIncrement(ctx context.Context, key string, limit, windowSeconds int) (bool, error)
	CheckLockout(ctx context.Context, key string) (bool, error)
	SetLockout(ctx context.Context, key string, ttlSeconds int) error
}

// RevocationStore is the port over JTI-based access-token revocation.
type RevocationStore interface {
	Revoke(ctx context.Context, jti string) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// User is this package's view of a remote user-profile record (C4).
type User struct {
	ID             string
	Email          string
	Username       string
	PasswordHashed string
	Role           string
	DisplayName    string
	AvatarURL      string
	LastLoginAt    time.Time
}

// NewUser is the payload accepted by UserDirectory.Create.
type NewUser struct {
	Email          string
	Username       string
	PasswordHashed string
}

// UserDirectory is the port over C4's eight remote operations.
type UserDirectory interface {
	CheckExists(ctx context.Context, emailOrUsername string) (bool, error)
	Create(ctx context.Context, u NewUser) (*User, error)
	ChangePassword(ctx context.Context, userID, newHash string) error
	GetByEmailOrUsername(ctx context.Context, emailOrUsername string) (*User, error)
	GetByUserID(ctx context.Context, userID string) (*User, error)
	GetWithPasswordByUserID(ctx context.Context, userID string) (*User, error)
	GetWithPasswordByEmailOrUsername(ctx context.Context, emailOrUsername string) (*User, error)
	UpdateLastLogin(ctx context.Context, userID string) error
}

// AccessMinter mints access tokens bound to a session token (C1).
type AccessMinter interface {
	Mint(userID, sessionToken string) (auth.MintResult, error)
}

// SessionMinter mints session (refresh) tokens (C1).
type SessionMinter interface {
	Mint(userID string) (auth.MintResult, error)
}
