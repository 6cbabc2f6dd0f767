// Package sso implements the SSO Broker (C8): a single-use 60-second
// handoff token that lets a trusted device exchange a device fingerprint
// for a freshly created session, without re-presenting credentials.
package sso

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/authplatform/auth-service/internal/domain"
)

// ssoTokenLength is the opaque token length handed to the caller and used
// as the ephemeral-store key suffix (sso:{token}).
const ssoTokenLength = domain.OpaqueTokenMaxLength

// handoff is the ephemeral record written by Create and consumed exactly
// once by Validate.
type handoff struct {
	UserID              string `json:"user_id"`
	App                 string `json:"app"`
	DeviceFingerprintID string `json:"device_fingerprint_id"`
}

// EphemeralStore is the narrow slice of internal/ephemeral.Store this
// package depends on.
type EphemeralStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	GetAndDelete(ctx context.Context, key string, dest any) error
}

// FingerprintChecker resolves a trusted device fingerprint, per C5.check.
// Returns domain.ErrNotFound when the fingerprint is unknown or untrusted.
type FingerprintChecker interface {
	Check(ctx context.Context, userID, fingerprintHash string) (fingerprintID string, err error)
}

// TokenGenerator produces the random opaque SSO token.
type TokenGenerator interface {
	GenerateOpaqueToken(length int) (string, error)
}

// SessionCreator mints a new session for a trusted device, per C6.create.
type SessionCreator interface {
	Create(ctx context.Context, userID, deviceFingerprintID, app string) (SessionWithAccess, error)
}

// SessionWithAccess is the broker's view of a newly created session plus
// its bearer access token, mirroring C6.create's return contract.
type SessionWithAccess struct {
	SessionID           string
	UserID              string
	DeviceFingerprintID string
	App                 string
	SessionToken        string
	AccessToken         string
	ExpiresAt           time.Time
}

// Broker implements C8: create/validate of single-use SSO handoff tokens.
type Broker struct {
	store        EphemeralStore
	fingerprints FingerprintChecker
	sessions     SessionCreator
	tokens       TokenGenerator
	ttl          time.Duration
}

// Config configures a Broker.
type Config struct {
	Store        EphemeralStore
	Fingerprints FingerprintChecker
	Sessions     SessionCreator
	Tokens       TokenGenerator
}

// New creates a Broker. TTL is fixed at domain.SSOTokenLifetime (60s, §3);
// it is not configurable since it is a protocol constant, not a deployment
// knob.
func New(cfg Config) *Broker {
	return &Broker{
		store:        cfg.Store,
		fingerprints: cfg.Fingerprints,
		sessions:     cfg.Sessions,
		tokens:       cfg.Tokens,
		ttl:          domain.SSOTokenLifetime,
	}
}

// Create issues a single-use SSO token for userID/app, provided the given
// fingerprint hash resolves to an existing trusted device. Returns
// domain.ErrNotFound (wrapped) if the fingerprint is unknown or untrusted.
func (b *Broker) Create(ctx context.Context, userID, app, fingerprintHashed string) (string, error) {
	fingerprintID, err := b.fingerprints.Check(ctx, userID, fingerprintHashed)
	if err != nil {
		return "", fmt.Errorf("sso: create: %w", err)
	}

	token, err := b.tokens.GenerateOpaqueToken(ssoTokenLength)
	if err != nil {
		return "", fmt.Errorf("sso: create: generate token: %w", err)
	}

	record := handoff{UserID: userID, App: app, DeviceFingerprintID: fingerprintID}
	if err := b.store.Set(ctx, ssoKey(token), record, b.ttl); err != nil {
		return "", fmt.Errorf("sso: create: write handoff: %w", err)
	}

	return token, nil
}

// Validate redeems ssoToken: the ephemeral record is read and deleted in
// one step (at-most-once, §5's "ephemeral-code redemption is
// read-then-delete"), then a new session is created from the captured
// identifiers. A failed validation (unknown/expired/already-used token)
// leaves no side effect beyond the delete that domain.ErrNotFound implies
// already happened.
func (b *Broker) Validate(ctx context.Context, ssoToken string) (SessionWithAccess, error) {
	var record handoff
	if err := b.store.GetAndDelete(ctx, ssoKey(ssoToken), &record); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return SessionWithAccess{}, fmt.Errorf("sso: validate: %w", domain.ErrInvalidCode)
		}
		return SessionWithAccess{}, fmt.Errorf("sso: validate: %w", err)
	}

	session, err := b.sessions.Create(ctx, record.UserID, record.DeviceFingerprintID, record.App)
	if err != nil {
		return SessionWithAccess{}, fmt.Errorf("sso: validate: create session: %w", err)
	}

	return session, nil
}

func ssoKey(token string) string {
	return "sso:" + token
}
