package app

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/codes"

	"github.com/authplatform/auth-service/internal/auth"
	"github.com/authplatform/auth-service/internal/sso"
)

// ssoFingerprintChecker adapts CheckFingerprint to sso.FingerprintChecker:
// the broker only needs the trusted fingerprint's ID, not the full record.
type ssoFingerprintChecker struct{ svc *AuthService }

func (c ssoFingerprintChecker) Check(ctx context.Context, userID, fingerprintHash string) (string, error) {
	record, err := c.svc.CheckFingerprint(ctx, userID, fingerprintHash)
	if err != nil {
		return "", err
	}
	return record.FingerprintID, nil
}

// ssoSessionCreator adapts Create to sso.SessionCreator. app.SessionWithAccess
// and sso.SessionWithAccess are field-identical by design, so the
// conversion below is a plain type conversion, not a field-by-field copy.
type ssoSessionCreator struct{ svc *AuthService }

func (c ssoSessionCreator) Create(ctx context.Context, userID, deviceFingerprintID, app string) (sso.SessionWithAccess, error) {
	session, err := c.svc.Create(ctx, userID, deviceFingerprintID, app)
	if err != nil {
		return sso.SessionWithAccess{}, err
	}
	return sso.SessionWithAccess(session), nil
}

// ssoTokenGenerator adapts internal/auth's opaque token generator to
// sso.TokenGenerator.
type ssoTokenGenerator struct{}

func (ssoTokenGenerator) GenerateOpaqueToken(length int) (string, error) {
	return auth.GenerateOpaqueToken(length)
}

// CreateSSOToken issues a single-use SSO handoff token for userID/app,
// provided fingerprintHashed resolves to an existing trusted device (C8).
func (s *AuthService) CreateSSOToken(ctx context.Context, userID, app, fingerprintHashed string) (string, error) {
	ctx, span := tracer.Start(ctx, "auth.sso.create")
	defer span.End()

	token, err := s.sso.Create(ctx, userID, app, fingerprintHashed)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("create sso token: %w", err)
	}
	return token, nil
}

// ValidateSSOToken redeems ssoToken and returns the freshly created session
// it was exchanged for (C8). The token is single-use regardless of outcome.
func (s *AuthService) ValidateSSOToken(ctx context.Context, ssoToken string) (SessionWithAccess, error) {
	ctx, span := tracer.Start(ctx, "auth.sso.validate")
	defer span.End()

	session, err := s.sso.Validate(ctx, ssoToken)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return SessionWithAccess{}, fmt.Errorf("validate sso token: %w", err)
	}
	return SessionWithAccess(session), nil
}
