package app

import (
	"context"
	"fmt"
	"regexp"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/authplatform/auth-service/internal/auth"
	"github.com/authplatform/auth-service/internal/domain"
	"github.com/authplatform/auth-service/internal/password"
)

var otpCodePattern = regexp.MustCompile(`^\d{6}$`)

// otpLoginSession is the ephemeral record behind a login_session_token,
// carrying the already-password-and-device-verified state of a login
// attempt across the OTP challenge round trip (§4.7).
type otpLoginSession struct {
	UserID              string `json:"user_id"`
	DeviceFingerprintID string `json:"device_fingerprint_id"`
	Browser             string `json:"browser"`
	Device              string `json:"device"`
	App                 string `json:"app"`
}

func otpLoginSessionKey(token string) string { return "otp_login_session:" + token }

// otpVerifyFingerprintSession is the ephemeral record behind the
// fingerprint-trust OTP gate: presenting the right code against this token
// trusts FingerprintID and creates a session for UserID atomically.
type otpVerifyFingerprintSession struct {
	UserID        string `json:"user_id"`
	FingerprintID string `json:"fingerprint_id"`
	App           string `json:"app"`
}

func otpVerifyFingerprintSessionKey(token string) string { return "otp_verify_fingerprint_session:" + token }

// LoginChallenge is what CheckAndInitLogin returns: either a ready session
// (TOTP not enabled) or a login_session_token the caller must redeem with
// LoginVerifyOTP.
type LoginChallenge struct {
	OTPRequired      bool
	LoginSessionToken string
	Session          *SessionWithAccess
}

// Setup provisions a new TOTP secret for userID and returns the otpauth URL
// (for QR provisioning) and the raw base32 secret — the only moment the
// plaintext secret ever leaves this service. Rejects if a config already
// exists, enabled or not.
func (s *AuthService) Setup(ctx context.Context, userID, accountName, issuer string) (otpauthURL, secretBase32 string, err error) {
	ctx, span := tracer.Start(ctx, "auth.totp.setup")
	defer span.End()

	if _, err := s.otpConfigs.Get(ctx, userID); err == nil {
		return "", "", fmt.Errorf("totp setup: %w", domain.ErrAlreadyExists)
	} else if !domain.IsNotFound(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", "", fmt.Errorf("totp setup: %w", err)
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: accountName,
		SecretSize:  32,
		Period:      uint(domain.TOTPPeriod.Seconds()),
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", "", fmt.Errorf("totp setup: generate key: %w", err)
	}

	encrypted, err := password.EncryptSecret(s.otpSecretKey, []byte(key.Secret()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", "", fmt.Errorf("totp setup: encrypt secret: %w", err)
	}

	if _, err := s.otpConfigs.Create(ctx, userID, encrypted); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", "", fmt.Errorf("totp setup: persist config: %w", err)
	}

	return key.String(), key.Secret(), nil
}

// Enable verifies otpCode against the pending (not-yet-enabled) config for
// userID and, on success, flips it to enabled.
func (s *AuthService) Enable(ctx context.Context, userID, otpCode string) error {
	ctx, span := tracer.Start(ctx, "auth.totp.enable")
	defer span.End()

	cfg, err := s.otpConfigs.Get(ctx, userID)
	if err != nil {
		if domain.IsNotFound(err) {
			return fmt.Errorf("totp enable: %w", domain.ErrConfigRequired)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("totp enable: %w", err)
	}
	if cfg.OTPEnabled {
		return fmt.Errorf("totp enable: %w", domain.ErrAlreadyExists)
	}

	if err := s.verifyCodeAgainstConfig(cfg, otpCode); err != nil {
		return fmt.Errorf("totp enable: %w", err)
	}

	if err := s.otpConfigs.SetEnabled(ctx, userID, true); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("totp enable: %w", err)
	}
	totpVerifiedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("action", "enable")))
	return nil
}

// Disable flips an enabled TOTP config back to disabled. The secret is
// retained so Enable can be retried without a fresh QR scan.
func (s *AuthService) Disable(ctx context.Context, userID string) error {
	ctx, span := tracer.Start(ctx, "auth.totp.disable")
	defer span.End()

	cfg, err := s.otpConfigs.Get(ctx, userID)
	if err != nil {
		if domain.IsNotFound(err) {
			return fmt.Errorf("totp disable: %w", domain.ErrConfigRequired)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("totp disable: %w", err)
	}
	if !cfg.OTPEnabled {
		return fmt.Errorf("totp disable: %w", domain.ErrConfigRequired)
	}

	if err := s.otpConfigs.SetEnabled(ctx, userID, false); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("totp disable: %w", err)
	}
	return nil
}

// Verify checks otpCode against userID's enabled TOTP config.
func (s *AuthService) Verify(ctx context.Context, userID, otpCode string) error {
	ctx, span := tracer.Start(ctx, "auth.totp.verify")
	defer span.End()

	otpRequestsTotal.Add(ctx, 1)

	cfg, err := s.otpConfigs.Get(ctx, userID)
	if err != nil {
		if domain.IsNotFound(err) {
			return fmt.Errorf("totp verify: %w", domain.ErrConfigRequired)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("totp verify: %w", err)
	}
	if !cfg.OTPEnabled {
		return fmt.Errorf("totp verify: %w", domain.ErrConfigRequired)
	}

	if err := s.verifyCodeAgainstConfig(cfg, otpCode); err != nil {
		return fmt.Errorf("totp verify: %w", err)
	}
	totpVerifiedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("action", "verify")))
	return nil
}

// Status reports whether userID has TOTP enabled. No config is the same as
// not enabled.
func (s *AuthService) Status(ctx context.Context, userID string) (bool, error) {
	cfg, err := s.otpConfigs.Get(ctx, userID)
	if err != nil {
		if domain.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("totp status: %w", err)
	}
	return cfg.OTPEnabled, nil
}

// verifyCodeAgainstConfig validates otpCode's shape, decrypts cfg's secret,
// and runs the RFC 6238 check with the configured period/skew.
func (s *AuthService) verifyCodeAgainstConfig(cfg *OTPConfigRecord, otpCode string) error {
	if !otpCodePattern.MatchString(otpCode) {
		return domain.ErrInvalidOTP
	}

	secret, err := password.DecryptSecret(s.otpSecretKey, cfg.OTPSecretEncrypted)
	if err != nil {
		return fmt.Errorf("decrypt totp secret: %w", err)
	}

	valid, err := totp.ValidateCustom(otpCode, string(secret), s.clock.Now().UTC(), totp.ValidateOpts{
		Period:    uint(domain.TOTPPeriod.Seconds()),
		Skew:      uint(domain.TOTPSkew),
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return fmt.Errorf("totp check: %w", err)
	}
	if !valid {
		return domain.ErrInvalidOTP
	}
	return nil
}

// CheckAndInitLogin gates session creation on TOTP when enabled. If the
// user has no enabled TOTP config, it creates the session immediately
// (happy-path bypass). Otherwise it stashes the already-verified login
// context under a short-lived login_session_token and leaves session
// creation to LoginVerifyOTP.
func (s *AuthService) CheckAndInitLogin(ctx context.Context, userID, deviceFingerprintID, browser, device, app string) (LoginChallenge, error) {
	ctx, span := tracer.Start(ctx, "auth.totp.check_and_init_login")
	defer span.End()

	enabled, err := s.Status(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return LoginChallenge{}, fmt.Errorf("check and init login: %w", err)
	}

	if !enabled {
		session, err := s.Create(ctx, userID, deviceFingerprintID, app)
		if err != nil {
			return LoginChallenge{}, fmt.Errorf("check and init login: %w", err)
		}
		return LoginChallenge{OTPRequired: false, Session: &session}, nil
	}

	token, err := auth.GenerateOpaqueToken(domain.OpaqueTokenMaxLength)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return LoginChallenge{}, fmt.Errorf("check and init login: generate token: %w", err)
	}

	record := otpLoginSession{
		UserID:              userID,
		DeviceFingerprintID: deviceFingerprintID,
		Browser:             browser,
		Device:              device,
		App:                 app,
	}
	if err := s.ephemeral.Set(ctx, otpLoginSessionKey(token), record, domain.OTPLoginSessionTTL); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return LoginChallenge{}, fmt.Errorf("check and init login: stash: %w", err)
	}

	otpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("flow", "login")))
	return LoginChallenge{OTPRequired: true, LoginSessionToken: token}, nil
}

// LoginVerifyOTP redeems loginSessionToken, verifies otpCode, and creates
// the session the original login request was waiting on.
func (s *AuthService) LoginVerifyOTP(ctx context.Context, loginSessionToken, otpCode string) (SessionWithAccess, error) {
	ctx, span := tracer.Start(ctx, "auth.totp.login_verify_otp")
	defer span.End()

	var record otpLoginSession
	if err := s.ephemeral.GetAndDelete(ctx, otpLoginSessionKey(loginSessionToken), &record); err != nil {
		if domain.IsNotFound(err) {
			return SessionWithAccess{}, fmt.Errorf("login verify otp: %w", domain.ErrInvalidCode)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return SessionWithAccess{}, fmt.Errorf("login verify otp: %w", err)
	}

	if err := s.Verify(ctx, record.UserID, otpCode); err != nil {
		return SessionWithAccess{}, fmt.Errorf("login verify otp: %w", err)
	}

	session, err := s.Create(ctx, record.UserID, record.DeviceFingerprintID, record.App)
	if err != nil {
		return SessionWithAccess{}, fmt.Errorf("login verify otp: %w", err)
	}
	return session, nil
}

// CheckAndInitVerifyFingerprint stashes a pending device-trust request
// behind a short-lived token, to be redeemed by FingerprintTrustVerifyOTP.
// Only called on the branch where the user has TOTP enabled; an untrusted
// device for a non-TOTP user is verified by email instead (§4.5/§4.9).
func (s *AuthService) CheckAndInitVerifyFingerprint(ctx context.Context, userID, fingerprintID, app string) (string, error) {
	ctx, span := tracer.Start(ctx, "auth.totp.check_and_init_verify_fingerprint")
	defer span.End()

	token, err := auth.GenerateOpaqueToken(domain.OpaqueTokenMaxLength)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("check and init verify fingerprint: generate token: %w", err)
	}

	record := otpVerifyFingerprintSession{UserID: userID, FingerprintID: fingerprintID, App: app}
	if err := s.ephemeral.Set(ctx, otpVerifyFingerprintSessionKey(token), record, domain.OTPVerifyFingerprintSessionTTL); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("check and init verify fingerprint: stash: %w", err)
	}

	otpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("flow", "fingerprint_trust")))
	return token, nil
}

// FingerprintTrustVerifyOTP redeems token, verifies otpCode, and atomically
// trusts the fingerprint and creates a session for it — the orchestrator
// must never create this session before OTP succeeds (§4.7's invariant).
func (s *AuthService) FingerprintTrustVerifyOTP(ctx context.Context, token, otpCode string) (SessionWithAccess, error) {
	ctx, span := tracer.Start(ctx, "auth.totp.fingerprint_trust_verify_otp")
	defer span.End()

	var record otpVerifyFingerprintSession
	if err := s.ephemeral.GetAndDelete(ctx, otpVerifyFingerprintSessionKey(token), &record); err != nil {
		if domain.IsNotFound(err) {
			return SessionWithAccess{}, fmt.Errorf("fingerprint trust verify otp: %w", domain.ErrInvalidCode)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return SessionWithAccess{}, fmt.Errorf("fingerprint trust verify otp: %w", err)
	}

	if err := s.Verify(ctx, record.UserID, otpCode); err != nil {
		return SessionWithAccess{}, fmt.Errorf("fingerprint trust verify otp: %w", err)
	}

	sessionMint, err := s.sessionMinter.Mint(record.UserID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return SessionWithAccess{}, fmt.Errorf("fingerprint trust verify otp: mint session token: %w", err)
	}

	now := s.clock.Now().UTC()
	sessionID := domain.GenerateSessionID().String()
	sessionRecord := SessionRecord{
		SessionID:           sessionID,
		UserID:              record.UserID,
		DeviceFingerprintID: record.FingerprintID,
		App:                 record.App,
		SessionTokenHash:    auth.HashSessionToken(sessionMint.Token),
		IsActive:            true,
		CreatedAt:           formatTime(now),
		LastUsedAt:          formatTime(now),
		ExpiresAt:           formatTime(sessionMint.ExpiresAt),
		TTL:                 sessionMint.ExpiresAt.Unix(),
	}

	if err := s.transactor.TrustFingerprintAndCreateSession(ctx, TrustFingerprintAndCreateSessionParams{
		FingerprintID: record.FingerprintID,
		Session:       sessionRecord,
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return SessionWithAccess{}, fmt.Errorf("fingerprint trust verify otp: trust and create session: %w", err)
	}

	accessMint, err := s.accessMinter.Mint(record.UserID, sessionMint.Token)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return SessionWithAccess{}, fmt.Errorf("fingerprint trust verify otp: mint access token: %w", err)
	}

	fingerprintTrustedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("path", "otp")))
	sessionCreatedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("app", record.App)))

	return SessionWithAccess{
		SessionID:           sessionID,
		UserID:              record.UserID,
		DeviceFingerprintID: record.FingerprintID,
		App:                 record.App,
		SessionToken:        sessionMint.Token,
		AccessToken:         accessMint.Token,
		ExpiresAt:           sessionMint.ExpiresAt,
	}, nil
}
