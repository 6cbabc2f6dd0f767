package app

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/authplatform/auth-service/internal/auth"
	"github.com/authplatform/auth-service/internal/domain"
	"github.com/authplatform/auth-service/internal/observability"
)

// fingerprintEmailChallenge is the ephemeral record written by
// SendEmailChallenge and redeemed exactly once by VerifyEmailChallenge.
type fingerprintEmailChallenge struct {
	UserID          string `json:"user_id"`
	FingerprintHash string `json:"fingerprint_hash"`
}

func fingerprintEmailChallengeKey(code string) string {
	return "fingerprint-email-verification:" + code
}

// TrustedFingerprint is a trusted device annotated with its currently
// active sessions, per C5's list contract.
type TrustedFingerprint struct {
	FingerprintRecord
	ActiveSessions []SessionRecord
}

// CheckFingerprint reports whether (userID, fingerprintHash) resolves to a
// trusted device. An untrusted-but-existing record is treated the same as
// not found — the caller only ever needs to distinguish "trusted" from
// "anything else" (§4.5).
func (s *AuthService) CheckFingerprint(ctx context.Context, userID, fingerprintHash string) (*FingerprintRecord, error) {
	ctx, span := tracer.Start(ctx, "auth.fingerprint.check")
	defer span.End()

	record, err := s.fingerprints.FindByHash(ctx, userID, fingerprintHash)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, fmt.Errorf("fingerprint check: %w", domain.ErrNotFound)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("fingerprint check: %w", err)
	}
	if !record.IsTrusted {
		return nil, fmt.Errorf("fingerprint check: %w", domain.ErrNotFound)
	}
	return record, nil
}

// CreateUntrustedFingerprint records a new device fingerprint in the
// untrusted state. Idempotent on (userID, hash): a repeat call for an
// already-known pair returns the existing record.
func (s *AuthService) CreateUntrustedFingerprint(ctx context.Context, userID, hash, browser, device string) (*FingerprintRecord, error) {
	ctx, span := tracer.Start(ctx, "auth.fingerprint.create_untrusted")
	defer span.End()

	record, err := s.fingerprints.CreateUntrusted(ctx, domain.GenerateFingerprintID().String(), userID, hash, browser, device)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("create untrusted fingerprint: %w", err)
	}
	return record, nil
}

// CreateTrustedFingerprint records (or promotes) a device fingerprint
// straight into the trusted state, for flows that have already proven
// device ownership by another means (e.g. the wallet-session path).
func (s *AuthService) CreateTrustedFingerprint(ctx context.Context, userID, hash, browser, device string) (*FingerprintRecord, error) {
	ctx, span := tracer.Start(ctx, "auth.fingerprint.create_trusted")
	defer span.End()

	record, err := s.fingerprints.CreateUntrusted(ctx, domain.GenerateFingerprintID().String(), userID, hash, browser, device)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("create trusted fingerprint: %w", err)
	}
	if !record.IsTrusted {
		if err := s.fingerprints.SetTrusted(ctx, record.FingerprintID, true); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("trust fingerprint: %w", err)
		}
		record.IsTrusted = true
	}
	fingerprintTrustedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("path", "direct")))
	return record, nil
}

// SendEmailChallenge issues a 6-character verification code for trusting
// fingerprintHash, stashes it under fingerprint-email-verification:{code}
// (5 min), and delivers the code by email. The manager has no access to
// the user-directory, so email is supplied by the caller (C9, which does).
func (s *AuthService) SendEmailChallenge(ctx context.Context, userID, fingerprintHash, email string) error {
	ctx, span := tracer.Start(ctx, "auth.fingerprint.send_email_challenge")
	defer span.End()

	code, err := auth.GenerateVerificationCode()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("generate verification code: %w", err)
	}

	record := fingerprintEmailChallenge{UserID: userID, FingerprintHash: fingerprintHash}
	if err := s.ephemeral.Set(ctx, fingerprintEmailChallengeKey(code), record, domain.FingerprintEmailVerificationTTL); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("stash fingerprint email challenge: %w", err)
	}

	s.deliverVerificationCode(ctx, email, code, "fingerprint-verify")
	return nil
}

// VerifyEmailChallenge redeems code, flips the matching fingerprint to
// trusted, and returns the record. A missing or expired code returns
// domain.ErrInvalidCode with no state change (§4.5).
func (s *AuthService) VerifyEmailChallenge(ctx context.Context, code string) (*FingerprintRecord, error) {
	ctx, span := tracer.Start(ctx, "auth.fingerprint.verify_email_challenge")
	defer span.End()

	var challenge fingerprintEmailChallenge
	if err := s.ephemeral.GetAndDelete(ctx, fingerprintEmailChallengeKey(code), &challenge); err != nil {
		if domain.IsNotFound(err) {
			return nil, fmt.Errorf("verify email challenge: %w", domain.ErrInvalidCode)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("verify email challenge: %w", err)
	}

	record, err := s.fingerprints.FindByHash(ctx, challenge.UserID, challenge.FingerprintHash)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("verify email challenge: locate fingerprint: %w", err)
	}

	if !record.IsTrusted {
		if err := s.fingerprints.SetTrusted(ctx, record.FingerprintID, true); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("verify email challenge: trust: %w", err)
		}
		record.IsTrusted = true
	}

	fingerprintTrustedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("path", "email")))
	observability.WithTraceID(ctx, s.logger).InfoContext(ctx, "fingerprint.trusted",
		"user_id", record.UserID, "fingerprint_id", record.FingerprintID, "path", "email")

	return record, nil
}

// ListTrustedFingerprints returns every trusted device for userID, each
// annotated with its currently active sessions.
func (s *AuthService) ListTrustedFingerprints(ctx context.Context, userID string) ([]TrustedFingerprint, error) {
	ctx, span := tracer.Start(ctx, "auth.fingerprint.list")
	defer span.End()

	trusted, err := s.fingerprints.ListTrusted(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("list trusted fingerprints: %w", err)
	}

	out := make([]TrustedFingerprint, 0, len(trusted))
	for _, fp := range trusted {
		sessions, err := s.sessions.ListByDeviceFingerprint(ctx, userID, fp.FingerprintID)
		if err != nil {
			return nil, fmt.Errorf("list sessions for fingerprint %s: %w", fp.FingerprintID, err)
		}
		out = append(out, TrustedFingerprint{FingerprintRecord: fp, ActiveSessions: sessions})
	}
	return out, nil
}

// RevokeFingerprint untrusts fingerprintID and fans out session revocation
// to every session bound to it. Revoking an already-untrusted fingerprint
// is a no-op success. Rejects with domain.ErrForbidden if fingerprintID
// belongs to a different user.
func (s *AuthService) RevokeFingerprint(ctx context.Context, userID, fingerprintID string) error {
	ctx, span := tracer.Start(ctx, "auth.fingerprint.revoke")
	defer span.End()

	logger := observability.WithTraceID(ctx, s.logger)

	record, err := s.fingerprints.GetByID(ctx, fingerprintID)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("revoke fingerprint: %w", err)
	}
	if record.UserID != userID {
		return fmt.Errorf("revoke fingerprint: %w", domain.ErrForbidden)
	}
	if !record.IsTrusted {
		return nil
	}

	if err := s.fingerprints.SetTrusted(ctx, fingerprintID, false); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("revoke fingerprint: untrust: %w", err)
	}

	sessions, err := s.sessions.ListByDeviceFingerprint(ctx, userID, fingerprintID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("revoke fingerprint: list sessions: %w", err)
	}
	for _, sess := range sessions {
		if revErr := s.sessions.Revoke(ctx, sess.SessionID); revErr != nil {
			logger.ErrorContext(ctx, "failed to revoke session during fingerprint revoke",
				"error", revErr, "session_id", sess.SessionID)
			continue
		}
		sessionRevocationsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "fingerprint_revoked")))
	}

	logger.InfoContext(ctx, "fingerprint.revoked", "user_id", userID, "fingerprint_id", fingerprintID)
	return nil
}
