package app

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/authplatform/auth-service/internal/auth"
	"github.com/authplatform/auth-service/internal/domain"
)

// SessionWithAccess is a newly created or refreshed session plus its bearer
// access token. Field-compatible with sso.SessionWithAccess so the
// composition root can hand this manager straight to a Broker as its
// SessionCreator.
type SessionWithAccess struct {
	SessionID           string
	UserID              string
	DeviceFingerprintID string
	App                 string
	SessionToken        string
	AccessToken         string
	ExpiresAt           time.Time
}

const timeLayout = time.RFC3339

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// Create mints a fresh session_token, writes the session row, mints an
// access token bound to it, and fires a fire-and-forget session-created
// notification (§4.6).
func (s *AuthService) Create(ctx context.Context, userID, deviceFingerprintID, app string) (SessionWithAccess, error) {
	ctx, span := tracer.Start(ctx, "auth.session.create")
	defer span.End()

	sessionMint, err := s.sessionMinter.Mint(userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return SessionWithAccess{}, fmt.Errorf("create session: mint session token: %w", err)
	}

	now := s.clock.Now().UTC()
	sessionID := domain.GenerateSessionID().String()

	record := SessionRecord{
		SessionID:           sessionID,
		UserID:              userID,
		DeviceFingerprintID: deviceFingerprintID,
		App:                 app,
		SessionTokenHash:    auth.HashSessionToken(sessionMint.Token),
		IsActive:            true,
		CreatedAt:           formatTime(now),
		LastUsedAt:          formatTime(now),
		ExpiresAt:           formatTime(sessionMint.ExpiresAt),
		TTL:                 sessionMint.ExpiresAt.Unix(),
	}
	if err := s.sessions.Create(ctx, record); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return SessionWithAccess{}, fmt.Errorf("create session: write record: %w", err)
	}

	accessMint, err := s.accessMinter.Mint(userID, sessionMint.Token)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return SessionWithAccess{}, fmt.Errorf("create session: mint access token: %w", err)
	}

	sessionCreatedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("app", app)))
	tokenMintedTotal.Add(ctx, 2, metric.WithAttributes(attribute.String("kind", "session+access")))

	s.publishAsync(ctx, "notification", map[string]any{
		"type":       "session-created",
		"user_id":    userID,
		"session_id": sessionID,
	})

	return SessionWithAccess{
		SessionID:           sessionID,
		UserID:              userID,
		DeviceFingerprintID: deviceFingerprintID,
		App:                 app,
		SessionToken:        sessionMint.Token,
		AccessToken:         accessMint.Token,
		ExpiresAt:           sessionMint.ExpiresAt,
	}, nil
}

// Refresh rotates sessionToken: the session row's hash moves to
// prev_token_hash and a brand new session_token (and access token) is
// issued. A token already rotated away when presented again is refresh
// reuse (§12) — the session is revoked immediately and
// domain.ErrRefreshTokenReuse is returned, never a plain not-found.
func (s *AuthService) Refresh(ctx context.Context, sessionToken string) (SessionWithAccess, error) {
	ctx, span := tracer.Start(ctx, "auth.session.refresh")
	defer span.End()

	hash := auth.HashSessionToken(sessionToken)

	record, err := s.sessions.GetByTokenHash(ctx, hash)
	if err != nil {
		if !domain.IsNotFound(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return SessionWithAccess{}, fmt.Errorf("refresh session: %w", err)
		}
		return s.handleRefreshMiss(ctx, hash)
	}

	if !record.IsActive {
		return SessionWithAccess{}, fmt.Errorf("refresh session: %w", domain.ErrSessionRevoked)
	}
	if expiresAt, perr := parseTime(record.ExpiresAt); perr == nil && s.clock.Now().UTC().After(expiresAt) {
		return SessionWithAccess{}, fmt.Errorf("refresh session: %w", domain.ErrSessionExpired)
	}

	sessionMint, err := s.sessionMinter.Mint(record.UserID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return SessionWithAccess{}, fmt.Errorf("refresh session: mint session token: %w", err)
	}

	now := s.clock.Now().UTC()
	rotation := SessionRotation{
		SessionTokenHash: auth.HashSessionToken(sessionMint.Token),
		PrevTokenHash:    hash,
		LastUsedAt:       formatTime(now),
		ExpiresAt:        formatTime(sessionMint.ExpiresAt),
		TTL:              sessionMint.ExpiresAt.Unix(),
	}
	if err := s.sessions.Rotate(ctx, record.SessionID, rotation); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return SessionWithAccess{}, fmt.Errorf("refresh session: rotate: %w", err)
	}

	accessMint, err := s.accessMinter.Mint(record.UserID, sessionMint.Token)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return SessionWithAccess{}, fmt.Errorf("refresh session: mint access token: %w", err)
	}

	tokenMintedTotal.Add(ctx, 2, metric.WithAttributes(attribute.String("kind", "session+access"), attribute.String("reason", "refresh")))

	return SessionWithAccess{
		SessionID:           record.SessionID,
		UserID:              record.UserID,
		DeviceFingerprintID: record.DeviceFingerprintID,
		App:                 record.App,
		SessionToken:        sessionMint.Token,
		AccessToken:         accessMint.Token,
		ExpiresAt:           sessionMint.ExpiresAt,
	}, nil
}

// handleRefreshMiss distinguishes a genuinely unknown session_token from a
// reused, already-rotated one. The latter revokes the session on the spot.
func (s *AuthService) handleRefreshMiss(ctx context.Context, hash string) (SessionWithAccess, error) {
	reused, err := s.sessions.GetByPrevTokenHash(ctx, hash)
	if err != nil {
		if domain.IsNotFound(err) {
			return SessionWithAccess{}, fmt.Errorf("refresh session: %w", domain.ErrInvalidRefreshToken)
		}
		return SessionWithAccess{}, fmt.Errorf("refresh session: %w", err)
	}

	if revokeErr := s.sessions.Revoke(ctx, reused.SessionID); revokeErr != nil {
		s.logger.ErrorContext(ctx, "failed to revoke session on refresh-token reuse",
			"error", revokeErr, "session_id", reused.SessionID)
	}
	sessionRevocationsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "refresh_reuse")))
	authFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "refresh_reuse")))
	s.logger.WarnContext(ctx, "refresh token reuse detected, session revoked",
		"session_id", reused.SessionID, "user_id", reused.UserID)

	return SessionWithAccess{}, fmt.Errorf("refresh session: %w", domain.ErrRefreshTokenReuse)
}

// RevokeSessionByID revokes a single session. Idempotent.
func (s *AuthService) RevokeSessionByID(ctx context.Context, sessionID string) error {
	ctx, span := tracer.Start(ctx, "auth.session.revoke_by_id")
	defer span.End()

	if err := s.sessions.Revoke(ctx, sessionID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("revoke session: %w", err)
	}
	sessionRevocationsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "explicit")))
	return nil
}

// RevokeSessionsByDeviceFingerprint revokes every session bound to
// deviceFingerprintID. There is no bulk adapter primitive for this, so it
// lists then revokes one at a time, logging and continuing past individual
// failures rather than aborting the fan-out.
func (s *AuthService) RevokeSessionsByDeviceFingerprint(ctx context.Context, userID, deviceFingerprintID string) error {
	ctx, span := tracer.Start(ctx, "auth.session.revoke_by_device_fingerprint")
	defer span.End()

	sessions, err := s.sessions.ListByDeviceFingerprint(ctx, userID, deviceFingerprintID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("revoke sessions by device fingerprint: %w", err)
	}
	for _, sess := range sessions {
		if err := s.sessions.Revoke(ctx, sess.SessionID); err != nil {
			s.logger.ErrorContext(ctx, "failed to revoke session", "error", err, "session_id", sess.SessionID)
			continue
		}
		sessionRevocationsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "device_fingerprint_revoked")))
	}
	return nil
}

// ListActiveSessions returns every is_active=true session for userID.
func (s *AuthService) ListActiveSessions(ctx context.Context, userID string) ([]SessionRecord, error) {
	ctx, span := tracer.Start(ctx, "auth.session.list_active")
	defer span.End()

	sessions, err := s.sessions.ListActiveByUser(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	return sessions, nil
}

// CleanupExpired marks any active-but-expired sessions for userID as
// revoked. Intended for background housekeeping, not the request path.
func (s *AuthService) CleanupExpired(ctx context.Context, userID string) error {
	ctx, span := tracer.Start(ctx, "auth.session.cleanup_expired")
	defer span.End()

	sessions, err := s.sessions.ListActiveByUser(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("cleanup expired sessions: %w", err)
	}

	now := s.clock.Now().UTC()
	for _, sess := range sessions {
		expiresAt, perr := parseTime(sess.ExpiresAt)
		if perr != nil || now.Before(expiresAt) {
			continue
		}
		if err := s.sessions.Revoke(ctx, sess.SessionID); err != nil {
			s.logger.ErrorContext(ctx, "failed to revoke expired session", "error", err, "session_id", sess.SessionID)
			continue
		}
		sessionRevocationsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "expired")))
	}
	return nil
}

// ValidateAccess verifies an access token's signature and claims, checks it
// has not been explicitly revoked by JTI, and confirms the session it is
// bound to is still active. Every failure collapses to
// domain.ErrUnauthorized.
func (s *AuthService) ValidateAccess(ctx context.Context, accessToken string) (*auth.AccessClaims, error) {
	ctx, span := tracer.Start(ctx, "auth.session.validate_access")
	defer span.End()

	claims, err := s.accessValidator.ValidateAccess(accessToken)
	if err != nil {
		authFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "invalid_access_token")))
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	revoked, err := s.revocation.IsRevoked(ctx, claims.ID)
	if err != nil || revoked {
		authFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "revoked_jti")))
		span.SetStatus(codes.Error, "revoked")
		return nil, fmt.Errorf("validate access: %w", domain.ErrUnauthorized)
	}

	record, err := s.sessions.GetByTokenHash(ctx, auth.HashSessionToken(claims.SessionToken))
	if err != nil {
		authFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "session_not_found")))
		span.SetStatus(codes.Error, "session not found")
		return nil, fmt.Errorf("validate access: %w", domain.ErrUnauthorized)
	}
	if !record.IsActive {
		authFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "session_revoked")))
		span.SetStatus(codes.Error, "session revoked")
		return nil, fmt.Errorf("validate access: %w", domain.ErrUnauthorized)
	}
	if expiresAt, perr := parseTime(record.ExpiresAt); perr == nil && s.clock.Now().UTC().After(expiresAt) {
		authFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "session_expired")))
		span.SetStatus(codes.Error, "session expired")
		return nil, fmt.Errorf("validate access: %w", domain.ErrUnauthorized)
	}

	return claims, nil
}

// ValidateSession verifies a session (refresh) token's signature and claims
// and confirms the session row it names is still active, mirroring
// ValidateAccess but entered from the refresh token rather than the access
// token.
func (s *AuthService) ValidateSession(ctx context.Context, sessionToken string) (*auth.SessionClaims, error) {
	ctx, span := tracer.Start(ctx, "auth.session.validate_session")
	defer span.End()

	claims, err := s.sessionValidator.ValidateSession(sessionToken)
	if err != nil {
		authFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "invalid_session_token")))
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	record, err := s.sessions.GetByTokenHash(ctx, auth.HashSessionToken(sessionToken))
	if err != nil {
		authFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "session_not_found")))
		span.SetStatus(codes.Error, "session not found")
		return nil, fmt.Errorf("validate session: %w", domain.ErrUnauthorized)
	}
	if !record.IsActive {
		span.SetStatus(codes.Error, "session revoked")
		return nil, fmt.Errorf("validate session: %w", domain.ErrUnauthorized)
	}

	return claims, nil
}

// Logout validates accessToken, revokes the session it is bound to, and
// revokes the access token's own JTI as defense in depth.
func (s *AuthService) Logout(ctx context.Context, accessToken string) error {
	ctx, span := tracer.Start(ctx, "auth.session.logout")
	defer span.End()

	claims, err := s.ValidateAccess(ctx, accessToken)
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}

	record, err := s.sessions.GetByTokenHash(ctx, auth.HashSessionToken(claims.SessionToken))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("logout: %w", err)
	}

	if err := s.sessions.Revoke(ctx, record.SessionID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("logout: revoke session: %w", err)
	}
	if err := s.revocation.Revoke(ctx, claims.ID); err != nil {
		s.logger.ErrorContext(ctx, "failed to revoke access token jti on logout", "error", err, "jti", claims.ID)
	}

	sessionRevocationsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "logout")))
	return nil
}
