package app_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authplatform/auth-service/internal/domain"
)

func TestCreateSession(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	session, err := h.svc.Create(ctx, "user-1", "fp-1", "web")
	require.NoError(t, err)
	h.svc.Wait()

	assert.NotEmpty(t, session.SessionToken)
	assert.NotEmpty(t, session.AccessToken)
	assert.Equal(t, "user-1", session.UserID)

	require.Len(t, h.events.events, 1)
	assert.Equal(t, "notification", h.events.events[0].eventType)
}

func TestRefreshSession_RotatesToken(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	created, err := h.svc.Create(ctx, "user-1", "fp-1", "web")
	require.NoError(t, err)
	h.svc.Wait()

	refreshed, err := h.svc.Refresh(ctx, created.SessionToken)
	require.NoError(t, err)

	assert.NotEqual(t, created.SessionToken, refreshed.SessionToken)
	assert.NotEqual(t, created.AccessToken, refreshed.AccessToken)
	assert.Equal(t, created.SessionID, refreshed.SessionID)
}

func TestRefreshSession_ReuseOfRotatedTokenIsDetected(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	created, err := h.svc.Create(ctx, "user-1", "fp-1", "web")
	require.NoError(t, err)
	h.svc.Wait()

	_, err = h.svc.Refresh(ctx, created.SessionToken)
	require.NoError(t, err)

	// Re-presenting the already-rotated token is reuse, not "not found".
	_, err = h.svc.Refresh(ctx, created.SessionToken)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRefreshTokenReuse)

	record, err := h.sessions.GetByID(ctx, created.SessionID)
	require.NoError(t, err)
	assert.False(t, record.IsActive)
}

func TestRefreshSession_UnknownTokenIsInvalid(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	_, err := h.svc.Refresh(ctx, "never-issued-token")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidRefreshToken)
}

func TestRefreshSession_RevokedSession(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	created, err := h.svc.Create(ctx, "user-1", "fp-1", "web")
	require.NoError(t, err)
	h.svc.Wait()

	require.NoError(t, h.svc.RevokeSessionByID(ctx, created.SessionID))

	_, err = h.svc.Refresh(ctx, created.SessionToken)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSessionRevoked)
}

func TestValidateAccess_Success(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	created, err := h.svc.Create(ctx, "user-1", "fp-1", "web")
	require.NoError(t, err)
	h.svc.Wait()

	claims, err := h.svc.ValidateAccess(ctx, created.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
}

func TestValidateAccess_RevokedJTI(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	created, err := h.svc.Create(ctx, "user-1", "fp-1", "web")
	require.NoError(t, err)
	h.svc.Wait()

	require.NoError(t, h.svc.Logout(ctx, created.AccessToken))

	_, err = h.svc.ValidateAccess(ctx, created.AccessToken)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestValidateAccess_InvalidToken(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	_, err := h.svc.ValidateAccess(ctx, "not-a-jwt")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestLogout_RevokesSessionAndJTI(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	created, err := h.svc.Create(ctx, "user-1", "fp-1", "web")
	require.NoError(t, err)
	h.svc.Wait()

	require.NoError(t, h.svc.Logout(ctx, created.AccessToken))

	record, err := h.sessions.GetByID(ctx, created.SessionID)
	require.NoError(t, err)
	assert.False(t, record.IsActive)
}

func TestRevokeSessionsByDeviceFingerprint(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	s1, err := h.svc.Create(ctx, "user-1", "fp-1", "web")
	require.NoError(t, err)
	s2, err := h.svc.Create(ctx, "user-1", "fp-1", "mobile")
	require.NoError(t, err)
	h.svc.Wait()

	require.NoError(t, h.svc.RevokeSessionsByDeviceFingerprint(ctx, "user-1", "fp-1"))

	r1, err := h.sessions.GetByID(ctx, s1.SessionID)
	require.NoError(t, err)
	assert.False(t, r1.IsActive)

	r2, err := h.sessions.GetByID(ctx, s2.SessionID)
	require.NoError(t, err)
	assert.False(t, r2.IsActive)
}

func TestListActiveSessions(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	_, err := h.svc.Create(ctx, "user-1", "fp-1", "web")
	require.NoError(t, err)
	h.svc.Wait()

	sessions, err := h.svc.ListActiveSessions(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestCleanupExpired_RevokesOnlyPastExpiry(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	created, err := h.svc.Create(ctx, "user-1", "fp-1", "web")
	require.NoError(t, err)
	h.svc.Wait()

	h.clock.Advance(domain.SessionLifetime + 1)

	require.NoError(t, h.svc.CleanupExpired(ctx, "user-1"))

	record, err := h.sessions.GetByID(ctx, created.SessionID)
	require.NoError(t, err)
	assert.False(t, record.IsActive)
}

func TestCreateWalletSession_RejectsWrongCaller(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	_, err := h.svc.CreateWalletSession(ctx, "some-token", "some-other-agent")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestCreateWalletSession_Success(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	token := "wallet-pass-token-1"
	require.NoError(t, h.ephemeral.Set(ctx, "wallet_pass_token:"+token, map[string]string{
		"user_id":          "user-1",
		"fingerprint_hash": "hash-1",
		"browser":          "chrome",
		"device":           "mac",
	}, domain.WalletPassTokenTTL))

	session, err := h.svc.CreateWalletSession(ctx, token, "wallet-service/1.0")
	require.NoError(t, err)
	h.svc.Wait()

	assert.Equal(t, "user-1", session.UserID)
	assert.Equal(t, "decode by wallet", session.App)

	fp, err := h.svc.CheckFingerprint(ctx, "user-1", "hash-1")
	require.NoError(t, err)
	assert.True(t, fp.IsTrusted)
}

func TestCreateWalletSession_UnknownTokenIsUnauthorized(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	_, err := h.svc.CreateWalletSession(ctx, "never-issued", "wallet-service/1.0")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}
