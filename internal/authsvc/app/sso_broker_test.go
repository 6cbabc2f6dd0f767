package app_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authplatform/auth-service/internal/domain"
)

func trustFingerprint(t *testing.T, h *testHarness, userID, hash string) string {
	t.Helper()
	ctx := context.Background()
	record, err := h.svc.CreateUntrustedFingerprint(ctx, userID, hash, "chrome", "desktop")
	require.NoError(t, err)
	require.NoError(t, h.fingerprints.SetTrusted(ctx, record.FingerprintID, true))
	return record.FingerprintID
}

func TestSSOToken_CreateThenValidate_CreatesSession(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	trustFingerprint(t, h, "user-1", "hash-1")

	token, err := h.svc.CreateSSOToken(ctx, "user-1", "wallet", "hash-1")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	session, err := h.svc.ValidateSSOToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", session.UserID)
	assert.Equal(t, "wallet", session.App)
	assert.NotEmpty(t, session.SessionToken)
	assert.NotEmpty(t, session.AccessToken)
}

func TestSSOToken_Create_UntrustedFingerprint_ReturnsNotFound(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	_, err := h.svc.CreateSSOToken(ctx, "user-1", "wallet", "unknown-hash")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSSOToken_Validate_IsSingleUse(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	trustFingerprint(t, h, "user-1", "hash-1")

	token, err := h.svc.CreateSSOToken(ctx, "user-1", "wallet", "hash-1")
	require.NoError(t, err)

	_, err = h.svc.ValidateSSOToken(ctx, token)
	require.NoError(t, err)

	_, err = h.svc.ValidateSSOToken(ctx, token)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidCode)
}

func TestSSOToken_Validate_UnknownToken_ReturnsInvalidCode(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	_, err := h.svc.ValidateSSOToken(ctx, "not-a-real-token")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidCode)
}
