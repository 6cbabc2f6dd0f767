package app_test

import (
	"context"
	"testing"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authplatform/auth-service/internal/domain"
)

func TestTOTPSetup_RejectsDuplicateConfig(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	_, _, err := h.svc.Setup(ctx, "user-1", "user-1@example.com", "auth-service")
	require.NoError(t, err)

	_, _, err = h.svc.Setup(ctx, "user-1", "user-1@example.com", "auth-service")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestTOTPEnableThenVerify(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	_, secret, err := h.svc.Setup(ctx, "user-1", "user-1@example.com", "auth-service")
	require.NoError(t, err)

	code, err := totp.GenerateCode(secret, h.clock.Now().UTC())
	require.NoError(t, err)

	require.NoError(t, h.svc.Enable(ctx, "user-1", code))

	enabled, err := h.svc.Status(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, enabled)

	code2, err := totp.GenerateCode(secret, h.clock.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, h.svc.Verify(ctx, "user-1", code2))
}

func TestTOTPEnable_RequiresExistingConfig(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	err := h.svc.Enable(ctx, "user-1", "123456")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfigRequired)
}

func TestTOTPVerify_RejectsBadShapeCode(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	_, secret, err := h.svc.Setup(ctx, "user-1", "user-1@example.com", "auth-service")
	require.NoError(t, err)
	code, err := totp.GenerateCode(secret, h.clock.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, h.svc.Enable(ctx, "user-1", code))

	err = h.svc.Verify(ctx, "user-1", "abc")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidOTP)
}

func TestTOTPVerify_RejectsWrongCode(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	_, secret, err := h.svc.Setup(ctx, "user-1", "user-1@example.com", "auth-service")
	require.NoError(t, err)
	code, err := totp.GenerateCode(secret, h.clock.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, h.svc.Enable(ctx, "user-1", code))

	err = h.svc.Verify(ctx, "user-1", "000000")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidOTP)
}

func TestTOTPDisable_RetainsSecretForReenable(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	_, secret, err := h.svc.Setup(ctx, "user-1", "user-1@example.com", "auth-service")
	require.NoError(t, err)
	code, err := totp.GenerateCode(secret, h.clock.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, h.svc.Enable(ctx, "user-1", code))

	require.NoError(t, h.svc.Disable(ctx, "user-1"))
	enabled, err := h.svc.Status(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, enabled)

	code2, err := totp.GenerateCode(secret, h.clock.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, h.svc.Enable(ctx, "user-1", code2))
}

func TestStatus_NoConfigIsNotEnabled(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	enabled, err := h.svc.Status(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestCheckAndInitLogin_BypassesWhenTOTPDisabled(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	challenge, err := h.svc.CheckAndInitLogin(ctx, "user-1", "fp-1", "chrome", "mac", "web")
	require.NoError(t, err)
	h.svc.Wait()

	assert.False(t, challenge.OTPRequired)
	require.NotNil(t, challenge.Session)
	assert.Equal(t, "user-1", challenge.Session.UserID)
}

func TestCheckAndInitLogin_GatesOnTOTPWhenEnabled(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	_, secret, err := h.svc.Setup(ctx, "user-1", "user-1@example.com", "auth-service")
	require.NoError(t, err)
	code, err := totp.GenerateCode(secret, h.clock.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, h.svc.Enable(ctx, "user-1", code))

	challenge, err := h.svc.CheckAndInitLogin(ctx, "user-1", "fp-1", "chrome", "mac", "web")
	require.NoError(t, err)

	assert.True(t, challenge.OTPRequired)
	assert.NotEmpty(t, challenge.LoginSessionToken)
	assert.Nil(t, challenge.Session)
}

func TestLoginVerifyOTP_CreatesSessionOnSuccess(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	_, secret, err := h.svc.Setup(ctx, "user-1", "user-1@example.com", "auth-service")
	require.NoError(t, err)
	setupCode, err := totp.GenerateCode(secret, h.clock.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, h.svc.Enable(ctx, "user-1", setupCode))

	challenge, err := h.svc.CheckAndInitLogin(ctx, "user-1", "fp-1", "chrome", "mac", "web")
	require.NoError(t, err)

	h.clock.Advance(domain.TOTPPeriod)
	loginCode, err := totp.GenerateCode(secret, h.clock.Now().UTC())
	require.NoError(t, err)

	session, err := h.svc.LoginVerifyOTP(ctx, challenge.LoginSessionToken, loginCode)
	require.NoError(t, err)
	h.svc.Wait()

	assert.Equal(t, "user-1", session.UserID)
	assert.Equal(t, "fp-1", session.DeviceFingerprintID)
}

func TestLoginVerifyOTP_InvalidSessionToken(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	_, err := h.svc.LoginVerifyOTP(ctx, "never-issued", "123456")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidCode)
}

func TestFingerprintTrustVerifyOTP_TrustsAndCreatesSessionAtomically(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	_, secret, err := h.svc.Setup(ctx, "user-1", "user-1@example.com", "auth-service")
	require.NoError(t, err)
	setupCode, err := totp.GenerateCode(secret, h.clock.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, h.svc.Enable(ctx, "user-1", setupCode))

	untrusted, err := h.svc.CreateUntrustedFingerprint(ctx, "user-1", "hash-1", "chrome", "mac")
	require.NoError(t, err)

	token, err := h.svc.CheckAndInitVerifyFingerprint(ctx, "user-1", untrusted.FingerprintID, "web")
	require.NoError(t, err)

	h.clock.Advance(domain.TOTPPeriod)
	code, err := totp.GenerateCode(secret, h.clock.Now().UTC())
	require.NoError(t, err)

	session, err := h.svc.FingerprintTrustVerifyOTP(ctx, token, code)
	require.NoError(t, err)
	h.svc.Wait()

	assert.Equal(t, untrusted.FingerprintID, session.DeviceFingerprintID)

	trusted, err := h.fingerprints.GetByID(ctx, untrusted.FingerprintID)
	require.NoError(t, err)
	assert.True(t, trusted.IsTrusted)
}

func TestFingerprintTrustVerifyOTP_WrongCodeLeavesFingerprintUntrusted(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	_, secret, err := h.svc.Setup(ctx, "user-1", "user-1@example.com", "auth-service")
	require.NoError(t, err)
	setupCode, err := totp.GenerateCode(secret, h.clock.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, h.svc.Enable(ctx, "user-1", setupCode))

	untrusted, err := h.svc.CreateUntrustedFingerprint(ctx, "user-1", "hash-1", "chrome", "mac")
	require.NoError(t, err)

	token, err := h.svc.CheckAndInitVerifyFingerprint(ctx, "user-1", untrusted.FingerprintID, "web")
	require.NoError(t, err)

	_, err = h.svc.FingerprintTrustVerifyOTP(ctx, token, "000000")
	require.Error(t, err)

	record, err := h.fingerprints.GetByID(ctx, untrusted.FingerprintID)
	require.NoError(t, err)
	assert.False(t, record.IsTrusted)
}
