package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authplatform/auth-service/internal/auth"
	"github.com/authplatform/auth-service/internal/domain"
)

func TestStaticKeyStore(t *testing.T) {
	accessSecret := domain.SecretBytes("access-secret-at-least-32-bytes")
	store := auth.NewStaticKeyStore(map[auth.TokenKind]domain.SecretBytes{
		auth.TokenKindAccess: accessSecret,
	})

	t.Run("Secret returns configured secret", func(t *testing.T) {
		got, err := store.Secret(auth.TokenKindAccess)
		require.NoError(t, err)
		assert.Equal(t, accessSecret, got)
	})

	t.Run("Secret returns error for unconfigured kind", func(t *testing.T) {
		_, err := store.Secret(auth.TokenKindService)
		assert.Error(t, err)
	})

	t.Run("SetSecret adds or replaces a kind's secret", func(t *testing.T) {
		store.SetSecret(auth.TokenKindSession, domain.SecretBytes("session-secret-at-least-32-bytes"))

		got, err := store.Secret(auth.TokenKindSession)
		require.NoError(t, err)
		assert.Equal(t, domain.SecretBytes("session-secret-at-least-32-bytes"), got)
	})
}

func TestStaticKeyStore_Empty(t *testing.T) {
	store := auth.NewStaticKeyStore(nil)

	_, err := store.Secret(auth.TokenKindAccess)
	assert.Error(t, err)
}
