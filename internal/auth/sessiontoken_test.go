package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/authplatform/auth-service/internal/auth"
)

func TestHashSessionToken(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		h1 := auth.HashSessionToken("some-token")
		h2 := auth.HashSessionToken("some-token")
		assert.Equal(t, h1, h2)
	})

	t.Run("different tokens produce different hashes", func(t *testing.T) {
		h1 := auth.HashSessionToken("token-a")
		h2 := auth.HashSessionToken("token-b")
		assert.NotEqual(t, h1, h2)
	})

	t.Run("produces 64-char hex SHA-256", func(t *testing.T) {
		h := auth.HashSessionToken("some-token")
		assert.Len(t, h, 64)
	})
}

func TestValidateSessionTokenHash(t *testing.T) {
	token := "eyJhbGciOiJIUzI1NiJ9.payload.signature"
	hash := auth.HashSessionToken(token)

	t.Run("matching token validates", func(t *testing.T) {
		assert.True(t, auth.ValidateSessionTokenHash(token, hash))
	})

	t.Run("different token rejects", func(t *testing.T) {
		assert.False(t, auth.ValidateSessionTokenHash("wrong-token", hash))
	})

	t.Run("empty token rejects", func(t *testing.T) {
		assert.False(t, auth.ValidateSessionTokenHash("", hash))
	})
}
