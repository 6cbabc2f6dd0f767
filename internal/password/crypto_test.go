package password_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authplatform/auth-service/internal/password"
)

func TestEncryptDecryptSecret(t *testing.T) {
	key := []byte("a-totp-master-key-held-in-kms")
	secret := []byte("JBSWY3DPEHPK3PXP")

	t.Run("round trips", func(t *testing.T) {
		ciphertext, err := password.EncryptSecret(key, secret)
		require.NoError(t, err)
		assert.NotContains(t, ciphertext, "JBSWY3DPEHPK3PXP")

		plaintext, err := password.DecryptSecret(key, ciphertext)
		require.NoError(t, err)
		assert.Equal(t, secret, plaintext)
	})

	t.Run("encrypting twice produces different ciphertext", func(t *testing.T) {
		first, err := password.EncryptSecret(key, secret)
		require.NoError(t, err)
		second, err := password.EncryptSecret(key, secret)
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
	})

	t.Run("wrong key fails to decrypt", func(t *testing.T) {
		ciphertext, err := password.EncryptSecret(key, secret)
		require.NoError(t, err)

		_, err = password.DecryptSecret([]byte("a-different-master-key"), ciphertext)
		assert.Error(t, err)
	})

	t.Run("tampered ciphertext fails to decrypt", func(t *testing.T) {
		ciphertext, err := password.EncryptSecret(key, secret)
		require.NoError(t, err)

		tampered := []byte(ciphertext)
		tampered[len(tampered)-1] ^= 0x01
		_, err = password.DecryptSecret(key, string(tampered))
		assert.Error(t, err)
	})
}
