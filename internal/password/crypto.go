package password

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// otpEncryptionAAD is the constant additional-authenticated-data label for
// TOTP-secret-at-rest encryption (§3's "AAD = constant service label").
const otpEncryptionAAD = "auth-service:otp-secret"

const (
	pbkdf2Iterations = 100_000
	pbkdf2KeyLen     = 32 // AES-256
	saltLen          = 16
)

// EncryptSecret encrypts plaintext (a TOTP base32 secret) under key using
// AES-256-GCM with a per-call random salt and PBKDF2-derived key, per the
// OtpConfig.otp_secret_encrypted contract in §3. The output encodes
// salt || nonce || ciphertext, base64-url-encoded, so it is ready to
// persist as a single string column.
func EncryptSecret(key, plaintext []byte) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("password: encrypt secret: generating salt: %w", err)
	}

	derivedKey := pbkdf2.Key(key, salt, pbkdf2Iterations, pbkdf2KeyLen, sha256.New)

	block, err := aes.NewCipher(derivedKey)
	if err != nil {
		return "", fmt.Errorf("password: encrypt secret: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("password: encrypt secret: new gcm: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("password: encrypt secret: generating nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, []byte(otpEncryptionAAD))

	out := make([]byte, 0, len(salt)+len(nonce)+len(ciphertext))
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, ciphertext...)

	return base64.URLEncoding.EncodeToString(out), nil
}

// DecryptSecret reverses EncryptSecret.
func DecryptSecret(key []byte, encoded string) ([]byte, error) {
	raw, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("password: decrypt secret: decode: %w", err)
	}
	if len(raw) < saltLen {
		return nil, errors.New("password: decrypt secret: ciphertext too short")
	}

	salt, rest := raw[:saltLen], raw[saltLen:]
	derivedKey := pbkdf2.Key(key, salt, pbkdf2Iterations, pbkdf2KeyLen, sha256.New)

	block, err := aes.NewCipher(derivedKey)
	if err != nil {
		return nil, fmt.Errorf("password: decrypt secret: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("password: decrypt secret: new gcm: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(rest) < nonceSize {
		return nil, errors.New("password: decrypt secret: ciphertext too short")
	}
	nonce, ciphertext := rest[:nonceSize], rest[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, []byte(otpEncryptionAAD))
	if err != nil {
		return nil, fmt.Errorf("password: decrypt secret: %w", err)
	}
	return plaintext, nil
}
