package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// codeAlphabet is the URL-safe alphabet verification codes are drawn from.
// Excludes visually ambiguous characters (0/O, 1/I/l) since these codes are
// sometimes read aloud or copied by hand from an email.
const codeAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnpqrstuvwxyz"

// GenerateVerificationCode generates a cryptographically random 6-character
// opaque code from codeAlphabet. Used for register_info verification,
// device-fingerprint email verification, and change-password verification
// (spec §3's ephemeral-record table) — each of these is looked up by the
// code itself as the ephemeral-store key, so the code need not be signed or
// bound to anything beyond what the stored value already carries.
func GenerateVerificationCode() (string, error) {
	return randomString(6)
}

// GenerateOpaqueToken generates a cryptographically random opaque token of
// the given length, drawn from codeAlphabet. Used for SSO handoff tokens,
// login-session tokens, fingerprint-verification session tokens, and
// wallet-pass tokens — all single-use bearer strings resolved by exact
// lookup in the ephemeral store, never parsed or verified as a JWT.
func GenerateOpaqueToken(length int) (string, error) {
	if length < 1 {
		return "", fmt.Errorf("opaque token length must be positive, got %d", length)
	}
	return randomString(length)
}

// randomString draws length characters from codeAlphabet using rejection
// sampling via crypto/rand, avoiding the modulo bias a naive byte%n would
// introduce.
func randomString(length int) (string, error) {
	n := big.NewInt(int64(len(codeAlphabet)))
	out := make([]byte, length)
	for i := range out {
		idx, err := rand.Int(rand.Reader, n)
		if err != nil {
			return "", fmt.Errorf("generate random string: %w", err)
		}
		out[i] = codeAlphabet[idx.Int64()]
	}
	return string(out), nil
}
