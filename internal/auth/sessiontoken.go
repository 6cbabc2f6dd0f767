package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashSessionToken returns the SHA-256 hex digest of a session token.
//
// Session Manager stores this hash (not the live token) as PrevTokenHash
// when a session is rotated, so that a second refresh attempt presenting
// the just-replaced token can be recognized as reuse rather than simply
// "not found" — the reuse-detection supplement to spec §4.6/§5.
func HashSessionToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// ValidateSessionTokenHash reports whether token hashes to storedHash,
// using constant-time comparison.
func ValidateSessionTokenHash(token, storedHash string) bool {
	candidate := HashSessionToken(token)
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(storedHash)) == 1
}
