package password

import (
	"fmt"

	"github.com/agnivade/levenshtein"
	"golang.org/x/crypto/bcrypt"

	"github.com/authplatform/auth-service/internal/domain"
)

// Hash bcrypt-hashes pw at domain.BcryptCost.
func Hash(pw string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(pw), domain.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("password: hash: %w", err)
	}
	return string(hashed), nil
}

// Compare reports whether pw matches hash, in constant time via bcrypt's
// own comparison. A mismatch is not an error — callers translate a false
// return into domain.ErrInvalidCredentials.
func Compare(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// TooSimilar reports whether newPw is too similar to oldPw for a password
// change to be accepted: normalized Levenshtein similarity exceeding
// domain.PasswordResetSimilarityCap (§4.3).
func TooSimilar(oldPw, newPw string) bool {
	return similarity(oldPw, newPw) > domain.PasswordResetSimilarityCap
}

// similarity computes normalized Levenshtein similarity in [0, 1]: 1 means
// identical, 0 means completely dissimilar.
func similarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	maxLen := len([]rune(a))
	if bl := len([]rune(b)); bl > maxLen {
		maxLen = bl
	}
	if maxLen == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(maxLen)
}
