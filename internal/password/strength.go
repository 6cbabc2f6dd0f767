// Package password implements the Password Engine (C3): strength scoring,
// salted hashing/compare, change-password dissimilarity checking, and the
// symmetric encryption used to protect TOTP secrets at rest. Grounded in
// the pack's bcrypt/pquerna-otp auth slices (see DESIGN.md) — the teacher
// repo itself carries no password logic of its own, since it authenticates
// by phone+OTP rather than password.
package password

import (
	"strings"
	"unicode"

	"github.com/authplatform/auth-service/internal/domain"
)

// compromisedPatterns is a small case-insensitive substring blocklist.
// Not exhaustive — a real deployment would pull this from a maintained
// breach-corpus feed; this is the in-process floor.
var compromisedPatterns = []string{
	"password", "123456", "qwerty", "letmein", "admin", "welcome",
}

const symbolSet = "!@#$%^&*()_+-=[]{}|;:'\",.<>/?`~"

// StrengthResult is the structured, non-throwing outcome of a strength
// check: operations never panic or error for user-input reasons (§4.3).
type StrengthResult struct {
	OK       bool
	Score    int // 0-4
	Feedback []string
}

// CheckStrength scores pw against the rules in SPEC §4.3 and returns a
// structured result. Pass/fail is all-requirements-met AND score >= 3.
func CheckStrength(pw string) StrengthResult {
	var feedback []string
	requirementsMet := true

	if len(pw) < domain.PasswordMinLength {
		feedback = append(feedback, "password must be at least 8 characters")
		requirementsMet = false
	}

	hasUpper, hasLower, hasDigit, hasSymbol := classify(pw)
	if !hasUpper {
		feedback = append(feedback, "add an uppercase letter")
		requirementsMet = false
	}
	if !hasLower {
		feedback = append(feedback, "add a lowercase letter")
		requirementsMet = false
	}
	if !hasDigit {
		feedback = append(feedback, "add a digit")
		requirementsMet = false
	}
	if !hasSymbol {
		feedback = append(feedback, "add a symbol")
		requirementsMet = false
	}

	lower := strings.ToLower(pw)
	for _, pattern := range compromisedPatterns {
		if strings.Contains(lower, pattern) {
			feedback = append(feedback, "password contains a commonly breached pattern")
			requirementsMet = false
			break
		}
	}

	if hasTripleRepeat(pw) {
		feedback = append(feedback, "avoid repeating the same character three or more times in a row")
		requirementsMet = false
	}

	score := scoreOf(pw, hasUpper, hasLower, hasDigit, hasSymbol)

	return StrengthResult{
		OK:       requirementsMet && score >= domain.PasswordMinScore,
		Score:    score,
		Feedback: feedback,
	}
}

func classify(pw string) (hasUpper, hasLower, hasDigit, hasSymbol bool) {
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(symbolSet, r):
			hasSymbol = true
		}
	}
	return
}

// hasTripleRepeat reports whether pw contains the same rune three or more
// times consecutively (e.g. "aaa", "111").
func hasTripleRepeat(pw string) bool {
	runes := []rune(pw)
	run := 1
	for i := 1; i < len(runes); i++ {
		if runes[i] == runes[i-1] {
			run++
			if run >= 3 {
				return true
			}
		} else {
			run = 1
		}
	}
	return false
}

// scoreOf produces a 0-4 score: length tiers plus one point per character
// class present, capped at PasswordMaxScore.
func scoreOf(pw string, hasUpper, hasLower, hasDigit, hasSymbol bool) int {
	score := 0
	switch {
	case len(pw) >= 16:
		score += 2
	case len(pw) >= 12:
		score++
	}

	classes := 0
	for _, present := range []bool{hasUpper, hasLower, hasDigit, hasSymbol} {
		if present {
			classes++
		}
	}
	score += classes - 1 // one class alone contributes nothing extra
	if score < 0 {
		score = 0
	}
	if score > domain.PasswordMaxScore {
		score = domain.PasswordMaxScore
	}
	return score
}
