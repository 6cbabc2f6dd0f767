// Package domain contains pure business logic and types.
// No external dependencies allowed - this is the innermost ring of Clean Architecture.
package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// UserID is a value object representing the opaque identifier of a user
// record owned by the remote user-profile service. This core never
// constructs a User itself — it only carries the ID through.
type UserID struct {
	value string
}

// NewUserID creates a UserID from a raw string, validating it is a valid UUID.
func NewUserID(raw string) (UserID, error) {
	if raw == "" {
		return UserID{}, ErrEmptyID
	}
	if _, err := uuid.Parse(raw); err != nil {
		return UserID{}, fmt.Errorf("invalid user ID %q: %w", raw, ErrInvalidID)
	}
	return UserID{value: raw}, nil
}

// MustUserID creates a UserID, panicking on invalid input. Use only in tests.
func MustUserID(raw string) UserID {
	id, err := NewUserID(raw)
	if err != nil {
		panic(err)
	}
	return id
}

// GenerateUserID creates a new random UserID.
func GenerateUserID() UserID {
	return UserID{value: uuid.NewString()}
}

func (id UserID) String() string { return id.value }
func (id UserID) IsZero() bool   { return id.value == "" }

// FingerprintID is a value object representing a DeviceFingerprint record's
// identifier.
type FingerprintID struct {
	value string
}

// NewFingerprintID creates a FingerprintID from a raw string, validating it
// is a valid UUID.
func NewFingerprintID(raw string) (FingerprintID, error) {
	if raw == "" {
		return FingerprintID{}, ErrEmptyID
	}
	if _, err := uuid.Parse(raw); err != nil {
		return FingerprintID{}, fmt.Errorf("invalid fingerprint ID %q: %w", raw, ErrInvalidID)
	}
	return FingerprintID{value: raw}, nil
}

// MustFingerprintID creates a FingerprintID, panicking on invalid input. Use only in tests.
func MustFingerprintID(raw string) FingerprintID {
	id, err := NewFingerprintID(raw)
	if err != nil {
		panic(err)
	}
	return id
}

// GenerateFingerprintID creates a new random FingerprintID.
func GenerateFingerprintID() FingerprintID {
	return FingerprintID{value: uuid.NewString()}
}

func (id FingerprintID) String() string { return id.value }
func (id FingerprintID) IsZero() bool   { return id.value == "" }

// SessionID is a value object representing a unique session record identifier.
// Distinct from the session_token: SessionID identifies the Session row,
// session_token is the rotating bearer credential it carries.
type SessionID struct {
	value string
}

// NewSessionID creates a SessionID from a raw string, validating it is a valid UUID.
func NewSessionID(raw string) (SessionID, error) {
	if raw == "" {
		return SessionID{}, ErrEmptyID
	}
	if _, err := uuid.Parse(raw); err != nil {
		return SessionID{}, fmt.Errorf("invalid session ID %q: %w", raw, ErrInvalidID)
	}
	return SessionID{value: raw}, nil
}

// MustSessionID creates a SessionID, panicking on invalid input. Use only in tests.
func MustSessionID(raw string) SessionID {
	id, err := NewSessionID(raw)
	if err != nil {
		panic(err)
	}
	return id
}

// GenerateSessionID creates a new random SessionID.
func GenerateSessionID() SessionID {
	return SessionID{value: uuid.NewString()}
}

func (id SessionID) String() string { return id.value }
func (id SessionID) IsZero() bool   { return id.value == "" }
