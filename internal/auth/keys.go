package auth

import (
	"fmt"
	"sync"

	"github.com/authplatform/auth-service/internal/domain"
)

// TokenKind identifies which of the token families a Claims value or
// secret belongs to. Each kind is signed with its own secret, issuer, and
// audience, and carries its own lifetime.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindSession TokenKind = "session"
	TokenKindService TokenKind = "service"
)

// KeyStore provides the HMAC-SHA256 shared secret used to sign and verify
// tokens of a given kind. Implementations load secrets from Secrets
// Manager/SSM (production) or hold them in memory (testing). Unlike the
// RSA keystore this package's ancestor used, there is no public/private
// split and no kid-based rotation: signing and verification use the same
// secret.
type KeyStore interface {
	// Secret returns the current HMAC secret for the given token kind.
	Secret(kind TokenKind) (domain.SecretBytes, error)
}

// StaticKeyStore is a KeyStore backed by in-memory secrets. Use for local
// development and tests.
type StaticKeyStore struct {
	mu      sync.RWMutex
	secrets map[TokenKind]domain.SecretBytes
}

// NewStaticKeyStore creates a StaticKeyStore from a fixed set of secrets.
func NewStaticKeyStore(secrets map[TokenKind]domain.SecretBytes) *StaticKeyStore {
	cp := make(map[TokenKind]domain.SecretBytes, len(secrets))
	for k, v := range secrets {
		cp[k] = v
	}
	return &StaticKeyStore{secrets: cp}
}

// Secret returns the secret for the given kind.
func (s *StaticKeyStore) Secret(kind TokenKind) (domain.SecretBytes, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	secret, ok := s.secrets[kind]
	if !ok || secret.IsEmpty() {
		return nil, fmt.Errorf("no secret configured for token kind %q", kind)
	}
	return secret, nil
}

// SetSecret replaces the secret for a kind. Used by tests exercising secret
// rotation; production rotation happens by restarting with new AWS-backed
// secrets rather than in-process mutation.
func (s *StaticKeyStore) SetSecret(kind TokenKind, secret domain.SecretBytes) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[kind] = secret
}

var _ KeyStore = (*StaticKeyStore)(nil)
