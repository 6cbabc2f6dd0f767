package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/authplatform/auth-service/internal/domain"
)

// Validator validates a single kind of HMAC-signed token. Callers build one
// Validator per token kind (access, session, service) since each kind has
// its own secret, issuer, and audience.
type Validator struct {
	keyStore KeyStore
	kind     TokenKind
	issuer   string
	audience string
	clock    domain.Clock
}

// ValidatorConfig holds configuration for creating a Validator.
type ValidatorConfig struct {
	KeyStore KeyStore
	Kind     TokenKind
	Issuer   string
	Audience string
	Clock    domain.Clock
}

// NewValidator creates a new token validator for a single kind.
func NewValidator(cfg ValidatorConfig) *Validator {
	return &Validator{
		keyStore: cfg.KeyStore,
		kind:     cfg.Kind,
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		clock:    cfg.Clock,
	}
}

// ValidateAccess parses and validates an access token.
func (v *Validator) ValidateAccess(tokenString string) (*AccessClaims, error) {
	var claims AccessClaims
	if err := v.parse(tokenString, &claims); err != nil {
		return nil, err
	}
	if claims.SessionToken == "" {
		return nil, fmt.Errorf("missing session_token claim: %w", domain.ErrUnauthorized)
	}
	return &claims, nil
}

// ValidateSession parses and validates a session (refresh) token.
func (v *Validator) ValidateSession(tokenString string) (*SessionClaims, error) {
	var claims SessionClaims
	if err := v.parse(tokenString, &claims); err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("missing sub claim: %w", domain.ErrUnauthorized)
	}
	return &claims, nil
}

// ValidateService parses and validates an inter-service token.
func (v *Validator) ValidateService(tokenString string) (*ServiceClaims, error) {
	var claims ServiceClaims
	if err := v.parse(tokenString, &claims); err != nil {
		return nil, err
	}
	if claims.Service == "" {
		return nil, fmt.Errorf("missing service claim: %w", domain.ErrUnauthorized)
	}
	return &claims, nil
}

// parse runs the shared validation pipeline: signature, issuer, audience,
// expiry. Every failure mode collapses to domain.ErrUnauthorized — callers
// at the HTTP boundary must not be able to distinguish "bad signature" from
// "expired" from "wrong audience".
func (v *Validator) parse(tokenString string, claims jwt.Claims) error {
	opts := []jwt.ParserOption{
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(v.clock.Now),
		jwt.WithExpirationRequired(),
	}

	if _, err := jwt.ParseWithClaims(tokenString, claims, v.keyFunc, opts...); err != nil {
		return fmt.Errorf("invalid token: %w", domain.ErrUnauthorized)
	}
	return nil
}

// keyFunc resolves the verification secret for the token's kind. Checking
// the signing method's concrete type before trusting it prevents the
// classic algorithm-substitution attack (e.g. a token claiming "alg": "none"
// or swapping HMAC for an asymmetric method the caller never configured).
func (v *Validator) keyFunc(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}

	secret, err := v.keyStore.Secret(v.kind)
	if err != nil {
		return nil, err
	}
	return secret.Expose(), nil
}
