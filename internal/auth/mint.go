package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/authplatform/auth-service/internal/domain"
)

// MintResult holds the result of minting a token.
type MintResult struct {
	Token     string
	JTI       string
	ExpiresAt time.Time
}

// MinterConfig holds configuration shared by all token minters.
type MinterConfig struct {
	KeyStore KeyStore
	Issuer   string
	Audience string
	TTL      time.Duration
	Clock    domain.Clock
}

// AccessMinter mints access tokens: short-lived, bound to a session via the
// session_token claim (spec §4.1).
type AccessMinter struct {
	keyStore KeyStore
	issuer   string
	audience string
	ttl      time.Duration
	clock    domain.Clock
}

// NewAccessMinter creates an access-token minter.
func NewAccessMinter(cfg MinterConfig) *AccessMinter {
	return &AccessMinter{
		keyStore: cfg.KeyStore,
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		ttl:      cfg.TTL,
		clock:    cfg.Clock,
	}
}

// Mint creates a signed HS256 access token for the given user, bound to the
// given session token.
func (m *AccessMinter) Mint(userID, sessionToken string) (MintResult, error) {
	secret, err := m.keyStore.Secret(TokenKindAccess)
	if err != nil {
		return MintResult{}, fmt.Errorf("get access signing secret: %w", err)
	}

	now := m.clock.Now().UTC()
	jti := uuid.NewString()
	expiresAt := now.Add(m.ttl)

	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    m.issuer,
			Audience:  jwt.ClaimStrings{m.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        jti,
		},
		SessionToken: sessionToken,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims).SignedString(secret.Expose())
	if err != nil {
		return MintResult{}, fmt.Errorf("sign access token: %w", err)
	}

	return MintResult{Token: signed, JTI: jti, ExpiresAt: expiresAt}, nil
}

// SessionMinter mints session (refresh) tokens: long-lived, rotated on
// every refresh (spec §4.6).
type SessionMinter struct {
	keyStore KeyStore
	issuer   string
	audience string
	ttl      time.Duration
	clock    domain.Clock
}

// NewSessionMinter creates a session-token minter.
func NewSessionMinter(cfg MinterConfig) *SessionMinter {
	return &SessionMinter{
		keyStore: cfg.KeyStore,
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		ttl:      cfg.TTL,
		clock:    cfg.Clock,
	}
}

// Mint creates a signed HS256 session token for the given user.
func (m *SessionMinter) Mint(userID string) (MintResult, error) {
	secret, err := m.keyStore.Secret(TokenKindSession)
	if err != nil {
		return MintResult{}, fmt.Errorf("get session signing secret: %w", err)
	}

	now := m.clock.Now().UTC()
	jti := uuid.NewString()
	expiresAt := now.Add(m.ttl)

	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    m.issuer,
			Audience:  jwt.ClaimStrings{m.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        jti,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims).SignedString(secret.Expose())
	if err != nil {
		return MintResult{}, fmt.Errorf("sign session token: %w", err)
	}

	return MintResult{Token: signed, JTI: jti, ExpiresAt: expiresAt}, nil
}

// ServiceMinter mints outbound inter-service tokens (spec §4.10).
type ServiceMinter struct {
	keyStore    KeyStore
	issuer      string
	audience    string
	ttl         time.Duration
	clock       domain.Clock
	serviceName string
}

// NewServiceMinter creates a service-token minter. serviceName is this
// service's own identity, embedded as the "service" claim so the callee
// can check it against its expected-caller allowlist.
func NewServiceMinter(cfg MinterConfig, serviceName string) *ServiceMinter {
	return &ServiceMinter{
		keyStore:    cfg.KeyStore,
		issuer:      cfg.Issuer,
		audience:    cfg.Audience,
		ttl:         cfg.TTL,
		clock:       cfg.Clock,
		serviceName: serviceName,
	}
}

// Mint creates a signed HS256 service token identifying this service as the
// caller.
func (m *ServiceMinter) Mint() (MintResult, error) {
	secret, err := m.keyStore.Secret(TokenKindService)
	if err != nil {
		return MintResult{}, fmt.Errorf("get service signing secret: %w", err)
	}

	now := m.clock.Now().UTC()
	jti := uuid.NewString()
	expiresAt := now.Add(m.ttl)

	claims := ServiceClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Audience:  jwt.ClaimStrings{m.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        jti,
		},
		Service: m.serviceName,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims).SignedString(secret.Expose())
	if err != nil {
		return MintResult{}, fmt.Errorf("sign service token: %w", err)
	}

	return MintResult{Token: signed, JTI: jti, ExpiresAt: expiresAt}, nil
}
