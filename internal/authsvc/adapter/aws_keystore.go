package adapter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/authplatform/auth-service/internal/auth"
	"github.com/authplatform/auth-service/internal/domain"
)

// smClient is the narrow consumer-defined interface for Secrets Manager operations.
type smClient interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// Compile-time check: AWSKeyStore implements auth.KeyStore.
var _ auth.KeyStore = (*AWSKeyStore)(nil)

// AWSKeyStore implements auth.KeyStore by loading the three HMAC token
// secrets (access, session, service) from AWS Secrets Manager. Unlike this
// package's RSA-keypair ancestor there is no public/private split and no
// kid-based rotation — each token kind maps to exactly one named secret,
// and rotating it means writing a new secret value and waiting out the
// cache TTL rather than publishing a new key ID.
//
// All three secrets are eagerly loaded at construction time: the service
// MUST NOT start with any of them missing. The cache is refreshed lazily
// on read once it goes stale.
type AWSKeyStore struct {
	sm    smClient
	clock domain.Clock

	mu              sync.RWMutex
	secrets         map[auth.TokenKind]domain.SecretBytes
	secretsLoadedAt time.Time
	cacheTTL        time.Duration
}

const (
	// smAccessSecretName, smSessionSecretName, smServiceSecretName are the
	// Secrets Manager secret names for each HMAC token kind.
	smAccessSecretName  = "auth/jwt/access-secret"
	smSessionSecretName = "auth/jwt/session-secret"
	smServiceSecretName = "auth/jwt/service-secret"

	// defaultCacheTTL is the secret cache TTL (300s / 5 minutes), carried
	// over from the RSA keystore this adapter descends from.
	defaultCacheTTL = 300 * time.Second
)

// secretNameForKind maps a token kind to its Secrets Manager secret name.
func secretNameForKind(kind auth.TokenKind) (string, error) {
	switch kind {
	case auth.TokenKindAccess:
		return smAccessSecretName, nil
	case auth.TokenKindSession:
		return smSessionSecretName, nil
	case auth.TokenKindService:
		return smServiceSecretName, nil
	default:
		return "", fmt.Errorf("unknown token kind %q", kind)
	}
}

// NewAWSKeyStore creates an AWSKeyStore and eagerly loads all three HMAC
// secrets from Secrets Manager. Synchronous: no goroutines in constructors.
//
// Returns an error if any of the three secrets cannot be loaded — the
// service must not start half-configured.
func NewAWSKeyStore(ctx context.Context, sm smClient, clock domain.Clock) (*AWSKeyStore, error) {
	secrets, err := loadSecretsFromSM(ctx, sm)
	if err != nil {
		return nil, fmt.Errorf("loading HMAC secrets from Secrets Manager: %w", err)
	}

	return &AWSKeyStore{
		sm:              sm,
		clock:           clock,
		secrets:         secrets,
		secretsLoadedAt: clock.Now(),
		cacheTTL:        defaultCacheTTL,
	}, nil
}

// Secret returns the current HMAC secret for the given token kind. If the
// cache has gone stale (age > cacheTTL) it is refreshed inline before
// serving the read, so a rotated secret is picked up within one TTL window.
func (ks *AWSKeyStore) Secret(kind auth.TokenKind) (domain.SecretBytes, error) {
	if _, err := secretNameForKind(kind); err != nil {
		return nil, err
	}

	ks.mu.RLock()
	cacheExpired := ks.clock.Now().Sub(ks.secretsLoadedAt) > ks.cacheTTL
	secret, ok := ks.secrets[kind]
	ks.mu.RUnlock()

	if !cacheExpired && ok {
		return secret, nil
	}

	if err := ks.refreshSecrets(context.Background()); err != nil {
		if ok {
			// Serve the stale-but-known value rather than fail a request
			// outright over a transient Secrets Manager blip.
			return secret, nil
		}
		return nil, fmt.Errorf("refreshing secrets: %w", err)
	}

	ks.mu.RLock()
	secret, ok = ks.secrets[kind]
	ks.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no secret configured for token kind %q", kind)
	}
	return secret, nil
}

// refreshSecrets reloads all three secrets from Secrets Manager.
func (ks *AWSKeyStore) refreshSecrets(ctx context.Context) error {
	secrets, err := loadSecretsFromSM(ctx, ks.sm)
	if err != nil {
		return err
	}

	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.secrets = secrets
	ks.secretsLoadedAt = ks.clock.Now()
	return nil
}

// loadSecretsFromSM fetches all three HMAC secrets from Secrets Manager.
func loadSecretsFromSM(ctx context.Context, sm smClient) (map[auth.TokenKind]domain.SecretBytes, error) {
	kinds := []auth.TokenKind{auth.TokenKindAccess, auth.TokenKindSession, auth.TokenKindService}
	secrets := make(map[auth.TokenKind]domain.SecretBytes, len(kinds))

	for _, kind := range kinds {
		name, err := secretNameForKind(kind)
		if err != nil {
			return nil, err
		}

		out, err := sm.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
			SecretId: aws.String(name),
		})
		if err != nil {
			return nil, fmt.Errorf("fetching secret %q (kind %q): %w", name, kind, err)
		}
		if out.SecretString == nil {
			return nil, fmt.Errorf("secret %q (kind %q) has no secret string", name, kind)
		}

		secrets[kind] = domain.SecretBytes(*out.SecretString)
	}

	return secrets, nil
}
