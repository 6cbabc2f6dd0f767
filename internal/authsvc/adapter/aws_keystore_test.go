package adapter

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authplatform/auth-service/internal/auth"
	"github.com/authplatform/auth-service/internal/domain/domaintest"
)

// stubSMClient implements smClient for testing.
type stubSMClient struct {
	getSecretValueFn func(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

func (s *stubSMClient) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	return s.getSecretValueFn(ctx, params, optFns...)
}

func defaultSecretValues() map[string]string {
	return map[string]string{
		smAccessSecretName:  "access-secret-value",
		smSessionSecretName: "session-secret-value",
		smServiceSecretName: "service-secret-value",
	}
}

// newValidSMStub returns a stub that serves values out of a map, tracking
// per-name call counts.
func newValidSMStub(values map[string]string, callCounts map[string]int) *stubSMClient {
	return &stubSMClient{
		getSecretValueFn: func(_ context.Context, params *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
			name := aws.ToString(params.SecretId)
			if callCounts != nil {
				callCounts[name]++
			}
			v, ok := values[name]
			if !ok {
				return nil, fmt.Errorf("unexpected secret ID: %s", name)
			}
			return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(v)}, nil
		},
	}
}

func TestNewAWSKeyStore(t *testing.T) {
	t.Run("loads all three secrets", func(t *testing.T) {
		sm := newValidSMStub(defaultSecretValues(), nil)
		clock := domaintest.NewFakeClock(time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC))

		ks, err := NewAWSKeyStore(context.Background(), sm, clock)

		require.NoError(t, err)
		require.NotNil(t, ks)
		assert.Len(t, ks.secrets, 3)

		access, err := ks.Secret(auth.TokenKindAccess)
		require.NoError(t, err)
		assert.Equal(t, "access-secret-value", string(access))

		session, err := ks.Secret(auth.TokenKindSession)
		require.NoError(t, err)
		assert.Equal(t, "session-secret-value", string(session))

		service, err := ks.Secret(auth.TokenKindService)
		require.NoError(t, err)
		assert.Equal(t, "service-secret-value", string(service))
	})
}

func TestNewAWSKeyStore_Errors(t *testing.T) {
	t.Run("Secrets Manager unavailable", func(t *testing.T) {
		sm := &stubSMClient{
			getSecretValueFn: func(_ context.Context, _ *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
				return nil, fmt.Errorf("secrets manager unavailable")
			},
		}
		clock := domaintest.NewFakeClock(time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC))

		ks, err := NewAWSKeyStore(context.Background(), sm, clock)

		require.Error(t, err)
		assert.Nil(t, ks)
		assert.Contains(t, err.Error(), "fetching secret")
	})

	t.Run("one secret missing SecretString", func(t *testing.T) {
		values := defaultSecretValues()
		sm := &stubSMClient{
			getSecretValueFn: func(_ context.Context, params *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
				name := aws.ToString(params.SecretId)
				if name == smServiceSecretName {
					return &secretsmanager.GetSecretValueOutput{SecretString: nil}, nil
				}
				return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(values[name])}, nil
			},
		}
		clock := domaintest.NewFakeClock(time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC))

		ks, err := NewAWSKeyStore(context.Background(), sm, clock)

		require.Error(t, err)
		assert.Nil(t, ks)
		assert.Contains(t, err.Error(), "has no secret string")
	})
}

func TestAWSKeyStore_Secret(t *testing.T) {
	t.Run("found in cache returns immediately without refetch", func(t *testing.T) {
		callCounts := map[string]int{}
		sm := newValidSMStub(defaultSecretValues(), callCounts)
		clock := domaintest.NewFakeClock(time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC))
		ks, err := NewAWSKeyStore(context.Background(), sm, clock)
		require.NoError(t, err)

		initial := callCounts[smAccessSecretName]

		secret, err := ks.Secret(auth.TokenKindAccess)

		require.NoError(t, err)
		assert.Equal(t, "access-secret-value", string(secret))
		assert.Equal(t, initial, callCounts[smAccessSecretName])
	})

	t.Run("unknown token kind returns error", func(t *testing.T) {
		sm := newValidSMStub(defaultSecretValues(), nil)
		clock := domaintest.NewFakeClock(time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC))
		ks, err := NewAWSKeyStore(context.Background(), sm, clock)
		require.NoError(t, err)

		secret, err := ks.Secret(auth.TokenKind("bogus"))

		require.Error(t, err)
		assert.Nil(t, secret)
	})

	t.Run("cache TTL expired triggers refresh and picks up rotated value", func(t *testing.T) {
		values := defaultSecretValues()
		callCounts := map[string]int{}
		sm := newValidSMStub(values, callCounts)
		clock := domaintest.NewFakeClock(time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC))
		ks, err := NewAWSKeyStore(context.Background(), sm, clock)
		require.NoError(t, err)

		initial := callCounts[smAccessSecretName]

		clock.Advance(301 * time.Second)
		values[smAccessSecretName] = "rotated-access-secret"

		secret, err := ks.Secret(auth.TokenKindAccess)

		require.NoError(t, err)
		assert.Equal(t, "rotated-access-secret", string(secret))
		assert.Greater(t, callCounts[smAccessSecretName], initial)
	})

	t.Run("refresh failure after TTL expiry serves stale cached value", func(t *testing.T) {
		sm := newValidSMStub(defaultSecretValues(), nil)
		clock := domaintest.NewFakeClock(time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC))
		ks, err := NewAWSKeyStore(context.Background(), sm, clock)
		require.NoError(t, err)

		clock.Advance(301 * time.Second)
		sm.getSecretValueFn = func(_ context.Context, _ *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
			return nil, fmt.Errorf("secrets manager temporarily unavailable")
		}

		secret, err := ks.Secret(auth.TokenKindAccess)

		require.NoError(t, err)
		assert.Equal(t, "access-secret-value", string(secret))
	})
}
