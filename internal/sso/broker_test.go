package sso_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authplatform/auth-service/internal/domain"
	"github.com/authplatform/auth-service/internal/sso"
)

// fakeEphemeralStore round-trips values through JSON, just like the real
// Redis-backed internal/ephemeral.Store, so it works against sso.Broker's
// unexported handoff record without needing to know its type.
type fakeEphemeralStore struct {
	data map[string][]byte
	ttl  map[string]time.Duration
}

func newFakeEphemeralStore() *fakeEphemeralStore {
	return &fakeEphemeralStore{data: map[string][]byte{}, ttl: map[string]time.Duration{}}
}

func (f *fakeEphemeralStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.data[key] = encoded
	f.ttl[key] = ttl
	return nil
}

func (f *fakeEphemeralStore) GetAndDelete(_ context.Context, key string, dest any) error {
	v, ok := f.data[key]
	if !ok {
		return domain.ErrNotFound
	}
	delete(f.data, key)
	return json.Unmarshal(v, dest)
}

type fakeFingerprintChecker struct {
	fingerprintID string
	err           error
}

func (f *fakeFingerprintChecker) Check(_ context.Context, userID, fingerprintHash string) (string, error) {
	return f.fingerprintID, f.err
}

type fakeSessionCreator struct {
	calledWith struct {
		userID, fingerprintID, app string
	}
	result sso.SessionWithAccess
	err    error
}

func (f *fakeSessionCreator) Create(_ context.Context, userID, deviceFingerprintID, app string) (sso.SessionWithAccess, error) {
	f.calledWith.userID = userID
	f.calledWith.fingerprintID = deviceFingerprintID
	f.calledWith.app = app
	return f.result, f.err
}

type fakeTokenGenerator struct {
	token string
}

func (f *fakeTokenGenerator) GenerateOpaqueToken(length int) (string, error) {
	return f.token, nil
}

func TestBroker_Create(t *testing.T) {
	t.Run("issues a token when the fingerprint is trusted", func(t *testing.T) {
		store := newFakeEphemeralStore()
		broker := sso.New(sso.Config{
			Store:        store,
			Fingerprints: &fakeFingerprintChecker{fingerprintID: "fp-1"},
			Sessions:     &fakeSessionCreator{},
			Tokens:       &fakeTokenGenerator{token: "tok-123"},
		})

		token, err := broker.Create(context.Background(), "user-1", "web", "hashed-fingerprint")
		require.NoError(t, err)
		assert.Equal(t, "tok-123", token)

		_, ok := store.data["sso:tok-123"]
		assert.True(t, ok)
		assert.Equal(t, domain.SSOTokenLifetime, store.ttl["sso:tok-123"])
	})

	t.Run("propagates a not-found fingerprint error", func(t *testing.T) {
		broker := sso.New(sso.Config{
			Store:        newFakeEphemeralStore(),
			Fingerprints: &fakeFingerprintChecker{err: domain.ErrNotFound},
			Sessions:     &fakeSessionCreator{},
			Tokens:       &fakeTokenGenerator{token: "unused"},
		})

		_, err := broker.Create(context.Background(), "user-1", "web", "hashed-fingerprint")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestBroker_Validate(t *testing.T) {
	t.Run("unknown token reports invalid code", func(t *testing.T) {
		broker := sso.New(sso.Config{
			Store:        newFakeEphemeralStore(),
			Fingerprints: &fakeFingerprintChecker{},
			Sessions:     &fakeSessionCreator{},
			Tokens:       &fakeTokenGenerator{},
		})

		_, err := broker.Validate(context.Background(), "never-issued")
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrInvalidCode))
	})
}
