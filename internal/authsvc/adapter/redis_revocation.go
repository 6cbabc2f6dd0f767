package adapter

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/authplatform/auth-service/internal/domain"
	redisclient "github.com/authplatform/auth-service/internal/redis"
)

const (
	// revokedJTIPrefix is the Redis key prefix for revoked JTI entries.
	// Key pattern: revoked_jti:{jti}.
	revokedJTIPrefix = "revoked_jti:"

	// revokedJTITTL is the fixed TTL for revoked JTI entries: the max
	// access-token lifetime, so an entry never outlives every token it
	// could possibly need to shadow. Fixed rather than dynamic (exp - now)
	// for uniform handling across all revocation paths, including
	// admin-initiated revocations with no token in hand.
	revokedJTITTL = domain.AccessTokenLifetime
)

// RevocationStore implements JTI revocation backed by Redis.
// All methods fail closed: Redis errors on reads result in treating the
// token as revoked (deny access).
type RevocationStore struct {
	cmd redisclient.Cmdable
}

// NewRevocationStore creates a RevocationStore that uses cmd for Redis operations.
func NewRevocationStore(cmd redisclient.Cmdable) *RevocationStore {
	return &RevocationStore{cmd: cmd}
}

// Revoke marks a JTI as revoked by setting a key with a fixed TTL. Written
// on logout, session revoke, and session-token reuse detection.
func (s *RevocationStore) Revoke(ctx context.Context, jti string) error {
	ctx, span := tracer.Start(ctx, "redis.revocation.revoke")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "redis"),
		attribute.String("db.operation", "SET"),
	)

	key := revokedJTIPrefix + jti
	err := s.cmd.Set(ctx, key, "1", revokedJTITTL).Err()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("revoke JTI %q: %w", jti, err)
	}

	return nil
}

// IsRevoked checks whether a JTI has been revoked.
// Returns (true, nil) if revoked, (false, nil) if not revoked, and
// (true, err) on Redis failure (fail-closed: treat as revoked when the
// revocation store is unavailable).
func (s *RevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	ctx, span := tracer.Start(ctx, "redis.revocation.is_revoked")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "redis"),
		attribute.String("db.operation", "EXISTS"),
	)

	key := revokedJTIPrefix + jti
	result, err := s.cmd.Exists(ctx, key).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return true, fmt.Errorf("check revocation %q: %w", jti, err)
	}

	return result > 0, nil
}
