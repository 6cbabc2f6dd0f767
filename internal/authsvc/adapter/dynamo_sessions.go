package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/authplatform/auth-service/internal/domain"
	"github.com/authplatform/auth-service/internal/dynamo"
)

// sessionDynamoDB is a narrow, consumer-defined interface for DynamoDB operations
// required by the session store. The *dynamodb.Client satisfies this interface.
type sessionDynamoDB interface {
	GetItem(ctx context.Context, params *dynamo.GetItemInput, optFns ...func(*dynamo.Options)) (*dynamo.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamo.PutItemInput, optFns ...func(*dynamo.Options)) (*dynamo.PutItemOutput, error)
	Query(ctx context.Context, params *dynamo.QueryInput, optFns ...func(*dynamo.Options)) (*dynamo.QueryOutput, error)
	UpdateItem(ctx context.Context, params *dynamo.UpdateItemInput, optFns ...func(*dynamo.Options)) (*dynamo.UpdateItemOutput, error)
}

// sessionItem is the DynamoDB item shape for the sessions table.
type sessionItem struct {
	SessionID           string `dynamodbav:"session_id"`
	UserID              string `dynamodbav:"user_id"`
	DeviceFingerprintID string `dynamodbav:"device_fingerprint_id"`
	App                 string `dynamodbav:"app"`
	SessionTokenHash    string `dynamodbav:"session_token_hash"`
	PrevTokenHash       string `dynamodbav:"prev_token_hash"`
	IsActive            bool   `dynamodbav:"is_active"`
	CreatedAt           string `dynamodbav:"created_at"`
	LastUsedAt          string `dynamodbav:"last_used_at"`
	ExpiresAt           string `dynamodbav:"expires_at"`
	RevokedAt           string `dynamodbav:"revoked_at"`
	TTL                 int64  `dynamodbav:"ttl"`
}

// SessionRecord is the adapter-level representation of a session.
type SessionRecord struct {
	SessionID           string
	UserID              string
	DeviceFingerprintID string
	App                 string
	SessionTokenHash    string
	PrevTokenHash       string
	IsActive            bool
	CreatedAt           string
	LastUsedAt          string
	ExpiresAt           string
	RevokedAt           string
	TTL                 int64
}

// SessionRotation holds the fields written when a session_token is rotated.
// The prior hash moves to PrevTokenHash so a second refresh presenting the
// just-replaced token can be recognized as reuse (see auth.HashSessionToken).
type SessionRotation struct {
	SessionTokenHash string
	PrevTokenHash    string
	LastUsedAt       string
	ExpiresAt        string
	TTL              int64
}

// SessionStore persists session records in DynamoDB.
type SessionStore struct {
	db        sessionDynamoDB
	tableName string
	indexName string
	clock     domain.Clock
}

// NewSessionStore creates a SessionStore backed by the given DynamoDB client.
func NewSessionStore(db sessionDynamoDB, tableName string, clock domain.Clock) *SessionStore {
	return &SessionStore{
		db:        db,
		tableName: tableName,
		indexName: "user_sessions-index",
		clock:     clock,
	}
}

// Create writes a new session record to DynamoDB.
// Returns domain.ErrAlreadyExists if a session with the same ID already exists.
func (s *SessionStore) Create(ctx context.Context, session SessionRecord) error {
	item := sessionItem(session)

	av, err := dynamo.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("session store: marshal session: %w", err)
	}

	condExpr := "attribute_not_exists(session_id)"

	_, err = s.db.PutItem(ctx, &dynamo.PutItemInput{
		TableName:           &s.tableName,
		Item:                av,
		ConditionExpression: &condExpr,
	})
	if err != nil {
		if dynamo.IsConditionalCheckFailed(err) {
			return fmt.Errorf("session store: create: %w", domain.ErrAlreadyExists)
		}
		return fmt.Errorf("session store: create: %w", err)
	}

	return nil
}

// GetByID retrieves a session record by session ID using a strongly consistent read.
// Returns domain.ErrNotFound when no session exists for the given ID.
func (s *SessionStore) GetByID(ctx context.Context, sessionID string) (*SessionRecord, error) {
	consistentRead := true

	out, err := s.db.GetItem(ctx, &dynamo.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]dynamo.AttributeValue{
			"session_id": &dynamo.AttributeValueMemberS{Value: sessionID},
		},
		ConsistentRead: &consistentRead,
	})
	if err != nil {
		return nil, fmt.Errorf("session store: get by id: %w", err)
	}

	if out.Item == nil {
		return nil, fmt.Errorf("session store: get by id: %w", domain.ErrNotFound)
	}

	return s.unmarshalSession(out.Item)
}

// GetByTokenHash looks up a session by its current session_token_hash via
// the session_token-index GSI. Used by C6.validate_session/validate_access
// and refresh, all of which only ever see the live token, never the
// session_id. Returns domain.ErrNotFound if no session carries that hash
// (expired TTL, already rotated past it, or never existed).
func (s *SessionStore) GetByTokenHash(ctx context.Context, tokenHash string) (*SessionRecord, error) {
	keyExpr := "session_token_hash = :sth"
	tokenIndexName := "session_token-index"

	out, err := s.db.Query(ctx, &dynamo.QueryInput{
		TableName:              &s.tableName,
		IndexName:              &tokenIndexName,
		KeyConditionExpression: &keyExpr,
		ExpressionAttributeValues: map[string]dynamo.AttributeValue{
			":sth": &dynamo.AttributeValueMemberS{Value: tokenHash},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("session store: get by token hash: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("session store: get by token hash: %w", domain.ErrNotFound)
	}

	return s.unmarshalSession(out.Items[0])
}

// GetByPrevTokenHash looks up a session by its prev_token_hash via the
// session_prev_token-index GSI. A hit here means the caller presented a
// session_token that was already rotated away — the reuse-detection
// supplement (§12) revokes the session immediately rather than treating it
// as an ordinary not-found.
func (s *SessionStore) GetByPrevTokenHash(ctx context.Context, tokenHash string) (*SessionRecord, error) {
	keyExpr := "prev_token_hash = :pth"
	prevIndexName := "session_prev_token-index"

	out, err := s.db.Query(ctx, &dynamo.QueryInput{
		TableName:              &s.tableName,
		IndexName:              &prevIndexName,
		KeyConditionExpression: &keyExpr,
		ExpressionAttributeValues: map[string]dynamo.AttributeValue{
			":pth": &dynamo.AttributeValueMemberS{Value: tokenHash},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("session store: get by prev token hash: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("session store: get by prev token hash: %w", domain.ErrNotFound)
	}

	return s.unmarshalSession(out.Items[0])
}

// ListActiveByUser retrieves all is_active=true sessions for a user via the
// user_sessions-index GSI, per C6's list_active contract.
func (s *SessionStore) ListActiveByUser(ctx context.Context, userID string) ([]SessionRecord, error) {
	keyExpr := "user_id = :uid"
	filterExpr := "is_active = :active"

	out, err := s.db.Query(ctx, &dynamo.QueryInput{
		TableName:              &s.tableName,
		IndexName:              &s.indexName,
		KeyConditionExpression: &keyExpr,
		FilterExpression:       &filterExpr,
		ExpressionAttributeValues: map[string]dynamo.AttributeValue{
			":uid":    &dynamo.AttributeValueMemberS{Value: userID},
			":active": &dynamo.AttributeValueMemberBOOL{Value: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("session store: list active by user: %w", err)
	}

	return s.unmarshalAll(out.Items)
}

// ListByDeviceFingerprint retrieves sessions bound to a device fingerprint,
// used to fan out revocation when a fingerprint is revoked (§4.5).
func (s *SessionStore) ListByDeviceFingerprint(ctx context.Context, userID, deviceFingerprintID string) ([]SessionRecord, error) {
	keyExpr := "user_id = :uid"
	filterExpr := "device_fingerprint_id = :fp"

	out, err := s.db.Query(ctx, &dynamo.QueryInput{
		TableName:              &s.tableName,
		IndexName:              &s.indexName,
		KeyConditionExpression: &keyExpr,
		FilterExpression:       &filterExpr,
		ExpressionAttributeValues: map[string]dynamo.AttributeValue{
			":uid": &dynamo.AttributeValueMemberS{Value: userID},
			":fp":  &dynamo.AttributeValueMemberS{Value: deviceFingerprintID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("session store: list by device fingerprint: %w", err)
	}

	return s.unmarshalAll(out.Items)
}

// Rotate applies a SessionRotation to the session identified by sessionID.
// This is the refresh-token-rotation write: new hash, prev_token_hash, bumped
// expiry and TTL, all in a single update so the old session_token becomes
// unusable atomically.
func (s *SessionStore) Rotate(ctx context.Context, sessionID string, rotation SessionRotation) error {
	updateExpr := "SET session_token_hash = :sth, prev_token_hash = :pth, last_used_at = :lua, expires_at = :ea, #ttl = :ttl"

	_, err := s.db.UpdateItem(ctx, &dynamo.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]dynamo.AttributeValue{
			"session_id": &dynamo.AttributeValueMemberS{Value: sessionID},
		},
		UpdateExpression: &updateExpr,
		ExpressionAttributeNames: map[string]string{
			"#ttl": "ttl",
		},
		ExpressionAttributeValues: map[string]dynamo.AttributeValue{
			":sth": &dynamo.AttributeValueMemberS{Value: rotation.SessionTokenHash},
			":pth": &dynamo.AttributeValueMemberS{Value: rotation.PrevTokenHash},
			":lua": &dynamo.AttributeValueMemberS{Value: rotation.LastUsedAt},
			":ea":  &dynamo.AttributeValueMemberS{Value: rotation.ExpiresAt},
			":ttl": &dynamo.AttributeValueMemberN{Value: fmt.Sprintf("%d", rotation.TTL)},
		},
	})
	if err != nil {
		return fmt.Errorf("session store: rotate: %w", err)
	}

	return nil
}

// Revoke flips is_active=false and stamps revoked_at for a single session.
// Idempotent: revoking an already-revoked session succeeds without error.
func (s *SessionStore) Revoke(ctx context.Context, sessionID string) error {
	now := s.clock.Now().UTC().Format(time.RFC3339)
	updateExpr := "SET is_active = :inactive, revoked_at = :now"

	_, err := s.db.UpdateItem(ctx, &dynamo.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]dynamo.AttributeValue{
			"session_id": &dynamo.AttributeValueMemberS{Value: sessionID},
		},
		UpdateExpression: &updateExpr,
		ExpressionAttributeValues: map[string]dynamo.AttributeValue{
			":inactive": &dynamo.AttributeValueMemberBOOL{Value: false},
			":now":      &dynamo.AttributeValueMemberS{Value: now},
		},
	})
	if err != nil {
		return fmt.Errorf("session store: revoke: %w", err)
	}

	return nil
}

func (s *SessionStore) unmarshalAll(items []map[string]dynamo.AttributeValue) ([]SessionRecord, error) {
	sessions := make([]SessionRecord, 0, len(items))
	for _, item := range items {
		rec, err := s.unmarshalSession(item)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *rec)
	}
	return sessions, nil
}

// unmarshalSession converts a DynamoDB attribute map into a SessionRecord.
func (s *SessionStore) unmarshalSession(item map[string]dynamo.AttributeValue) (*SessionRecord, error) {
	var si sessionItem
	if err := dynamo.UnmarshalMap(item, &si); err != nil {
		return nil, fmt.Errorf("session store: unmarshal session: %w", err)
	}

	rec := SessionRecord(si)
	return &rec, nil
}
