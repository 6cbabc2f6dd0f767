package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/authplatform/auth-service/internal/domain"
	"github.com/authplatform/auth-service/internal/dynamo"
)

// fingerprintDynamoDB is a narrow, consumer-defined interface for DynamoDB
// operations required by the device fingerprint store. The *dynamodb.Client
// satisfies this interface.
type fingerprintDynamoDB interface {
	GetItem(ctx context.Context, params *dynamo.GetItemInput, optFns ...func(*dynamo.Options)) (*dynamo.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamo.PutItemInput, optFns ...func(*dynamo.Options)) (*dynamo.PutItemOutput, error)
	Query(ctx context.Context, params *dynamo.QueryInput, optFns ...func(*dynamo.Options)) (*dynamo.QueryOutput, error)
	UpdateItem(ctx context.Context, params *dynamo.UpdateItemInput, optFns ...func(*dynamo.Options)) (*dynamo.UpdateItemOutput, error)
}

// fingerprintItem is the DynamoDB item shape for the device_fingerprints table.
type fingerprintItem struct {
	FingerprintID   string `dynamodbav:"fingerprint_id"`
	UserID          string `dynamodbav:"user_id"`
	FingerprintHash string `dynamodbav:"fingerprint_hash"`
	Browser         string `dynamodbav:"browser"`
	Device          string `dynamodbav:"device"`
	IsTrusted       bool   `dynamodbav:"is_trusted"`
	CreatedAt       string `dynamodbav:"created_at"`
	UpdatedAt       string `dynamodbav:"updated_at"`
}

// FingerprintRecord is the adapter-level representation of a device fingerprint.
type FingerprintRecord struct {
	FingerprintID   string
	UserID          string
	FingerprintHash string
	Browser         string
	Device          string
	IsTrusted       bool
	CreatedAt       string
	UpdatedAt       string
}

// FingerprintStore persists device fingerprint records in DynamoDB.
type FingerprintStore struct {
	db        fingerprintDynamoDB
	tableName string
	indexName string
	clock     domain.Clock
}

// NewFingerprintStore creates a FingerprintStore backed by the given DynamoDB client.
func NewFingerprintStore(db fingerprintDynamoDB, tableName string, clock domain.Clock) *FingerprintStore {
	return &FingerprintStore{
		db:        db,
		tableName: tableName,
		indexName: "user_fingerprints-index",
		clock:     clock,
	}
}

// FindByHash looks up a fingerprint by (user_id, hash) via the
// user_fingerprints-index GSI, then fetches the full record with a
// consistent GetItem read. Returns domain.ErrNotFound when no fingerprint
// exists for the given pair, trusted or not.
func (s *FingerprintStore) FindByHash(ctx context.Context, userID, hash string) (*FingerprintRecord, error) {
	keyExpr := "user_id = :uid"
	filterExpr := "fingerprint_hash = :hash"

	out, err := s.db.Query(ctx, &dynamo.QueryInput{
		TableName:              &s.tableName,
		IndexName:              &s.indexName,
		KeyConditionExpression: &keyExpr,
		FilterExpression:       &filterExpr,
		ExpressionAttributeValues: map[string]dynamo.AttributeValue{
			":uid":  &dynamo.AttributeValueMemberS{Value: userID},
			":hash": &dynamo.AttributeValueMemberS{Value: hash},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("fingerprint store: find by hash query: %w", err)
	}

	if len(out.Items) == 0 {
		return nil, fmt.Errorf("fingerprint store: find by hash: %w", domain.ErrNotFound)
	}

	var projected struct {
		FingerprintID string `dynamodbav:"fingerprint_id"`
	}
	if err := dynamo.UnmarshalMap(out.Items[0], &projected); err != nil {
		return nil, fmt.Errorf("fingerprint store: unmarshal gsi projection: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fingerprint store: find by hash: %w", err)
	}

	return s.GetByID(ctx, projected.FingerprintID)
}

// GetByID retrieves a fingerprint record by ID using a strongly consistent read.
func (s *FingerprintStore) GetByID(ctx context.Context, fingerprintID string) (*FingerprintRecord, error) {
	consistentRead := true

	out, err := s.db.GetItem(ctx, &dynamo.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]dynamo.AttributeValue{
			"fingerprint_id": &dynamo.AttributeValueMemberS{Value: fingerprintID},
		},
		ConsistentRead: &consistentRead,
	})
	if err != nil {
		return nil, fmt.Errorf("fingerprint store: get by id: %w", err)
	}

	if out.Item == nil {
		return nil, fmt.Errorf("fingerprint store: get by id: %w", domain.ErrNotFound)
	}

	var item fingerprintItem
	if err := dynamo.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("fingerprint store: unmarshal: %w", err)
	}

	return recordFromFingerprintItem(item), nil
}

// CreateUntrusted writes a new untrusted fingerprint. Idempotent on
// (user_id, hash): if a fingerprint already exists for the pair, the
// existing record is returned rather than erroring, per C5's
// create_untrusted contract.
func (s *FingerprintStore) CreateUntrusted(ctx context.Context, fingerprintID, userID, hash, browser, device string) (*FingerprintRecord, error) {
	existing, err := s.FindByHash(ctx, userID, hash)
	if err == nil {
		return existing, nil
	}
	if !domain.IsNotFound(err) {
		return nil, err
	}

	now := s.clock.Now().UTC().Format(time.RFC3339)
	item := fingerprintItem{
		FingerprintID:   fingerprintID,
		UserID:          userID,
		FingerprintHash: hash,
		Browser:         browser,
		Device:          device,
		IsTrusted:       false,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	av, err := dynamo.MarshalMap(item)
	if err != nil {
		return nil, fmt.Errorf("fingerprint store: marshal: %w", err)
	}

	condExpr := "attribute_not_exists(fingerprint_id)"
	_, err = s.db.PutItem(ctx, &dynamo.PutItemInput{
		TableName:           &s.tableName,
		Item:                av,
		ConditionExpression: &condExpr,
	})
	if err != nil {
		if dynamo.IsConditionalCheckFailed(err) {
			return nil, fmt.Errorf("fingerprint store: create untrusted: %w", domain.ErrAlreadyExists)
		}
		return nil, fmt.Errorf("fingerprint store: create untrusted: %w", err)
	}

	return recordFromFingerprintItem(item), nil
}

// SetTrusted flips is_trusted for a fingerprint. Used both when a
// create_trusted path provisions a device directly and when an email or
// TOTP challenge trusts a previously untrusted one.
func (s *FingerprintStore) SetTrusted(ctx context.Context, fingerprintID string, trusted bool) error {
	now := s.clock.Now().UTC().Format(time.RFC3339)
	updateExpr := "SET is_trusted = :trusted, updated_at = :now"

	_, err := s.db.UpdateItem(ctx, &dynamo.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]dynamo.AttributeValue{
			"fingerprint_id": &dynamo.AttributeValueMemberS{Value: fingerprintID},
		},
		UpdateExpression: &updateExpr,
		ExpressionAttributeValues: map[string]dynamo.AttributeValue{
			":trusted": &dynamo.AttributeValueMemberBOOL{Value: trusted},
			":now":     &dynamo.AttributeValueMemberS{Value: now},
		},
	})
	if err != nil {
		return fmt.Errorf("fingerprint store: set trusted: %w", err)
	}

	return nil
}

// ListTrusted returns all is_trusted=true fingerprints for a user, per C5's
// list contract (the caller joins each against active sessions).
func (s *FingerprintStore) ListTrusted(ctx context.Context, userID string) ([]FingerprintRecord, error) {
	keyExpr := "user_id = :uid"
	filterExpr := "is_trusted = :trusted"

	out, err := s.db.Query(ctx, &dynamo.QueryInput{
		TableName:              &s.tableName,
		IndexName:              &s.indexName,
		KeyConditionExpression: &keyExpr,
		FilterExpression:       &filterExpr,
		ExpressionAttributeValues: map[string]dynamo.AttributeValue{
			":uid":     &dynamo.AttributeValueMemberS{Value: userID},
			":trusted": &dynamo.AttributeValueMemberBOOL{Value: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("fingerprint store: list trusted: %w", err)
	}

	records := make([]FingerprintRecord, 0, len(out.Items))
	for _, raw := range out.Items {
		var item fingerprintItem
		if err := dynamo.UnmarshalMap(raw, &item); err != nil {
			return nil, fmt.Errorf("fingerprint store: unmarshal: %w", err)
		}
		records = append(records, *recordFromFingerprintItem(item))
	}

	return records, nil
}

func recordFromFingerprintItem(item fingerprintItem) *FingerprintRecord {
	return &FingerprintRecord{
		FingerprintID:   item.FingerprintID,
		UserID:          item.UserID,
		FingerprintHash: item.FingerprintHash,
		Browser:         item.Browser,
		Device:          item.Device,
		IsTrusted:       item.IsTrusted,
		CreatedAt:       item.CreatedAt,
		UpdatedAt:       item.UpdatedAt,
	}
}
