package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/authplatform/auth-service/internal/domain"
	"github.com/authplatform/auth-service/internal/dynamo"
)

// otpConfigDynamoDB is a narrow, consumer-defined interface for DynamoDB
// operations required by the TOTP config store. The *dynamodb.Client
// satisfies this interface.
type otpConfigDynamoDB interface {
	GetItem(ctx context.Context, params *dynamo.GetItemInput, optFns ...func(*dynamo.Options)) (*dynamo.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamo.PutItemInput, optFns ...func(*dynamo.Options)) (*dynamo.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamo.UpdateItemInput, optFns ...func(*dynamo.Options)) (*dynamo.UpdateItemOutput, error)
}

// otpConfigItem is the DynamoDB item shape for the otp_config table. There is
// at most one record per user, keyed by user_id.
type otpConfigItem struct {
	UserID             string `dynamodbav:"user_id"`
	OTPSecretEncrypted string `dynamodbav:"otp_secret_encrypted"`
	OTPEnabled         bool   `dynamodbav:"otp_enabled"`
	CreatedAt          string `dynamodbav:"created_at"`
	UpdatedAt          string `dynamodbav:"updated_at"`
}

// OTPConfigRecord is the adapter-level representation of a user's TOTP
// configuration.
type OTPConfigRecord struct {
	UserID             string
	OTPSecretEncrypted string
	OTPEnabled         bool
	CreatedAt          string
	UpdatedAt          string
}

// OTPConfigStore persists TOTP configuration records in DynamoDB.
type OTPConfigStore struct {
	db        otpConfigDynamoDB
	tableName string
	clock     domain.Clock
}

// NewOTPConfigStore creates an OTPConfigStore backed by the given DynamoDB client.
func NewOTPConfigStore(db otpConfigDynamoDB, tableName string, clock domain.Clock) *OTPConfigStore {
	return &OTPConfigStore{db: db, tableName: tableName, clock: clock}
}

// Create writes a new OtpConfig for user_id with otp_enabled=false.
// Fails with domain.ErrAlreadyExists if a config already exists for the
// user, per C7's "setup rejects if an OtpConfig already exists" rule.
func (s *OTPConfigStore) Create(ctx context.Context, userID, secretEncrypted string) (*OTPConfigRecord, error) {
	now := s.clock.Now().UTC().Format(time.RFC3339)

	item := otpConfigItem{
		UserID:             userID,
		OTPSecretEncrypted: secretEncrypted,
		OTPEnabled:         false,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	av, err := dynamo.MarshalMap(item)
	if err != nil {
		return nil, fmt.Errorf("otp config store: marshal: %w", err)
	}

	condExpr := "attribute_not_exists(user_id)"
	_, err = s.db.PutItem(ctx, &dynamo.PutItemInput{
		TableName:           &s.tableName,
		Item:                av,
		ConditionExpression: &condExpr,
	})
	if err != nil {
		if dynamo.IsConditionalCheckFailed(err) {
			return nil, fmt.Errorf("otp config store: create: %w", domain.ErrAlreadyExists)
		}
		return nil, fmt.Errorf("otp config store: create: %w", err)
	}

	return recordFromOTPConfigItem(item), nil
}

// Get retrieves the TOTP config for a user via a strongly consistent read.
// Returns domain.ErrNotFound when no config exists for the given user.
func (s *OTPConfigStore) Get(ctx context.Context, userID string) (*OTPConfigRecord, error) {
	consistentRead := true

	out, err := s.db.GetItem(ctx, &dynamo.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]dynamo.AttributeValue{
			"user_id": &dynamo.AttributeValueMemberS{Value: userID},
		},
		ConsistentRead: &consistentRead,
	})
	if err != nil {
		return nil, fmt.Errorf("otp config store: get: %w", err)
	}

	if out.Item == nil {
		return nil, fmt.Errorf("otp config store: get: %w", domain.ErrNotFound)
	}

	var item otpConfigItem
	if err := dynamo.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("otp config store: unmarshal: %w", err)
	}

	return recordFromOTPConfigItem(item), nil
}

// SetEnabled flips otp_enabled for an existing config. Fails with
// domain.ErrNotFound if no config exists for the user (enable/disable both
// require an existing config per C7).
func (s *OTPConfigStore) SetEnabled(ctx context.Context, userID string, enabled bool) error {
	now := s.clock.Now().UTC().Format(time.RFC3339)

	updateExpr := "SET otp_enabled = :enabled, updated_at = :now"
	condExpr := "attribute_exists(user_id)"

	_, err := s.db.UpdateItem(ctx, &dynamo.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]dynamo.AttributeValue{
			"user_id": &dynamo.AttributeValueMemberS{Value: userID},
		},
		UpdateExpression:    &updateExpr,
		ConditionExpression: &condExpr,
		ExpressionAttributeValues: map[string]dynamo.AttributeValue{
			":enabled": &dynamo.AttributeValueMemberBOOL{Value: enabled},
			":now":     &dynamo.AttributeValueMemberS{Value: now},
		},
	})
	if err != nil {
		if dynamo.IsConditionalCheckFailed(err) {
			return fmt.Errorf("otp config store: set enabled: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("otp config store: set enabled: %w", err)
	}

	return nil
}

func recordFromOTPConfigItem(item otpConfigItem) *OTPConfigRecord {
	return &OTPConfigRecord{
		UserID:             item.UserID,
		OTPSecretEncrypted: item.OTPSecretEncrypted,
		OTPEnabled:         item.OTPEnabled,
		CreatedAt:          item.CreatedAt,
		UpdatedAt:          item.UpdatedAt,
	}
}
