package adapter

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/authplatform/auth-service/internal/domain"
	"github.com/authplatform/auth-service/internal/dynamo"
)

// txDynamoDB is a narrow, consumer-defined interface for DynamoDB transaction
// operations. The *dynamodb.Client satisfies this interface.
type txDynamoDB interface {
	TransactWriteItems(ctx context.Context, params *dynamo.TransactWriteItemsInput, optFns ...func(*dynamo.Options)) (*dynamo.TransactWriteItemsOutput, error)
}

// Transactor orchestrates multi-table DynamoDB transactions for auth flows
// that must not leave a fingerprint trusted without its session, or vice
// versa — see the invariant in C7/C5 that trust and session creation happen
// together for the OTP-gated fingerprint-trust path.
type Transactor struct {
	db                 txDynamoDB
	fingerprintsTable  string
	sessionsTable      string
	clock              domain.Clock
}

// NewTransactor creates a Transactor backed by the given DynamoDB client.
func NewTransactor(db txDynamoDB, fingerprintsTable, sessionsTable string, clock domain.Clock) *Transactor {
	return &Transactor{
		db:                db,
		fingerprintsTable: fingerprintsTable,
		sessionsTable:     sessionsTable,
		clock:             clock,
	}
}

// TrustFingerprintAndCreateSessionParams carries the fields needed to trust a
// device fingerprint and create its session atomically.
type TrustFingerprintAndCreateSessionParams struct {
	FingerprintID    string
	Session          SessionRecord
}

// TrustFingerprintAndCreateSession executes a 2-item TransactWriteItems:
// trust the fingerprint and create its session in one atomic write, so a
// caller never observes a trusted fingerprint with no corresponding session
// (or a session bound to a fingerprint that never got trusted).
//
// Returns domain.ErrAlreadyExists if the session already exists, or
// domain.ErrNotFound if the fingerprint does not exist.
func (t *Transactor) TrustFingerprintAndCreateSession(ctx context.Context, p TrustFingerprintAndCreateSessionParams) error {
	ctx, span := tracer.Start(ctx, "dynamo.tx.trust_fingerprint_create_session")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "dynamodb"),
		attribute.String("db.operation", "TransactWriteItems"),
	)

	trustUpdate := t.buildTrustUpdate(p.FingerprintID)
	sessionPut := t.buildSessionPut(p.Session)

	_, err := t.db.TransactWriteItems(ctx, &dynamo.TransactWriteItemsInput{
		TransactItems: []dynamo.TransactWriteItem{
			trustUpdate,
			sessionPut,
		},
	})
	if err != nil {
		txErr := t.classifyTxError(err, "trust fingerprint and create session",
			"fingerprint_trust", "session_put")
		span.RecordError(txErr)
		span.SetStatus(codes.Error, txErr.Error())
		return txErr
	}

	return nil
}

func (t *Transactor) buildTrustUpdate(fingerprintID string) dynamo.TransactWriteItem {
	now := t.clock.Now().UTC().Format(time.RFC3339)
	updateExpr := "SET is_trusted = :trusted, updated_at = :now"
	condExpr := "attribute_exists(fingerprint_id)"
	return dynamo.TransactWriteItem{
		Update: &dynamo.Update{
			TableName: &t.fingerprintsTable,
			Key: map[string]dynamo.AttributeValue{
				"fingerprint_id": &dynamo.AttributeValueMemberS{Value: fingerprintID},
			},
			UpdateExpression:    &updateExpr,
			ConditionExpression: &condExpr,
			ExpressionAttributeValues: map[string]dynamo.AttributeValue{
				":trusted": &dynamo.AttributeValueMemberBOOL{Value: true},
				":now":     &dynamo.AttributeValueMemberS{Value: now},
			},
		},
	}
}

func (t *Transactor) buildSessionPut(session SessionRecord) dynamo.TransactWriteItem {
	condExpr := "attribute_not_exists(session_id)"
	item, _ := dynamo.MarshalMap(sessionItem(session))
	return dynamo.TransactWriteItem{
		Put: &dynamo.Put{
			TableName:           &t.sessionsTable,
			Item:                item,
			ConditionExpression: &condExpr,
		},
	}
}

// classifyTxError inspects a TransactWriteItems error and wraps it with
// context. For TransactionCanceledException it checks each cancellation
// reason and maps ConditionalCheckFailed to the fitting domain sentinel.
func (t *Transactor) classifyTxError(err error, op string, itemNames ...string) error {
	reasons, ok := dynamo.IsTransactionCanceledException(err)
	if !ok {
		return fmt.Errorf("transactor: %s: %w", op, err)
	}

	for i, reason := range reasons {
		if reason == "ConditionalCheckFailed" {
			name := "unknown"
			if i < len(itemNames) {
				name = itemNames[i]
			}
			if name == "session_put" {
				return fmt.Errorf("transactor: %s: item %d (%s) condition failed: %w",
					op, i, name, domain.ErrAlreadyExists)
			}
			return fmt.Errorf("transactor: %s: item %d (%s) condition failed: %w",
				op, i, name, domain.ErrNotFound)
		}
	}

	return fmt.Errorf("transactor: %s: transaction canceled: %w", op, err)
}
