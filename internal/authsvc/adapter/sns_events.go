package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// snsPublisher is a narrow, consumer-defined interface for the subset of
// SNS operations required by the event publisher. The real *sns.Client
// satisfies it.
type snsPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// EventPublisher fires the three outbound message-bus event categories
// (email_request, user_created, notification) over SNS, one topic per
// category, fire-and-forget. Replaces the teacher's SNS SMS channel (no
// phone channel survives this service's email-only OTP delivery) with a
// generic event-bus publisher, reusing the same narrow-publisher idiom.
type EventPublisher struct {
	client snsPublisher
	topics map[string]string // event type -> topic ARN
	logger *slog.Logger
}

// NewEventPublisher creates an EventPublisher backed by client, routing
// each event type to the topic ARN named in topics.
func NewEventPublisher(client snsPublisher, topics map[string]string, logger *slog.Logger) *EventPublisher {
	return &EventPublisher{client: client, topics: topics, logger: logger}
}

// Publish marshals payload to JSON and publishes it to the SNS topic
// configured for eventType, tagging the message with an event_type
// attribute so subscribers can filter without parsing the body.
func (p *EventPublisher) Publish(ctx context.Context, eventType string, payload any) error {
	topicARN, ok := p.topics[eventType]
	if !ok {
		return fmt.Errorf("sns events: no topic configured for event type %q", eventType)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("sns events: marshal payload: %w", err)
	}
	message := string(body)

	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: &topicARN,
		Message:  &message,
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"event_type": {
				DataType:    strPtr("String"),
				StringValue: strPtr(eventType),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("sns events: publish %q: %w", eventType, err)
	}

	return nil
}

// LogEventPublisher is a fake EventPublisher that logs events instead of
// publishing them to SNS. Suitable for local development and testing.
type LogEventPublisher struct {
	logger *slog.Logger
}

// NewLogEventPublisher creates a LogEventPublisher writing to logger.
func NewLogEventPublisher(logger *slog.Logger) *LogEventPublisher {
	return &LogEventPublisher{logger: logger}
}

// Publish logs the event instead of sending it anywhere. Never errors.
func (p *LogEventPublisher) Publish(ctx context.Context, eventType string, payload any) error {
	p.logger.InfoContext(ctx, "event published (log-only)",
		slog.String("event_type", eventType), slog.Any("payload", payload))
	return nil
}

func strPtr(s string) *string { return &s }
