package adapter

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// snsPublisherStub is a configurable stub for the snsPublisher interface.
type snsPublisherStub struct {
	err       error
	lastInput *sns.PublishInput
	callCount int
}

func (s *snsPublisherStub) Publish(_ context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	s.callCount++
	s.lastInput = params
	if s.err != nil {
		return nil, s.err
	}
	return &sns.PublishOutput{}, nil
}

func TestEventPublisher_Publish_Success(t *testing.T) {
	stub := &snsPublisherStub{}
	topics := map[string]string{"user_created": "arn:aws:sns:us-east-1:111111111111:user-created"}
	publisher := NewEventPublisher(stub, topics, slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil)))

	err := publisher.Publish(context.Background(), "user_created", map[string]string{"user_id": "u-1"})

	require.NoError(t, err)
	require.Equal(t, 1, stub.callCount)
	assert.Equal(t, topics["user_created"], *stub.lastInput.TopicArn)
	assert.Contains(t, *stub.lastInput.Message, "u-1")
	assert.Equal(t, "user_created", *stub.lastInput.MessageAttributes["event_type"].StringValue)
}

func TestEventPublisher_Publish_UnknownEventType(t *testing.T) {
	stub := &snsPublisherStub{}
	publisher := NewEventPublisher(stub, map[string]string{}, slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil)))

	err := publisher.Publish(context.Background(), "notification", map[string]string{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no topic configured")
	assert.Equal(t, 0, stub.callCount)
}

func TestEventPublisher_Publish_PublishError(t *testing.T) {
	publishErr := errors.New("sns throttled")
	stub := &snsPublisherStub{err: publishErr}
	topics := map[string]string{"email_request": "arn:aws:sns:us-east-1:111111111111:email-request"}
	publisher := NewEventPublisher(stub, topics, slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil)))

	err := publisher.Publish(context.Background(), "email_request", map[string]string{"email": "a@b.com"})

	require.Error(t, err)
	assert.ErrorIs(t, err, publishErr)
	assert.Contains(t, err.Error(), `sns events: publish "email_request"`)
}

func TestLogEventPublisher_Publish(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	publisher := NewLogEventPublisher(logger)

	err := publisher.Publish(context.Background(), "notification", map[string]string{"session_id": "s-1"})

	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "event published (log-only)")
	assert.Contains(t, output, "notification")
	assert.Contains(t, output, "s-1")
}
