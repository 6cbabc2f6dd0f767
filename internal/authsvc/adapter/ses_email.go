package adapter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"

	"github.com/authplatform/auth-service/internal/auth"
)

// sesSender is a narrow, consumer-defined interface for the subset of SES
// operations required by the email provider. The real *ses.Client satisfies it.
type sesSender interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// Compile-time interface satisfaction checks.
var _ auth.EmailProvider = (*SESEmailProvider)(nil)
var _ auth.EmailProvider = (*LogEmailProvider)(nil)

// SESEmailProvider delivers verification codes via Amazon SES.
type SESEmailProvider struct {
	client    sesSender
	fromEmail string
}

// NewSESEmailProvider creates an SESEmailProvider backed by the given SES
// client, sending from fromEmail.
func NewSESEmailProvider(client sesSender, fromEmail string) *SESEmailProvider {
	return &SESEmailProvider{client: client, fromEmail: fromEmail}
}

// SendCode emails a verification code to the given address.
func (p *SESEmailProvider) SendCode(ctx context.Context, email, code string) error {
	subject := "Your verification code"
	body := fmt.Sprintf("Your verification code is: %s", code)

	_, err := p.client.SendEmail(ctx, &ses.SendEmailInput{
		Source: aws.String(p.fromEmail),
		Destination: &sestypes.Destination{
			ToAddresses: []string{email},
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(subject)},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: aws.String(body)},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("ses email: send code to %s: %w", email, err)
	}

	return nil
}

// LogEmailProvider is a fake EmailProvider that logs code delivery instead
// of sending real email. Suitable for local development and test environments.
type LogEmailProvider struct {
	logger *slog.Logger
}

// NewLogEmailProvider creates a LogEmailProvider that writes delivery events
// to the given structured logger.
func NewLogEmailProvider(logger *slog.Logger) *LogEmailProvider {
	return &LogEmailProvider{logger: logger}
}

// SendCode logs the code delivery with a masked email address. It never
// sends real email.
func (p *LogEmailProvider) SendCode(ctx context.Context, email, code string) error {
	p.logger.InfoContext(ctx, "verification code delivery (log-only)",
		slog.String("email", maskEmail(email)),
		slog.String("code", code),
	)

	return nil
}

// maskEmail returns a masked representation of an email address, keeping
// only the first character of the local part and the full domain.
func maskEmail(email string) string {
	at := -1
	for i, c := range email {
		if c == '@' {
			at = i
			break
		}
	}
	if at <= 0 {
		return "****"
	}
	return email[:1] + "***" + email[at:]
}
