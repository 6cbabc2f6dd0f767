package auth

import "context"

// EmailProvider delivers a verification code to an email address, used for
// registration, login, and password-reset code delivery.
type EmailProvider interface {
	SendCode(ctx context.Context, email, code string) error
}
