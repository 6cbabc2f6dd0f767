package app

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/authplatform/auth-service/internal/auth"
	"github.com/authplatform/auth-service/internal/domain"
	"github.com/authplatform/auth-service/internal/password"
)

// registerInfo is the ephemeral record behind register_info:{email},
// carrying a pending registration across the email-verification round
// trip.
type registerInfo struct {
	Email          string `json:"email"`
	Username       string `json:"username"`
	PasswordHashed string `json:"password_hashed"`
}

func registerInfoKey(email string) string { return "register_info:" + email }

// emailVerificationCode is the ephemeral record behind
// email_verification_code:{code}.
type emailVerificationCode struct {
	Email string `json:"email"`
}

func emailVerificationCodeKey(code string) string { return "email_verification_code:" + code }

// changePasswordVerification is the ephemeral record behind
// change_password_verification_code:{code}.
type changePasswordVerification struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

func changePasswordVerificationKey(code string) string {
	return "change_password_verification_code:" + code
}

// LoginRequest carries the inputs to Login.
type LoginRequest struct {
	EmailOrUsername   string
	Password          string
	FingerprintHashed string
	Browser           string
	Device            string
	App               string
}

// LoginOutcome is the result of Login: exactly one of its non-zero fields
// tells the caller what to do next.
type LoginOutcome struct {
	// Session is set when login completed outright: trusted device, no
	// TOTP gate, or the device never required one.
	Session *SessionWithAccess

	// OTPRequired + LoginSessionToken: trusted device, TOTP enabled.
	// Redeem via LoginVerifyOTP.
	OTPRequired       bool
	LoginSessionToken string

	// FingerprintTrustRequired + FingerprintTrustToken: untrusted device,
	// TOTP enabled. Redeem via FingerprintTrustVerifyOTP.
	FingerprintTrustRequired bool
	FingerprintTrustToken    string

	// DeviceVerificationRequired: untrusted device, no TOTP. An email
	// challenge has been sent; the caller verifies it out of band
	// (FingerprintManager.VerifyEmailChallenge) and retries Login.
	DeviceVerificationRequired bool
}

// Login implements C9's password-then-device-then-TOTP login state
// machine (§4.9).
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (LoginOutcome, error) {
	ctx, span := tracer.Start(ctx, "auth.orchestrator.login")
	defer span.End()

	user, err := s.users.GetWithPasswordByEmailOrUsername(ctx, req.EmailOrUsername)
	if err != nil {
		if domain.IsNotFound(err) {
			authFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "unknown_user")))
			return LoginOutcome{}, fmt.Errorf("login: %w", domain.ErrInvalidCredentials)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return LoginOutcome{}, fmt.Errorf("login: %w", err)
	}

	if !password.Compare(user.PasswordHashed, req.Password) {
		authFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "bad_password")))
		return LoginOutcome{}, fmt.Errorf("login: %w", domain.ErrInvalidCredentials)
	}

	fingerprint, err := s.CheckFingerprint(ctx, user.ID, req.FingerprintHashed)
	if err != nil {
		if !domain.IsNotFound(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return LoginOutcome{}, fmt.Errorf("login: %w", err)
		}
		return s.loginUntrustedDevice(ctx, user, req)
	}

	return s.loginTrustedDevice(ctx, user, fingerprint, req)
}

func (s *AuthService) loginTrustedDevice(ctx context.Context, user *User, fingerprint *FingerprintRecord, req LoginRequest) (LoginOutcome, error) {
	challenge, err := s.CheckAndInitLogin(ctx, user.ID, fingerprint.FingerprintID, req.Browser, req.Device, req.App)
	if err != nil {
		return LoginOutcome{}, fmt.Errorf("login: %w", err)
	}
	if challenge.OTPRequired {
		return LoginOutcome{OTPRequired: true, LoginSessionToken: challenge.LoginSessionToken}, nil
	}

	s.updateLastLoginAsync(ctx, user.ID)
	return LoginOutcome{Session: challenge.Session}, nil
}

func (s *AuthService) loginUntrustedDevice(ctx context.Context, user *User, req LoginRequest) (LoginOutcome, error) {
	fingerprint, err := s.CreateUntrustedFingerprint(ctx, user.ID, req.FingerprintHashed, req.Browser, req.Device)
	if err != nil {
		return LoginOutcome{}, fmt.Errorf("login: %w", err)
	}

	enabled, err := s.Status(ctx, user.ID)
	if err != nil {
		return LoginOutcome{}, fmt.Errorf("login: %w", err)
	}

	if enabled {
		token, err := s.CheckAndInitVerifyFingerprint(ctx, user.ID, fingerprint.FingerprintID, req.App)
		if err != nil {
			return LoginOutcome{}, fmt.Errorf("login: %w", err)
		}
		return LoginOutcome{FingerprintTrustRequired: true, FingerprintTrustToken: token}, nil
	}

	if err := s.SendEmailChallenge(ctx, user.ID, req.FingerprintHashed, user.Email); err != nil {
		return LoginOutcome{}, fmt.Errorf("login: %w", err)
	}
	return LoginOutcome{DeviceVerificationRequired: true}, nil
}

// updateLastLoginAsync fires the user-directory's last-login bookkeeping
// in the background; a slow or failed write here must never hold up the
// login response.
func (s *AuthService) updateLastLoginAsync(ctx context.Context, userID string) {
	bgCtx := context.WithoutCancel(ctx)
	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		if err := s.users.UpdateLastLogin(bgCtx, userID); err != nil {
			s.logger.ErrorContext(bgCtx, "failed to update last login", "error", err, "user_id", userID)
		}
	}()
}

// RegisterRequest carries the inputs to Register.
type RegisterRequest struct {
	Email    string
	Username string
	Password string
}

// Register validates and stages a new account, then emails a verification
// code. No user row is created until VerifyEmailRegister succeeds (§4.9).
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) error {
	ctx, span := tracer.Start(ctx, "auth.orchestrator.register")
	defer span.End()

	strength := password.CheckStrength(req.Password)
	if !strength.OK {
		return fmt.Errorf("register: %w", domain.ErrWeakPassword)
	}

	emailExists, err := s.users.CheckExists(ctx, req.Email)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("register: %w", err)
	}
	if emailExists {
		return fmt.Errorf("register: %w", domain.ErrExistingUser)
	}

	usernameExists, err := s.users.CheckExists(ctx, req.Username)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("register: %w", err)
	}
	if usernameExists {
		return fmt.Errorf("register: %w", domain.ErrExistingUser)
	}

	hashed, err := password.Hash(req.Password)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("register: hash password: %w", err)
	}

	info := registerInfo{Email: req.Email, Username: req.Username, PasswordHashed: hashed}
	if err := s.ephemeral.Set(ctx, registerInfoKey(req.Email), info, domain.RegisterInfoTTL); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("register: stash registration: %w", err)
	}

	code, err := auth.GenerateVerificationCode()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("register: generate code: %w", err)
	}
	if err := s.ephemeral.Set(ctx, emailVerificationCodeKey(code), emailVerificationCode{Email: req.Email}, domain.EmailVerificationCodeTTL); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("register: stash code: %w", err)
	}

	s.deliverVerificationCode(ctx, req.Email, code, "create-account")
	return nil
}

// VerifyEmailRegister redeems code, creates the user-directory record, and
// fires the welcome-email and user-created notification events.
func (s *AuthService) VerifyEmailRegister(ctx context.Context, code string) (*User, error) {
	ctx, span := tracer.Start(ctx, "auth.orchestrator.verify_email_register")
	defer span.End()

	var codeRecord emailVerificationCode
	if err := s.ephemeral.GetAndDelete(ctx, emailVerificationCodeKey(code), &codeRecord); err != nil {
		if domain.IsNotFound(err) {
			return nil, fmt.Errorf("verify email register: %w", domain.ErrInvalidCode)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("verify email register: %w", err)
	}

	var info registerInfo
	if err := s.ephemeral.GetAndDelete(ctx, registerInfoKey(codeRecord.Email), &info); err != nil {
		if domain.IsNotFound(err) {
			return nil, fmt.Errorf("verify email register: %w", domain.ErrInvalidCode)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("verify email register: %w", err)
	}

	user, err := s.users.Create(ctx, NewUser{
		Email:          info.Email,
		Username:       info.Username,
		PasswordHashed: info.PasswordHashed,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("verify email register: create user: %w", err)
	}

	s.publishAsync(ctx, "user_created", map[string]any{"user_id": user.ID, "email": user.Email})
	s.publishEmailRequest(ctx, user.Email, "welcome-message")

	return user, nil
}

// InitiatePasswordReset resolves emailOrUsername and emails a reset code.
// An unknown account is a silent no-op, never an error, to avoid leaking
// which identifiers are registered.
func (s *AuthService) InitiatePasswordReset(ctx context.Context, emailOrUsername string) error {
	ctx, span := tracer.Start(ctx, "auth.orchestrator.initiate_password_reset")
	defer span.End()

	user, err := s.users.GetByEmailOrUsername(ctx, emailOrUsername)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("initiate password reset: %w", err)
	}

	code, err := auth.GenerateVerificationCode()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("initiate password reset: generate code: %w", err)
	}

	record := changePasswordVerification{UserID: user.ID, Email: user.Email}
	if err := s.ephemeral.Set(ctx, changePasswordVerificationKey(code), record, domain.ChangePasswordVerificationTTL); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("initiate password reset: stash code: %w", err)
	}

	s.deliverVerificationCode(ctx, user.Email, code, "forgot-password-verify")
	return nil
}

// VerifyPasswordReset reports whether code is currently valid, without
// consuming it — a read-only check the client can use to confirm the code
// before presenting the new-password form.
func (s *AuthService) VerifyPasswordReset(ctx context.Context, code string) error {
	ctx, span := tracer.Start(ctx, "auth.orchestrator.verify_password_reset")
	defer span.End()

	var record changePasswordVerification
	if err := s.ephemeral.Get(ctx, changePasswordVerificationKey(code), &record); err != nil {
		if domain.IsNotFound(err) {
			return fmt.Errorf("verify password reset: %w", domain.ErrInvalidCode)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("verify password reset: %w", err)
	}
	return nil
}

// ChangePassword redeems code and sets newPassword as the account's
// password.
func (s *AuthService) ChangePassword(ctx context.Context, code, newPassword string) error {
	ctx, span := tracer.Start(ctx, "auth.orchestrator.change_password")
	defer span.End()

	var record changePasswordVerification
	if err := s.ephemeral.GetAndDelete(ctx, changePasswordVerificationKey(code), &record); err != nil {
		if domain.IsNotFound(err) {
			return fmt.Errorf("change password: %w", domain.ErrInvalidCode)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("change password: %w", err)
	}

	strength := password.CheckStrength(newPassword)
	if !strength.OK {
		return fmt.Errorf("change password: %w", domain.ErrWeakPassword)
	}

	hashed, err := password.Hash(newPassword)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("change password: hash: %w", err)
	}

	if err := s.users.ChangePassword(ctx, record.UserID, hashed); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("change password: %w", err)
	}
	return nil
}

// ChangePasswordAuthenticated changes a logged-in user's password given
// their current password, rejecting a new password too similar to the old
// one (§4.7's password-hygiene supplement, distinct from the forgot-password
// flow above which never has the old plaintext in hand).
func (s *AuthService) ChangePasswordAuthenticated(ctx context.Context, userID, oldPassword, newPassword string) error {
	ctx, span := tracer.Start(ctx, "auth.orchestrator.change_password_authenticated")
	defer span.End()

	user, err := s.users.GetWithPasswordByUserID(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("change password authenticated: %w", err)
	}
	if !password.Compare(user.PasswordHashed, oldPassword) {
		return fmt.Errorf("change password authenticated: %w", domain.ErrInvalidCredentials)
	}

	strength := password.CheckStrength(newPassword)
	if !strength.OK {
		return fmt.Errorf("change password authenticated: %w", domain.ErrWeakPassword)
	}
	if password.TooSimilar(oldPassword, newPassword) {
		return fmt.Errorf("change password authenticated: %w", domain.ErrWeakPassword)
	}

	hashed, err := password.Hash(newPassword)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("change password authenticated: hash: %w", err)
	}

	if err := s.users.ChangePassword(ctx, userID, hashed); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("change password authenticated: %w", err)
	}
	return nil
}

// GetUserInfo looks up the authenticated caller's own profile, per the
// §6 user-info lookup surface.
func (s *AuthService) GetUserInfo(ctx context.Context, userID string) (*User, error) {
	ctx, span := tracer.Start(ctx, "auth.orchestrator.get_user_info")
	defer span.End()

	user, err := s.users.GetByUserID(ctx, userID)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, fmt.Errorf("get user info: %w", domain.ErrNotFound)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("get user info: %w", err)
	}
	return user, nil
}
