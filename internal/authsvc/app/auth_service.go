// Package app implements the orchestration layer (C5 Device Fingerprint
// Manager, C6 Session Manager, C7 TOTP Manager, C9 Auth Orchestrator): the
// state machines that sit between the HTTP port and the adapters, storage,
// and collaborators in internal/authsvc/adapter, internal/auth,
// internal/password, internal/userdirectory, and internal/sso.
package app

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/authplatform/auth-service/internal/auth"
	"github.com/authplatform/auth-service/internal/domain"
	"github.com/authplatform/auth-service/internal/sso"
)

var tracer = otel.Tracer("authsvc/app")

var (
	otpRequestsTotal        metric.Int64Counter
	tokenMintedTotal        metric.Int64Counter
	sessionCreatedTotal     metric.Int64Counter
	authFailuresTotal       metric.Int64Counter
	rateLimitsTotal         metric.Int64Counter
	sessionRevocationsTotal metric.Int64Counter
	fingerprintTrustedTotal metric.Int64Counter
	totpVerifiedTotal       metric.Int64Counter
)

func init() {
	m := otel.Meter("authsvc/app")

	otpRequestsTotal, _ = m.Int64Counter("auth_otp_requests_total",
		metric.WithDescription("Total OTP/TOTP verification requests"))
	tokenMintedTotal, _ = m.Int64Counter("auth_token_minted_total",
		metric.WithDescription("Total tokens minted"))
	sessionCreatedTotal, _ = m.Int64Counter("auth_session_created_total",
		metric.WithDescription("Total sessions created"))
	authFailuresTotal, _ = m.Int64Counter("security_auth_failures_total",
		metric.WithDescription("Total authentication failures"))
	rateLimitsTotal, _ = m.Int64Counter("security_rate_limits_total",
		metric.WithDescription("Total rate limit hits"))
	sessionRevocationsTotal, _ = m.Int64Counter("security_session_revocations_total",
		metric.WithDescription("Total session revocations"))
	fingerprintTrustedTotal, _ = m.Int64Counter("auth_fingerprint_trusted_total",
		metric.WithDescription("Total device fingerprints trusted"))
	totpVerifiedTotal, _ = m.Int64Counter("auth_totp_verified_total",
		metric.WithDescription("Total TOTP verifications"))
}

// EventPublisher fires the fire-and-forget notification events named in
// SPEC_FULL §6 (email_request, user_created, notification). Implementations
// never block a caller on delivery confirmation.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

// AuthServiceConfig holds every dependency the orchestration layer needs.
// The HTTP port's composition root builds one of these and passes it to
// NewAuthService; nothing in this package reaches for a global.
type AuthServiceConfig struct {
	Fingerprints FingerprintStore
	Sessions     SessionStore
	OTPConfigs   OTPConfigStore
	Users        UserDirectory
	Transactor   Transactor
	Ephemeral    EphemeralStore
	RateLimiter  RateLimiter
	Revocation   RevocationStore
	Events       EventPublisher
	Email        auth.EmailProvider

	AccessMinter  AccessMinter
	SessionMinter SessionMinter

	// AccessValidator and SessionValidator each hold their own kind's
	// secret (TokenKindAccess vs TokenKindSession) — a single shared
	// Validator cannot correctly verify both token families.
	AccessValidator  *auth.Validator
	SessionValidator *auth.Validator

	OTPSecretKey []byte

	// WalletServiceUserAgent is the User-Agent header the sibling wallet
	// service is expected to present on create-wallet-session calls. Any
	// other caller is rejected.
	WalletServiceUserAgent string

	Clock  domain.Clock
	Pepper []byte
	Logger *slog.Logger
}

// AuthService composes the C5/C6/C7/C9 state machines over the ports in
// AuthServiceConfig. Its methods are grouped across fingerprint_manager.go,
// session_manager.go, wallet_session.go, totp_manager.go, and
// auth_orchestrator.go.
type AuthService struct {
	fingerprints FingerprintStore
	sessions     SessionStore
	otpConfigs   OTPConfigStore
	users        UserDirectory
	transactor   Transactor
	ephemeral    EphemeralStore
	rateLimiter  RateLimiter
	revocation   RevocationStore
	events       EventPublisher
	email        auth.EmailProvider

	accessMinter  AccessMinter
	sessionMinter SessionMinter

	accessValidator  *auth.Validator
	sessionValidator *auth.Validator

	otpSecretKey []byte

	walletServiceUserAgent string

	clock  domain.Clock
	pepper []byte
	logger *slog.Logger
	bgWG   sync.WaitGroup // owns background goroutines (event publishing)

	sso *sso.Broker // C8, built from this same AuthService's ports
}

// NewAuthService creates an AuthService from cfg.
func NewAuthService(cfg AuthServiceConfig) *AuthService {
	s := &AuthService{
		fingerprints:           cfg.Fingerprints,
		sessions:               cfg.Sessions,
		otpConfigs:             cfg.OTPConfigs,
		users:                  cfg.Users,
		transactor:             cfg.Transactor,
		ephemeral:              cfg.Ephemeral,
		rateLimiter:            cfg.RateLimiter,
		revocation:             cfg.Revocation,
		events:                 cfg.Events,
		email:                  cfg.Email,
		accessMinter:           cfg.AccessMinter,
		sessionMinter:          cfg.SessionMinter,
		accessValidator:        cfg.AccessValidator,
		sessionValidator:       cfg.SessionValidator,
		otpSecretKey:           cfg.OTPSecretKey,
		walletServiceUserAgent: cfg.WalletServiceUserAgent,
		clock:                  cfg.Clock,
		pepper:                 cfg.Pepper,
		logger:                 cfg.Logger,
	}

	// The broker is built from s's own ports/methods rather than taking a
	// separate set of dependencies in AuthServiceConfig: CheckFingerprint
	// and Create already implement everything C8 needs.
	s.sso = sso.New(sso.Config{
		Store:        cfg.Ephemeral,
		Fingerprints: ssoFingerprintChecker{svc: s},
		Sessions:     ssoSessionCreator{svc: s},
		Tokens:       ssoTokenGenerator{},
	})

	return s
}

// Wait blocks until all background goroutines owned by this service
// complete. The composition root must call this during graceful shutdown.
func (s *AuthService) Wait() {
	s.bgWG.Wait()
}

// deliverVerificationCode sends a one-time code to email in the background
// and, independently, publishes an email_request event of kind eventType so
// other consumers (analytics, audit) observe the challenge was issued. The
// two are decoupled: event publishing never blocks on mail delivery and
// vice versa.
func (s *AuthService) deliverVerificationCode(ctx context.Context, email, code, eventType string) {
	bgCtx := context.WithoutCancel(ctx)
	if s.email != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			if err := s.email.SendCode(bgCtx, email, code); err != nil {
				s.logger.ErrorContext(bgCtx, "failed to send verification code",
					"error", err, "event_type", eventType)
			}
		}()
	}
	s.publishAsync(ctx, "email_request", map[string]any{
		"type": eventType,
		"data": map[string]string{"email": email},
	})
}

// publishEmailRequest emits an email_request event with no accompanying
// code, for notification-style emails (e.g. welcome-message) that carry no
// verification secret.
func (s *AuthService) publishEmailRequest(ctx context.Context, email, eventType string) {
	s.publishAsync(ctx, "email_request", map[string]any{
		"type": eventType,
		"data": map[string]string{"email": email},
	})
}

// publishAsync fires an event in the background, detached from ctx's
// cancellation so an HTTP request completing (or timing out) never drops
// an event already queued for delivery. Failures are logged, never
// propagated — per §6 these are fire-and-forget.
func (s *AuthService) publishAsync(ctx context.Context, eventType string, payload any) {
	if s.events == nil {
		return
	}
	bgCtx := context.WithoutCancel(ctx)
	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		if err := s.events.Publish(bgCtx, eventType, payload); err != nil {
			s.logger.ErrorContext(bgCtx, "failed to publish event",
				"error", err, "event_type", eventType)
		}
	}()
}
