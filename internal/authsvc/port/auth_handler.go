// Package port exposes the auth orchestration layer over a JSON HTTP API:
// one endpoint per operation in internal/authsvc/app, a uniform response
// envelope, and internal/errmap for translating domain errors into status
// codes without leaking their underlying cause.
package port

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/authplatform/auth-service/internal/auth"
	"github.com/authplatform/auth-service/internal/authsvc/app"
	"github.com/authplatform/auth-service/internal/domain"
	"github.com/authplatform/auth-service/internal/errmap"
)

// errUnauthorizedMissingToken is returned when a protected endpoint is
// called with no (or a malformed) Authorization header — the same
// "no reason disclosed" 401 envelope as any other token failure.
var errUnauthorizedMissingToken = domain.ErrUnauthorized

// authService is a narrow, consumer-defined interface over *app.AuthService
// covering every operation this handler fronts.
type authService interface {
	Register(ctx context.Context, req app.RegisterRequest) error
	VerifyEmailRegister(ctx context.Context, code string) (*app.User, error)
	Login(ctx context.Context, req app.LoginRequest) (app.LoginOutcome, error)
	LoginVerifyOTP(ctx context.Context, loginSessionToken, otpCode string) (app.SessionWithAccess, error)
	FingerprintTrustVerifyOTP(ctx context.Context, token, otpCode string) (app.SessionWithAccess, error)
	InitiatePasswordReset(ctx context.Context, emailOrUsername string) error
	VerifyPasswordReset(ctx context.Context, code string) error
	ChangePassword(ctx context.Context, code, newPassword string) error
	ChangePasswordAuthenticated(ctx context.Context, userID, oldPassword, newPassword string) error
	GetUserInfo(ctx context.Context, userID string) (*app.User, error)

	Refresh(ctx context.Context, sessionToken string) (app.SessionWithAccess, error)
	Logout(ctx context.Context, accessToken string) error
	RevokeSessionByID(ctx context.Context, sessionID string) error
	RevokeSessionsByDeviceFingerprint(ctx context.Context, userID, deviceFingerprintID string) error
	ListActiveSessions(ctx context.Context, userID string) ([]app.SessionRecord, error)
	ValidateAccess(ctx context.Context, accessToken string) (*auth.AccessClaims, error)
	CreateWalletSession(ctx context.Context, token, callerUserAgent string) (app.SessionWithAccess, error)

	CreateUntrustedFingerprint(ctx context.Context, userID, hash, browser, device string) (*app.FingerprintRecord, error)
	SendEmailChallenge(ctx context.Context, userID, fingerprintHash, email string) error
	VerifyEmailChallenge(ctx context.Context, code string) (*app.FingerprintRecord, error)
	ListTrustedFingerprints(ctx context.Context, userID string) ([]app.TrustedFingerprint, error)
	RevokeFingerprint(ctx context.Context, userID, fingerprintID string) error

	Setup(ctx context.Context, userID, accountName, issuer string) (otpauthURL, secretBase32 string, err error)
	Enable(ctx context.Context, userID, otpCode string) error
	Disable(ctx context.Context, userID string) error
	Status(ctx context.Context, userID string) (bool, error)

	CreateSSOToken(ctx context.Context, userID, appName, fingerprintHashed string) (string, error)
	ValidateSSOToken(ctx context.Context, ssoToken string) (app.SessionWithAccess, error)
}

// AuthHandler routes SPEC_FULL §6's HTTP surface onto an authService.
type AuthHandler struct {
	svc              authService
	serviceValidator *auth.Validator
	logger           *slog.Logger
}

// Config configures an AuthHandler.
type Config struct {
	Service authService

	// ServiceValidator verifies the Bearer service token presented by
	// sibling services calling service-to-service endpoints (C10).
	ServiceValidator *auth.Validator

	Logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler backed by cfg.Service.
func NewAuthHandler(cfg Config) *AuthHandler {
	return &AuthHandler{
		svc:              cfg.Service,
		serviceValidator: cfg.ServiceValidator,
		logger:           cfg.Logger,
	}
}

// Register mounts every route this handler serves onto mux.
func (h *AuthHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /auth/healthz", h.handleHealthz)

	mux.HandleFunc("POST /auth/register", h.handleRegister)
	mux.HandleFunc("POST /auth/register/verify", h.handleVerifyEmailRegister)

	mux.HandleFunc("POST /auth/login", h.handleLogin)
	mux.HandleFunc("POST /auth/login/otp/verify", h.handleLoginVerifyOTP)
	mux.HandleFunc("POST /auth/login/fingerprint/verify", h.handleFingerprintTrustVerifyOTP)

	mux.HandleFunc("POST /auth/fingerprints", h.requireAccess(h.handleCreateFingerprint))
	mux.HandleFunc("GET /auth/fingerprints", h.requireAccess(h.handleListFingerprints))
	mux.HandleFunc("POST /auth/fingerprints/challenge", h.requireAccess(h.handleSendFingerprintChallenge))
	mux.HandleFunc("POST /auth/fingerprints/challenge/verify", h.handleVerifyFingerprintChallenge)
	mux.HandleFunc("POST /auth/fingerprints/revoke", h.requireAccess(h.handleRevokeFingerprint))

	mux.HandleFunc("POST /auth/session/refresh", h.handleRefreshSession)
	mux.HandleFunc("POST /auth/session/logout", h.handleLogout)
	mux.HandleFunc("GET /auth/session/list", h.requireAccess(h.handleListSessions))
	mux.HandleFunc("POST /auth/session/revoke", h.requireAccess(h.handleRevokeSession))
	mux.HandleFunc("POST /auth/session/revoke-device", h.requireAccess(h.handleRevokeSessionsByDevice))

	mux.HandleFunc("POST /auth/services/session/create-wallet-session", h.requireServiceToken(h.handleCreateWalletSession))

	mux.HandleFunc("POST /auth/sso/create", h.requireAccess(h.handleCreateSSOToken))
	mux.HandleFunc("POST /auth/sso/validate", h.handleValidateSSOToken)

	mux.HandleFunc("POST /auth/password/initiate", h.handlePasswordInitiate)
	mux.HandleFunc("POST /auth/password/verify", h.handlePasswordVerify)
	mux.HandleFunc("POST /auth/password/change", h.handlePasswordChange)
	mux.HandleFunc("POST /auth/password/change-authenticated", h.requireAccess(h.handlePasswordChangeAuthenticated))

	mux.HandleFunc("POST /auth/2fa/setup", h.requireAccess(h.handleTOTPSetup))
	mux.HandleFunc("POST /auth/2fa/enable", h.requireAccess(h.handleTOTPEnable))
	mux.HandleFunc("POST /auth/2fa/disable", h.requireAccess(h.handleTOTPDisable))
	mux.HandleFunc("GET /auth/2fa/status", h.requireAccess(h.handleTOTPStatus))

	mux.HandleFunc("GET /auth/info", h.requireAccess(h.handleGetUserInfo))
}

func (h *AuthHandler) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, http.StatusOK, "healthy", nil)
}

// userIDContextKey carries the access token's subject into a handler once
// requireAccess has validated the bearer token.
type userIDContextKey struct{}

// requireAccess validates the request's Bearer access token and, on
// success, stashes the caller's user ID in the request context before
// delegating to next.
func (h *AuthHandler) requireAccess(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			h.writeError(r, w, errUnauthorizedMissingToken)
			return
		}
		claims, err := h.svc.ValidateAccess(r.Context(), token)
		if err != nil {
			h.writeError(r, w, err)
			return
		}
		ctx := context.WithValue(r.Context(), userIDContextKey{}, claims.Subject)
		next(w, r.WithContext(ctx))
	}
}

// requireServiceToken validates the request's Bearer service token against
// the sibling-service secret family (C10). The handler itself is still
// responsible for any caller-specific checks (e.g. CreateWalletSession's
// User-Agent match).
func (h *AuthHandler) requireServiceToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			h.writeError(r, w, errUnauthorizedMissingToken)
			return
		}
		if _, err := h.serviceValidator.ValidateService(token); err != nil {
			h.writeError(r, w, err)
			return
		}
		next(w, r)
	}
}

func userIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDContextKey{}).(string)
	return id
}

func bearerToken(r *http.Request) (string, bool) {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(h, prefix))
	if token == "" {
		return "", false
	}
	return token, true
}

// decodeJSON decodes r's body into dst, rejecting unknown fields so typos
// in a client payload surface as a 400 instead of being silently dropped.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// envelope is the uniform response shape named in §6.
type envelope struct {
	Success    bool   `json:"success"`
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Data       any    `json:"data,omitempty"`
	Error      string `json:"error,omitempty"`
}

func writeSuccess(w http.ResponseWriter, statusCode int, message string, data any) {
	writeEnvelope(w, statusCode, envelope{
		Success:    true,
		StatusCode: statusCode,
		Message:    message,
		Data:       data,
	})
}

// writeError translates err via internal/errmap and writes it as an
// envelope. Per §7, a 5xx/503 is always an infrastructure failure rather
// than a caller mistake, so the underlying error is logged here — with the
// request's method and path as its identifier — before the envelope goes
// out with only the mapped, non-leaking message.
func (h *AuthHandler) writeError(r *http.Request, w http.ResponseWriter, err error) {
	httpErr := errmap.ToHTTPError(err)
	if httpErr.StatusCode >= http.StatusInternalServerError && h.logger != nil {
		h.logger.ErrorContext(r.Context(), "request failed",
			"error", err, "method", r.Method, "path", r.URL.Path)
	}
	writeEnvelope(w, httpErr.StatusCode, envelope{
		Success:    httpErr.StatusCode < 300,
		StatusCode: httpErr.StatusCode,
		Message:    httpErr.Message,
		Error:      httpErr.Code,
	})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeEnvelope(w, http.StatusBadRequest, envelope{
		Success:    false,
		StatusCode: http.StatusBadRequest,
		Message:    message,
		Error:      "INVALID_ARGUMENT",
	})
}

func writeEnvelope(w http.ResponseWriter, statusCode int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(env)
}
