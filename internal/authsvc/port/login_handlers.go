package port

import (
	"net/http"

	"github.com/authplatform/auth-service/internal/authsvc/app"
)

type loginRequest struct {
	EmailOrUsername   string `json:"email_or_username"`
	Password          string `json:"password"`
	FingerprintHashed string `json:"fingerprint_hashed"`
	Browser           string `json:"browser"`
	Device            string `json:"device"`
	App               string `json:"app"`
}

type sessionResponse struct {
	SessionID           string `json:"session_id"`
	UserID              string `json:"user_id"`
	DeviceFingerprintID string `json:"device_fingerprint_id"`
	App                 string `json:"app"`
	SessionToken        string `json:"session_token"`
	AccessToken         string `json:"access_token"`
	ExpiresAt           string `json:"expires_at"`
}

func toSessionResponse(s app.SessionWithAccess) sessionResponse {
	return sessionResponse{
		SessionID:           s.SessionID,
		UserID:              s.UserID,
		DeviceFingerprintID: s.DeviceFingerprintID,
		App:                 s.App,
		SessionToken:        s.SessionToken,
		AccessToken:         s.AccessToken,
		ExpiresAt:           s.ExpiresAt.UTC().Format(timeLayout),
	}
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

// loginOutcomeResponse mirrors app.LoginOutcome: exactly one of its
// non-empty fields tells the caller what to do next, per §4.9.
type loginOutcomeResponse struct {
	Session                    *sessionResponse `json:"session,omitempty"`
	OTPRequired                bool             `json:"otp_required,omitempty"`
	LoginSessionToken          string           `json:"login_session_token,omitempty"`
	FingerprintTrustRequired   bool             `json:"fingerprint_trust_required,omitempty"`
	FingerprintTrustToken      string           `json:"fingerprint_trust_token,omitempty"`
	DeviceVerificationRequired bool             `json:"device_verification_required,omitempty"`
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	outcome, err := h.svc.Login(r.Context(), app.LoginRequest{
		EmailOrUsername:   req.EmailOrUsername,
		Password:          req.Password,
		FingerprintHashed: req.FingerprintHashed,
		Browser:           req.Browser,
		Device:            req.Device,
		App:               req.App,
	})
	if err != nil {
		h.writeError(r, w, err)
		return
	}

	resp := loginOutcomeResponse{
		OTPRequired:                outcome.OTPRequired,
		LoginSessionToken:          outcome.LoginSessionToken,
		FingerprintTrustRequired:   outcome.FingerprintTrustRequired,
		FingerprintTrustToken:      outcome.FingerprintTrustToken,
		DeviceVerificationRequired: outcome.DeviceVerificationRequired,
	}
	if outcome.Session != nil {
		s := toSessionResponse(*outcome.Session)
		resp.Session = &s
	}
	writeSuccess(w, http.StatusOK, "ok", resp)
}

type loginVerifyOTPRequest struct {
	LoginSessionToken string `json:"login_session_token"`
	OTPCode           string `json:"otp_code"`
}

func (h *AuthHandler) handleLoginVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req loginVerifyOTPRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	session, err := h.svc.LoginVerifyOTP(r.Context(), req.LoginSessionToken, req.OTPCode)
	if err != nil {
		h.writeError(r, w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "ok", toSessionResponse(session))
}

type fingerprintTrustVerifyOTPRequest struct {
	FingerprintTrustToken string `json:"fingerprint_trust_token"`
	OTPCode               string `json:"otp_code"`
}

func (h *AuthHandler) handleFingerprintTrustVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req fingerprintTrustVerifyOTPRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	session, err := h.svc.FingerprintTrustVerifyOTP(r.Context(), req.FingerprintTrustToken, req.OTPCode)
	if err != nil {
		h.writeError(r, w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "ok", toSessionResponse(session))
}
