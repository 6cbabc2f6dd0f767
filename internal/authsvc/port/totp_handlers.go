package port

import "net/http"

type totpSetupRequest struct {
	AccountName string `json:"account_name"`
	Issuer      string `json:"issuer"`
}

type totpSetupResponse struct {
	OTPAuthURL   string `json:"otpauth_url"`
	SecretBase32 string `json:"secret_base32"`
}

func (h *AuthHandler) handleTOTPSetup(w http.ResponseWriter, r *http.Request) {
	var req totpSetupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	userID := userIDFromContext(r.Context())
	otpauthURL, secret, err := h.svc.Setup(r.Context(), userID, req.AccountName, req.Issuer)
	if err != nil {
		h.writeError(r, w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "ok", totpSetupResponse{OTPAuthURL: otpauthURL, SecretBase32: secret})
}

type totpEnableRequest struct {
	OTPCode string `json:"otp_code"`
}

func (h *AuthHandler) handleTOTPEnable(w http.ResponseWriter, r *http.Request) {
	var req totpEnableRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	userID := userIDFromContext(r.Context())
	if err := h.svc.Enable(r.Context(), userID, req.OTPCode); err != nil {
		h.writeError(r, w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "two-factor authentication enabled", nil)
}

func (h *AuthHandler) handleTOTPDisable(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	if err := h.svc.Disable(r.Context(), userID); err != nil {
		h.writeError(r, w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "two-factor authentication disabled", nil)
}

type totpStatusResponse struct {
	Enabled bool `json:"enabled"`
}

func (h *AuthHandler) handleTOTPStatus(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	enabled, err := h.svc.Status(r.Context(), userID)
	if err != nil {
		h.writeError(r, w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "ok", totpStatusResponse{Enabled: enabled})
}
