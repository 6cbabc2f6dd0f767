package port

import (
	"net/http"

	"github.com/authplatform/auth-service/internal/authsvc/app"
)

type fingerprintResponse struct {
	FingerprintID string `json:"fingerprint_id"`
	Browser       string `json:"browser"`
	Device        string `json:"device"`
	IsTrusted     bool   `json:"is_trusted"`
	CreatedAt     string `json:"created_at"`
}

func toFingerprintResponse(r *app.FingerprintRecord) fingerprintResponse {
	return fingerprintResponse{
		FingerprintID: r.FingerprintID,
		Browser:       r.Browser,
		Device:        r.Device,
		IsTrusted:     r.IsTrusted,
		CreatedAt:     r.CreatedAt,
	}
}

type createFingerprintRequest struct {
	FingerprintHashed string `json:"fingerprint_hashed"`
	Browser           string `json:"browser"`
	Device            string `json:"device"`
}

func (h *AuthHandler) handleCreateFingerprint(w http.ResponseWriter, r *http.Request) {
	var req createFingerprintRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	userID := userIDFromContext(r.Context())
	record, err := h.svc.CreateUntrustedFingerprint(r.Context(), userID, req.FingerprintHashed, req.Browser, req.Device)
	if err != nil {
		h.writeError(r, w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "ok", toFingerprintResponse(record))
}

func (h *AuthHandler) handleListFingerprints(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	trusted, err := h.svc.ListTrustedFingerprints(r.Context(), userID)
	if err != nil {
		h.writeError(r, w, err)
		return
	}

	type trustedFingerprintResponse struct {
		fingerprintResponse
		ActiveSessionCount int `json:"active_session_count"`
	}
	resp := make([]trustedFingerprintResponse, 0, len(trusted))
	for _, tf := range trusted {
		resp = append(resp, trustedFingerprintResponse{
			fingerprintResponse: toFingerprintResponse(&tf.FingerprintRecord),
			ActiveSessionCount:  len(tf.ActiveSessions),
		})
	}
	writeSuccess(w, http.StatusOK, "ok", resp)
}

type sendFingerprintChallengeRequest struct {
	FingerprintHashed string `json:"fingerprint_hashed"`
	Email             string `json:"email"`
}

func (h *AuthHandler) handleSendFingerprintChallenge(w http.ResponseWriter, r *http.Request) {
	var req sendFingerprintChallengeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	userID := userIDFromContext(r.Context())
	if err := h.svc.SendEmailChallenge(r.Context(), userID, req.FingerprintHashed, req.Email); err != nil {
		h.writeError(r, w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "verification code sent", nil)
}

type verifyFingerprintChallengeRequest struct {
	Code string `json:"code"`
}

func (h *AuthHandler) handleVerifyFingerprintChallenge(w http.ResponseWriter, r *http.Request) {
	var req verifyFingerprintChallengeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	record, err := h.svc.VerifyEmailChallenge(r.Context(), req.Code)
	if err != nil {
		h.writeError(r, w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "device trusted", toFingerprintResponse(record))
}

type revokeFingerprintRequest struct {
	FingerprintID string `json:"fingerprint_id"`
}

func (h *AuthHandler) handleRevokeFingerprint(w http.ResponseWriter, r *http.Request) {
	var req revokeFingerprintRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	userID := userIDFromContext(r.Context())
	if err := h.svc.RevokeFingerprint(r.Context(), userID, req.FingerprintID); err != nil {
		h.writeError(r, w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "revoked", nil)
}
