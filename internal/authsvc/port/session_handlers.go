package port

import (
	"net/http"

	"github.com/authplatform/auth-service/internal/authsvc/app"
)

type refreshSessionRequest struct {
	SessionToken string `json:"session_token"`
}

func (h *AuthHandler) handleRefreshSession(w http.ResponseWriter, r *http.Request) {
	var req refreshSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	session, err := h.svc.Refresh(r.Context(), req.SessionToken)
	if err != nil {
		h.writeError(r, w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "ok", toSessionResponse(session))
}

// handleLogout extracts the bearer access token directly rather than going
// through requireAccess: Logout re-validates the token itself (it needs the
// raw token, not just the subject claim) and maps its own failures.
func (h *AuthHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		h.writeError(r, w, errUnauthorizedMissingToken)
		return
	}
	if err := h.svc.Logout(r.Context(), token); err != nil {
		h.writeError(r, w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "logged out", nil)
}

type sessionRecordResponse struct {
	SessionID           string `json:"session_id"`
	DeviceFingerprintID string `json:"device_fingerprint_id"`
	App                 string `json:"app"`
	CreatedAt           string `json:"created_at"`
	LastUsedAt          string `json:"last_used_at"`
	ExpiresAt           string `json:"expires_at"`
}

func toSessionRecordResponse(r app.SessionRecord) sessionRecordResponse {
	return sessionRecordResponse{
		SessionID:           r.SessionID,
		DeviceFingerprintID: r.DeviceFingerprintID,
		App:                 r.App,
		CreatedAt:           r.CreatedAt,
		LastUsedAt:          r.LastUsedAt,
		ExpiresAt:           r.ExpiresAt,
	}
}

func (h *AuthHandler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.svc.ListActiveSessions(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		h.writeError(r, w, err)
		return
	}
	resp := make([]sessionRecordResponse, 0, len(sessions))
	for _, s := range sessions {
		resp = append(resp, toSessionRecordResponse(s))
	}
	writeSuccess(w, http.StatusOK, "ok", resp)
}

type revokeSessionRequest struct {
	SessionID string `json:"session_id"`
}

func (h *AuthHandler) handleRevokeSession(w http.ResponseWriter, r *http.Request) {
	var req revokeSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if err := h.svc.RevokeSessionByID(r.Context(), req.SessionID); err != nil {
		h.writeError(r, w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "revoked", nil)
}

type revokeSessionsByDeviceRequest struct {
	DeviceFingerprintID string `json:"device_fingerprint_id"`
}

func (h *AuthHandler) handleRevokeSessionsByDevice(w http.ResponseWriter, r *http.Request) {
	var req revokeSessionsByDeviceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	userID := userIDFromContext(r.Context())
	if err := h.svc.RevokeSessionsByDeviceFingerprint(r.Context(), userID, req.DeviceFingerprintID); err != nil {
		h.writeError(r, w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "revoked", nil)
}

// handleCreateWalletSession backs the one service-to-service endpoint in
// §6: the wallet service redeems a wallet_pass_token it minted earlier,
// presenting its own service bearer token (checked by requireServiceToken)
// plus the User-Agent identity CreateWalletSession itself verifies.
type createWalletSessionRequest struct {
	Token string `json:"token"`
}

func (h *AuthHandler) handleCreateWalletSession(w http.ResponseWriter, r *http.Request) {
	var req createWalletSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	session, err := h.svc.CreateWalletSession(r.Context(), req.Token, r.UserAgent())
	if err != nil {
		h.writeError(r, w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "ok", toSessionResponse(session))
}
