package port

import "net/http"

type createSSOTokenRequest struct {
	App               string `json:"app"`
	FingerprintHashed string `json:"fingerprint_hashed"`
}

type createSSOTokenResponse struct {
	SSOToken string `json:"sso_token"`
}

func (h *AuthHandler) handleCreateSSOToken(w http.ResponseWriter, r *http.Request) {
	var req createSSOTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	userID := userIDFromContext(r.Context())
	token, err := h.svc.CreateSSOToken(r.Context(), userID, req.App, req.FingerprintHashed)
	if err != nil {
		h.writeError(r, w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "ok", createSSOTokenResponse{SSOToken: token})
}

type validateSSOTokenRequest struct {
	SSOToken string `json:"sso_token"`
}

func (h *AuthHandler) handleValidateSSOToken(w http.ResponseWriter, r *http.Request) {
	var req validateSSOTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	session, err := h.svc.ValidateSSOToken(r.Context(), req.SSOToken)
	if err != nil {
		h.writeError(r, w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "ok", toSessionResponse(session))
}
