package port

import "net/http"

type passwordInitiateRequest struct {
	EmailOrUsername string `json:"email_or_username"`
}

func (h *AuthHandler) handlePasswordInitiate(w http.ResponseWriter, r *http.Request) {
	var req passwordInitiateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	// InitiatePasswordReset is silent on an unknown user (§4.9): any error
	// it does return is an infrastructure failure, so it is still mapped
	// through writeError rather than swallowed here.
	if err := h.svc.InitiatePasswordReset(r.Context(), req.EmailOrUsername); err != nil {
		h.writeError(r, w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "if the account exists, a reset code has been sent", nil)
}

type passwordVerifyRequest struct {
	Code string `json:"code"`
}

func (h *AuthHandler) handlePasswordVerify(w http.ResponseWriter, r *http.Request) {
	var req passwordVerifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	if err := h.svc.VerifyPasswordReset(r.Context(), req.Code); err != nil {
		h.writeError(r, w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "code valid", nil)
}

type passwordChangeRequest struct {
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

func (h *AuthHandler) handlePasswordChange(w http.ResponseWriter, r *http.Request) {
	var req passwordChangeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	if err := h.svc.ChangePassword(r.Context(), req.Code, req.NewPassword); err != nil {
		h.writeError(r, w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "password changed", nil)
}

type passwordChangeAuthenticatedRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func (h *AuthHandler) handlePasswordChangeAuthenticated(w http.ResponseWriter, r *http.Request) {
	var req passwordChangeAuthenticatedRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	userID := userIDFromContext(r.Context())
	if err := h.svc.ChangePasswordAuthenticated(r.Context(), userID, req.OldPassword, req.NewPassword); err != nil {
		h.writeError(r, w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "password changed", nil)
}
