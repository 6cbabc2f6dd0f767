package port

import (
	"net/http"

	"github.com/authplatform/auth-service/internal/authsvc/app"
)

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *AuthHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	if err := h.svc.Register(r.Context(), app.RegisterRequest{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	}); err != nil {
		h.writeError(r, w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "verification code sent", nil)
}

type verifyEmailRegisterRequest struct {
	Code string `json:"code"`
}

type userResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Username    string `json:"username"`
	Role        string `json:"role"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

func toUserResponse(u *app.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Email:       u.Email,
		Username:    u.Username,
		Role:        u.Role,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
	}
}

func (h *AuthHandler) handleVerifyEmailRegister(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	user, err := h.svc.VerifyEmailRegister(r.Context(), req.Code)
	if err != nil {
		h.writeError(r, w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "account created", toUserResponse(user))
}

func (h *AuthHandler) handleGetUserInfo(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.GetUserInfo(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		h.writeError(r, w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "ok", toUserResponse(user))
}
