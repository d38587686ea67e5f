package handler

import (
	"context"
	"net/http"

	"user-service/internal/middleware"
	"user-service/internal/model"
	"user-service/pkg/apierror"
)

type authService interface {
	Login(ctx context.Context, request model.LoginRequest) (model.LoginResponse, error)
	CurrentUser(ctx context.Context, claims model.TokenClaims) (model.UserView, error)
}

type AuthHandler struct {
	service authService
}

func NewAuthHandler(service authService) *AuthHandler {
	return &AuthHandler{service: service}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload model.LoginRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.service.Login(r.Context(), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, apierror.Wrap(model.ErrUnauthorized, "UNAUTHORIZED", "authentication required", http.StatusUnauthorized))
		return
	}

	user, err := h.service.CurrentUser(r.Context(), claims)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}
