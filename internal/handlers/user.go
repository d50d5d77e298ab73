package handlers

import (
	"encoding/json"
	"net/http"

	"charles-backend/internal/middleware"
	"charles-backend/internal/models"
	"charles-backend/internal/repository"
	"charles-backend/internal/services"
)

type UserHandler struct {
	userRepo    *repository.UserRepo
	authService *services.AuthService
}

func NewUserHandler(userRepo *repository.UserRepo, authService *services.AuthService) *UserHandler {
	return &UserHandler{userRepo: userRepo, authService: authService}
}

// GetMe returns the account with its derived subscription flags. show_ads is
// the inverse of is_subscribed; the client never computes it.
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.userRepo.GetByID(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load account", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":          user,
		"is_subscribed": user.IsSubscribed(),
		"show_ads":      !user.IsSubscribed(),
	})
}

func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req models.ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if err := h.authService.ChangePassword(r.Context(), middleware.GetUserID(r.Context()), req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Password changed successfully"})
}
