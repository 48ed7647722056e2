package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/jinzhu/copier"

	"github.com/viralis/accountd/pkg/client"
	"github.com/viralis/accountd/pkg/identity"
	"github.com/viralis/accountd/pkg/profile"
)

// ChangePasswordRequest is the body of POST /password/change
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	Locale          string `json:"locale,omitempty"`
}

// ChangePasswordResponse is returned on a committed change
type ChangePasswordResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// LinkedAccountResponse is one entry of GET /accounts
type LinkedAccountResponse struct {
	ProviderID string `json:"providerId"`
	AccountID  string `json:"accountId"`
}

// AccountsResponse is the body of GET /accounts
type AccountsResponse struct {
	Accounts      []LinkedAccountResponse `json:"accounts"`
	HasSocialAuth bool                    `json:"hasSocialAuth"`
}

// ErrorResponse is the uniform error body
type ErrorResponse struct {
	Error string `json:"error"`
}

// Handler exposes profile operations over HTTP
type Handler struct {
	service *profile.ProfileService
}

// NewHandler creates a new profile API handler
func NewHandler(service *profile.ProfileService) *Handler {
	return &Handler{
		service: service,
	}
}

// Routes mounts the profile endpoints on an authenticated router.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/password/change", h.ChangePassword)
	r.Get("/accounts", h.GetLinkedAccounts)
}

// ChangePassword handles POST /password/change
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	authUser, ok := client.FromContext(r.Context())
	if !ok {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, ErrorResponse{Error: "Unauthorized"})
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode request body", "error", err)
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Invalid request body"})
		return
	}

	if req.CurrentPassword == "" || req.NewPassword == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Current and new passwords are required"})
		return
	}

	locale := req.Locale
	if locale == "" {
		locale = authUser.Locale
	}

	err := h.service.ChangePassword(r.Context(), authUser.UserUuid, req.CurrentPassword, req.NewPassword, locale)
	if err != nil {
		status := http.StatusBadRequest
		message := "Failed to change password"

		switch {
		case errors.Is(err, identity.ErrInvalidCredential):
			message = "Current password is incorrect"
		case errors.Is(err, identity.ErrPasswordTooShort):
			message = "New password is too weak"
		case errors.Is(err, profile.ErrSocialAuthForbidden):
			message = "Password cannot be changed for social login accounts"
		default:
			slog.Error("Failed to change password", "error", err)
			status = http.StatusInternalServerError
			message = "An error occurred while changing the password"
		}

		render.Status(r, status)
		render.JSON(w, r, ErrorResponse{Error: message})
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, ChangePasswordResponse{
		Success: true,
		Message: "Password changed successfully",
	})
}

// GetLinkedAccounts handles GET /accounts
func (h *Handler) GetLinkedAccounts(w http.ResponseWriter, r *http.Request) {
	authUser, ok := client.FromContext(r.Context())
	if !ok {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, ErrorResponse{Error: "Unauthorized"})
		return
	}

	result, err := h.service.GetLinkedAccounts(r.Context(), authUser.UserUuid)
	if err != nil {
		slog.Error("Failed to list linked accounts", "error", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{Error: "An error occurred while listing linked accounts"})
		return
	}

	resp := AccountsResponse{
		Accounts:      make([]LinkedAccountResponse, 0, len(result.Accounts)),
		HasSocialAuth: result.HasSocialAuth,
	}
	if err := copier.Copy(&resp.Accounts, &result.Accounts); err != nil {
		slog.Error("Failed to map linked accounts", "error", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{Error: "An error occurred while listing linked accounts"})
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, resp)
}
