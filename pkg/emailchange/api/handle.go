package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/viralis/accountd/pkg/client"
	"github.com/viralis/accountd/pkg/emailchange"
	"github.com/viralis/accountd/pkg/identity"
)

// Handler exposes the email change flow over HTTP
type Handler struct {
	service *emailchange.EmailChangeService
}

// NewHandler creates a new email change API handler
func NewHandler(service *emailchange.EmailChangeService) *Handler {
	return &Handler{
		service: service,
	}
}

// Routes mounts the authenticated flow endpoints. Verify is mounted
// separately because the link is followed without a session.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/change", h.RequestEmailChange)
	r.Post("/resend", h.ResendVerification)
	r.Post("/cancel", h.CancelEmailChange)
}

// RequestEmailChange handles POST /email/change
func (h *Handler) RequestEmailChange(w http.ResponseWriter, r *http.Request) {
	authUser, ok := client.FromContext(r.Context())
	if !ok {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, ErrorResponse{Error: "Unauthorized"})
		return
	}

	var req ChangeEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode request body", "error", err)
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Invalid request body"})
		return
	}

	if _, err := mail.ParseAddress(req.NewEmail); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Invalid email address"})
		return
	}
	if req.CurrentPassword == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Current password is required"})
		return
	}

	locale := req.Locale
	if locale == "" {
		locale = authUser.Locale
	}

	err := h.service.RequestEmailChange(r.Context(), authUser.UserUuid, req.NewEmail, req.CurrentPassword, locale)
	if err != nil {
		status := http.StatusBadRequest
		message := "Failed to process email change request"

		switch {
		case errors.Is(err, emailchange.ErrSameEmail):
			message = "New email must be different from current email"
		case errors.Is(err, emailchange.ErrEmailInUse):
			message = "Email address is already in use"
		case errors.Is(err, emailchange.ErrSocialAuthForbidden):
			message = "Email cannot be changed for social login accounts"
		case errors.Is(err, identity.ErrInvalidCredential):
			message = "Current password is incorrect"
		default:
			slog.Error("Failed to request email change", "error", err)
			status = http.StatusInternalServerError
			message = "An error occurred while processing the email change request"
		}

		render.Status(r, status)
		render.JSON(w, r, ErrorResponse{Error: message})
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, ChangeEmailResponse{
		Success: true,
		Message: "Email change verification sent. Please check your new email address.",
	})
}

// ResendVerification handles POST /email/resend
func (h *Handler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	authUser, ok := client.FromContext(r.Context())
	if !ok {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, ErrorResponse{Error: "Unauthorized"})
		return
	}

	// Body is optional; an empty read means default locale.
	var req ResendRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	locale := req.Locale
	if locale == "" {
		locale = authUser.Locale
	}

	err := h.service.ResendVerification(r.Context(), authUser.UserUuid, locale)
	if err != nil {
		status := http.StatusBadRequest
		message := "Failed to resend verification email"

		switch {
		case errors.Is(err, emailchange.ErrNoPendingChange):
			message = "No pending email change to verify"
		default:
			slog.Error("Failed to resend email change verification", "error", err)
			status = http.StatusInternalServerError
			message = "An error occurred while resending the verification email"
		}

		render.Status(r, status)
		render.JSON(w, r, ErrorResponse{Error: message})
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, ChangeEmailResponse{
		Success: true,
		Message: "Verification email sent",
	})
}

// CancelEmailChange handles POST /email/cancel
func (h *Handler) CancelEmailChange(w http.ResponseWriter, r *http.Request) {
	authUser, ok := client.FromContext(r.Context())
	if !ok {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, ErrorResponse{Error: "Unauthorized"})
		return
	}

	if err := h.service.CancelEmailChange(r.Context(), authUser.UserUuid); err != nil {
		slog.Error("Failed to cancel email change", "error", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{Error: "An error occurred while cancelling the email change"})
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, ChangeEmailResponse{
		Success: true,
		Message: "Email change cancelled",
	})
}

// VerifyEmailChange handles POST /email/verify. Unauthenticated: the link in
// the email is its own credential.
func (h *Handler) VerifyEmailChange(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode request body", "error", err)
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Invalid request body"})
		return
	}

	if req.Token == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Token is required"})
		return
	}

	status, err := h.service.VerifyEmailChange(r.Context(), req.Token)
	if err != nil {
		httpStatus := http.StatusBadRequest
		message := "Failed to verify email change"

		switch {
		case errors.Is(err, emailchange.ErrInvalidToken):
			message = "Invalid verification token"
		case errors.Is(err, emailchange.ErrTokenExpired):
			message = "Verification token has expired"
		case errors.Is(err, emailchange.ErrMalformedToken):
			message = "Invalid verification token"
		case errors.Is(err, emailchange.ErrNoPendingChange):
			message = "No pending email change to verify"
		case errors.Is(err, emailchange.ErrEmailInUse):
			message = "Email address is already in use"
		case errors.Is(err, emailchange.ErrSubjectNotFound):
			httpStatus = http.StatusNotFound
			message = "User not found"
		default:
			slog.Error("Failed to verify email change", "error", err)
			httpStatus = http.StatusInternalServerError
			message = "An error occurred while verifying the email change"
		}

		render.Status(r, httpStatus)
		render.JSON(w, r, VerifyResponse{Status: string(status), Message: message})
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, VerifyResponse{
		Status:  string(status),
		Message: "Email address updated successfully",
	})
}
