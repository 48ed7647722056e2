package api

// ChangeEmailRequest is the body of POST /email/change
type ChangeEmailRequest struct {
	NewEmail        string `json:"newEmail"`
	CurrentPassword string `json:"currentPassword"`
	Locale          string `json:"locale,omitempty"`
}

// ResendRequest is the body of POST /email/resend
type ResendRequest struct {
	Locale string `json:"locale,omitempty"`
}

// VerifyRequest is the body of POST /email/verify
type VerifyRequest struct {
	Token string `json:"token"`
}

// ChangeEmailResponse is returned on an accepted change request
type ChangeEmailResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// VerifyResponse is returned by POST /email/verify
type VerifyResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ErrorResponse is the uniform error body
type ErrorResponse struct {
	Error string `json:"error"`
}
