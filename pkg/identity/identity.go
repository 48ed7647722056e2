package identity

import (
	"time"

	"github.com/google/uuid"
)

// Identity is the subset of a user record this service owns. The password
// credential is opaque: it is only ever compared or replaced through the
// Service, never inspected.
type Identity struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	PendingEmail  *string    `json:"pending_email,omitempty"`
	EmailVerified bool       `json:"email_verified"`
	PasswordHash  []byte     `json:"password_hash,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// LinkedAccount is an external login linked to an identity.
type LinkedAccount struct {
	ProviderID string `json:"provider_id"`
	AccountID  string `json:"account_id"`
}
