package tokenstore

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// VerificationToken is a single-use, purpose-scoped verification token.
// Identifier combines a purpose tag and the subject id (e.g. "email-change-<uuid>")
// and is not unique: several tokens may exist for the same identifier, but only
// the most recently issued one is authoritative. Value is the high-entropy secret
// delivered inside a link and is the lookup key at verification time.
type VerificationToken struct {
	ID         uuid.UUID
	Identifier string
	Value      string
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// Expired reports whether the token is expired at the given instant.
// The boundary is inclusive: a token whose expiry equals now is expired.
func (t *VerificationToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// GenerateSecret generates a cryptographically secure random token secret.
func GenerateSecret() (string, error) {
	b := make([]byte, 32)
	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
