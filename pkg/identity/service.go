package identity

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// DefaultMinPasswordLength is the minimum accepted length for new passwords
const DefaultMinPasswordLength = 8

// DefaultSocialProviders are the provider ids recognized by the social-auth guard
var DefaultSocialProviders = []string{"google", "discord"}

// SessionInvalidator revokes active sessions for a subject after a credential
// change. Invalidation is best effort: a failure is logged, never surfaced.
type SessionInvalidator interface {
	InvalidateSessions(ctx context.Context, subjectID uuid.UUID) error
}

// NoopSessionInvalidator is a SessionInvalidator that does nothing
type NoopSessionInvalidator struct{}

func (NoopSessionInvalidator) InvalidateSessions(ctx context.Context, subjectID uuid.UUID) error {
	return nil
}

// Service is the identity-provider boundary consumed by the change flows. It
// owns credential verification and commit, and the social-auth guard.
type Service struct {
	repo              IdentityRepository
	invalidator       SessionInvalidator
	minPasswordLength int
	socialProviders   map[string]bool
}

// ServiceOption defines configuration options for the identity service
type ServiceOption func(*Service)

// WithSessionInvalidator sets the session invalidator used after password changes
func WithSessionInvalidator(inv SessionInvalidator) ServiceOption {
	return func(s *Service) {
		s.invalidator = inv
	}
}

// WithMinPasswordLength sets the minimum accepted new-password length
func WithMinPasswordLength(n int) ServiceOption {
	return func(s *Service) {
		s.minPasswordLength = n
	}
}

// WithSocialProviders sets the provider ids the social-auth guard recognizes
func WithSocialProviders(providers ...string) ServiceOption {
	return func(s *Service) {
		s.socialProviders = make(map[string]bool, len(providers))
		for _, p := range providers {
			s.socialProviders[p] = true
		}
	}
}

// NewService creates a new identity service
func NewService(repo IdentityRepository, opts ...ServiceOption) *Service {
	service := &Service{
		repo:              repo,
		invalidator:       NoopSessionInvalidator{},
		minPasswordLength: DefaultMinPasswordLength,
	}

	for _, opt := range opts {
		opt(service)
	}

	if service.socialProviders == nil {
		service.socialProviders = make(map[string]bool, len(DefaultSocialProviders))
		for _, p := range DefaultSocialProviders {
			service.socialProviders[p] = true
		}
	}

	return service
}

// HashPassword hashes a plain-text password using bcrypt.
func HashPassword(password string) ([]byte, error) {
	if password == "" {
		return nil, fmt.Errorf("password cannot be empty")
	}

	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

// VerifyPassword checks a plain-text password against the subject's stored
// credential. Returns ErrInvalidCredential on mismatch or missing credential.
func (s *Service) VerifyPassword(ctx context.Context, subjectID uuid.UUID, password string) error {
	ident, err := s.repo.GetByID(ctx, subjectID)
	if err != nil {
		return err
	}

	if password == "" || len(ident.PasswordHash) == 0 {
		return ErrInvalidCredential
	}

	if err := bcrypt.CompareHashAndPassword(ident.PasswordHash, []byte(password)); err != nil {
		return ErrInvalidCredential
	}

	return nil
}

// ChangePassword verifies the current password and commits the new credential.
// The commit is synchronous; there is no token step for password changes.
func (s *Service) ChangePassword(ctx context.Context, subjectID uuid.UUID, currentPassword, newPassword string) error {
	if len(newPassword) < s.minPasswordLength {
		return ErrPasswordTooShort
	}

	if err := s.VerifyPassword(ctx, subjectID, currentPassword); err != nil {
		return err
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.repo.UpdatePasswordHash(ctx, subjectID, hash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	if err := s.invalidator.InvalidateSessions(ctx, subjectID); err != nil {
		slog.Error("Failed to invalidate sessions after password change", "subject_id", subjectID, "err", err)
		// Credential is already committed; do not fail the operation
	}

	return nil
}

// HasSocialAuth reports whether the subject has at least one linked account
// of a recognized social provider. Computed from linked accounts, not stored.
func (s *Service) HasSocialAuth(ctx context.Context, subjectID uuid.UUID) (bool, error) {
	accounts, err := s.repo.ListLinkedAccounts(ctx, subjectID)
	if err != nil {
		return false, err
	}

	for _, acc := range accounts {
		if s.socialProviders[acc.ProviderID] {
			return true, nil
		}
	}

	return false, nil
}

// ListLinkedAccounts returns the subject's linked external logins
func (s *Service) ListLinkedAccounts(ctx context.Context, subjectID uuid.UUID) ([]LinkedAccount, error) {
	return s.repo.ListLinkedAccounts(ctx, subjectID)
}
