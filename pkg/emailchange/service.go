package emailchange

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/viralis/accountd/pkg/identity"
	"github.com/viralis/accountd/pkg/notice"
	"github.com/viralis/accountd/pkg/notification"
	"github.com/viralis/accountd/pkg/tokenstore"
)

// tokenIdentifierPrefix scopes verification tokens to the email change flow.
// The wipe on supersede and cancel is keyed on the full identifier, so tokens
// of other flows sharing the store are never touched.
const tokenIdentifierPrefix = "email-change-"

// EmailChangeService drives the token-gated email change flow: request,
// resend, cancel, and link verification.
type EmailChangeService struct {
	tokens              tokenstore.TokenRepository
	identities          identity.IdentityRepository
	identityService     *identity.Service
	notificationManager *notification.NotificationManager
	baseURL             string
	requestTokenExpiry  time.Duration
	resendTokenExpiry   time.Duration
}

// EmailChangeServiceOption defines configuration options
type EmailChangeServiceOption func(*EmailChangeService)

// WithRequestTokenExpiry sets the lifetime of tokens issued by RequestEmailChange
func WithRequestTokenExpiry(expiry time.Duration) EmailChangeServiceOption {
	return func(s *EmailChangeService) {
		s.requestTokenExpiry = expiry
	}
}

// WithResendTokenExpiry sets the lifetime of tokens issued by ResendVerification
func WithResendTokenExpiry(expiry time.Duration) EmailChangeServiceOption {
	return func(s *EmailChangeService) {
		s.resendTokenExpiry = expiry
	}
}

// NewEmailChangeService creates a new email change service
func NewEmailChangeService(
	tokens tokenstore.TokenRepository,
	identities identity.IdentityRepository,
	identityService *identity.Service,
	notificationManager *notification.NotificationManager,
	baseURL string,
	opts ...EmailChangeServiceOption,
) *EmailChangeService {
	service := &EmailChangeService{
		tokens:              tokens,
		identities:          identities,
		identityService:     identityService,
		notificationManager: notificationManager,
		baseURL:             baseURL,
		requestTokenExpiry:  1 * time.Hour,
		// Resent links live longer than initial ones on purpose: a user who
		// has to ask twice is a user whose mail is slow.
		resendTokenExpiry: 24 * time.Hour,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service
}

func tokenIdentifier(subjectID uuid.UUID) string {
	return tokenIdentifierPrefix + subjectID.String()
}

func parseTokenIdentifier(identifier string) (uuid.UUID, error) {
	raw, ok := strings.CutPrefix(identifier, tokenIdentifierPrefix)
	if !ok {
		return uuid.Nil, ErrMalformedToken
	}
	subjectID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, ErrMalformedToken
	}
	return subjectID, nil
}

// RequestEmailChange starts an email change for the subject. On success a
// verification link is mailed to the new address and a heads-up notice to the
// current one. Any previously issued change token is superseded.
func (s *EmailChangeService) RequestEmailChange(ctx context.Context, subjectID uuid.UUID, newEmail, currentPassword, rawLocale string) error {
	ident, err := s.identities.GetByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, identity.ErrIdentityNotFound) {
			return ErrSubjectNotFound
		}
		return fmt.Errorf("failed to load subject: %w", err)
	}

	hasSocial, err := s.identityService.HasSocialAuth(ctx, subjectID)
	if err != nil {
		return fmt.Errorf("failed to check linked accounts: %w", err)
	}
	if hasSocial {
		return ErrSocialAuthForbidden
	}

	if newEmail == ident.Email {
		return ErrSameEmail
	}

	taken, err := s.identities.EmailTaken(ctx, newEmail, subjectID)
	if err != nil {
		return fmt.Errorf("failed to check email availability: %w", err)
	}
	if taken {
		return ErrEmailInUse
	}

	if err := s.identityService.VerifyPassword(ctx, subjectID, currentPassword); err != nil {
		return err
	}

	// Supersede: at most one live token per subject.
	identifier := tokenIdentifier(subjectID)
	if err := s.tokens.DeleteByIdentifier(ctx, identifier); err != nil {
		return fmt.Errorf("failed to supersede existing tokens: %w", err)
	}

	secret, err := tokenstore.GenerateSecret()
	if err != nil {
		return err
	}

	token, err := s.tokens.Create(ctx, identifier, secret, time.Now().UTC().Add(s.requestTokenExpiry))
	if err != nil {
		return fmt.Errorf("failed to create verification token: %w", err)
	}

	if err := s.identities.SetPendingEmail(ctx, subjectID, &newEmail); err != nil {
		return fmt.Errorf("failed to store pending email: %w", err)
	}

	locale := notice.ParseLocale(rawLocale)
	if err := s.sendVerificationEmail(ident, newEmail, secret, locale); err != nil {
		slog.Error("Failed to send verification email", "subject_id", subjectID, "err", err)
		// Token and pending email are stored; the user can resend.
	}

	s.sendChangeNotice(ident, newEmail, locale)

	slog.Info("Email change requested", "subject_id", subjectID, "expires_at", token.ExpiresAt)
	return nil
}

// ResendVerification reissues the verification link for an in-flight change.
// The previous token stops working immediately.
func (s *EmailChangeService) ResendVerification(ctx context.Context, subjectID uuid.UUID, rawLocale string) error {
	ident, err := s.identities.GetByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, identity.ErrIdentityNotFound) {
			return ErrSubjectNotFound
		}
		return fmt.Errorf("failed to load subject: %w", err)
	}

	if ident.PendingEmail == nil {
		return ErrNoPendingChange
	}

	identifier := tokenIdentifier(subjectID)
	if err := s.tokens.DeleteByIdentifier(ctx, identifier); err != nil {
		return fmt.Errorf("failed to supersede existing tokens: %w", err)
	}

	secret, err := tokenstore.GenerateSecret()
	if err != nil {
		return err
	}

	token, err := s.tokens.Create(ctx, identifier, secret, time.Now().UTC().Add(s.resendTokenExpiry))
	if err != nil {
		return fmt.Errorf("failed to create verification token: %w", err)
	}

	locale := notice.ParseLocale(rawLocale)
	if err := s.sendVerificationEmail(ident, *ident.PendingEmail, secret, locale); err != nil {
		slog.Error("Failed to resend verification email", "subject_id", subjectID, "err", err)
	}

	slog.Info("Email change verification resent", "subject_id", subjectID, "expires_at", token.ExpiresAt)
	return nil
}

// CancelEmailChange abandons an in-flight change. Idempotent: cancelling when
// nothing is pending is not an error.
func (s *EmailChangeService) CancelEmailChange(ctx context.Context, subjectID uuid.UUID) error {
	if err := s.identities.SetPendingEmail(ctx, subjectID, nil); err != nil {
		if errors.Is(err, identity.ErrIdentityNotFound) {
			return ErrSubjectNotFound
		}
		return fmt.Errorf("failed to clear pending email: %w", err)
	}

	if err := s.tokens.DeleteByIdentifier(ctx, tokenIdentifier(subjectID)); err != nil {
		return fmt.Errorf("failed to delete verification tokens: %w", err)
	}

	slog.Info("Email change cancelled", "subject_id", subjectID)
	return nil
}

// VerifyEmailChange resolves a verification link. Exactly one submission of a
// given secret can reach StatusSuccess; the token is consumed before the
// commit so a concurrent duplicate observes ErrInvalidToken.
func (s *EmailChangeService) VerifyEmailChange(ctx context.Context, secret string) (VerificationStatus, error) {
	token, err := s.tokens.GetByValue(ctx, secret)
	if err != nil {
		if errors.Is(err, tokenstore.ErrTokenNotFound) {
			return StatusError, ErrInvalidToken
		}
		return StatusError, fmt.Errorf("failed to look up token: %w", err)
	}

	now := time.Now().UTC()
	if token.Expired(now) {
		// Destructive read: an expired token is gone after the first look.
		if _, err := s.tokens.ConsumeByID(ctx, token.ID); err != nil {
			slog.Error("Failed to delete expired token", "token_id", token.ID, "err", err)
		}
		slog.Warn("Verification token expired", "token_id", token.ID, "expires_at", token.ExpiresAt)
		return StatusExpired, ErrTokenExpired
	}

	subjectID, err := parseTokenIdentifier(token.Identifier)
	if err != nil {
		slog.Error("Malformed token identifier", "token_id", token.ID, "identifier", token.Identifier)
		return StatusError, ErrMalformedToken
	}

	ident, err := s.identities.GetByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, identity.ErrIdentityNotFound) {
			return StatusError, ErrSubjectNotFound
		}
		return StatusError, fmt.Errorf("failed to load subject: %w", err)
	}

	if ident.PendingEmail == nil {
		return StatusError, ErrNoPendingChange
	}

	taken, err := s.identities.EmailTaken(ctx, *ident.PendingEmail, subjectID)
	if err != nil {
		return StatusError, fmt.Errorf("failed to check email availability: %w", err)
	}
	if taken {
		return StatusError, ErrEmailInUse
	}

	// Consume before commit: losers of a concurrent race stop here.
	consumed, err := s.tokens.ConsumeByID(ctx, token.ID)
	if err != nil {
		return StatusError, fmt.Errorf("failed to consume token: %w", err)
	}
	if !consumed {
		return StatusError, ErrInvalidToken
	}

	oldEmail := ident.Email
	newEmail, err := s.identities.CommitEmailChange(ctx, subjectID)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrEmailInUse):
			return StatusError, ErrEmailInUse
		case errors.Is(err, identity.ErrNoPendingChange):
			return StatusError, ErrNoPendingChange
		}
		return StatusError, fmt.Errorf("failed to commit email change: %w", err)
	}

	// Cleanup is idempotent; the winning token is already gone.
	if err := s.tokens.DeleteByIdentifier(ctx, token.Identifier); err != nil {
		slog.Error("Failed to clean up verification tokens", "subject_id", subjectID, "err", err)
	}

	s.sendChangeNotice(&identity.Identity{Name: ident.Name, Email: oldEmail}, newEmail, notice.LocaleEN)

	slog.Info("Email change committed", "subject_id", subjectID)
	return StatusSuccess, nil
}

func displayName(ident *identity.Identity) string {
	if ident.Name != "" {
		return ident.Name
	}
	name, _, _ := strings.Cut(ident.Email, "@")
	return name
}

func (s *EmailChangeService) sendVerificationEmail(ident *identity.Identity, newEmail, secret string, locale notice.Locale) error {
	if s.notificationManager == nil {
		slog.Warn("Notification manager not configured, skipping email send")
		return nil
	}

	verificationURL := fmt.Sprintf("%s/%s/verify-email-change?token=%s", s.baseURL, locale, secret)

	return s.notificationManager.Send(
		notice.Localized(notice.EmailChangeVerificationNotice, locale),
		notification.EmailSystem,
		notification.NotificationData{
			To: newEmail,
			Data: map[string]string{
				"UserName":        displayName(ident),
				"NewEmail":        newEmail,
				"VerificationURL": verificationURL,
			},
		},
	)
}

// sendChangeNotice warns the current address. Best effort, never propagated.
func (s *EmailChangeService) sendChangeNotice(ident *identity.Identity, newEmail string, locale notice.Locale) {
	if s.notificationManager == nil {
		return
	}

	err := s.notificationManager.Send(
		notice.Localized(notice.EmailChangeNotice, locale),
		notification.EmailSystem,
		notification.NotificationData{
			To: ident.Email,
			Data: map[string]string{
				"UserName":   displayName(ident),
				"OldEmail":   ident.Email,
				"NewEmail":   newEmail,
				"SupportURL": fmt.Sprintf("%s/contact", s.baseURL),
			},
		},
	)
	if err != nil {
		slog.Error("Failed to send email change notice", "to", ident.Email, "err", err)
	}
}
