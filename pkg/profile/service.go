// Package profile exposes the account self-service operations that commit
// synchronously: password change and linked-account listing.
package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/viralis/accountd/pkg/identity"
	"github.com/viralis/accountd/pkg/notice"
	"github.com/viralis/accountd/pkg/notification"
)

// ErrSocialAuthForbidden means the subject's credential is owned by a social
// provider and cannot be changed here.
var ErrSocialAuthForbidden = errors.New("account uses social authentication")

// ProfileService handles password changes and linked-account queries.
type ProfileService struct {
	identityService     *identity.Service
	identities          identity.IdentityRepository
	notificationManager *notification.NotificationManager
	baseURL             string
}

// NewProfileService creates a new profile service
func NewProfileService(
	identityService *identity.Service,
	identities identity.IdentityRepository,
	notificationManager *notification.NotificationManager,
	baseURL string,
) *ProfileService {
	return &ProfileService{
		identityService:     identityService,
		identities:          identities,
		notificationManager: notificationManager,
		baseURL:             baseURL,
	}
}

// ChangePassword verifies and commits a new password, then sends a
// confirmation notice. Unlike email changes there is no token step; the
// current password is the proof of ownership.
func (s *ProfileService) ChangePassword(ctx context.Context, subjectID uuid.UUID, currentPassword, newPassword, rawLocale string) error {
	hasSocial, err := s.identityService.HasSocialAuth(ctx, subjectID)
	if err != nil {
		return fmt.Errorf("failed to check linked accounts: %w", err)
	}
	if hasSocial {
		return ErrSocialAuthForbidden
	}

	if err := s.identityService.ChangePassword(ctx, subjectID, currentPassword, newPassword); err != nil {
		return err
	}

	s.sendPasswordChangeNotice(ctx, subjectID, notice.ParseLocale(rawLocale))
	return nil
}

// LinkedAccounts is the result of GetLinkedAccounts.
type LinkedAccounts struct {
	Accounts      []identity.LinkedAccount
	HasSocialAuth bool
}

// GetLinkedAccounts lists the subject's external logins along with whether
// any of them triggers the social-auth guard.
func (s *ProfileService) GetLinkedAccounts(ctx context.Context, subjectID uuid.UUID) (LinkedAccounts, error) {
	accounts, err := s.identityService.ListLinkedAccounts(ctx, subjectID)
	if err != nil {
		return LinkedAccounts{}, err
	}

	hasSocial, err := s.identityService.HasSocialAuth(ctx, subjectID)
	if err != nil {
		return LinkedAccounts{}, err
	}

	return LinkedAccounts{
		Accounts:      accounts,
		HasSocialAuth: hasSocial,
	}, nil
}

// sendPasswordChangeNotice is best effort; the credential is already
// committed when it runs.
func (s *ProfileService) sendPasswordChangeNotice(ctx context.Context, subjectID uuid.UUID, locale notice.Locale) {
	if s.notificationManager == nil {
		return
	}

	ident, err := s.identities.GetByID(ctx, subjectID)
	if err != nil {
		slog.Error("Failed to load subject for password change notice", "subject_id", subjectID, "err", err)
		return
	}

	changeDate := time.Now().UTC().Format("January 2, 2006 15:04 MST")

	err = s.notificationManager.Send(
		notice.Localized(notice.PasswordChangeNotice, locale),
		notification.EmailSystem,
		notification.NotificationData{
			To: ident.Email,
			Data: map[string]string{
				"UserName":   ident.Name,
				"UserEmail":  ident.Email,
				"ChangeDate": changeDate,
				"SupportURL": fmt.Sprintf("%s/contact", s.baseURL),
			},
		},
	)
	if err != nil {
		slog.Error("Failed to send password change notice", "subject_id", subjectID, "err", err)
	}
}
