package emailchange

import (
	"context"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viralis/accountd/pkg/identity"
	"github.com/viralis/accountd/pkg/notice"
	"github.com/viralis/accountd/pkg/notification"
	"github.com/viralis/accountd/pkg/tokenstore"
)

const testPassword = "correct horse battery"

type fixture struct {
	service    *EmailChangeService
	tokens     *tokenstore.FileTokenRepository
	identities *identity.FileIdentityRepository
	mock       *notification.MockNotifier
	subject    *identity.Identity
}

func newFixture(t *testing.T, opts ...EmailChangeServiceOption) *fixture {
	t.Helper()
	dir := t.TempDir()

	tokens, err := tokenstore.NewFileTokenRepository(filepath.Join(dir, "tokens"))
	require.NoError(t, err)
	identities, err := identity.NewFileIdentityRepository(filepath.Join(dir, "identities"))
	require.NoError(t, err)

	hash, err := identity.HashPassword(testPassword)
	require.NoError(t, err)
	now := time.Now().UTC()
	subject := &identity.Identity{
		ID:            mustUUID(t),
		Name:          "Alice",
		Email:         "alice@example.com",
		EmailVerified: true,
		PasswordHash:  hash,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, identities.Create(context.Background(), subject))

	mock := &notification.MockNotifier{}
	nm := notification.NewNotificationManager("http://localhost:3000")
	nm.RegisterNotifier(notification.EmailSystem, mock)
	require.NoError(t, notice.RegisterTemplates(nm))

	identityService := identity.NewService(identities)
	service := NewEmailChangeService(tokens, identities, identityService, nm, "http://localhost:3000", opts...)

	return &fixture{
		service:    service,
		tokens:     tokens,
		identities: identities,
		mock:       mock,
		subject:    subject,
	}
}

func mustUUID(t *testing.T) uuid.UUID {
	t.Helper()
	return uuid.New()
}

// issuedSecret digs the verification link out of the captured send and
// returns its token query param, the way a user's mail client would.
func issuedSecret(t *testing.T, f *fixture) string {
	t.Helper()
	for i := len(f.mock.SentNotifications) - 1; i >= 0; i-- {
		link, ok := f.mock.SentNotifications[i].Data["VerificationURL"]
		if !ok {
			continue
		}
		u, err := url.Parse(link)
		require.NoError(t, err)
		secret := u.Query().Get("token")
		require.NotEmpty(t, secret)
		return secret
	}
	t.Fatal("no verification email captured")
	return ""
}

func TestRequestEmailChange(t *testing.T) {
	ctx := context.Background()

	t.Run("HappyPath", func(t *testing.T) {
		f := newFixture(t)

		require.NoError(t, f.service.RequestEmailChange(ctx, f.subject.ID, "new@example.com", testPassword, "en"))

		got, err := f.identities.GetByID(ctx, f.subject.ID)
		require.NoError(t, err)
		require.NotNil(t, got.PendingEmail)
		assert.Equal(t, "new@example.com", *got.PendingEmail)
		assert.Equal(t, "alice@example.com", got.Email, "address unchanged until verified")

		// Verification to the new address plus a notice to the old one.
		require.Len(t, f.mock.SentNotifications, 2)
		assert.Equal(t, "new@example.com", f.mock.SentNotifications[0].To)
		assert.Equal(t, "alice@example.com", f.mock.SentNotifications[1].To)

		link := f.mock.SentNotifications[0].Data["VerificationURL"]
		assert.True(t, strings.HasPrefix(link, "http://localhost:3000/en/verify-email-change?token="), link)
	})

	t.Run("FrenchLocaleLink", func(t *testing.T) {
		f := newFixture(t)

		require.NoError(t, f.service.RequestEmailChange(ctx, f.subject.ID, "new@example.com", testPassword, "fr"))

		link := f.mock.SentNotifications[0].Data["VerificationURL"]
		assert.Contains(t, link, "/fr/verify-email-change?token=")
	})

	t.Run("SameEmail", func(t *testing.T) {
		f := newFixture(t)

		err := f.service.RequestEmailChange(ctx, f.subject.ID, "alice@example.com", testPassword, "en")
		assert.ErrorIs(t, err, ErrSameEmail)
		assert.Empty(t, f.mock.SentNotifications)
	})

	t.Run("EmailInUse", func(t *testing.T) {
		f := newFixture(t)
		other := &identity.Identity{ID: mustUUID(t), Email: "taken@example.com"}
		require.NoError(t, f.identities.Create(ctx, other))

		err := f.service.RequestEmailChange(ctx, f.subject.ID, "taken@example.com", testPassword, "en")
		assert.ErrorIs(t, err, ErrEmailInUse)

		// Refused requests leave no trace: no token, no pending, no mail.
		got, err2 := f.identities.GetByID(ctx, f.subject.ID)
		require.NoError(t, err2)
		assert.Nil(t, got.PendingEmail)
		assert.Empty(t, f.mock.SentNotifications)
		_, err = f.tokens.GetByValue(ctx, "anything")
		assert.ErrorIs(t, err, tokenstore.ErrTokenNotFound)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		f := newFixture(t)

		err := f.service.RequestEmailChange(ctx, f.subject.ID, "new@example.com", "wrong", "en")
		assert.ErrorIs(t, err, identity.ErrInvalidCredential)
		assert.Empty(t, f.mock.SentNotifications)
	})

	t.Run("SocialAuthRefused", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.identities.AddLinkedAccount(ctx, f.subject.ID, identity.LinkedAccount{ProviderID: "google", AccountID: "g-1"}))

		// Refused even with valid inputs.
		err := f.service.RequestEmailChange(ctx, f.subject.ID, "new@example.com", testPassword, "en")
		assert.ErrorIs(t, err, ErrSocialAuthForbidden)
		assert.Empty(t, f.mock.SentNotifications)
	})

	t.Run("SupersedesPreviousToken", func(t *testing.T) {
		f := newFixture(t)

		require.NoError(t, f.service.RequestEmailChange(ctx, f.subject.ID, "first@example.com", testPassword, "en"))
		firstSecret := issuedSecret(t, f)

		require.NoError(t, f.service.RequestEmailChange(ctx, f.subject.ID, "second@example.com", testPassword, "en"))

		_, err := f.tokens.GetByValue(ctx, firstSecret)
		assert.ErrorIs(t, err, tokenstore.ErrTokenNotFound, "earlier secret is dead")
	})
}

func TestResendVerification(t *testing.T) {
	ctx := context.Background()

	t.Run("NoPendingChange", func(t *testing.T) {
		f := newFixture(t)
		err := f.service.ResendVerification(ctx, f.subject.ID, "en")
		assert.ErrorIs(t, err, ErrNoPendingChange)
	})

	t.Run("SupersedesAndDelivers", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.service.RequestEmailChange(ctx, f.subject.ID, "new@example.com", testPassword, "en"))
		firstSecret := issuedSecret(t, f)

		require.NoError(t, f.service.ResendVerification(ctx, f.subject.ID, "en"))
		secondSecret := issuedSecret(t, f)
		require.NotEqual(t, firstSecret, secondSecret)

		// Old secret no longer verifies; the fresh one commits the change.
		status, err := f.service.VerifyEmailChange(ctx, firstSecret)
		assert.ErrorIs(t, err, ErrInvalidToken)
		assert.Equal(t, StatusError, status)

		status, err = f.service.VerifyEmailChange(ctx, secondSecret)
		require.NoError(t, err)
		assert.Equal(t, StatusSuccess, status)

		got, err := f.identities.GetByID(ctx, f.subject.ID)
		require.NoError(t, err)
		assert.Equal(t, "new@example.com", got.Email)
		assert.Nil(t, got.PendingEmail)
		assert.True(t, got.EmailVerified)
	})

	t.Run("ResendExpiryIsLonger", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.service.RequestEmailChange(ctx, f.subject.ID, "new@example.com", testPassword, "en"))
		first, err := f.tokens.GetByValue(ctx, issuedSecret(t, f))
		require.NoError(t, err)

		require.NoError(t, f.service.ResendVerification(ctx, f.subject.ID, "en"))
		second, err := f.tokens.GetByValue(ctx, issuedSecret(t, f))
		require.NoError(t, err)

		firstLife := first.ExpiresAt.Sub(first.CreatedAt)
		secondLife := second.ExpiresAt.Sub(second.CreatedAt)
		assert.Greater(t, secondLife, firstLife)
	})
}

func TestCancelEmailChange(t *testing.T) {
	ctx := context.Background()

	t.Run("AbandonsInFlightChange", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.service.RequestEmailChange(ctx, f.subject.ID, "new@example.com", testPassword, "en"))
		secret := issuedSecret(t, f)

		require.NoError(t, f.service.CancelEmailChange(ctx, f.subject.ID))

		got, err := f.identities.GetByID(ctx, f.subject.ID)
		require.NoError(t, err)
		assert.Nil(t, got.PendingEmail)

		status, err := f.service.VerifyEmailChange(ctx, secret)
		assert.ErrorIs(t, err, ErrInvalidToken)
		assert.Equal(t, StatusError, status)
	})

	t.Run("Idempotent", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.service.CancelEmailChange(ctx, f.subject.ID))
		require.NoError(t, f.service.CancelEmailChange(ctx, f.subject.ID))
	})
}

func TestVerifyEmailChange(t *testing.T) {
	ctx := context.Background()

	t.Run("UnknownSecret", func(t *testing.T) {
		f := newFixture(t)
		status, err := f.service.VerifyEmailChange(ctx, "never-issued")
		assert.ErrorIs(t, err, ErrInvalidToken)
		assert.Equal(t, StatusError, status)
	})

	t.Run("Success", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.service.RequestEmailChange(ctx, f.subject.ID, "new@example.com", testPassword, "en"))

		status, err := f.service.VerifyEmailChange(ctx, issuedSecret(t, f))
		require.NoError(t, err)
		assert.Equal(t, StatusSuccess, status)

		got, err := f.identities.GetByID(ctx, f.subject.ID)
		require.NoError(t, err)
		assert.Equal(t, "new@example.com", got.Email)
		assert.Nil(t, got.PendingEmail)
		assert.True(t, got.EmailVerified)
	})

	t.Run("DoubleSubmission", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.service.RequestEmailChange(ctx, f.subject.ID, "new@example.com", testPassword, "en"))
		secret := issuedSecret(t, f)

		status, err := f.service.VerifyEmailChange(ctx, secret)
		require.NoError(t, err)
		require.Equal(t, StatusSuccess, status)

		status, err = f.service.VerifyEmailChange(ctx, secret)
		assert.ErrorIs(t, err, ErrInvalidToken)
		assert.Equal(t, StatusError, status)
	})

	t.Run("ConcurrentSubmissions", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.service.RequestEmailChange(ctx, f.subject.ID, "new@example.com", testPassword, "en"))
		secret := issuedSecret(t, f)

		const submissions = 8
		results := make([]VerificationStatus, submissions)
		var wg sync.WaitGroup
		for i := 0; i < submissions; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], _ = f.service.VerifyEmailChange(ctx, secret)
			}(i)
		}
		wg.Wait()

		successes := 0
		for _, status := range results {
			if status == StatusSuccess {
				successes++
			}
		}
		assert.Equal(t, 1, successes, "exactly one submission may win")
	})

	t.Run("ExpiredTokenDestructiveRead", func(t *testing.T) {
		f := newFixture(t, WithRequestTokenExpiry(-time.Minute))
		require.NoError(t, f.service.RequestEmailChange(ctx, f.subject.ID, "new@example.com", testPassword, "en"))
		secret := issuedSecret(t, f)

		status, err := f.service.VerifyEmailChange(ctx, secret)
		assert.ErrorIs(t, err, ErrTokenExpired)
		assert.Equal(t, StatusExpired, status)

		// Second look: the expired token is gone.
		status, err = f.service.VerifyEmailChange(ctx, secret)
		assert.ErrorIs(t, err, ErrInvalidToken)
		assert.Equal(t, StatusError, status)
	})

	t.Run("MalformedIdentifier", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.tokens.Create(ctx, "password-reset-"+f.subject.ID.String(), "stray-secret", time.Now().UTC().Add(time.Hour))
		require.NoError(t, err)

		status, err := f.service.VerifyEmailChange(ctx, "stray-secret")
		assert.ErrorIs(t, err, ErrMalformedToken)
		assert.Equal(t, StatusError, status)
	})

	t.Run("SubjectDeleted", func(t *testing.T) {
		f := newFixture(t)
		orphan := mustUUID(t)
		_, err := f.tokens.Create(ctx, "email-change-"+orphan.String(), "orphan-secret", time.Now().UTC().Add(time.Hour))
		require.NoError(t, err)

		status, err := f.service.VerifyEmailChange(ctx, "orphan-secret")
		assert.ErrorIs(t, err, ErrSubjectNotFound)
		assert.Equal(t, StatusError, status)
	})

	t.Run("PendingClearedUnderfoot", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.service.RequestEmailChange(ctx, f.subject.ID, "new@example.com", testPassword, "en"))
		secret := issuedSecret(t, f)

		require.NoError(t, f.identities.SetPendingEmail(ctx, f.subject.ID, nil))

		status, err := f.service.VerifyEmailChange(ctx, secret)
		assert.ErrorIs(t, err, ErrNoPendingChange)
		assert.Equal(t, StatusError, status)
	})

	t.Run("AddressTakenSinceRequest", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.service.RequestEmailChange(ctx, f.subject.ID, "contested@example.com", testPassword, "en"))
		secret := issuedSecret(t, f)

		squatter := &identity.Identity{ID: mustUUID(t), Email: "contested@example.com"}
		require.NoError(t, f.identities.Create(ctx, squatter))

		status, err := f.service.VerifyEmailChange(ctx, secret)
		assert.ErrorIs(t, err, ErrEmailInUse)
		assert.Equal(t, StatusError, status)

		got, err := f.identities.GetByID(ctx, f.subject.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", got.Email)
	})
}

func TestParseTokenIdentifier(t *testing.T) {
	f := newFixture(t)

	id, err := parseTokenIdentifier(tokenIdentifier(f.subject.ID))
	require.NoError(t, err)
	assert.Equal(t, f.subject.ID, id)

	_, err = parseTokenIdentifier("email-change-not-a-uuid")
	assert.ErrorIs(t, err, ErrMalformedToken)

	_, err = parseTokenIdentifier(f.subject.ID.String())
	assert.ErrorIs(t, err, ErrMalformedToken, "bare subject id has no flow prefix")
}
