package emailchange

import "errors"

var (
	// ErrSocialAuthForbidden means the subject signed up through a social
	// provider and cannot change email or password here.
	ErrSocialAuthForbidden = errors.New("account uses social authentication")

	// ErrSameEmail means the requested address equals the current one.
	ErrSameEmail = errors.New("new email must be different from current email")

	// ErrEmailInUse means another subject already holds the requested address.
	ErrEmailInUse = errors.New("email address is already in use")

	// ErrNoPendingChange means no email change is in flight for the subject.
	ErrNoPendingChange = errors.New("no pending email change")

	// ErrInvalidToken covers unknown and already-consumed verification tokens.
	ErrInvalidToken = errors.New("invalid verification token")

	// ErrTokenExpired means the token existed but its lifetime has passed.
	ErrTokenExpired = errors.New("verification token has expired")

	// ErrMalformedToken means the stored token identifier could not be parsed.
	ErrMalformedToken = errors.New("malformed verification token")

	// ErrSubjectNotFound means the token points at a subject that no longer exists.
	ErrSubjectNotFound = errors.New("subject not found")
)
