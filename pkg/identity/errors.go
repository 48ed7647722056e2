package identity

import "errors"

var (
	// ErrIdentityNotFound is returned when no identity exists for an id or email
	ErrIdentityNotFound = errors.New("identity not found")

	// ErrEmailInUse is returned when an email is already the primary address of another identity
	ErrEmailInUse = errors.New("email address is already in use")

	// ErrNoPendingChange is returned when an operation requires a pending email and none is set
	ErrNoPendingChange = errors.New("no pending email change found")

	// ErrInvalidCredential is returned when password verification fails
	ErrInvalidCredential = errors.New("current password is incorrect")

	// ErrPasswordTooShort is returned when a new password is below the minimum length
	ErrPasswordTooShort = errors.New("new password is below the minimum length")
)
