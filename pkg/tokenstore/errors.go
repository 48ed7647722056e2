package tokenstore

import "errors"

var (
	// ErrTokenNotFound is returned when no token exists for a secret value
	ErrTokenNotFound = errors.New("verification token not found")
)
