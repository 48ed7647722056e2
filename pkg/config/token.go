package config

import (
	"fmt"
	"time"

	"github.com/sosodev/duration"
)

// TokenConfig holds the lifetimes of email change verification tokens,
// expressed as ISO 8601 durations (PT1H, P1D, ...).
type TokenConfig struct {
	RequestTokenExpiry string `env:"EMAIL_CHANGE_TOKEN_EXPIRY" env-default:"PT1H"`
	ResendTokenExpiry  string `env:"EMAIL_CHANGE_RESEND_TOKEN_EXPIRY" env-default:"P1D"`
}

// ParseRequestTokenExpiry parses the initial token lifetime
func (t TokenConfig) ParseRequestTokenExpiry() (time.Duration, error) {
	d, err := duration.Parse(t.RequestTokenExpiry)
	if err != nil {
		return 0, fmt.Errorf("invalid EMAIL_CHANGE_TOKEN_EXPIRY %q: %w", t.RequestTokenExpiry, err)
	}
	return d.ToTimeDuration(), nil
}

// ParseResendTokenExpiry parses the lifetime of resent tokens
func (t TokenConfig) ParseResendTokenExpiry() (time.Duration, error) {
	d, err := duration.Parse(t.ResendTokenExpiry)
	if err != nil {
		return 0, fmt.Errorf("invalid EMAIL_CHANGE_RESEND_TOKEN_EXPIRY %q: %w", t.ResendTokenExpiry, err)
	}
	return d.ToTimeDuration(), nil
}
