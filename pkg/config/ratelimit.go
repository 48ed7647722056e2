package config

import (
	"github.com/viralis/accountd/pkg/ratelimit"
)

// RateLimitConfig holds rate limiting configuration.
// Refill rates are tokens per second.
type RateLimitConfig struct {
	// Per-IP rate limiting applied to every request
	PerIPEnabled    bool    `env:"RATELIMIT_PER_IP_ENABLED" env-default:"true"`
	PerIPCapacity   int     `env:"RATELIMIT_PER_IP_CAPACITY" env-default:"100"`
	PerIPRefillRate float64 `env:"RATELIMIT_PER_IP_REFILL_RATE" env-default:"1.67"` // ~100 per minute

	// Email change request limits (each request sends two emails)
	EmailChangeCapacity   int     `env:"RATELIMIT_EMAIL_CHANGE_CAPACITY" env-default:"5"`
	EmailChangeRefillRate float64 `env:"RATELIMIT_EMAIL_CHANGE_REFILL_RATE" env-default:"0.0014"` // ~5 per hour

	// Resend limits, tighter still
	ResendCapacity   int     `env:"RATELIMIT_RESEND_CAPACITY" env-default:"3"`
	ResendRefillRate float64 `env:"RATELIMIT_RESEND_REFILL_RATE" env-default:"0.00083"` // ~3 per hour

	// Password change limits (to slow down credential stuffing)
	PasswordChangeCapacity   int     `env:"RATELIMIT_PASSWORD_CHANGE_CAPACITY" env-default:"10"`
	PasswordChangeRefillRate float64 `env:"RATELIMIT_PASSWORD_CHANGE_REFILL_RATE" env-default:"0.167"` // ~10 per minute
}

// ToMiddlewareConfig converts the env config into a ratelimit.Config with
// the mail-sending and credential endpoints capped individually.
func (c RateLimitConfig) ToMiddlewareConfig() *ratelimit.Config {
	config := ratelimit.DefaultConfig()
	config.PerIPEnabled = c.PerIPEnabled
	config.PerIPCapacity = c.PerIPCapacity
	config.PerIPRefillRate = c.PerIPRefillRate

	config.EndpointLimits["POST /email/change"] = ratelimit.EndpointLimit{
		Capacity:   c.EmailChangeCapacity,
		RefillRate: c.EmailChangeRefillRate,
	}
	config.EndpointLimits["POST /email/resend"] = ratelimit.EndpointLimit{
		Capacity:   c.ResendCapacity,
		RefillRate: c.ResendRefillRate,
	}
	config.EndpointLimits["POST /profile/password/change"] = ratelimit.EndpointLimit{
		Capacity:   c.PasswordChangeCapacity,
		RefillRate: c.PasswordChangeRefillRate,
	}

	return config
}
