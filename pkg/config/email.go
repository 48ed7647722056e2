package config

import (
	"time"

	"github.com/viralis/accountd/pkg/notification"
)

// EmailConfig holds SMTP email configuration
type EmailConfig struct {
	Host          string        `env:"EMAIL_HOST" env-default:"localhost"`
	Port          uint16        `env:"EMAIL_PORT" env-default:"1025"`
	Username      string        `env:"EMAIL_USERNAME" env-default:"noreply@example.com"`
	Password      string        `env:"EMAIL_PASSWORD" env-default:"pwd"`
	From          string        `env:"EMAIL_FROM" env-default:"noreply@example.com"`
	TLS           bool          `env:"EMAIL_TLS" env-default:"false"`
	TLSSkipVerify bool          `env:"EMAIL_TLS_SKIP_VERIFY" env-default:"false"`
	Timeout       time.Duration `env:"EMAIL_TIMEOUT" env-default:"30s"`
}

// ToSMTPConfig converts the config to a notification.SMTPConfig
func (e EmailConfig) ToSMTPConfig() notification.SMTPConfig {
	return notification.SMTPConfig{
		Host:          e.Host,
		Port:          int(e.Port),
		Username:      e.Username,
		Password:      e.Password,
		From:          e.From,
		TLS:           e.TLS,
		TLSSkipVerify: e.TLSSkipVerify,
		Timeout:       e.Timeout,
	}
}

// NewEmailConfigFromEnv creates an EmailConfig from environment variables
func NewEmailConfigFromEnv() EmailConfig {
	return EmailConfig{
		Host:          GetEnvOrDefault("EMAIL_HOST", "localhost"),
		Port:          GetEnvUint16("EMAIL_PORT", 1025),
		Username:      GetEnvOrDefault("EMAIL_USERNAME", "noreply@example.com"),
		Password:      GetEnvOrDefault("EMAIL_PASSWORD", "pwd"),
		From:          GetEnvOrDefault("EMAIL_FROM", "noreply@example.com"),
		TLS:           GetEnvBool("EMAIL_TLS", false),
		TLSSkipVerify: GetEnvBool("EMAIL_TLS_SKIP_VERIFY", false),
		Timeout:       GetEnvDuration("EMAIL_TIMEOUT", 30*time.Second),
	}
}
