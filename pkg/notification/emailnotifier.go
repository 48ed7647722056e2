package notification

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"html/template"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"
)

const defaultSMTPTimeout = 30 * time.Second

type SMTPConfig struct {
	Host     string
	Port     int
	TLS      bool
	Username string
	Password string
	From     string

	// Timeout bounds each SMTP dial and send. Zero means defaultSMTPTimeout.
	Timeout time.Duration

	// TLSSkipVerify disables certificate verification. Only meant for
	// local catch-all servers with self-signed certificates.
	TLSSkipVerify bool
}

type EmailNotifier struct {
	SMTPConfig SMTPConfig
	client     *mail.Client
}

func NewEmailNotifier(config SMTPConfig) (*EmailNotifier, error) {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultSMTPTimeout
	}

	policy := mail.NoTLS
	if config.TLS {
		policy = mail.TLSMandatory
	}

	opts := []mail.Option{
		mail.WithPort(config.Port),
		mail.WithTimeout(timeout),
		mail.WithTLSPolicy(policy),
	}

	if config.TLSSkipVerify {
		slog.Warn("SMTP certificate verification disabled", "host", config.Host)
		opts = append(opts, mail.WithTLSConfig(&tls.Config{InsecureSkipVerify: true}))
	}

	// Only add authentication if username and password are provided
	if config.Username != "" && config.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthLogin),
			mail.WithUsername(config.Username),
			mail.WithPassword(config.Password),
		)
	}

	slog.Info("Creating mail client",
		"host", config.Host,
		"port", config.Port,
		"tlsPolicy", policy,
		"timeout", timeout,
		"auth", config.Username != "",
	)
	client, err := mail.NewClient(config.Host, opts...)
	if err != nil {
		slog.Error("Failed to create mail client", "err", err)
		return nil, err
	}

	return &EmailNotifier{SMTPConfig: config, client: client}, nil
}

func renderBody(name, text string, data map[string]string) (string, error) {
	if text == "" {
		return "", nil
	}
	tmpl, err := template.New(name).Parse(text)
	if err != nil {
		return "", fmt.Errorf("failed to parse %s template: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute %s template: %w", name, err)
	}
	return buf.String(), nil
}

func (e *EmailNotifier) Send(noticeType NoticeType, notification NotificationData, noticeTemplate NoticeTemplate) error {
	if notification.To == "" {
		return fmt.Errorf("email notification requires 'To' address")
	}

	textBody, err := renderBody("text", noticeTemplate.Text, notification.Data)
	if err != nil {
		slog.Error("Failed to render text body", "notice", noticeType, "err", err)
		return err
	}

	htmlBody, err := renderBody("html", noticeTemplate.Html, notification.Data)
	if err != nil {
		slog.Error("Failed to render HTML body", "notice", noticeType, "err", err)
		return err
	}

	msg := mail.NewMsg()
	if err := msg.From(e.SMTPConfig.From); err != nil {
		slog.Error("Failed to set from address", "err", err)
		return err
	}
	if err := msg.To(notification.To); err != nil {
		slog.Error("Failed to set to address", "err", err)
		return err
	}
	msg.Subject(noticeTemplate.Subject)

	if textBody != "" {
		msg.SetBodyString(mail.TypeTextPlain, textBody)
	}

	if htmlBody != "" {
		// If we already have a text body, add HTML as alternative
		if textBody != "" {
			msg.AddAlternativeString(mail.TypeTextHTML, htmlBody)
		} else {
			msg.SetBodyString(mail.TypeTextHTML, htmlBody)
		}
	}

	if err := e.client.DialAndSend(msg); err != nil {
		slog.Error("Failed to send email", "err", err)
		return err
	}

	slog.Info("Email sent successfully", "to", notification.To, "host", e.SMTPConfig.Host, "port", e.SMTPConfig.Port)
	return nil
}
