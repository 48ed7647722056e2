package notice

import (
	"embed"
	"fmt"
	"log/slog"

	"github.com/viralis/accountd/pkg/notification"
)

// Notice types for the account change flows.
const (
	// EmailChangeVerificationNotice carries the verification link. Sent to
	// the requested (new) address.
	EmailChangeVerificationNotice notification.NoticeType = "email_change_verification"

	// EmailChangeNotice warns the current (old) address that a change was
	// requested.
	EmailChangeNotice notification.NoticeType = "email_change_notification"

	// PasswordChangeNotice confirms a committed password change.
	PasswordChangeNotice notification.NoticeType = "password_change_notification"
)

//go:embed templates/*
var templateFiles embed.FS

func loadTemplate(filename string) string {
	content, err := templateFiles.ReadFile(filename)
	if err != nil {
		slog.Error("Error reading template file!", "err", err, "filename", filename)
		return ""
	}
	return string(content)
}

// Localized returns the registry key for a notice type in a given locale.
// Templates are registered once per (notice, locale) pair under this key.
func Localized(noticeType notification.NoticeType, locale Locale) notification.NoticeType {
	return notification.NoticeType(fmt.Sprintf("%s.%s", noticeType, locale))
}

var subjects = map[notification.NoticeType]map[Locale]string{
	EmailChangeVerificationNotice: {
		LocaleEN: "Verify your new email address",
		LocaleFR: "Vérifiez votre nouvelle adresse email",
	},
	EmailChangeNotice: {
		LocaleEN: "Email address change request",
		LocaleFR: "Demande de changement d'adresse email",
	},
	PasswordChangeNotice: {
		LocaleEN: "Password changed",
		LocaleFR: "Mot de passe modifié",
	},
}

// NewNotificationManager builds a manager with the account-change email
// templates registered for every supported locale.
func NewNotificationManager(baseUrl string, smtpConfig notification.SMTPConfig) (*notification.NotificationManager, error) {
	notificationManager := notification.NewNotificationManager(baseUrl)

	emailNotifier, err := notification.NewEmailNotifier(smtpConfig)
	if err != nil {
		return nil, err
	}
	notificationManager.RegisterNotifier(notification.EmailSystem, emailNotifier)

	if err := RegisterTemplates(notificationManager); err != nil {
		return nil, err
	}

	return notificationManager, nil
}

// RegisterTemplates registers every notice template on an existing manager.
// Split out so tests can register templates against a mock notifier.
func RegisterTemplates(nm *notification.NotificationManager) error {
	for _, noticeType := range []notification.NoticeType{
		EmailChangeVerificationNotice,
		EmailChangeNotice,
		PasswordChangeNotice,
	} {
		for _, locale := range Locales() {
			template := notification.NoticeTemplate{
				Subject: subjects[noticeType][locale],
				Html:    loadTemplate(fmt.Sprintf("templates/email/%s/%s.html", locale, noticeType)),
			}
			if err := nm.RegisterNotification(Localized(noticeType, locale), notification.EmailSystem, template); err != nil {
				slog.Error("failed to register notice template", "notice", noticeType, "locale", locale, "error", err)
				return err
			}
		}
	}
	return nil
}
