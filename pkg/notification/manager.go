package notification

import (
	"fmt"
)

// NotificationSystem represents a delivery channel (e.g., email).
type NotificationSystem string

// NoticeType represents a kind of notice (e.g., "email_change_verification").
type NoticeType string

const (
	EmailSystem NotificationSystem = "email"

	ExampleNotice NoticeType = "example"
)

// NotificationManager manages notifiers and notice templates.
type NotificationManager struct {
	BaseUrl              string
	notifiers            map[NotificationSystem]Notifier
	notificationRegistry map[NoticeType]map[NotificationSystem]NoticeTemplate
}

// NewNotificationManager creates and returns a new NotificationManager.
func NewNotificationManager(baseUrl string) *NotificationManager {
	return &NotificationManager{
		BaseUrl:              baseUrl,
		notifiers:            make(map[NotificationSystem]Notifier),
		notificationRegistry: make(map[NoticeType]map[NotificationSystem]NoticeTemplate),
	}
}

// RegisterNotifier registers a notifier for a specific system.
func (nm *NotificationManager) RegisterNotifier(system NotificationSystem, notifier Notifier) {
	nm.notifiers[system] = notifier
}

// RegisterNotification adds a notice template to the registry.
func (nm *NotificationManager) RegisterNotification(noticeType NoticeType, system NotificationSystem, template NoticeTemplate) error {
	if noticeType == "" || system == "" {
		return fmt.Errorf("invalid input: notice type and system cannot be empty")
	}
	if template.Subject == "" {
		return fmt.Errorf("invalid template: subject cannot be empty")
	}
	if template.Text == "" && template.Html == "" {
		return fmt.Errorf("invalid template: at least one of text or html content is required")
	}

	if _, exists := nm.notificationRegistry[noticeType]; !exists {
		nm.notificationRegistry[noticeType] = make(map[NotificationSystem]NoticeTemplate)
	}

	nm.notificationRegistry[noticeType][system] = template
	return nil
}

// Send sends a notice using the specified system and type.
func (nm *NotificationManager) Send(noticeType NoticeType, system NotificationSystem, notification NotificationData) error {
	systemTemplates, exists := nm.notificationRegistry[noticeType]
	if !exists {
		return fmt.Errorf("no templates registered for notice type: %s", noticeType)
	}

	template, exists := systemTemplates[system]
	if !exists {
		return fmt.Errorf("no template registered for system: %s under notice type: %s", system, noticeType)
	}

	notifier, exists := nm.notifiers[system]
	if !exists {
		return fmt.Errorf("no notifier registered for system: %s", system)
	}

	if notification.Subject != "" {
		template.Subject = notification.Subject
	}

	return notifier.Send(noticeType, notification, template)
}
