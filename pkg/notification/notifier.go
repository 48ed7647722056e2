package notification

// NotificationData carries the per-send payload for a notice.
type NotificationData struct {
	To      string            // Recipient identifier (e.g., email address)
	Subject string            // Optional: overrides the template subject when set
	Body    string            // Optional: literal body, used when no template applies
	Data    map[string]string // Template variables
}

// NoticeTemplate holds the rendered content sources for a notice. At least
// one of Text or Html must be set.
type NoticeTemplate struct {
	Subject string
	Text    string
	Html    string
}

// Notifier delivers a rendered notice over one channel.
type Notifier interface {
	Send(noticeType NoticeType, notification NotificationData, template NoticeTemplate) error
}
