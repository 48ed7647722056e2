package notification

// MockNotifier records sends instead of delivering them. For tests.
type MockNotifier struct {
	SentNotifications []NotificationData
	SentTypes         []NoticeType
	Err               error
}

func (m *MockNotifier) Send(noticeType NoticeType, notification NotificationData, template NoticeTemplate) error {
	if m.Err != nil {
		return m.Err
	}
	m.SentNotifications = append(m.SentNotifications, notification)
	m.SentTypes = append(m.SentTypes, noticeType)
	return nil
}
