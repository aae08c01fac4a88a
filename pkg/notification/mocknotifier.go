package notification

import "sync"

// MockNotifier records every notification instead of delivering it.
type MockNotifier struct {
	mu                sync.Mutex
	SentNotifications []NotificationData
	SentTypes         []NoticeType
	Err               error
}

func (m *MockNotifier) Send(noticeType NoticeType, notification NotificationData, template NoticeTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.SentNotifications = append(m.SentNotifications, notification)
	m.SentTypes = append(m.SentTypes, noticeType)
	return nil
}

// Last returns the most recent notification, if any.
func (m *MockNotifier) Last() (NotificationData, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.SentNotifications) == 0 {
		return NotificationData{}, false
	}
	return m.SentNotifications[len(m.SentNotifications)-1], true
}

func (m *MockNotifier) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.SentNotifications)
}
