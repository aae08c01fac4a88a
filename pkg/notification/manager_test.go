package notification

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNotificationManager(t *testing.T) {
	nm := NewNotificationManager("https://app.example.com/")
	require.NotNil(t, nm)
	assert.NotNil(t, nm.notifiers)
	assert.NotNil(t, nm.notificationRegistry)
	assert.Equal(t, "https://app.example.com", nm.BaseUrl)
}

func TestRegisterNotifier(t *testing.T) {
	nm := NewNotificationManager("")
	mockNotifier := &MockNotifier{}

	nm.RegisterNotifier(EmailSystem, mockNotifier)
	assert.Same(t, mockNotifier, nm.notifiers[EmailSystem])

	newMockNotifier := &MockNotifier{}
	nm.RegisterNotifier(EmailSystem, newMockNotifier)
	assert.Same(t, newMockNotifier, nm.notifiers[EmailSystem])
}

func TestRegisterNotification(t *testing.T) {
	nm := NewNotificationManager("")

	tests := []struct {
		name        string
		noticeType  NoticeType
		system      NotificationSystem
		template    NoticeTemplate
		shouldError bool
	}{
		{"text and html", ExampleNotice, EmailSystem, NoticeTemplate{Subject: "Example", Text: "hi", Html: "<p>hi</p>"}, false},
		{"text only", ExampleNotice, EmailSystem, NoticeTemplate{Subject: "Example", Text: "hi"}, false},
		{"html only", ExampleNotice, EmailSystem, NoticeTemplate{Subject: "Example", Html: "<p>hi</p>"}, false},
		{"empty notice type", "", EmailSystem, NoticeTemplate{Subject: "Example", Text: "hi"}, true},
		{"empty system", ExampleNotice, "", NoticeTemplate{Subject: "Example", Text: "hi"}, true},
		{"empty subject", ExampleNotice, EmailSystem, NoticeTemplate{Text: "hi"}, true},
		{"no content", ExampleNotice, EmailSystem, NoticeTemplate{Subject: "Example"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := nm.RegisterNotification(tt.noticeType, tt.system, tt.template)
			if tt.shouldError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.template, nm.notificationRegistry[tt.noticeType][tt.system])
		})
	}
}

func TestSend(t *testing.T) {
	nm := NewNotificationManager("")
	email := &MockNotifier{}
	logged := &MockNotifier{}
	nm.RegisterNotifier(EmailSystem, email)
	nm.RegisterNotifier(LogSystem, logged)

	require.NoError(t, nm.RegisterNotification(ExampleNotice, EmailSystem, NoticeTemplate{Subject: "Example", Html: "<p>hi</p>"}))
	require.NoError(t, nm.RegisterNotification(ExampleNotice, LogSystem, NoticeTemplate{Subject: "Example", Text: "hi"}))

	data := NotificationData{To: "user@example.com", Body: "Test Body"}
	require.NoError(t, nm.Send(ExampleNotice, data))

	assert.Equal(t, []NotificationData{data}, email.SentNotifications)
	assert.Equal(t, []NotificationData{data}, logged.SentNotifications)
}

func TestSendErrors(t *testing.T) {
	nm := NewNotificationManager("")

	err := nm.Send("unregistered", NotificationData{})
	assert.Error(t, err)

	require.NoError(t, nm.RegisterNotification(ExampleNotice, EmailSystem, NoticeTemplate{Subject: "Example", Html: "<p>hi</p>"}))
	err = nm.Send(ExampleNotice, NotificationData{})
	assert.EqualError(t, err, "no notifier registered for system: email")

	boom := errors.New("smtp down")
	nm.RegisterNotifier(EmailSystem, &MockNotifier{Err: boom})
	assert.ErrorIs(t, nm.Send(ExampleNotice, NotificationData{}), boom)
}

func TestDispatch(t *testing.T) {
	mock := &MockNotifier{}
	nm, err := NewNotificationManagerWithOptions("https://app.example.com",
		WithNotifier(mock),
		WithDefaultTemplates(),
	)
	require.NoError(t, err)

	err = nm.Dispatch(context.Background(), Notice{
		Type:  ConfirmationInstructions,
		To:    "jane@example.com",
		Token: "a+b",
	})
	require.NoError(t, err)

	sent, ok := mock.Last()
	require.True(t, ok)
	assert.Equal(t, "jane@example.com", sent.To)
	assert.Equal(t, "a+b", sent.Data["Token"])
	assert.Equal(t, "https://app.example.com/confirmation?confirmation_token=a%2Bb", sent.Data["Link"])
	assert.Equal(t, []NoticeType{ConfirmationInstructions}, mock.SentTypes)

	require.NoError(t, nm.Dispatch(context.Background(), Notice{Type: PasswordChange, To: "jane@example.com"}))
	sent, _ = mock.Last()
	_, hasLink := sent.Data["Link"]
	assert.False(t, hasLink)
}

func TestDefaultTemplatesRender(t *testing.T) {
	nm, err := NewNotificationManagerWithOptions("", WithDefaultTemplates())
	require.NoError(t, err)

	data := map[string]string{"Email": "jane@example.com", "Link": "https://x/confirm?t=1"}
	for noticeType, templates := range nm.notificationRegistry {
		tmpl := templates[EmailSystem]
		html, err := renderHTML(tmpl.Html, data)
		require.NoError(t, err, noticeType)
		assert.True(t, strings.Contains(html, "jane@example.com"), noticeType)

		_, err = renderText(tmpl.Text, data)
		require.NoError(t, err, noticeType)
	}
}

func TestEmailNotifier_BuildMessage(t *testing.T) {
	notifier, err := NewEmailNotifier(SMTPConfig{Host: "localhost", Port: 1025, From: "noreply@example.com"})
	require.NoError(t, err)

	_, err = notifier.buildMessage(NotificationData{}, NoticeTemplate{Subject: "s", Text: "t"})
	assert.Error(t, err)

	msg, err := notifier.buildMessage(
		NotificationData{To: "jane@example.com", Data: map[string]string{"Link": "https://x"}},
		NoticeTemplate{Subject: "Subject", Text: "go to {{.Link}}", Html: "<a href=\"{{.Link}}\">go</a>"},
	)
	require.NoError(t, err)
	assert.NotNil(t, msg)
}
