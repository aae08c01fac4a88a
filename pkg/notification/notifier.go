package notification

import "context"

// NotificationSystem is a delivery channel.
type NotificationSystem string

// NoticeType names a kind of message, each with its own template.
type NoticeType string

const (
	EmailSystem NotificationSystem = "email"
	LogSystem   NotificationSystem = "log"

	ConfirmationInstructions   NoticeType = "confirmation_instructions"
	ReconfirmationInstructions NoticeType = "reconfirmation_instructions"
	ResetPasswordInstructions  NoticeType = "reset_password_instructions"
	PasswordChange             NoticeType = "password_change"
	ExampleNotice              NoticeType = "example"
)

type NotificationData struct {
	To      string            // Recipient address
	Subject string            // Optional: overrides nothing, kept for channels without templates
	Body    string            // Optional plain content
	Data    map[string]string // Template values
}

// NoticeTemplate holds the subject and bodies for one notice type on one
// system. Bodies are Go templates executed against NotificationData.Data.
type NoticeTemplate struct {
	Subject string
	Text    string
	Html    string
}

type Notifier interface {
	Send(noticeType NoticeType, notification NotificationData, template NoticeTemplate) error
}

// Dispatcher delivers token-bearing notices. NotificationManager is the
// production implementation.
type Dispatcher interface {
	Dispatch(ctx context.Context, notice Notice) error
}
