package notification

import (
	"log/slog"

	"github.com/tendant/simple-idm-multiemail/pkg/utils"
)

// LogNotifier writes notices to the structured log. It is meant for local
// development without an SMTP server.
type LogNotifier struct{}

func (LogNotifier) Send(noticeType NoticeType, notification NotificationData, template NoticeTemplate) error {
	text, err := renderText(template.Text, notification.Data)
	if err != nil {
		return err
	}
	slog.Info("Notice", "type", noticeType, "to", utils.MaskEmail(notification.To), "subject", template.Subject, "link", notification.Data["Link"], "body", text)
	return nil
}
