package notification

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"

	"github.com/tendant/simple-idm-multiemail/pkg/utils"
)

// NotificationManager manages notifiers and notification templates.
type NotificationManager struct {
	notifiers            map[NotificationSystem]Notifier
	notificationRegistry map[NoticeType]map[NotificationSystem]NoticeTemplate
	BaseUrl              string
}

// NewNotificationManager creates and returns a new NotificationManager.
// baseUrl prefixes the links rendered into notices.
func NewNotificationManager(baseUrl string) *NotificationManager {
	return &NotificationManager{
		notifiers:            make(map[NotificationSystem]Notifier),
		notificationRegistry: make(map[NoticeType]map[NotificationSystem]NoticeTemplate),
		BaseUrl:              strings.TrimRight(baseUrl, "/"),
	}
}

// NewNotificationManagerWithOptions applies opts to a new manager.
func NewNotificationManagerWithOptions(baseUrl string, opts ...NotificationManagerOption) (*NotificationManager, error) {
	nm := NewNotificationManager(baseUrl)
	for _, opt := range opts {
		if err := opt(nm); err != nil {
			return nil, err
		}
	}
	return nm, nil
}

// RegisterNotifier registers a notifier for a specific system.
func (nm *NotificationManager) RegisterNotifier(system NotificationSystem, notifier Notifier) {
	nm.notifiers[system] = notifier
}

// RegisterNotification adds or replaces the template for a notice type on a
// system.
func (nm *NotificationManager) RegisterNotification(noticeType NoticeType, system NotificationSystem, template NoticeTemplate) error {
	if noticeType == "" || system == "" {
		return fmt.Errorf("invalid input: notice type and system cannot be empty")
	}
	if template.Subject == "" {
		return fmt.Errorf("invalid template: subject cannot be empty")
	}
	if template.Text == "" && template.Html == "" {
		return fmt.Errorf("invalid template: text or html body required")
	}

	if _, exists := nm.notificationRegistry[noticeType]; !exists {
		nm.notificationRegistry[noticeType] = make(map[NotificationSystem]NoticeTemplate)
	}
	nm.notificationRegistry[noticeType][system] = template
	return nil
}

// Send delivers notification on every system with a template for
// noticeType. It stops at the first failing system.
func (nm *NotificationManager) Send(noticeType NoticeType, notification NotificationData) error {
	systemTemplates, exists := nm.notificationRegistry[noticeType]
	if !exists {
		return fmt.Errorf("no templates registered for notice type: %s", noticeType)
	}

	systems := make([]string, 0, len(systemTemplates))
	for system := range systemTemplates {
		systems = append(systems, string(system))
	}
	sort.Strings(systems)

	for _, name := range systems {
		system := NotificationSystem(name)
		notifier, exists := nm.notifiers[system]
		if !exists {
			return fmt.Errorf("no notifier registered for system: %s", system)
		}
		if err := notifier.Send(noticeType, notification, systemTemplates[system]); err != nil {
			return fmt.Errorf("failed to send %s via %s: %w", noticeType, system, err)
		}
	}
	return nil
}

// Notice is a token-bearing message for one email address.
type Notice struct {
	Type      NoticeType
	To        string
	Token     string
	AccountID string
}

// linkPaths are the pages a notice's token is redeemed on.
var linkPaths = map[NoticeType]string{
	ConfirmationInstructions:   "/confirmation?confirmation_token=",
	ReconfirmationInstructions: "/confirmation?confirmation_token=",
	ResetPasswordInstructions:  "/password/edit?reset_password_token=",
}

// Dispatch renders notice into NotificationData, building the redemption
// link from BaseUrl, and sends it.
func (nm *NotificationManager) Dispatch(ctx context.Context, notice Notice) error {
	data := map[string]string{
		"Email":     notice.To,
		"AccountID": notice.AccountID,
	}
	if notice.Token != "" {
		data["Token"] = notice.Token
		if path, ok := linkPaths[notice.Type]; ok {
			data["Link"] = nm.BaseUrl + path + url.QueryEscape(notice.Token)
		}
	}

	slog.Info("Dispatching notice", "type", notice.Type, "to", utils.MaskEmail(notice.To))
	return nm.Send(notice.Type, NotificationData{To: notice.To, Data: data})
}
