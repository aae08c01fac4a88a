// Package notification delivers the confirmation and password recovery
// notices.
//
// A NotificationManager holds one Notifier per system and one template per
// notice type and system. Dispatch turns a token-bearing Notice into template
// data, including the redemption link built from the manager's BaseUrl:
//
//	nm, err := notification.NewNotificationManagerWithOptions("https://app.example.com",
//	    notification.WithSMTP(smtpConfig),
//	    notification.WithDefaultTemplates(),
//	)
//	err = nm.Dispatch(ctx, notification.Notice{
//	    Type:  notification.ConfirmationInstructions,
//	    To:    "jane@example.com",
//	    Token: rawToken,
//	})
//
// MockNotifier records notices for tests; LogNotifier writes them to slog.
package notification
