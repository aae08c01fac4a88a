package notification

import (
	"embed"
	"fmt"
)

//go:embed templates/*
var templateFiles embed.FS

func loadTemplate(filename string) (string, error) {
	content, err := templateFiles.ReadFile(filename)
	if err != nil {
		return "", fmt.Errorf("failed to read template %s: %w", filename, err)
	}
	return string(content), nil
}

// NotificationManagerOption is a function that configures a NotificationManager
type NotificationManagerOption func(*NotificationManager) error

// WithSMTP adds an email notifier with the provided SMTP configuration
func WithSMTP(config SMTPConfig) NotificationManagerOption {
	return func(nm *NotificationManager) error {
		emailNotifier, err := NewEmailNotifier(config)
		if err != nil {
			return err
		}
		nm.RegisterNotifier(EmailSystem, emailNotifier)
		return nil
	}
}

// WithNotifier registers notifier as the email system, e.g. a LogNotifier
// or MockNotifier.
func WithNotifier(notifier Notifier) NotificationManagerOption {
	return func(nm *NotificationManager) error {
		nm.RegisterNotifier(EmailSystem, notifier)
		return nil
	}
}

func withEmailTemplate(noticeType NoticeType, subject, file, text string) NotificationManagerOption {
	return func(nm *NotificationManager) error {
		html, err := loadTemplate(file)
		if err != nil {
			return err
		}
		return nm.RegisterNotification(noticeType, EmailSystem, NoticeTemplate{
			Subject: subject,
			Text:    text,
			Html:    html,
		})
	}
}

func WithConfirmationInstructionsTemplate() NotificationManagerOption {
	return withEmailTemplate(ConfirmationInstructions, "Confirmation instructions",
		"templates/email/confirmation_instructions.html",
		"Confirm your email address {{.Email}}: {{.Link}}")
}

func WithReconfirmationInstructionsTemplate() NotificationManagerOption {
	return withEmailTemplate(ReconfirmationInstructions, "Confirm your new email address",
		"templates/email/reconfirmation_instructions.html",
		"Confirm your new email address {{.Email}}: {{.Link}}")
}

func WithResetPasswordInstructionsTemplate() NotificationManagerOption {
	return withEmailTemplate(ResetPasswordInstructions, "Reset password instructions",
		"templates/email/reset_password_instructions.html",
		"Change your password: {{.Link}}")
}

func WithPasswordChangeTemplate() NotificationManagerOption {
	return withEmailTemplate(PasswordChange, "Password changed",
		"templates/email/password_change.html",
		"The password for {{.Email}} has been changed.")
}

// WithDefaultTemplates registers all default notification templates
func WithDefaultTemplates() NotificationManagerOption {
	return func(nm *NotificationManager) error {
		for _, opt := range []NotificationManagerOption{
			WithConfirmationInstructionsTemplate(),
			WithReconfirmationInstructionsTemplate(),
			WithResetPasswordInstructionsTemplate(),
			WithPasswordChangeTemplate(),
		} {
			if err := opt(nm); err != nil {
				return err
			}
		}
		return nil
	}
}
