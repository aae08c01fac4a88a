package config

import (
	"errors"

	"github.com/tendant/simple-idm-multiemail/pkg/account"
)

// Unlimited disables the unconfirmed access window check.
const Unlimited = "unlimited"

// MultiEmailConfig holds the confirmation, recovery and login policy.
// Durations are ISO-8601 or Go durations; a zero ConfirmWithin never
// expires confirmation tokens.
type MultiEmailConfig struct {
	Reconfirmable             bool   `env:"MULTI_EMAIL_RECONFIRMABLE" env-default:"true"`
	ConfirmWithin             string `env:"MULTI_EMAIL_CONFIRM_WITHIN" env-default:"P3D"`
	AllowUnconfirmedAccessFor string `env:"MULTI_EMAIL_ALLOW_UNCONFIRMED_ACCESS_FOR" env-default:"PT0S"`
	ResetPasswordWithin       string `env:"MULTI_EMAIL_RESET_PASSWORD_WITHIN" env-default:"PT6H"`
	OnlyLoginWithPrimaryEmail bool   `env:"MULTI_EMAIL_ONLY_LOGIN_WITH_PRIMARY" env-default:"false"`
	DigestConfirmationTokens  bool   `env:"MULTI_EMAIL_DIGEST_CONFIRMATION_TOKENS" env-default:"false"`
	MinPasswordLength         int    `env:"PASSWORD_MIN_LENGTH" env-default:"6"`
	MaxPasswordLength         int    `env:"PASSWORD_MAX_LENGTH" env-default:"128"`
	PasswordHashAlgorithm     string `env:"PASSWORD_HASH_ALGORITHM" env-default:"bcrypt"`
}

// ToOptions converts the configuration to account.Options.
func (m MultiEmailConfig) ToOptions() (account.Options, error) {
	opts := account.Options{
		Reconfirmable:             m.Reconfirmable,
		OnlyLoginWithPrimaryEmail: m.OnlyLoginWithPrimaryEmail,
		DigestConfirmationTokens:  m.DigestConfirmationTokens,
		MinPasswordLength:         m.MinPasswordLength,
		MaxPasswordLength:         m.MaxPasswordLength,
	}

	var err error
	if opts.ConfirmWithin, err = ParseDuration(m.ConfirmWithin); err != nil {
		return account.Options{}, &ValidationError{Field: "MULTI_EMAIL_CONFIRM_WITHIN", Message: err.Error()}
	}
	if opts.ResetPasswordWithin, err = ParseDuration(m.ResetPasswordWithin); err != nil {
		return account.Options{}, &ValidationError{Field: "MULTI_EMAIL_RESET_PASSWORD_WITHIN", Message: err.Error()}
	}
	if m.AllowUnconfirmedAccessFor != Unlimited {
		grace, err := ParseDuration(m.AllowUnconfirmedAccessFor)
		if err != nil {
			return account.Options{}, &ValidationError{Field: "MULTI_EMAIL_ALLOW_UNCONFIRMED_ACCESS_FOR", Message: err.Error()}
		}
		opts.AllowUnconfirmedAccessFor = account.Duration(grace)
	}
	return opts, nil
}

func (m MultiEmailConfig) Validate() ValidationErrors {
	errs := CollectErrors(
		RequirePositive("PASSWORD_MIN_LENGTH", m.MinPasswordLength),
		RequireGreaterThan("PASSWORD_MAX_LENGTH", m.MaxPasswordLength, m.MinPasswordLength-1),
		RequireOneOf("PASSWORD_HASH_ALGORITHM", m.PasswordHashAlgorithm, []string{"bcrypt", "argon2"}),
	)

	opts, err := m.ToOptions()
	var verr *ValidationError
	if errors.As(err, &verr) {
		return append(errs, *verr)
	}
	return append(errs, CollectErrors(
		RequireNonNegativeDuration("MULTI_EMAIL_CONFIRM_WITHIN", opts.ConfirmWithin),
		RequirePositiveDuration("MULTI_EMAIL_RESET_PASSWORD_WITHIN", opts.ResetPasswordWithin),
	)...)
}
