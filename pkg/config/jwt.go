package config

import (
	"time"
)

// JWTConfig holds the session token settings and the secret confirmation
// and reset token digests are keyed with.
type JWTConfig struct {
	Secret        string `env:"JWT_SECRET" env-default:"very-secure-jwt-secret"`
	Issuer        string `env:"JWT_ISSUER" env-default:"simple-idm"`
	SessionExpiry string `env:"SESSION_TOKEN_EXPIRY" env-default:"PT1H"`
	TokenSecret   string `env:"TOKEN_DIGEST_SECRET" env-default:"very-secure-digest-secret"`
}

func (j JWTConfig) ParseSessionExpiry() (time.Duration, error) {
	return ParseDuration(j.SessionExpiry)
}

func (j JWTConfig) Validate() ValidationErrors {
	errs := CollectErrors(
		RequireMinLength("JWT_SECRET", j.Secret, 16),
		RequireMinLength("TOKEN_DIGEST_SECRET", j.TokenSecret, 16),
	)
	if d, err := j.ParseSessionExpiry(); err != nil {
		errs = append(errs, ValidationError{Field: "SESSION_TOKEN_EXPIRY", Message: err.Error()})
	} else if verr := RequirePositiveDuration("SESSION_TOKEN_EXPIRY", d); verr != nil {
		errs = append(errs, *verr)
	}
	return errs
}
