package account

import (
	"fmt"
	"unicode/utf8"
)

// PasswordHasher hashes and verifies account passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hashedPassword string) (bool, error)
}

// ResetPassword validates password against confirmation and the configured
// length bounds, then stores its hash. Failures are attached to a.Errors.
func (a *Account) ResetPassword(password, confirmation string, hasher PasswordHasher, opts Options) (bool, error) {
	var errs Errors
	n := utf8.RuneCountInString(password)
	switch {
	case password == "":
		errs.Add("password", ErrorBlank)
	case opts.MinPasswordLength > 0 && n < opts.MinPasswordLength:
		errs.AddDetail("password", ErrorTooShort, fmt.Sprintf("minimum is %d characters", opts.MinPasswordLength))
	case opts.MaxPasswordLength > 0 && n > opts.MaxPasswordLength:
		errs.AddDetail("password", ErrorTooLong, fmt.Sprintf("maximum is %d characters", opts.MaxPasswordLength))
	}
	if password != confirmation {
		errs.Add("password_confirmation", ErrorConfirmation)
	}
	if !errs.Empty() {
		a.Errors.Merge(errs)
		return false, nil
	}

	hashed, err := hasher.Hash(password)
	if err != nil {
		return false, fmt.Errorf("failed to hash password: %w", err)
	}
	a.EncryptedPassword = hashed
	return true, nil
}

// ValidPassword checks password against the stored hash.
func (a *Account) ValidPassword(password string, hasher PasswordHasher) (bool, error) {
	if a.EncryptedPassword == "" || password == "" {
		return false, nil
	}
	return hasher.Verify(password, a.EncryptedPassword)
}
