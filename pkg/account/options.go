package account

import "time"

// Options holds the confirmation, recovery and login policy shared by the
// services operating on accounts.
type Options struct {
	// Reconfirmable routes address changes through UnconfirmedAddress until
	// the new address is confirmed.
	Reconfirmable bool

	// ConfirmWithin is the deadline for redeeming a confirmation token.
	// Zero means tokens never expire.
	ConfirmWithin time.Duration

	// AllowUnconfirmedAccessFor is the grace window in which an unconfirmed
	// primary email may still log in. Nil means unlimited, zero means never.
	AllowUnconfirmedAccessFor *time.Duration

	ResetPasswordWithin time.Duration

	OnlyLoginWithPrimaryEmail bool

	// DigestConfirmationTokens stores confirmation tokens as digests
	// instead of raw values.
	DigestConfirmationTokens bool

	MinPasswordLength int
	MaxPasswordLength int
}

func DefaultOptions() Options {
	return Options{
		Reconfirmable:             true,
		ConfirmWithin:             0,
		AllowUnconfirmedAccessFor: Duration(0),
		ResetPasswordWithin:       6 * time.Hour,
		MinPasswordLength:         6,
		MaxPasswordLength:         128,
	}
}

// Duration returns a pointer to d, for AllowUnconfirmedAccessFor.
func Duration(d time.Duration) *time.Duration {
	return &d
}
