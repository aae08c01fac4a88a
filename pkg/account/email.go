package account

import (
	"net/mail"
	"time"
)

func (r *EmailRecord) Confirmed() bool {
	return r.ConfirmedAt != nil
}

// PendingReconfirmation reports whether an address change is waiting for
// confirmation of the new address.
func (r *EmailRecord) PendingReconfirmation(reconfirmable bool) bool {
	return reconfirmable && r.UnconfirmedAddress != ""
}

// PendingAnyConfirmation reports whether there is anything left to confirm.
func (r *EmailRecord) PendingAnyConfirmation(reconfirmable bool) bool {
	return !r.Confirmed() || r.PendingReconfirmation(reconfirmable)
}

// ConfirmationPeriodValid reports whether an unconfirmed record may still
// be used to log in. Only the primary record gets a grace window.
func (r *EmailRecord) ConfirmationPeriodValid(opts Options, now time.Time) bool {
	if !r.Primary {
		return false
	}
	if opts.AllowUnconfirmedAccessFor == nil {
		return true
	}
	within := *opts.AllowUnconfirmedAccessFor
	if within == 0 || r.ConfirmationSentAt == nil {
		return false
	}
	return !now.After(r.ConfirmationSentAt.Add(within))
}

// ConfirmationPeriodExpired reports whether the confirmation token can no
// longer be redeemed. The deadline instant itself is still valid.
func (r *EmailRecord) ConfirmationPeriodExpired(opts Options, now time.Time) bool {
	if opts.ConfirmWithin <= 0 || r.ConfirmationSentAt == nil {
		return false
	}
	return now.After(r.ConfirmationSentAt.Add(opts.ConfirmWithin))
}

func (r *EmailRecord) ResetPasswordPeriodValid(opts Options, now time.Time) bool {
	if r.ResetPasswordSentAt == nil {
		return false
	}
	return !now.After(r.ResetPasswordSentAt.Add(opts.ResetPasswordWithin))
}

func (r *EmailRecord) ActiveForAuthentication(opts Options, now time.Time) bool {
	return r.Confirmed() || r.ConfirmationPeriodValid(opts, now)
}

// SkipConfirmation marks the record confirmed without a token.
func (r *EmailRecord) SkipConfirmation(now time.Time) {
	t := now.UTC()
	r.ConfirmedAt = &t
}

// ConfirmationRecipient is the address instructions go to: the pending
// address while a reconfirmation is outstanding.
func (r *EmailRecord) ConfirmationRecipient(reconfirmable bool) string {
	if r.PendingReconfirmation(reconfirmable) {
		return r.UnconfirmedAddress
	}
	return r.Address
}

// Validate checks the record's own attributes. Uniqueness is enforced by the
// repository.
func (r *EmailRecord) Validate() Errors {
	var errs Errors
	if r.Address == "" {
		errs.Add("email", ErrorBlank)
	} else if !validAddress(r.Address) {
		errs.Add("email", ErrorInvalid)
	}
	if r.UnconfirmedAddress != "" && !validAddress(r.UnconfirmedAddress) {
		errs.Add("unconfirmed_email", ErrorInvalid)
	}
	return errs
}

func validAddress(address string) bool {
	parsed, err := mail.ParseAddress(address)
	return err == nil && parsed.Address == address
}
