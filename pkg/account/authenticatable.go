package account

import "time"

// InactiveReason explains why ActiveForAuthentication returned false.
type InactiveReason string

const (
	ReasonUnconfirmed InactiveReason = "unconfirmed"
	ReasonInactive    InactiveReason = "inactive"
)

// LoginEmailRecord returns the record matching the login email of auth, or
// nil when the attempt did not name one this account owns.
func (a *Account) LoginEmailRecord(auth AuthContext) *EmailRecord {
	if auth.LoginEmail == "" {
		return nil
	}
	return a.FindEmail(auth.LoginEmail)
}

// active is the account-wide check that ignores which email was used.
func (a *Account) active(opts Options, now time.Time) bool {
	if a.Disabled() {
		return false
	}
	primary := a.PrimaryEmail()
	return primary != nil && primary.ActiveForAuthentication(opts, now)
}

// ActiveForAuthentication reports whether a login through auth may proceed.
// Logging in with a secondary address additionally requires that address
// to be confirmed.
func (a *Account) ActiveForAuthentication(auth AuthContext, opts Options, now time.Time) bool {
	ok := a.active(opts, now)
	if rec := a.LoginEmailRecord(auth); rec != nil && !rec.Primary {
		return ok && rec.ActiveForAuthentication(opts, now)
	}
	return ok
}

func (a *Account) InactiveMessage(auth AuthContext) InactiveReason {
	if rec := a.LoginEmailRecord(auth); rec != nil && !rec.Primary && !rec.Confirmed() {
		return ReasonUnconfirmed
	}
	if primary := a.PrimaryEmail(); primary == nil || !primary.Confirmed() {
		return ReasonUnconfirmed
	}
	return ReasonInactive
}
