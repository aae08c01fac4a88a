package account

import "time"

// MultiEmailOwner is implemented by types that own a set of email records
// with exactly one primary.
type MultiEmailOwner interface {
	PrimaryEmail() *EmailRecord
	FindEmail(address string) *EmailRecord
	AddEmail(address string) *EmailRecord
	ChangePrimaryEmailTo(address string, allowUnconfirmed bool) (*EmailRecord, error)
	EnsureSinglePrimary()
}

// ConfirmableEmail is the confirmation state of one address.
type ConfirmableEmail interface {
	Confirmed() bool
	PendingReconfirmation(reconfirmable bool) bool
	PendingAnyConfirmation(reconfirmable bool) bool
	ConfirmationPeriodValid(opts Options, now time.Time) bool
	ConfirmationPeriodExpired(opts Options, now time.Time) bool
	ConfirmationRecipient(reconfirmable bool) string
	SkipConfirmation(now time.Time)
}

// RecoverableEmail is the password recovery state of one address.
type RecoverableEmail interface {
	ResetPasswordPeriodValid(opts Options, now time.Time) bool
}

var (
	_ MultiEmailOwner  = (*Account)(nil)
	_ ConfirmableEmail = (*EmailRecord)(nil)
	_ RecoverableEmail = (*EmailRecord)(nil)
)

// ClearResetPasswordToken forgets a redeemed reset token.
func (r *EmailRecord) ClearResetPasswordToken() {
	r.ResetPasswordToken = ""
	r.ResetPasswordSentAt = nil
}
