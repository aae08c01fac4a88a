package account

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Attribute names understood by the repositories.
const (
	AttrID                 = "id"
	AttrUsername           = "username"
	AttrAccountID          = "account_id"
	AttrAddress            = "address"
	AttrUnconfirmedAddress = "unconfirmed_address"
	AttrConfirmationToken  = "confirmation_token"
	AttrResetPasswordToken = "reset_password_token"
	AttrPrimary            = "primary"
)

var (
	AccountAttributes = []string{AttrID, AttrUsername}
	EmailAttributes   = []string{AttrID, AttrAccountID, AttrAddress, AttrUnconfirmedAddress, AttrConfirmationToken, AttrResetPasswordToken, AttrPrimary}
)

type Account struct {
	ID                uuid.UUID  `json:"id"`
	Username          string     `json:"username,omitempty"`
	EncryptedPassword string     `json:"encrypted_password,omitempty"`
	DisabledAt        *time.Time `json:"disabled_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`

	Emails []*EmailRecord `json:"-"`
	Errors Errors         `json:"-"`

	persisted bool
}

type EmailRecord struct {
	ID                  uuid.UUID  `json:"id"`
	AccountID           uuid.UUID  `json:"account_id"`
	Address             string     `json:"address"`
	UnconfirmedAddress  string     `json:"unconfirmed_address,omitempty"`
	Primary             bool       `json:"primary"`
	ConfirmedAt         *time.Time `json:"confirmed_at,omitempty"`
	ConfirmationToken   string     `json:"confirmation_token,omitempty"`
	ConfirmationSentAt  *time.Time `json:"confirmation_sent_at,omitempty"`
	ResetPasswordToken  string     `json:"reset_password_token,omitempty"`
	ResetPasswordSentAt *time.Time `json:"reset_password_sent_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`

	persisted  bool
	primaryWas bool
}

// AuthContext carries per-attempt authentication state. It is never stored.
type AuthContext struct {
	// LoginEmail is the address the current login attempt used.
	LoginEmail string
}

// Match is the result of resolving credentials: the owning account, the
// email record that identified it, and the login context for the attempt.
type Match struct {
	Account *Account
	Email   *EmailRecord
	Auth    AuthContext
}

// New builds an unpersisted account. A non-blank email becomes its primary
// record.
func New(email string) *Account {
	acct := &Account{ID: uuid.New()}
	if email = NormalizeAddress(email); email != "" {
		rec := acct.AddEmail(email)
		rec.Primary = true
	}
	return acct
}

// NewEmail builds an unpersisted email record for accountID.
func NewEmail(accountID uuid.UUID, address string) *EmailRecord {
	return &EmailRecord{
		ID:        uuid.New(),
		AccountID: accountID,
		Address:   NormalizeAddress(address),
	}
}

func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

func (a *Account) Persisted() bool {
	return a.persisted
}

func (a *Account) Disabled() bool {
	return a.DisabledAt != nil
}

// Email returns the primary address, or "" when there is none.
func (a *Account) Email() string {
	if p := a.PrimaryEmail(); p != nil {
		return p.Address
	}
	return ""
}

func (a *Account) attribute(name string) (string, bool) {
	switch name {
	case AttrID:
		return a.ID.String(), true
	case AttrUsername:
		return a.Username, true
	}
	return "", false
}

func (r *EmailRecord) Persisted() bool {
	return r.persisted
}

// PrimaryChanged reports whether Primary differs from the persisted value.
func (r *EmailRecord) PrimaryChanged() bool {
	return r.Primary != r.primaryWas
}

func (r *EmailRecord) markPersisted() {
	r.persisted = true
	r.primaryWas = r.Primary
}

func (r *EmailRecord) attribute(name string) (string, bool) {
	switch name {
	case AttrID:
		return r.ID.String(), true
	case AttrAccountID:
		return r.AccountID.String(), true
	case AttrAddress:
		return r.Address, true
	case AttrUnconfirmedAddress:
		return r.UnconfirmedAddress, true
	case AttrConfirmationToken:
		return r.ConfirmationToken, true
	case AttrResetPasswordToken:
		return r.ResetPasswordToken, true
	case AttrPrimary:
		return strconv.FormatBool(r.Primary), true
	}
	return "", false
}

func (r *EmailRecord) clone() *EmailRecord {
	c := *r
	return &c
}

func (a *Account) cloneRow() *Account {
	c := *a
	c.Emails = nil
	c.Errors = nil
	return &c
}
