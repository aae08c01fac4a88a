package account

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists accounts and their email records. Implementations
// enforce uniqueness of usernames, addresses and tokens and report
// conflicts as *ValidationError. Lookups that match nothing return
// ErrAccountNotFound or ErrEmailNotFound.
type Repository interface {
	CreateAccount(ctx context.Context, acct *Account) error
	UpdateAccount(ctx context.Context, acct *Account) error
	GetAccount(ctx context.Context, id uuid.UUID) (*Account, error)
	// FindAccount matches account attributes directly and email attributes
	// against any single email record the account owns.
	FindAccount(ctx context.Context, conds Conditions) (*Account, error)

	// SaveEmail inserts or updates rec.
	SaveEmail(ctx context.Context, rec *EmailRecord) error
	DeleteEmail(ctx context.Context, id uuid.UUID) error
	FindEmail(ctx context.Context, conds Conditions) (*EmailRecord, error)
	ListEmails(ctx context.Context, accountID uuid.UUID) ([]*EmailRecord, error)
}
