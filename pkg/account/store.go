package account

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Store loads and saves whole accounts, keeping the single-primary
// invariant across the account's email records.
type Store struct {
	repo Repository
	now  func() time.Time
}

type StoreOption func(*Store)

func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

func NewStore(repo Repository, opts ...StoreOption) *Store {
	s := &Store{
		repo: repo,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Load(ctx context.Context, id uuid.UUID) (*Account, error) {
	acct, err := s.repo.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.withEmails(ctx, acct)
}

func (s *Store) FindAccount(ctx context.Context, conds Conditions) (*Account, error) {
	acct, err := s.repo.FindAccount(ctx, conds)
	if err != nil {
		return nil, err
	}
	return s.withEmails(ctx, acct)
}

func (s *Store) FindEmail(ctx context.Context, conds Conditions) (*EmailRecord, error) {
	return s.repo.FindEmail(ctx, conds)
}

func (s *Store) withEmails(ctx context.Context, acct *Account) (*Account, error) {
	emails, err := s.repo.ListEmails(ctx, acct.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list emails: %w", err)
	}
	acct.Emails = emails
	return acct, nil
}

// Validate checks the account and every email record it holds.
func (a *Account) Validate() Errors {
	var errs Errors
	if len(a.Emails) == 0 {
		errs.Add("email", ErrorBlank)
	}
	for _, rec := range a.Emails {
		errs.Merge(rec.Validate())
	}
	return errs
}

// Save persists the account row, then every email record that is new or
// whose primary flag changed. The new primary is written first; a failure
// on a demoted sibling afterwards is returned as *PrimarySyncError and the
// primary change stays in place.
func (s *Store) Save(ctx context.Context, acct *Account, validate bool) error {
	if validate {
		if errs := acct.Validate(); !errs.Empty() {
			acct.Errors.Merge(errs)
			return &ValidationError{Errors: errs}
		}
	}

	now := s.now().UTC()
	acct.UpdatedAt = now
	var err error
	if acct.persisted {
		err = s.repo.UpdateAccount(ctx, acct)
	} else {
		acct.CreatedAt = now
		err = s.repo.CreateAccount(ctx, acct)
	}
	if err != nil {
		return attachErrors(&acct.Errors, err)
	}
	acct.persisted = true

	return s.syncEmails(ctx, acct)
}

func (s *Store) syncEmails(ctx context.Context, acct *Account) error {
	acct.EnsureSinglePrimary()

	var leading, trailing []*EmailRecord
	for _, rec := range acct.Emails {
		if rec.persisted && !rec.PrimaryChanged() {
			continue
		}
		if rec.Primary {
			leading = append(leading, rec)
		} else {
			trailing = append(trailing, rec)
		}
	}

	for _, rec := range leading {
		if err := s.saveEmail(ctx, rec); err != nil {
			return attachErrors(&acct.Errors, err)
		}
	}

	// Only demoted siblings count as a sync failure; a new record that
	// cannot be saved is reported as its own error.
	var failures []error
	var recordErr error
	for _, rec := range trailing {
		err := s.saveEmail(ctx, rec)
		if err == nil {
			continue
		}
		attachErrors(&acct.Errors, err)
		if !rec.PrimaryChanged() {
			if recordErr == nil {
				recordErr = err
			}
			continue
		}
		slog.Error("Failed to save email after primary change", "account_id", acct.ID, "email_id", rec.ID, "err", err)
		failures = append(failures, fmt.Errorf("email %s: %w", rec.Address, err))
	}
	if len(failures) > 0 {
		return &PrimarySyncError{AccountID: acct.ID.String(), Failures: failures}
	}
	return recordErr
}

// SaveEmail persists a single record. With validate set the record's own
// attributes are checked first.
func (s *Store) SaveEmail(ctx context.Context, rec *EmailRecord, validate bool) error {
	if validate {
		if errs := rec.Validate(); !errs.Empty() {
			return &ValidationError{Errors: errs}
		}
	}
	return s.saveEmail(ctx, rec)
}

func (s *Store) saveEmail(ctx context.Context, rec *EmailRecord) error {
	now := s.now().UTC()
	if !rec.persisted {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	if err := s.repo.SaveEmail(ctx, rec); err != nil {
		return err
	}
	rec.markPersisted()
	return nil
}

// RemoveEmail deletes a record from the account. Removing the primary
// promotes another record.
func (s *Store) RemoveEmail(ctx context.Context, acct *Account, address string) error {
	rec := acct.FindEmail(address)
	if rec == nil {
		return ErrEmailNotFound
	}
	if len(acct.Emails) == 1 {
		return ErrLastEmail
	}
	if rec.persisted {
		if err := s.repo.DeleteEmail(ctx, rec.ID); err != nil {
			return fmt.Errorf("failed to delete email: %w", err)
		}
	}
	acct.removeEmail(rec)
	if !rec.Primary {
		return nil
	}
	return s.syncEmails(ctx, acct)
}

func attachErrors(dst *Errors, err error) error {
	dst.Absorb(err)
	return err
}
