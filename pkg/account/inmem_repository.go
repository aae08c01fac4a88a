package account

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// InMemoryRepository implements Repository with maps. Records are copied on
// the way in and out so callers never share state with the store.
type InMemoryRepository struct {
	accounts map[uuid.UUID]*Account
	emails   map[uuid.UUID]*EmailRecord
	mutex    sync.RWMutex
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		accounts: make(map[uuid.UUID]*Account),
		emails:   make(map[uuid.UUID]*EmailRecord),
	}
}

func (r *InMemoryRepository) CreateAccount(ctx context.Context, acct *Account) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if err := r.checkAccount(acct); err != nil {
		return err
	}
	r.accounts[acct.ID] = acct.cloneRow()
	acct.persisted = true
	return nil
}

func (r *InMemoryRepository) UpdateAccount(ctx context.Context, acct *Account) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.accounts[acct.ID]; !ok {
		return ErrAccountNotFound
	}
	if err := r.checkAccount(acct); err != nil {
		return err
	}
	r.accounts[acct.ID] = acct.cloneRow()
	return nil
}

func (r *InMemoryRepository) GetAccount(ctx context.Context, id uuid.UUID) (*Account, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	acct, ok := r.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return r.loaded(acct), nil
}

func (r *InMemoryRepository) FindAccount(ctx context.Context, conds Conditions) (*Account, error) {
	acctConds, emailConds, err := conds.split()
	if err != nil {
		return nil, err
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var matches []*Account
	for _, acct := range r.accounts {
		if !acctConds.matchAccount(acct) {
			continue
		}
		if len(emailConds) > 0 && !r.ownsMatchingEmail(acct.ID, emailConds) {
			continue
		}
		matches = append(matches, acct)
	}
	if len(matches) == 0 {
		return nil, ErrAccountNotFound
	}
	slices.SortFunc(matches, func(a, b *Account) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return r.loaded(matches[0]), nil
}

func (r *InMemoryRepository) SaveEmail(ctx context.Context, rec *EmailRecord) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.accounts[rec.AccountID]; !ok {
		return ErrAccountNotFound
	}
	if err := r.checkEmail(rec); err != nil {
		return err
	}
	r.emails[rec.ID] = rec.clone()
	return nil
}

func (r *InMemoryRepository) DeleteEmail(ctx context.Context, id uuid.UUID) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.emails[id]; !ok {
		return ErrEmailNotFound
	}
	delete(r.emails, id)
	return nil
}

func (r *InMemoryRepository) FindEmail(ctx context.Context, conds Conditions) (*EmailRecord, error) {
	if err := conds.validateEmail(); err != nil {
		return nil, err
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()

	matches := r.filterEmails(func(rec *EmailRecord) bool { return conds.matchEmail(rec) })
	if len(matches) == 0 {
		return nil, ErrEmailNotFound
	}
	return matches[0], nil
}

func (r *InMemoryRepository) ListEmails(ctx context.Context, accountID uuid.UUID) ([]*EmailRecord, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.filterEmails(func(rec *EmailRecord) bool { return rec.AccountID == accountID }), nil
}

// filterEmails returns persisted copies ordered by creation time.
func (r *InMemoryRepository) filterEmails(keep func(*EmailRecord) bool) []*EmailRecord {
	var out []*EmailRecord
	for _, rec := range r.emails {
		if keep(rec) {
			c := rec.clone()
			c.markPersisted()
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b *EmailRecord) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return slices.Compare(a.ID[:], b.ID[:])
	})
	return out
}

func (r *InMemoryRepository) ownsMatchingEmail(accountID uuid.UUID, conds Conditions) bool {
	for _, rec := range r.emails {
		if rec.AccountID == accountID && conds.matchEmail(rec) {
			return true
		}
	}
	return false
}

func (r *InMemoryRepository) loaded(acct *Account) *Account {
	c := acct.cloneRow()
	c.persisted = true
	return c
}

func (r *InMemoryRepository) checkAccount(acct *Account) error {
	if acct.Username == "" {
		return nil
	}
	for id, other := range r.accounts {
		if id != acct.ID && other.Username == acct.Username {
			return newTakenError("username")
		}
	}
	return nil
}

func (r *InMemoryRepository) checkEmail(rec *EmailRecord) error {
	for id, other := range r.emails {
		if id == rec.ID {
			continue
		}
		switch {
		case other.Address == rec.Address:
			return newTakenError("email")
		case rec.ConfirmationToken != "" && other.ConfirmationToken == rec.ConfirmationToken:
			return newTakenError(AttrConfirmationToken)
		case rec.ResetPasswordToken != "" && other.ResetPasswordToken == rec.ResetPasswordToken:
			return newTakenError(AttrResetPasswordToken)
		}
	}
	return nil
}
