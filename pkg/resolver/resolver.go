package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/tendant/simple-idm-multiemail/pkg/account"
	"github.com/tendant/simple-idm-multiemail/pkg/utils"
	"golang.org/x/exp/maps"
)

// ErrUnsupportedLookup is returned when the conditions carry none of the
// identity keys.
var ErrUnsupportedLookup = errors.New("lookup requires an identity key")

// IdentityKeys are the attributes that can identify an email record, in the
// order they are tried.
var IdentityKeys = []string{
	account.AttrAddress,
	account.AttrUnconfirmedAddress,
	account.AttrConfirmationToken,
	account.AttrResetPasswordToken,
}

// Resolver maps caller supplied credentials onto an account and the email
// record that identified it.
type Resolver struct {
	store  *account.Store
	schema Schema
	filter ParameterFilter
}

func New(store *account.Store) *Resolver {
	schema := DefaultSchema()
	return &Resolver{
		store:  store,
		schema: schema,
		filter: DefaultParameterFilter(schema),
	}
}

func (r *Resolver) Store() *account.Store {
	return r.store
}

// MatchByConditions finds the account and email record described by
// tainted. Identity keys take precedence over opts, and opts over the other
// tainted keys. The email record is always found by the identity keys;
// account attributes such as username only narrow which account may own it.
//
// It returns ErrUnsupportedLookup when tainted has no identity key, and
// (nil, nil) when nothing matches.
func (r *Resolver) MatchByConditions(ctx context.Context, tainted map[string]string, opts map[string]string) (*account.Match, error) {
	filtered := r.filter.Filter(tainted)

	var criteria account.Conditions
	for _, key := range IdentityKeys {
		if value, ok := filtered[key]; ok {
			criteria = append(criteria, account.Condition{Attribute: key, Value: value})
			delete(filtered, key)
		}
	}
	if len(criteria) == 0 {
		return nil, ErrUnsupportedLookup
	}

	var emailConds, acctConds account.Conditions
	for _, cond := range buildConditions(filtered, opts, criteria) {
		if r.schema.TableFor(cond.Attribute) == TableEmail {
			emailConds = append(emailConds, cond)
		} else {
			acctConds = append(acctConds, cond)
		}
	}

	rec, err := r.store.FindEmail(ctx, emailConds)
	if errors.Is(err, account.ErrEmailNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find email: %w", err)
	}

	owner := append(account.Conditions{{Attribute: account.AttrID, Value: rec.AccountID.String()}}, acctConds...)
	acct, err := r.store.FindAccount(ctx, owner)
	if errors.Is(err, account.ErrAccountNotFound) {
		if len(acctConds) == 0 {
			slog.Warn("Email record without account", "email_id", rec.ID, "account_id", rec.AccountID)
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	if owned := acct.FindEmail(rec.Address); owned != nil {
		rec = owned
	}

	loginEmail := loginEmailFrom(criteria)
	if loginEmail == "" {
		loginEmail = rec.Address
	}
	return &account.Match{Account: acct, Email: rec, Auth: account.AuthContext{LoginEmail: loginEmail}}, nil
}

// buildConditions orders the identity criteria first, then the remaining
// tainted keys, then opts, each group canonical or sorted. Identity values
// are never overridden.
func buildConditions(remaining, opts map[string]string, criteria account.Conditions) account.Conditions {
	isIdentity := func(key string) bool {
		_, ok := criteria.Lookup(key)
		return ok
	}

	conds := append(account.Conditions{}, criteria...)
	rest := maps.Keys(remaining)
	slices.Sort(rest)
	for _, key := range rest {
		if _, overridden := opts[key]; overridden {
			continue
		}
		conds = append(conds, account.Condition{Attribute: key, Value: remaining[key]})
	}

	optKeys := maps.Keys(opts)
	slices.Sort(optKeys)
	for _, key := range optKeys {
		if isIdentity(key) {
			continue
		}
		conds = append(conds, account.Condition{Attribute: key, Value: opts[key]})
	}
	return conds
}

// loginEmailFrom returns the address used to identify the record, if the
// lookup was by address.
func loginEmailFrom(criteria account.Conditions) string {
	switch criteria[0].Attribute {
	case account.AttrAddress, account.AttrUnconfirmedAddress:
		return criteria[0].Value
	}
	return ""
}

// Resolve looks up the record described by the required attributes. When
// any required value is blank, or nothing matches, it returns a new
// unpersisted account built from the attributes with an error on "email":
// blank for missing values, errKind otherwise.
func (r *Resolver) Resolve(ctx context.Context, attrs map[string]string, requiredKeys []string, errKind account.ErrorKind) (*account.Match, error) {
	if errKind == "" {
		errKind = account.ErrorInvalid
	}

	required := make(map[string]string, len(requiredKeys))
	for _, key := range requiredKeys {
		if value, ok := attrs[key]; ok && !utils.IsBlank(value) {
			required[key] = value
		}
	}

	if len(required) == len(requiredKeys) {
		match, err := r.MatchByConditions(ctx, required, nil)
		switch {
		case errors.Is(err, ErrUnsupportedLookup):
			slog.Debug("Unsupported credential lookup", "keys", requiredKeys)
		case err != nil:
			return nil, err
		case match != nil:
			return match, nil
		}
	}

	corrected := r.filter.Filter(required)
	acct := account.New(corrected[account.AttrAddress])
	if username, ok := corrected[account.AttrUsername]; ok {
		acct.Username = username
	}
	if len(required) != len(requiredKeys) {
		acct.Errors.Add("email", account.ErrorBlank)
	} else {
		acct.Errors.Add("email", errKind)
	}
	return &account.Match{Account: acct}, nil
}
