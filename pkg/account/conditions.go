package account

import (
	"fmt"
	"slices"
	"strings"
)

// Condition is an equality test on a single attribute.
type Condition struct {
	Attribute string
	Value     string
}

// Conditions is an ordered conjunction of equality tests.
type Conditions []Condition

func (c Conditions) Lookup(attr string) (string, bool) {
	for _, cond := range c {
		if cond.Attribute == attr {
			return cond.Value, true
		}
	}
	return "", false
}

func (c Conditions) String() string {
	parts := make([]string, 0, len(c))
	for _, cond := range c {
		parts = append(parts, cond.Attribute+"="+cond.Value)
	}
	return strings.Join(parts, ",")
}

// split separates account-table conditions from email-table conditions.
func (c Conditions) split() (acct Conditions, email Conditions, err error) {
	for _, cond := range c {
		switch {
		case slices.Contains(AccountAttributes, cond.Attribute):
			acct = append(acct, cond)
		case slices.Contains(EmailAttributes, cond.Attribute):
			email = append(email, cond)
		default:
			return nil, nil, fmt.Errorf("%w: %s", ErrUnknownAttribute, cond.Attribute)
		}
	}
	return acct, email, nil
}

func (c Conditions) matchEmail(rec *EmailRecord) bool {
	for _, cond := range c {
		v, ok := rec.attribute(cond.Attribute)
		if !ok || v != cond.Value {
			return false
		}
	}
	return true
}

func (c Conditions) matchAccount(acct *Account) bool {
	for _, cond := range c {
		v, ok := acct.attribute(cond.Attribute)
		if !ok || v != cond.Value {
			return false
		}
	}
	return true
}

func (c Conditions) validateEmail() error {
	for _, cond := range c {
		if !slices.Contains(EmailAttributes, cond.Attribute) {
			return fmt.Errorf("%w: %s", ErrUnknownAttribute, cond.Attribute)
		}
	}
	return nil
}
