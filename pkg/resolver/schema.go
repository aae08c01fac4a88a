package resolver

import (
	"slices"

	"github.com/tendant/simple-idm-multiemail/pkg/account"
)

// Table identifies which record type an attribute belongs to.
type Table int

const (
	TableEmail Table = iota
	TableAccount
)

func (t Table) String() string {
	if t == TableAccount {
		return "account"
	}
	return "email"
}

// Schema maps every queryable attribute to its table. It is fixed when the
// resolver is configured.
type Schema map[string]Table

// DefaultSchema maps the email record attributes to TableEmail and the
// attributes only accounts have to TableAccount. Email attributes win when
// both tables share a name.
func DefaultSchema() Schema {
	s := Schema{}
	for _, attr := range account.AccountAttributes {
		if !slices.Contains(account.EmailAttributes, attr) {
			s[attr] = TableAccount
		}
	}
	for _, attr := range account.EmailAttributes {
		s[attr] = TableEmail
	}
	return s
}

// TableFor returns the table of attr; unknown attributes resolve to the
// account table.
func (s Schema) TableFor(attr string) Table {
	if t, ok := s[attr]; ok {
		return t
	}
	return TableAccount
}

func (s Schema) Knows(attr string) bool {
	_, ok := s[attr]
	return ok
}
