package account

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrEmailNotFound       = errors.New("email not found")
	ErrUnknownAttribute    = errors.New("unknown attribute")
	ErrPrimaryNotConfirmed = errors.New("email must be confirmed before it can become primary")
	ErrLastEmail           = errors.New("account must keep at least one email")
)

// ErrorKind names an expected failure attached to a field. The values are
// stable and rendered as-is by the HTTP layer.
type ErrorKind string

const (
	ErrorBlank                     ErrorKind = "blank"
	ErrorNotFound                  ErrorKind = "not_found"
	ErrorInvalid                   ErrorKind = "invalid"
	ErrorAlreadyConfirmed          ErrorKind = "already_confirmed"
	ErrorConfirmationPeriodExpired ErrorKind = "confirmation_period_expired"
	ErrorExpired                   ErrorKind = "expired"
	ErrorTaken                     ErrorKind = "taken"
	ErrorConfirmation              ErrorKind = "confirmation"
	ErrorTooShort                  ErrorKind = "too_short"
	ErrorTooLong                   ErrorKind = "too_long"
	ErrorThrottled                 ErrorKind = "throttled"
)

// FieldError is a single validation failure on a named attribute.
type FieldError struct {
	Field  string    `json:"field"`
	Kind   ErrorKind `json:"kind"`
	Detail string    `json:"detail,omitempty"`
}

func (e FieldError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s %s (%s)", e.Field, e.Kind, e.Detail)
	}
	return fmt.Sprintf("%s %s", e.Field, e.Kind)
}

// Errors collects field errors in the order they were added.
type Errors []FieldError

func (e *Errors) Add(field string, kind ErrorKind) {
	*e = append(*e, FieldError{Field: field, Kind: kind})
}

func (e *Errors) AddDetail(field string, kind ErrorKind, detail string) {
	*e = append(*e, FieldError{Field: field, Kind: kind, Detail: detail})
}

func (e *Errors) Merge(other Errors) {
	*e = append(*e, other...)
}

func (e *Errors) Clear() {
	*e = nil
}

func (e Errors) Empty() bool {
	return len(e) == 0
}

// On returns the kinds recorded for field.
func (e Errors) On(field string) []ErrorKind {
	var kinds []ErrorKind
	for _, fe := range e {
		if fe.Field == field {
			kinds = append(kinds, fe.Kind)
		}
	}
	return kinds
}

func (e Errors) Has(field string, kind ErrorKind) bool {
	for _, fe := range e {
		if fe.Field == field && fe.Kind == kind {
			return true
		}
	}
	return false
}

// Map groups error kinds by field.
func (e Errors) Map() map[string][]string {
	m := make(map[string][]string, len(e))
	for _, fe := range e {
		m[fe.Field] = append(m[fe.Field], string(fe.Kind))
	}
	return m
}

func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fe.Error())
	}
	return strings.Join(parts, ", ")
}

// ValidationError is returned by saves that were rejected because of the
// record's attributes, including uniqueness conflicts in the store.
type ValidationError struct {
	Errors Errors
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Errors.Error()
}

func newTakenError(field string) *ValidationError {
	return &ValidationError{Errors: Errors{{Field: field, Kind: ErrorTaken}}}
}

// PrimarySyncError reports sibling email saves that failed after the new
// primary was already persisted. The primary change is not rolled back.
type PrimarySyncError struct {
	AccountID string
	Failures  []error
}

func (e *PrimarySyncError) Error() string {
	msgs := make([]string, 0, len(e.Failures))
	for _, err := range e.Failures {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("primary email sync incomplete for account %s: %s", e.AccountID, strings.Join(msgs, "; "))
}

func (e *PrimarySyncError) Unwrap() []error {
	return e.Failures
}

// Absorb merges the field errors carried by a *ValidationError in err and
// reports whether there were any.
func (e *Errors) Absorb(err error) bool {
	var verr *ValidationError
	if !errors.As(err, &verr) {
		return false
	}
	e.Merge(verr.Errors)
	return true
}
