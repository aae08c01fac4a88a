package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tendant/simple-idm-multiemail/pkg/account"
	"github.com/tendant/simple-idm-multiemail/pkg/login"
	"github.com/tendant/simple-idm-multiemail/pkg/resolver"
)

// ErrorCode represents a unique error code
type ErrorCode string

const (
	ErrCodeInternal          ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput      ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"

	ErrCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeEmailNotConfirmed  ErrorCode = "EMAIL_NOT_CONFIRMED"
	ErrCodeAccountInactive    ErrorCode = "ACCOUNT_INACTIVE"

	ErrCodeValidationFailed    ErrorCode = "VALIDATION_FAILED"
	ErrCodeLastEmail           ErrorCode = "LAST_EMAIL"
	ErrCodePrimaryNotConfirmed ErrorCode = "PRIMARY_NOT_CONFIRMED"
	ErrCodePrimarySyncFailed   ErrorCode = "PRIMARY_SYNC_FAILED"
)

// Error represents a structured error with code, message, and optional details
type Error struct {
	Code    ErrorCode           `json:"code"`
	Message string              `json:"message"`
	Fields  map[string][]string `json:"errors,omitempty"`
	Err     error               `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error for errors.Is and errors.As
func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatusCode returns the appropriate HTTP status code for this error
func (e *Error) HTTPStatusCode() int {
	return MapErrorCodeToHTTPStatus(e.Code)
}

func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with code and message
func Wrap(err error, code ErrorCode, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// IsCode checks if an error has a specific error code
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode returns ErrCodeInternal for errors that are not an *Error.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}

// MapErrorCodeToHTTPStatus maps error codes to HTTP status codes
func MapErrorCodeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeInvalidInput:
		return http.StatusBadRequest
	case ErrCodeUnauthorized, ErrCodeInvalidCredentials:
		return http.StatusUnauthorized
	case ErrCodeEmailNotConfirmed, ErrCodeAccountInactive:
		return http.StatusForbidden
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeLastEmail, ErrCodePrimaryNotConfirmed:
		return http.StatusConflict
	case ErrCodeValidationFailed:
		return http.StatusUnprocessableEntity
	case ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// FromFieldErrors converts errors attached to an account. Nil is returned
// when there are none. A throttled field makes the whole error a rate limit.
func FromFieldErrors(fieldErrs account.Errors) *Error {
	if fieldErrs.Empty() {
		return nil
	}
	code := ErrCodeValidationFailed
	for _, fe := range fieldErrs {
		if fe.Kind == account.ErrorThrottled {
			code = ErrCodeRateLimitExceeded
			break
		}
	}
	return &Error{Code: code, Message: fieldErrs.Error(), Fields: fieldErrs.Map()}
}

// FromError classifies errors returned by the account services.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var (
		e        *Error
		inactive *login.InactiveError
		verr     *account.ValidationError
		syncErr  *account.PrimarySyncError
	)
	switch {
	case errors.As(err, &e):
		return e
	case errors.As(err, &inactive):
		if inactive.Reason == account.ReasonUnconfirmed {
			return Wrap(err, ErrCodeEmailNotConfirmed, "you have to confirm your email address before continuing")
		}
		return Wrap(err, ErrCodeAccountInactive, "your account is not activated yet")
	case errors.Is(err, login.ErrInvalidCredentials):
		return Wrap(err, ErrCodeInvalidCredentials, "invalid email or password")
	case errors.As(err, &syncErr):
		return Wrap(err, ErrCodePrimarySyncFailed, "primary email changed but some addresses could not be updated")
	case errors.As(err, &verr):
		fe := FromFieldErrors(verr.Errors)
		if fe == nil {
			return Wrap(err, ErrCodeValidationFailed, "validation failed")
		}
		fe.Err = err
		return fe
	case errors.Is(err, account.ErrLastEmail):
		return Wrap(err, ErrCodeLastEmail, "account must keep at least one email")
	case errors.Is(err, account.ErrPrimaryNotConfirmed):
		return Wrap(err, ErrCodePrimaryNotConfirmed, "email must be confirmed before it can become primary")
	case errors.Is(err, account.ErrEmailNotFound), errors.Is(err, account.ErrAccountNotFound):
		return Wrap(err, ErrCodeNotFound, err.Error())
	case errors.Is(err, resolver.ErrUnsupportedLookup):
		return Wrap(err, ErrCodeInvalidInput, "lookup requires an email or token")
	}
	return Wrap(err, ErrCodeInternal, "internal error")
}
