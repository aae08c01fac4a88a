// Package errors maps account service failures to coded errors with HTTP
// statuses.
//
// Expected outcomes such as an unknown address or an expired token arrive
// as field errors attached to an account; FromFieldErrors turns them into a
// VALIDATION_FAILED error rendered as 422 with the fields listed:
//
//	{"code": "VALIDATION_FAILED", "message": "email not_found", "errors": {"email": ["not_found"]}}
//
// FromError classifies returned errors: bad credentials are 401, a login
// refused because the address used is unconfirmed is 403
// EMAIL_NOT_CONFIRMED, and anything unrecognised is a 500.
package errors
