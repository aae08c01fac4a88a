// Package recovery implements password reset through a token sent to one of
// the account's email addresses.
package recovery
