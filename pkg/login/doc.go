// Package login authenticates an account by any of its email addresses.
//
// Passwords are hashed with bcrypt or Argon2id; MultiHasher verifies both
// formats so the configured algorithm can change without invalidating stored
// hashes. Login applies the account's activity rules to the address that
// was actually used, so logging in through an unconfirmed secondary address
// is refused with ReasonUnconfirmed even when the primary is confirmed.
package login
