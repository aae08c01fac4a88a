// Package tokengenerator issues the tokens used by confirmation, password
// recovery and login sessions.
//
// Confirmation and reset tokens are 20 character URL-safe strings. They can
// be stored as keyed digests (HMAC-SHA256 with a PBKDF2-derived key per
// purpose) so a leaked table does not leak usable tokens. Session tokens are
// HS256 JWTs.
package tokengenerator
