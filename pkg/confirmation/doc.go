// Package confirmation drives the confirmation state of email records:
// issuing tokens, redeeming them, and promoting pending address changes.
package confirmation
