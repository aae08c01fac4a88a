// Package utils provides small helpers shared across the multi-email
// packages: SQL null conversions, blank checks and address masking for logs.
//
//	utils.ToNullString("")                 // NULL
//	utils.MaskEmail("john@example.com")   // "j***n@example.com"
package utils
