package utils

import (
	"database/sql"
	"strings"
)

func ToNullString(str string) sql.NullString {
	if str == "" {
		return sql.NullString{
			String: str,
			Valid:  false,
		}
	}
	return sql.NullString{
		String: str,
		Valid:  true,
	}
}

// FromNullString returns the string value, or "" for NULL.
func FromNullString(ns sql.NullString) string {
	if !ns.Valid {
		return ""
	}
	return ns.String
}

// MaskEmail hides the middle of the local part, e.g. "j***n@example.com".
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	local, domain := email[:at], email[at:]
	switch len(local) {
	case 0, 1:
		return email
	case 2:
		return local[:1] + "*" + local[1:] + domain
	default:
		return local[:1] + "***" + local[len(local)-1:] + domain
	}
}

// IsBlank reports whether s is empty after trimming whitespace.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
