package resolver

import (
	"slices"
	"strings"
)

// ParameterFilter sanitizes caller supplied attributes before they are used
// in a lookup.
type ParameterFilter struct {
	Schema              Schema
	CaseInsensitiveKeys []string
	StripWhitespaceKeys []string
}

func DefaultParameterFilter(schema Schema) ParameterFilter {
	return ParameterFilter{
		Schema:              schema,
		CaseInsensitiveKeys: []string{"address", "unconfirmed_address", "username"},
		StripWhitespaceKeys: []string{"address", "unconfirmed_address", "username"},
	}
}

// Filter drops attributes the schema does not know and normalizes the
// configured keys. The input map is not modified.
func (f ParameterFilter) Filter(attrs map[string]string) map[string]string {
	out := make(map[string]string, len(attrs))
	for key, value := range attrs {
		if !f.Schema.Knows(key) {
			continue
		}
		if slices.Contains(f.StripWhitespaceKeys, key) {
			value = strings.TrimSpace(value)
		}
		if slices.Contains(f.CaseInsensitiveKeys, key) {
			value = strings.ToLower(value)
		}
		out[key] = value
	}
	return out
}
