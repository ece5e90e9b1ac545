// Package viewstate holds immutable form and sheet state with pure reducers.
// Every reducer returns a new value and leaves its receiver untouched.
package viewstate

import "strings"

// Optional normalizes user text: blank input is absent, anything else is trimmed.
func Optional(s string) *string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// OptionalPtr applies Optional to a possibly absent value.
func OptionalPtr(s *string) *string {
	if s == nil {
		return nil
	}
	return Optional(*s)
}

// Text renders an optional value as the empty string when absent.
func Text(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
