package utils

import "strings"

func StringPtr(s string) *string {
	return &s
}

// NonEmptyPtr returns nil for blank strings.
func NonEmptyPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func PtrString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
