package domain

import "strings"

// UsernameRule is the validation message for a username that fails ValidUsername.
const UsernameRule = "must be 3-24 chars [A-Za-z0-9_]"

// NormalizeUsername is applied both when an account is created and when a
// login identifier is looked up, so the two never disagree on whitespace.
func NormalizeUsername(s string) string {
	return strings.TrimSpace(s)
}

func ValidUsername(s string) bool {
	if len(s) < 3 || len(s) > 24 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_':
		default:
			return false
		}
	}
	return true
}
