// Package identity holds the username canonicalization rules shared by every
// component that keys store records by account.
package identity

import "strings"

// Normalize lowercases and trims a username. Every store key derived from a
// username must go through this first.
func Normalize(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// Valid reports whether an already-normalized username is acceptable as a key
// component: length within bounds, characters limited to [a-z0-9._-].
func Valid(username string, minLength, maxLength int) bool {
	if len(username) < minLength || len(username) > maxLength {
		return false
	}
	for _, c := range username {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '.' || c == '_' || c == '-':
		default:
			return false
		}
	}
	return true
}
