package database

import "strings"

// NormalizeSlug lowercases a slug and strips everything that is not a letter,
// digit, or dash. Runs of whitespace become single dashes so human-entered
// headlines make usable storage keys.
func NormalizeSlug(s string) string {
	var b strings.Builder
	lastDash := true // suppress leading dashes
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case r == '-', r == ' ', r == '_':
			if !lastDash {
				b.WriteRune('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
