package store

import (
	"fmt"
	"strings"
)

// SanitizeID maps a jurisdiction id onto a name safe to use as a file stem.
// Anything outside [A-Za-z0-9._-] is replaced with '_'. Ids that reduce to
// dots only (".", "..") cannot name a file inside the profiles directory and
// are rejected.
func SanitizeID(id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("empty jurisdiction id")
	}
	var b strings.Builder
	b.Grow(len(id))
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	stem := b.String()
	if strings.Trim(stem, ".") == "" {
		return "", fmt.Errorf("jurisdiction id %q reduces to a dot segment", id)
	}
	return stem, nil
}
