// Package textnorm canonicalizes free text before identity hashing and
// keyword matching.
package textnorm

import (
	"strings"
)

// Normalize trims, collapses every whitespace run to a single space and
// lowercases. Empty input yields "".
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	// strings.Fields splits on unicode.IsSpace runs and drops the ends
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
