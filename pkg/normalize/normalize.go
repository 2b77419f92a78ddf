// Package normalize turns free text into a lowercase, accent-free form so that
// "João" and "joao" compare equal.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Text lowercases s, decomposes it (NFD) and drops every combining mark.
// It is pure and idempotent; the empty string maps to itself.
func Text(s string) string {
	if s == "" {
		return ""
	}

	// transform.Chain keeps state, so each call builds its own.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))

	out, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		// Only reachable on invalid transformer state; fall back to lowercase.
		return strings.ToLower(s)
	}
	return out
}

// Tokens splits the normalized form of s on whitespace.
func Tokens(s string) []string {
	return strings.Fields(Text(s))
}

// ContainsAll reports whether every token appears as a substring of the
// normalized candidate. Order does not matter and tokens need not be whole
// words. With no tokens it reports true.
func ContainsAll(candidate string, tokens []string) bool {
	normalized := Text(candidate)
	for _, tok := range tokens {
		if !strings.Contains(normalized, tok) {
			return false
		}
	}
	return true
}
