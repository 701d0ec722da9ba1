package hashutil

import (
	"regexp"
	"strings"
)

var (
	punctRe    = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	whitespace = regexp.MustCompile(`\s+`)
)

// NormalizeTitle casefolds, strips punctuation, and collapses whitespace.
// It is idempotent: NormalizeTitle(NormalizeTitle(x)) == NormalizeTitle(x).
func NormalizeTitle(title string) string {
	s := strings.ToLower(title)
	s = punctRe.ReplaceAllString(s, " ")
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Summarize truncates s to at most maxLen runes, appending an ellipsis when
// truncated.
func Summarize(s string, maxLen int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= maxLen {
		return string(r)
	}
	if maxLen <= 1 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-1]) + "…"
}

// TokenSignature returns the first n alphanumeric tokens of s, joined by a
// single space — used for Incident.TokenSignature.
func TokenSignature(s string, n int) string {
	toks := Tokenize(s)
	if len(toks) > n {
		toks = toks[:n]
	}
	return strings.Join(toks, " ")
}
