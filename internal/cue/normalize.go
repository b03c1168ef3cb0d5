package cue

import (
	"regexp"
	"strings"
	"unicode"
)

// Bracketed and parenthetical annotations: [Music], (applause).
var (
	bracketRe = regexp.MustCompile(`\[[^\]]*\]`)
	parenRe   = regexp.MustCompile(`\([^)]*\)`)
)

// Normalize lowercases s, strips [..] and (..) spans, drops every rune that is
// not a letter, digit or space and collapses whitespace to single spaces.
// Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = bracketRe.ReplaceAllString(s, " ")
	s = parenRe.ReplaceAllString(s, " ")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Words returns the normalized tokens of s. Empty tokens never appear.
func Words(s string) []string {
	return strings.Fields(Normalize(s))
}
