package util

import (
	"strings"
	"unicode"
)

// CleanString collapses runs of whitespace and trims. It returns "" for
// blank input.
func CleanString(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeForCompare lowercases and keeps only letters and digits, so that
// "Brown v. Board of Educ." and "brown v board of educ" compare equal.
func NormalizeForCompare(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeWords lowercases, drops punctuation, and keeps single spaces
// between words.
func NormalizeWords(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return CleanString(b.String())
}

// StripSection removes section symbols and surrounding whitespace
func StripSection(s string) string {
	return CleanString(strings.ReplaceAll(s, "§", ""))
}
