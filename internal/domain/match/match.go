// Package match compares names typed by operators against names stored in
// the sheet.
package match

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Fold trims, lowercases and NFC-normalises s so that composed and
// decomposed spellings compare equal.
func Fold(s string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(s)))
}

func Equal(a, b string) bool {
	return Fold(a) == Fold(b)
}

// Contains reports whether needle occurs in haystack after folding. An empty
// needle matches everything.
func Contains(haystack, needle string) bool {
	needle = Fold(needle)
	if needle == "" {
		return true
	}
	return strings.Contains(Fold(haystack), needle)
}

// Slug folds s and drops combining marks, for lookups that should ignore
// accents.
func Slug(s string) string {
	decomposed := norm.NFD.String(Fold(s))
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
