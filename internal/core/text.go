package core

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FoldText lower-cases s and strips diacritics so that "Alimentación" and
// "alimentacion" compare equal.
func FoldText(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

// ContainsFolded reports whether needle occurs in haystack ignoring case and
// accents. An empty needle matches everything.
func ContainsFolded(haystack, needle string) bool {
	needle = FoldText(needle)
	if needle == "" {
		return true
	}
	return strings.Contains(FoldText(haystack), needle)
}
