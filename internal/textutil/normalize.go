// Package textutil holds the string normalization and similarity
// primitives shared by quality scoring, fallback matching, and
// capture deduplication.
package textutil

import (
	"strings"
	"unicode"
)

// Normalize lowercases, trims, and collapses internal whitespace.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}

// NormalizeFieldName folds camelCase, snake_case, and kebab-case field
// names into lowercase space-separated tokens: "firstName", "first_name"
// and "first-name" all normalize to "first name".
func NormalizeFieldName(name string) string {
	var b strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || r == '.' || r == ' ':
			b.WriteRune(' ')
		case unicode.IsUpper(r):
			if i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])) {
				b.WriteRune(' ')
			}
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
