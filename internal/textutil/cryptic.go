package textutil

import "regexp"

// Cryptic-string patterns: framework-generated identifiers that add
// noise tokens to a model prompt without carrying meaning.
var (
	uuidPattern = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

	// Long unbroken hex runs (React keys, hash suffixes).
	longHexPattern = regexp.MustCompile(`(?i)^[0-9a-f]{16,}$`)

	// Long base64-looking blobs with mixed case and digits.
	base64Pattern = regexp.MustCompile(`^[A-Za-z0-9+/=_-]{24,}$`)

	// Generated ids of the form word_a1b2c3d or word-a1b2c3d4.
	generatedIDPattern = regexp.MustCompile(`(?i)^[a-z]+[_-][0-9a-f]{6,}$`)
)

// IsCryptic reports whether s looks like a generated identifier rather
// than human-authored text. Cryptic strings are filtered out before a
// field's name/id is used as prompt context.
func IsCryptic(s string) bool {
	if s == "" {
		return false
	}
	if uuidPattern.MatchString(s) || longHexPattern.MatchString(s) || generatedIDPattern.MatchString(s) {
		return true
	}
	// Base64 blobs are only cryptic when they lack word shape: require
	// at least one digit so ordinary long words survive.
	if base64Pattern.MatchString(s) && hasDigit(s) && hasMixedCase(s) {
		return true
	}
	return false
}

func hasDigit(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}

func hasMixedCase(s string) bool {
	var upper, lower bool
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			upper = true
		}
		if r >= 'a' && r <= 'z' {
			lower = true
		}
	}
	return upper && lower
}
