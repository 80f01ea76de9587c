package capture

import (
	"strings"

	"github.com/memfill/memfill/internal/textutil"
)

// canonicalQuestions folds common question phrasings onto one canonical
// form. Keys and values are normalized text.
var canonicalQuestions = map[string]string{
	"surname":        "last name",
	"family name":    "last name",
	"lastname":       "last name",
	"given name":     "first name",
	"forename":       "first name",
	"firstname":      "first name",
	"full name":      "name",
	"your name":      "name",
	"e-mail":         "email address",
	"email":          "email address",
	"e mail":         "email address",
	"mail":           "email address",
	"phone":          "phone number",
	"telephone":      "phone number",
	"mobile":         "phone number",
	"mobile number":  "phone number",
	"cell phone":     "phone number",
	"tel":            "phone number",
	"zip":            "postal code",
	"zip code":       "postal code",
	"zipcode":        "postal code",
	"postcode":       "postal code",
	"company":        "company name",
	"employer":       "company name",
	"organisation":   "company name",
	"organization":   "company name",
	"job title":      "title",
	"position":       "title",
	"role":           "title",
	"street address": "address",
	"street":         "address",
	"address line 1": "address",
	"town":           "city",
	"province":       "state",
	"region":         "state",
	"dob":            "date of birth",
	"birthday":       "date of birth",
	"birth date":     "date of birth",
}

// Canonical normalizes a question and folds it through the synonym
// table. Unmapped questions pass through normalized.
func Canonical(question string) string {
	norm := textutil.Normalize(question)
	if canon, ok := canonicalQuestions[norm]; ok {
		return canon
	}
	// Strip trailing punctuation a form label often carries.
	trimmed := strings.TrimRight(norm, ":?*")
	trimmed = strings.TrimSpace(trimmed)
	if canon, ok := canonicalQuestions[trimmed]; ok {
		return canon
	}
	return trimmed
}
