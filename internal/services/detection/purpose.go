package detection

import (
	"regexp"
	"strings"

	"github.com/memfill/memfill/internal/dom"
	"github.com/memfill/memfill/internal/domain"
	"github.com/memfill/memfill/internal/textutil"
)

// classifyFieldType maps an element to its control type.
func classifyFieldType(el *dom.Element) domain.FieldType {
	switch el.Tag {
	case "textarea":
		return domain.FieldTypeTextarea
	case "select":
		return domain.FieldTypeSelect
	}

	switch el.Type() {
	case "email":
		return domain.FieldTypeEmail
	case "tel":
		return domain.FieldTypeTel
	case "url":
		return domain.FieldTypeURL
	case "password":
		return domain.FieldTypePassword
	case "number":
		return domain.FieldTypeNumber
	case "date", "datetime-local", "month", "week":
		return domain.FieldTypeDate
	case "checkbox":
		return domain.FieldTypeCheckbox
	case "radio":
		return domain.FieldTypeRadio
	default:
		return domain.FieldTypeText
	}
}

// autocompletePurpose maps autocomplete tokens to purposes. Checked
// before any free-text pattern matching.
var autocompletePurpose = map[string]domain.FieldPurpose{
	"email":              domain.PurposeEmail,
	"tel":                domain.PurposePhone,
	"tel-national":       domain.PurposePhone,
	"name":               domain.PurposeName,
	"given-name":         domain.PurposeName,
	"family-name":        domain.PurposeName,
	"additional-name":    domain.PurposeName,
	"street-address":     domain.PurposeAddress,
	"address-line1":      domain.PurposeAddress,
	"address-line2":      domain.PurposeAddress,
	"address-level2":     domain.PurposeCity,
	"address-level1":     domain.PurposeState,
	"postal-code":        domain.PurposeZip,
	"country":            domain.PurposeCountry,
	"country-name":       domain.PurposeCountry,
	"organization":       domain.PurposeCompany,
	"organization-title": domain.PurposeTitle,
}

// purposePattern is one free-text classification rule. Order matters:
// more specific patterns come first so "company name" never classifies
// as a bare name field.
type purposePattern struct {
	purpose domain.FieldPurpose
	re      *regexp.Regexp
}

var purposePatterns = []purposePattern{
	{domain.PurposeEmail, regexp.MustCompile(`(?i)\be-?mail\b`)},
	{domain.PurposePhone, regexp.MustCompile(`(?i)\b(phone|mobile|telephone|cell)\b`)},
	{domain.PurposeZip, regexp.MustCompile(`(?i)\b(zip|postal)\b`)},
	{domain.PurposeCity, regexp.MustCompile(`(?i)\b(city|town)\b`)},
	{domain.PurposeState, regexp.MustCompile(`(?i)\b(state|province|region)\b`)},
	{domain.PurposeCountry, regexp.MustCompile(`(?i)\bcountry\b`)},
	{domain.PurposeCompany, regexp.MustCompile(`(?i)\b(company|employer|organization|organisation)\b`)},
	{domain.PurposeTitle, regexp.MustCompile(`(?i)\b(job title|position|role)\b`)},
	{domain.PurposeAddress, regexp.MustCompile(`(?i)\b(address|street)\b`)},
	{domain.PurposeName, regexp.MustCompile(`(?i)\b(name|first|last|surname)\b`)},
}

// inferPurpose classifies a field's semantic purpose. Precedence:
// autocomplete attribute, then control type, then free-text patterns
// over labels and context.
func inferPurpose(meta domain.FieldMetadata) domain.FieldPurpose {
	for _, token := range strings.Fields(strings.ToLower(meta.Autocomplete)) {
		if p, ok := autocompletePurpose[token]; ok {
			return p
		}
	}

	switch meta.FieldType {
	case domain.FieldTypeEmail:
		return domain.PurposeEmail
	case domain.FieldTypeTel:
		return domain.PurposePhone
	}

	var parts []string
	parts = append(parts, meta.Labels.All()...)
	// Field names are folded (first_name -> "first name") so word-boundary
	// patterns can see their tokens.
	parts = append(parts, meta.Placeholder,
		textutil.NormalizeFieldName(meta.Name),
		textutil.NormalizeFieldName(meta.ID))
	haystack := strings.Join(parts, " ")

	for _, p := range purposePatterns {
		if p.re.MatchString(haystack) {
			return p.purpose
		}
	}
	return domain.PurposeUnknown
}
