package detection

import (
	"strings"

	"github.com/memfill/memfill/internal/dom"
	"github.com/memfill/memfill/internal/domain"
)

// ClassifyWebsite produces the coarse page classification used to bias
// matching and rephrasing.
func ClassifyWebsite(doc *dom.Document, forms []*DetectedForm) *domain.WebsiteContext {
	ctx := &domain.WebsiteContext{
		PageType: domain.PageTypeGeneric,
		Title:    doc.Title,
		URL:      doc.URL,
	}

	haystack := strings.ToLower(doc.Title + " " + doc.URL)
	hasPassword := false
	for _, form := range forms {
		for _, f := range form.Fields {
			if f.Metadata.FieldType == domain.FieldTypePassword {
				hasPassword = true
			}
		}
	}

	switch {
	case containsAny(haystack, "career", "job", "apply", "applicant", "greenhouse", "lever.co", "workday"):
		ctx.PageType = domain.PageTypeJobPortal
	case containsAny(haystack, "checkout", "cart", "order", "shipping", "billing"):
		ctx.PageType = domain.PageTypeEcommerce
	case containsAny(haystack, "apartment", "lease", "rent", "tenant", "housing"):
		ctx.PageType = domain.PageTypeRental
	case containsAny(haystack, "survey", "questionnaire", "feedback"):
		ctx.PageType = domain.PageTypeSurvey
	case containsAny(haystack, "profile", "social", "connect", "follow"):
		ctx.PageType = domain.PageTypeSocial
	case hasPassword || containsAny(haystack, "login", "signin", "sign-in", "signup", "register"):
		ctx.PageType = domain.PageTypeAuth
	case containsAny(haystack, "contact", "support", "enquiry", "inquiry"):
		ctx.PageType = domain.PageTypeContact
	}

	ctx.FormPurpose = inferFormPurpose(forms, ctx.PageType)
	return ctx
}

// inferFormPurpose looks at the dominant field mix across detected forms.
func inferFormPurpose(forms []*DetectedForm, pageType domain.PageType) string {
	var hasEmail, hasPassword, hasAddress, hasName, hasCompany bool
	for _, form := range forms {
		for _, f := range form.Fields {
			switch f.Metadata.FieldPurpose {
			case domain.PurposeEmail:
				hasEmail = true
			case domain.PurposeAddress, domain.PurposeCity, domain.PurposeZip:
				hasAddress = true
			case domain.PurposeName:
				hasName = true
			case domain.PurposeCompany, domain.PurposeTitle:
				hasCompany = true
			}
			if f.Metadata.FieldType == domain.FieldTypePassword {
				hasPassword = true
			}
		}
	}

	switch {
	case pageType == domain.PageTypeJobPortal:
		return "job application"
	case hasPassword && hasEmail && !hasName:
		return "login"
	case hasPassword && hasEmail:
		return "registration"
	case hasAddress && pageType == domain.PageTypeEcommerce:
		return "checkout"
	case hasAddress:
		return "address collection"
	case hasCompany:
		return "professional profile"
	case hasEmail && hasName:
		return "contact details"
	case hasEmail:
		return "subscription"
	default:
		return "general"
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
