package matching

import (
	"fmt"
	"strings"

	"github.com/memfill/memfill/internal/domain"
)

// SystemPrompt returns the field-matching system prompt
func SystemPrompt() string {
	return `You are a form autofill assistant. You match web form fields against a user's stored personal-data memories.

## Matching Rules
1. **Semantic similarity**: Match a field to the memory whose question/answer semantically answers what the field asks. "Surname" matches a "last name" memory; "mobile" matches a "phone number" memory.
2. **Context alignment**: Use the website context as the dominant signal. On a job portal, a "title" field means job title, not salutation. On a checkout page, "address" means shipping address.
3. **Type compatibility**: The memory's answer must be writable into the field's type. Never map prose into a number field, or a non-date into a date field. For select/radio fields, the answer must correspond to one of the field's options.
4. **Confidence floor**: When no memory plausibly answers the field, return a null memoryId with low confidence. Do not force a match.
5. **Rephrasing**: When a memory answers the field but in the wrong form (wrong date format, full name where only first name fits, long answer for a short field), put the adapted text in rephrasedAnswer and keep the memory as the match. Only rephrase; never invent information the memories do not contain.
6. **Passwords**: NEVER match password fields. If a password field appears, return a null memoryId for it with confidence 0.

## Output Schema
Return a JSON object:
{
  "matches": [
    {
      "fieldOpid": "string, the opid exactly as given",
      "memoryId": "string or null",
      "confidence": 0.0,
      "reasoning": "one short sentence",
      "alternativeMemoryIds": ["up to 3 other plausible memory ids"],
      "rephrasedAnswer": "string or null"
    }
  ]
}
Include exactly one entry per field you were given, in the given order.`
}

// UserPrompt formats the fields, memories, and website classification
// into the matching request. Memory answers are capped here, at the
// formatting boundary, not in the compressed structs.
func UserPrompt(fields []CompressedField, memories []CompressedMemory, site *domain.WebsiteContext) string {
	var b strings.Builder

	if site != nil {
		b.WriteString("## Website Context\n")
		fmt.Fprintf(&b, "Page type: %s\n", site.PageType)
		if site.FormPurpose != "" {
			fmt.Fprintf(&b, "Form purpose: %s\n", site.FormPurpose)
		}
		if site.Title != "" {
			fmt.Fprintf(&b, "Page title: %s\n", site.Title)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Form Fields\n")
	for _, f := range fields {
		fmt.Fprintf(&b, "- opid=%s type=%s purpose=%s", f.Opid, f.Type, f.Purpose)
		if len(f.Labels) > 0 {
			fmt.Fprintf(&b, " labels=%q", strings.Join(f.Labels, "; "))
		}
		if f.Context != "" {
			fmt.Fprintf(&b, " context=%q", f.Context)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n## Stored Memories\n")
	for _, m := range memories {
		fmt.Fprintf(&b, "- id=%s category=%s", m.ID, m.Category)
		if m.Question != "" {
			fmt.Fprintf(&b, " question=%q", m.Question)
		}
		fmt.Fprintf(&b, " answer=%q\n", truncateAnswer(m.Answer))
	}

	b.WriteString("\nMatch every field listed above against the memories.")
	return b.String()
}

func truncateAnswer(answer string) string {
	if len(answer) <= MaxAnswerPromptLen {
		return answer
	}
	return answer[:MaxAnswerPromptLen] + "..."
}
