package matching

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/memfill/memfill/internal/domain"
	"github.com/memfill/memfill/internal/textutil"
)

// purposeCategories maps a field purpose to the memory categories whose
// entries plausibly answer it.
var purposeCategories = map[domain.FieldPurpose][]domain.MemoryCategory{
	domain.PurposeEmail:   {domain.CategoryContact},
	domain.PurposePhone:   {domain.CategoryContact},
	domain.PurposeName:    {domain.CategoryPersonal, domain.CategoryContact},
	domain.PurposeAddress: {domain.CategoryAddress},
	domain.PurposeCity:    {domain.CategoryAddress},
	domain.PurposeState:   {domain.CategoryAddress},
	domain.PurposeZip:     {domain.CategoryAddress},
	domain.PurposeCountry: {domain.CategoryAddress},
	domain.PurposeCompany: {domain.CategoryWork},
	domain.PurposeTitle:   {domain.CategoryWork},
}

// FallbackMatcher matches fields on labels and types alone, with no
// external calls. It never fails: every input field yields exactly one
// mapping, in input order, degraded to a zero-confidence no-match when
// nothing aligns.
type FallbackMatcher struct {
	logger *zap.Logger
}

// NewFallbackMatcher creates a fallback matcher.
func NewFallbackMatcher(logger *zap.Logger) *FallbackMatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackMatcher{logger: logger}
}

// MatchFields produces one mapping per field.
func (f *FallbackMatcher) MatchFields(fields []domain.FieldSnapshot, memories []domain.MemoryEntry) []domain.FieldMapping {
	mappings := make([]domain.FieldMapping, 0, len(fields))
	matched := 0
	for _, field := range fields {
		m := f.matchOne(field, memories)
		if m.HasMatch() {
			matched++
		}
		mappings = append(mappings, m)
	}
	f.logger.Debug("fallback matching complete",
		zap.Int("fields", len(fields)),
		zap.Int("matched", matched),
	)
	return mappings
}

func (f *FallbackMatcher) matchOne(field domain.FieldSnapshot, memories []domain.MemoryEntry) domain.FieldMapping {
	if field.Metadata.FieldType == domain.FieldTypePassword {
		return noMatch(field.Opid, "password fields are never matched")
	}

	best := -1
	bestScore := 0.0
	for i := range memories {
		m := &memories[i]
		if m.IsDeleted() || m.Answer == "" {
			continue
		}
		if !f.purposeAligned(field, m) {
			continue
		}
		score := f.textScore(field, m)
		if score > bestScore {
			bestScore = score
			best = i
		}
	}

	if best < 0 {
		return noMatch(field.Opid, "no memory aligns with this field")
	}

	m := memories[best]
	return domain.FieldMapping{
		FieldOpid:  field.Opid,
		MemoryID:   m.ID.String(),
		Value:      m.Answer,
		Confidence: FallbackMatchConfidence,
		Reasoning:  fmt.Sprintf("purpose %q aligns with memory %q", field.Metadata.FieldPurpose, m.Question),
	}
}

// purposeAligned reports whether the memory plausibly answers the field:
// matching purpose hint, aligned category, or a question overlapping the
// field's labels.
func (f *FallbackMatcher) purposeAligned(field domain.FieldSnapshot, m *domain.MemoryEntry) bool {
	purpose := field.Metadata.FieldPurpose

	if purpose != domain.PurposeUnknown && m.FieldPurpose == purpose {
		return true
	}
	for _, cat := range purposeCategories[purpose] {
		if m.Category == cat {
			return true
		}
	}
	// Purpose gave nothing; fall back to surface text, requiring a
	// strong overlap so unknown-purpose fields still get no-match
	// mappings instead of arbitrary ones.
	return f.textScore(field, m) >= 0.5
}

// textScore measures surface-text overlap between the field's labels and
// the memory's question.
func (f *FallbackMatcher) textScore(field domain.FieldSnapshot, m *domain.MemoryEntry) float64 {
	if m.Question == "" {
		return 0
	}
	best := 0.0
	for _, label := range field.Metadata.Labels.All() {
		if s := tokenSimilarity(label, m.Question); s > best {
			best = s
		}
	}
	return best
}

// tokenSimilarity blends token overlap with character-level similarity,
// normalized on both sides.
func tokenSimilarity(a, b string) float64 {
	na := textutil.Normalize(a)
	nb := textutil.Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	overlap := textutil.TokenOverlap(na, nb)
	combined := textutil.Combined(na, nb)
	if overlap > combined {
		return overlap
	}
	return combined
}

func noMatch(opid, reasoning string) domain.FieldMapping {
	return domain.FieldMapping{
		FieldOpid:  opid,
		Confidence: 0,
		Reasoning:  reasoning,
	}
}
