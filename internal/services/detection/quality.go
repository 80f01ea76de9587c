package detection

import (
	"strings"

	"go.uber.org/zap"

	"github.com/memfill/memfill/internal/domain"
	"github.com/memfill/memfill/internal/textutil"
)

// MinQualityScore is the floor below which a field never reaches the
// matcher.
const MinQualityScore = 0.3

// Score weights. A field with any label source, usable context text, and
// a known purpose scores 1.0.
const (
	labelWeight   = 0.4
	contextWeight = 0.3
	purposeWeight = 0.3
)

// Score assigns a 0..1 usability score to a field's metadata.
func Score(meta domain.FieldMetadata) float64 {
	s := 0.0
	if meta.Labels.HasAny() {
		s += labelWeight
	}
	if hasValidContext(meta) {
		s += contextWeight
	}
	if meta.FieldPurpose != domain.PurposeUnknown {
		s += purposeWeight
	}
	return s
}

// hasValidContext reports whether the field carries any contextual text
// worth showing a model: placeholder, helper text, or a non-cryptic
// name/id.
func hasValidContext(meta domain.FieldMetadata) bool {
	if strings.TrimSpace(meta.Placeholder) != "" || strings.TrimSpace(meta.HelperText) != "" {
		return true
	}
	if meta.Name != "" && !textutil.IsCryptic(meta.Name) {
		return true
	}
	if meta.ID != "" && !textutil.IsCryptic(meta.ID) {
		return true
	}
	return false
}

// QualityFilter drops unusable fields before matching.
type QualityFilter struct {
	logger *zap.Logger
}

// NewQualityFilter creates a quality filter.
func NewQualityFilter(logger *zap.Logger) *QualityFilter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QualityFilter{logger: logger}
}

// Apply filters each form's fields and returns the surviving forms plus
// aggregate stats. Forms left without fields are dropped. Within one
// pass, a second field resolving to the same primary label
// (case-insensitive, trimmed) as an earlier one is dropped.
func (q *QualityFilter) Apply(forms []*DetectedForm) ([]*DetectedForm, FilterStats) {
	var stats FilterStats
	seenLabels := make(map[string]bool)

	var out []*DetectedForm
	for _, form := range forms {
		kept := make([]*DetectedField, 0, len(form.Fields))
		for _, f := range form.Fields {
			stats.Total++

			// Distinct rejection path, not a special case of the
			// numeric threshold: unknown purpose with no label and no
			// context is unusable regardless of score.
			if f.Metadata.FieldPurpose == domain.PurposeUnknown &&
				!f.Metadata.Labels.HasAny() && !hasValidContext(f.Metadata) {
				stats.UnknownUnlabeled++
				continue
			}

			if Score(f.Metadata) < MinQualityScore {
				stats.NoQuality++
				continue
			}

			if primary := strings.ToLower(strings.TrimSpace(f.Metadata.Labels.Primary())); primary != "" {
				if seenLabels[primary] {
					stats.DuplicateLabel++
					continue
				}
				seenLabels[primary] = true
			}

			kept = append(kept, f)
		}
		if len(kept) > 0 {
			filtered := *form
			filtered.Fields = kept
			out = append(out, &filtered)
		}
	}
	stats.Kept = stats.Total - stats.NoQuality - stats.UnknownUnlabeled - stats.DuplicateLabel

	q.logger.Debug("quality filter applied",
		zap.Int("total", stats.Total),
		zap.Int("kept", stats.Kept),
		zap.Int("no_quality", stats.NoQuality),
		zap.Int("unknown_unlabeled", stats.UnknownUnlabeled),
		zap.Int("duplicate_label", stats.DuplicateLabel),
	)
	return out, stats
}
