package capture

import (
	"github.com/memfill/memfill/internal/domain"
	"github.com/memfill/memfill/internal/textutil"
)

// FuzzyThreshold is the combined-similarity floor for treating two
// questions as the same.
const FuzzyThreshold = 0.75

// CanonicalBoost is added to the combined score when the canonical forms
// of the two questions are themselves highly similar. Additive, not
// multiplicative.
const CanonicalBoost = 0.1

// canonicalSimilarityFloor gates the boost.
const canonicalSimilarityFloor = 0.85

// SameQuestion reports whether a captured field asks the same question
// an existing memory answers. Signals are checked in precedence order;
// the first conclusive one wins and later signals are not consulted.
func SameQuestion(captured domain.CapturedField, existing *domain.MemoryEntry) bool {
	capQ := textutil.Normalize(captured.Question)
	memQ := textutil.Normalize(existing.Question)

	// 1. Exact normalized equality.
	if capQ != "" && capQ == memQ {
		return true
	}

	// 2. Both fold to the same canonical question.
	if capQ != "" && memQ != "" && Canonical(captured.Question) == Canonical(existing.Question) {
		return true
	}

	// 3. Matching non-unknown field purpose.
	if captured.FieldPurpose != domain.PurposeUnknown && captured.FieldPurpose != "" &&
		captured.FieldPurpose == existing.FieldPurpose {
		return true
	}

	// 4. Normalized field-name equality (camelCase/snake/kebab folded).
	if captured.FieldName != "" {
		capName := textutil.NormalizeFieldName(captured.FieldName)
		if capName != "" && (capName == memQ || capName == textutil.NormalizeFieldName(existing.Question)) {
			return true
		}
	}

	// 5. Combined fuzzy similarity with a canonical boost.
	if capQ == "" || memQ == "" {
		return false
	}
	score := textutil.Combined(capQ, memQ)
	if textutil.Combined(Canonical(captured.Question), Canonical(existing.Question)) >= canonicalSimilarityFloor {
		score += CanonicalBoost
	}
	return score >= FuzzyThreshold
}

// Plan partitions captured fields into creates, updates, and skips
// against the existing memory set. O(existing x incoming), which both
// stay small in practice.
type Plan struct {
	Creates []domain.CapturedField
	Updates []Update
	Skipped int
}

// Update pairs an existing memory with the answer replacing its current one.
type Update struct {
	Memory *domain.MemoryEntry
	Answer string
}

// BuildPlan dedups captured fields against the existing memories.
// Identical answers on a matched question are skips; differing answers
// queue an update; unmatched questions queue a create.
func BuildPlan(captured []domain.CapturedField, existing []domain.MemoryEntry) Plan {
	var plan Plan
	for _, cap := range captured {
		if cap.Answer == "" {
			plan.Skipped++
			continue
		}

		var match *domain.MemoryEntry
		for i := range existing {
			if existing[i].IsDeleted() {
				continue
			}
			if SameQuestion(cap, &existing[i]) {
				match = &existing[i]
				break
			}
		}

		if match == nil {
			plan.Creates = append(plan.Creates, cap)
			continue
		}
		if textutil.Normalize(cap.Answer) == textutil.Normalize(match.Answer) {
			plan.Skipped++
			continue
		}
		plan.Updates = append(plan.Updates, Update{Memory: match, Answer: cap.Answer})
	}
	return plan
}
