package matching

// Batch limits. Truncation is a plain slice, oldest first; no relevance
// ranking is attempted before compression.
const (
	MaxFieldsPerPage = 50
	MaxMemories      = 200
)

// MinMatchConfidence is the floor below which a mapping resolves no
// value and no memory id.
const MinMatchConfidence = 0.3

// FallbackMatchConfidence is the fixed confidence emitted by the
// fallback matcher for a purpose-and-text match.
const FallbackMatchConfidence = 0.5

// AlternativePenalty is subtracted from the primary confidence for each
// alternative match, floored at zero.
const AlternativePenalty = 0.1

// MaxAlternatives caps the alternative matches attached to one mapping.
const MaxAlternatives = 3

// MaxAnswerPromptLen caps a memory answer's length at prompt-formatting
// time. The compressed struct keeps the full answer.
const MaxAnswerPromptLen = 200

// CompressedField is the lossy field projection sent to the model:
// opid, type, purpose, deduplicated labels, and merged free-text
// context. Nothing element-shaped survives compression.
type CompressedField struct {
	Opid    string   `json:"opid"`
	Type    string   `json:"type"`
	Purpose string   `json:"purpose"`
	Labels  []string `json:"labels"`
	Context string   `json:"context,omitempty"`
}

// CompressedMemory is the lossy memory projection sent to the model.
type CompressedMemory struct {
	ID       string `json:"id"`
	Question string `json:"question,omitempty"`
	Answer   string `json:"answer"`
	Category string `json:"category"`
}
