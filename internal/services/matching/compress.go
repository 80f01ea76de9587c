package matching

import (
	"strings"

	"github.com/memfill/memfill/internal/domain"
	"github.com/memfill/memfill/internal/textutil"
)

// CompressFields projects field snapshots into their prompt shape.
// Password fields are excluded here; the prompt's prohibition is only a
// second line of defense. Input beyond MaxFieldsPerPage is cut by plain
// slice, oldest first.
func CompressFields(fields []domain.FieldSnapshot) []CompressedField {
	if len(fields) > MaxFieldsPerPage {
		fields = fields[:MaxFieldsPerPage]
	}

	out := make([]CompressedField, 0, len(fields))
	for _, f := range fields {
		if f.Metadata.FieldType == domain.FieldTypePassword {
			continue
		}
		out = append(out, CompressedField{
			Opid:    f.Opid,
			Type:    string(f.Metadata.FieldType),
			Purpose: string(f.Metadata.FieldPurpose),
			Labels:  f.Metadata.Labels.All(),
			Context: fieldContext(f.Metadata),
		})
	}
	return out
}

// fieldContext merges the field's free-text context: placeholder,
// helper text, and name/id when they are not machine-generated noise.
func fieldContext(meta domain.FieldMetadata) string {
	var parts []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s != "" {
			parts = append(parts, s)
		}
	}
	add(meta.Placeholder)
	add(meta.HelperText)
	if meta.Name != "" && !textutil.IsCryptic(meta.Name) {
		add(meta.Name)
	}
	if meta.ID != "" && !textutil.IsCryptic(meta.ID) {
		add(meta.ID)
	}
	return strings.Join(parts, " | ")
}

// CompressMemories projects memory entries into their prompt shape.
// Answers are kept whole here; length capping happens at prompt
// formatting. Input beyond MaxMemories is cut by plain slice.
func CompressMemories(memories []domain.MemoryEntry) []CompressedMemory {
	if len(memories) > MaxMemories {
		memories = memories[:MaxMemories]
	}

	out := make([]CompressedMemory, 0, len(memories))
	for _, m := range memories {
		if m.IsDeleted() {
			continue
		}
		out = append(out, CompressedMemory{
			ID:       m.ID.String(),
			Question: m.Question,
			Answer:   m.Answer,
			Category: string(m.Category),
		})
	}
	return out
}
