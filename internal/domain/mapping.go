package domain

// AlternativeMatch is a lower-confidence candidate behind the primary match.
type AlternativeMatch struct {
	MemoryID   string  `json:"memory_id"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// FieldMapping is the result of matching one field against the memory set.
//
// Value holds the original memory answer for audit/preview display; when
// IsRephrased is set, RephrasedValue is what gets written into the page.
type FieldMapping struct {
	FieldOpid      string             `json:"field_opid"`
	MemoryID       string             `json:"memory_id,omitempty"`
	Value          string             `json:"value,omitempty"`
	RephrasedValue string             `json:"rephrased_value,omitempty"`
	IsRephrased    bool               `json:"is_rephrased"`
	Confidence     float64            `json:"confidence"`
	Reasoning      string             `json:"reasoning,omitempty"`
	Alternatives   []AlternativeMatch `json:"alternative_matches,omitempty"`
	// AutoFill is computed downstream by thresholding against the
	// user-configured confidence value, never by the matcher itself.
	AutoFill bool `json:"auto_fill"`
}

// HasMatch reports whether the mapping resolved to a memory.
func (m FieldMapping) HasMatch() bool {
	return m.MemoryID != "" && m.Value != ""
}

// FillValue returns the text that should be written into the page.
func (m FieldMapping) FillValue() string {
	if m.IsRephrased && m.RephrasedValue != "" {
		return m.RephrasedValue
	}
	return m.Value
}

// FillInstruction is one entry of a fill request.
type FillInstruction struct {
	FieldOpid string `json:"field_opid"`
	Value     string `json:"value"`
}

// FillPlan is the batch of instructions handed to the filler, tied to the
// detection generation that produced the opids.
type FillPlan struct {
	Generation   uint64            `json:"generation"`
	Instructions []FillInstruction `json:"fields_to_fill"`
}

// FillReport summarizes a fill attempt. Per-field misses are skipped,
// never aborting the remaining fields.
type FillReport struct {
	Filled  int      `json:"filled"`
	Skipped int      `json:"skipped"`
	Misses  []string `json:"misses,omitempty"` // opids not found
}
