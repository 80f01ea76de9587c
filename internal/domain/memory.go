package domain

import (
	"time"

	"github.com/google/uuid"
)

// MemoryCategory classifies a stored memory. The set is closed.
type MemoryCategory string

const (
	CategoryPersonal    MemoryCategory = "personal"
	CategoryContact     MemoryCategory = "contact"
	CategoryAddress     MemoryCategory = "address"
	CategoryWork        MemoryCategory = "work"
	CategoryEducation   MemoryCategory = "education"
	CategoryPreferences MemoryCategory = "preferences"
	CategoryOther       MemoryCategory = "other"
)

// ValidCategories lists every accepted memory category.
var ValidCategories = []MemoryCategory{
	CategoryPersonal,
	CategoryContact,
	CategoryAddress,
	CategoryWork,
	CategoryEducation,
	CategoryPreferences,
	CategoryOther,
}

// IsValid reports whether c is a known category.
func (c MemoryCategory) IsValid() bool {
	for _, v := range ValidCategories {
		if c == v {
			return true
		}
	}
	return false
}

// MemorySource records how a memory entered the store.
type MemorySource string

const (
	SourceManual   MemorySource = "manual"
	SourceImport   MemorySource = "import"
	SourceAutofill MemorySource = "autofill"
)

// MemoryEntry is a user personal-data record.
type MemoryEntry struct {
	ID         uuid.UUID      `json:"id" db:"id"`
	Question   string         `json:"question,omitempty" db:"question"`
	Answer     string         `json:"answer" db:"answer"`
	Category   MemoryCategory `json:"category" db:"category"`
	Tags       []string       `json:"tags,omitempty" db:"-"`
	Confidence float64        `json:"confidence" db:"confidence"`
	// FieldPurpose is an optional hint recorded at capture time.
	FieldPurpose FieldPurpose `json:"field_purpose,omitempty" db:"field_purpose"`
	Source       MemorySource `json:"source" db:"source"`
	UsageCount   int          `json:"usage_count" db:"usage_count"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at" db:"updated_at"`
	// DeletedAt is a tombstone so a remote sync layer can observe deletes.
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// NewMemoryEntry creates a memory with generated ID and timestamps.
func NewMemoryEntry(question, answer string, category MemoryCategory, source MemorySource) *MemoryEntry {
	if !category.IsValid() {
		category = CategoryOther
	}
	now := time.Now().UTC()
	return &MemoryEntry{
		ID:           uuid.New(),
		Question:     question,
		Answer:       answer,
		Category:     category,
		Confidence:   1.0,
		FieldPurpose: PurposeUnknown,
		Source:       source,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// UpdateAnswer replaces the answer, keeping the higher of the old and new
// confidence, and refreshes UpdatedAt.
func (m *MemoryEntry) UpdateAnswer(answer string, confidence float64) {
	m.Answer = answer
	if confidence > m.Confidence {
		m.Confidence = confidence
	}
	m.UpdatedAt = time.Now().UTC()
}

// RecordUsage increments the usage counter.
func (m *MemoryEntry) RecordUsage() {
	m.UsageCount++
	m.UpdatedAt = time.Now().UTC()
}

// Delete marks the entry with a tombstone instead of removing it.
func (m *MemoryEntry) Delete() {
	now := time.Now().UTC()
	m.DeletedAt = &now
	m.UpdatedAt = now
}

// IsDeleted reports whether the entry carries a tombstone.
func (m *MemoryEntry) IsDeleted() bool {
	return m.DeletedAt != nil
}

// CapturedField is a freshly captured question/answer pair from a
// submitted form, before deduplication against the store.
type CapturedField struct {
	Question     string       `json:"question"`
	Answer       string       `json:"answer"`
	FieldName    string       `json:"field_name,omitempty"`
	FieldType    FieldType    `json:"field_type,omitempty"`
	FieldPurpose FieldPurpose `json:"field_purpose,omitempty"`
}
