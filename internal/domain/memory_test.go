package domain

import (
	"testing"

	"github.com/google/uuid"
)

func TestNewMemoryEntry(t *testing.T) {
	m := NewMemoryEntry("Email Address", "jane@example.com", CategoryContact, SourceManual)

	if m.ID == uuid.Nil {
		t.Error("ID should not be nil")
	}
	if m.Question != "Email Address" {
		t.Errorf("Question = %v, want %v", m.Question, "Email Address")
	}
	if m.Answer != "jane@example.com" {
		t.Errorf("Answer = %v, want %v", m.Answer, "jane@example.com")
	}
	if m.Category != CategoryContact {
		t.Errorf("Category = %v, want %v", m.Category, CategoryContact)
	}
	if m.Confidence != 1.0 {
		t.Errorf("Confidence = %v, want 1.0", m.Confidence)
	}
	if m.FieldPurpose != PurposeUnknown {
		t.Errorf("FieldPurpose = %v, want %v", m.FieldPurpose, PurposeUnknown)
	}
	if m.CreatedAt.IsZero() {
		t.Error("CreatedAt should not be zero")
	}
	if m.IsDeleted() {
		t.Error("new entry should not be deleted")
	}
}

func TestNewMemoryEntry_InvalidCategory(t *testing.T) {
	m := NewMemoryEntry("q", "a", MemoryCategory("bogus"), SourceImport)
	if m.Category != CategoryOther {
		t.Errorf("Category = %v, want %v", m.Category, CategoryOther)
	}
}

func TestMemoryEntry_UpdateAnswer(t *testing.T) {
	m := NewMemoryEntry("Phone", "555-0100", CategoryContact, SourceAutofill)
	m.Confidence = 0.8
	before := m.UpdatedAt

	m.UpdateAnswer("555-0199", 0.6)

	if m.Answer != "555-0199" {
		t.Errorf("Answer = %v, want 555-0199", m.Answer)
	}
	// Confidence keeps the greater of old and new.
	if m.Confidence != 0.8 {
		t.Errorf("Confidence = %v, want 0.8", m.Confidence)
	}
	if m.UpdatedAt.Before(before) {
		t.Error("UpdatedAt should be refreshed")
	}

	m.UpdateAnswer("555-0123", 0.95)
	if m.Confidence != 0.95 {
		t.Errorf("Confidence = %v, want 0.95", m.Confidence)
	}
}

func TestMemoryEntry_Delete(t *testing.T) {
	m := NewMemoryEntry("q", "a", CategoryPersonal, SourceManual)
	m.Delete()

	if !m.IsDeleted() {
		t.Error("entry should carry a tombstone")
	}
	if m.DeletedAt == nil {
		t.Error("DeletedAt should be set")
	}
}

func TestMemoryEntry_RecordUsage(t *testing.T) {
	m := NewMemoryEntry("q", "a", CategoryPersonal, SourceManual)
	m.RecordUsage()
	m.RecordUsage()
	if m.UsageCount != 2 {
		t.Errorf("UsageCount = %v, want 2", m.UsageCount)
	}
}
