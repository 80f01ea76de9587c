package detection

import (
	"github.com/memfill/memfill/internal/dom"
	"github.com/memfill/memfill/internal/domain"
)

// OpidAttr is the DOM attribute stamped on every detected field so a
// fill request can recover the element when the in-memory cache has been
// invalidated by a page mutation.
const OpidAttr = "data-memfill-opid"

// DetectedField pairs a live element handle with its derived metadata.
// The handle is owned by the detector and never crosses a serialization
// boundary; Snapshot() is the one-way projection that does.
type DetectedField struct {
	Opid     string
	FormOpid string
	Element  *dom.Element
	Metadata domain.FieldMetadata
	Rect     domain.Rect

	// HighlightIndex is set only for fields that are visible, top-most,
	// and interactive; used purely for UI annotation.
	HighlightIndex *int

	// groupKey is set for radio-group logical fields (form opid + name).
	groupKey string
}

// Snapshot projects the field into its serialization-safe shape.
func (f *DetectedField) Snapshot() domain.FieldSnapshot {
	return domain.FieldSnapshot{
		Opid:           f.Opid,
		FormOpid:       f.FormOpid,
		Metadata:       f.Metadata,
		Rect:           f.Rect,
		HighlightIndex: f.HighlightIndex,
	}
}

// DetectedForm is a detected form and its ordered fields. Element is nil
// for the synthetic standalone group.
type DetectedForm struct {
	Opid    string
	Element *dom.Element
	Name    string
	Action  string
	Method  string
	Fields  []*DetectedField
}

// Snapshot projects the form and its fields into serialization-safe shapes.
func (f *DetectedForm) Snapshot() domain.FormSnapshot {
	snap := domain.FormSnapshot{
		Opid:   f.Opid,
		Name:   f.Name,
		Action: f.Action,
		Method: f.Method,
		Fields: make([]domain.FieldSnapshot, 0, len(f.Fields)),
	}
	for _, fld := range f.Fields {
		snap.Fields = append(snap.Fields, fld.Snapshot())
	}
	return snap
}

// FilterStats aggregates quality-filter outcomes for one detection pass.
type FilterStats struct {
	Total            int `json:"total"`
	Kept             int `json:"kept"`
	NoQuality        int `json:"no_quality"`
	UnknownUnlabeled int `json:"unknown_and_unlabeled"`
	DuplicateLabel   int `json:"duplicate_label"`
}
