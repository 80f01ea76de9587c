package domain

import "strings"

// FieldType is the classified control type of a detected field.
type FieldType string

const (
	FieldTypeText     FieldType = "text"
	FieldTypeEmail    FieldType = "email"
	FieldTypeTel      FieldType = "tel"
	FieldTypeURL      FieldType = "url"
	FieldTypePassword FieldType = "password"
	FieldTypeNumber   FieldType = "number"
	FieldTypeDate     FieldType = "date"
	FieldTypeCheckbox FieldType = "checkbox"
	FieldTypeRadio    FieldType = "radio"
	FieldTypeSelect   FieldType = "select"
	FieldTypeTextarea FieldType = "textarea"
)

// FieldPurpose is the inferred semantic purpose of a field.
type FieldPurpose string

const (
	PurposeEmail   FieldPurpose = "email"
	PurposePhone   FieldPurpose = "phone"
	PurposeName    FieldPurpose = "name"
	PurposeAddress FieldPurpose = "address"
	PurposeCity    FieldPurpose = "city"
	PurposeState   FieldPurpose = "state"
	PurposeZip     FieldPurpose = "zip"
	PurposeCountry FieldPurpose = "country"
	PurposeCompany FieldPurpose = "company"
	PurposeTitle   FieldPurpose = "title"
	PurposeUnknown FieldPurpose = "unknown"
)

// Rect is a page-coordinate bounding box. For fields nested in child
// frames the coordinates are already offset-corrected to the top document.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
}

// Offset returns a copy of the rect shifted by dx/dy.
func (r Rect) Offset(dx, dy float64) Rect {
	return Rect{
		X:      r.X + dx,
		Y:      r.Y + dy,
		Width:  r.Width,
		Height: r.Height,
		Top:    r.Top + dy,
		Right:  r.Right + dx,
		Bottom: r.Bottom + dy,
		Left:   r.Left + dx,
	}
}

// OptionPair is a select option or radio-group member, reduced to plain
// values so it can cross a serialization boundary.
type OptionPair struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// FieldLabels holds the independently-sourced label candidates for a field.
type FieldLabels struct {
	Explicit   string `json:"explicit,omitempty"`   // <label for="...">
	Wrapping   string `json:"wrapping,omitempty"`   // enclosing <label>
	Aria       string `json:"aria,omitempty"`       // aria-label / aria-labelledby
	Positional string `json:"positional,omitempty"` // nearby text
}

// Primary returns the strongest available label candidate.
func (l FieldLabels) Primary() string {
	switch {
	case l.Explicit != "":
		return l.Explicit
	case l.Wrapping != "":
		return l.Wrapping
	case l.Aria != "":
		return l.Aria
	default:
		return l.Positional
	}
}

// All returns the distinct non-empty label candidates in source order.
func (l FieldLabels) All() []string {
	var out []string
	seen := make(map[string]bool)
	for _, s := range []string{l.Explicit, l.Wrapping, l.Aria, l.Positional} {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

// HasAny reports whether any label source is present.
func (l FieldLabels) HasAny() bool {
	return l.Explicit != "" || l.Wrapping != "" || l.Aria != "" || l.Positional != ""
}

// FieldMetadata is the serializable attribute bundle computed per field
// during detection. It never carries a live element handle.
type FieldMetadata struct {
	ID           string       `json:"id,omitempty"`
	Name         string       `json:"name,omitempty"`
	Class        string       `json:"class,omitempty"`
	Type         string       `json:"type,omitempty"`
	Placeholder  string       `json:"placeholder,omitempty"`
	Autocomplete string       `json:"autocomplete,omitempty"`
	HelperText   string       `json:"helper_text,omitempty"`
	Required     bool         `json:"required"`
	Disabled     bool         `json:"disabled"`
	ReadOnly     bool         `json:"readonly"`
	MaxLength    int          `json:"max_length,omitempty"`
	Labels       FieldLabels  `json:"labels"`
	FieldType    FieldType    `json:"field_type"`
	FieldPurpose FieldPurpose `json:"field_purpose"`
	Visible      bool         `json:"visible"`
	Interactive  bool         `json:"interactive"`
	Value        string       `json:"value,omitempty"`
	Options      []OptionPair `json:"options,omitempty"`
}

// FieldSnapshot is the serialization-safe projection of a detected field.
// This type, not the detector's live field, is what crosses message-passing
// boundaries and enters model prompts.
type FieldSnapshot struct {
	Opid           string        `json:"opid"`
	FormOpid       string        `json:"form_opid"`
	Metadata       FieldMetadata `json:"metadata"`
	Rect           Rect          `json:"rect"`
	HighlightIndex *int          `json:"highlight_index,omitempty"`
}

// FormSnapshot is the serialization-safe projection of a detected form.
type FormSnapshot struct {
	Opid   string          `json:"opid"`
	Name   string          `json:"name,omitempty"`
	Action string          `json:"action,omitempty"`
	Method string          `json:"method,omitempty"`
	Fields []FieldSnapshot `json:"fields"`
}

// StandaloneFormOpid identifies the synthetic pseudo-form grouping fields
// that have no owning <form> element.
const StandaloneFormOpid = "__form__standalone"
