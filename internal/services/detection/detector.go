package detection

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/memfill/memfill/internal/dom"
	"github.com/memfill/memfill/internal/domain"
)

// ignoredInputTypes never become fields.
var ignoredInputTypes = map[string]bool{
	"hidden": true,
	"submit": true,
	"reset":  true,
	"button": true,
	"image":  true,
	"file":   true,
	"color":  true,
	"range":  true,
}

// Detector enumerates forms and fields in a document. All state is reset
// at the start of every DetectAll call: opids are consistent only for the
// lifetime of one detection result, and a later pass may reuse an opid
// string for a structurally different field.
type Detector struct {
	logger *zap.Logger

	fieldCounter     int
	formCounter      int
	highlightCounter int
	claimed          map[*dom.Element]bool
	shadowFields     []*dom.Element
	labelFor         map[string]*dom.Element
}

// NewDetector creates a detector.
func NewDetector(logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{logger: logger}
}

func (d *Detector) reset() {
	d.fieldCounter = 0
	d.formCounter = 0
	d.highlightCounter = 0
	d.claimed = make(map[*dom.Element]bool)
	d.shadowFields = nil
	d.labelFor = make(map[string]*dom.Element)
}

// DetectAll enumerates all forms and fields in document order.
// Deterministic for a stable document within one invocation.
func (d *Detector) DetectAll(doc *dom.Document) []*DetectedForm {
	d.reset()
	if doc == nil || doc.Root == nil {
		return nil
	}

	d.indexLabels(doc)
	d.collectShadowFields(doc)

	var forms []*DetectedForm

	// Forms in light-DOM document order.
	formEls := collectLight(doc.Root, func(el *dom.Element) bool { return el.Tag == "form" })
	for _, formEl := range formEls {
		form := &DetectedForm{
			Opid:    fmt.Sprintf("__form__%d", d.formCounter),
			Element: formEl,
			Name:    formEl.Attr("name"),
			Action:  formEl.Attr("action"),
			Method:  strings.ToUpper(formEl.Attr("method")),
		}
		d.formCounter++

		radioGroups := make(map[string]*DetectedField)
		dom.Walk(formEl, func(el *dom.Element) bool {
			if el != formEl && isFieldCapable(el) && !d.claimed[el] {
				d.addField(doc, form, el, radioGroups)
			}
			return true
		})

		forms = append(forms, form)
	}

	// Standalone fields: field-capable elements owned by no form, plus
	// everything collected from shadow roots, grouped into one synthetic
	// pseudo-form with a nil element.
	standalone := &DetectedForm{Opid: domain.StandaloneFormOpid}
	radioGroups := make(map[string]*DetectedField)

	looseEls := collectLight(doc.Root, func(el *dom.Element) bool {
		return isFieldCapable(el) && el.Closest("form") == nil
	})
	looseEls = append(looseEls, d.shadowFields...)
	for _, el := range looseEls {
		if !d.claimed[el] {
			d.addField(doc, standalone, el, radioGroups)
		}
	}
	if len(standalone.Fields) > 0 {
		forms = append(forms, standalone)
	}

	// Choice fields: a label candidate whose text equals one of the
	// field's own option values is almost always the positional heuristic
	// picking up an option, not the question. Runs after radio groups are
	// complete so every option is considered.
	total := 0
	for _, f := range forms {
		for _, fld := range f.Fields {
			if len(fld.Metadata.Options) > 0 {
				stripOptionLabels(&fld.Metadata)
			}
		}
		total += len(f.Fields)
	}
	d.logger.Debug("detection pass complete",
		zap.Int("forms", len(forms)),
		zap.Int("fields", total),
	)
	return forms
}

// addField builds a logical field from el and appends it to form.
// Same-name radios within one form collapse into a single field keyed by
// form opid + name, accumulating one option entry per radio.
func (d *Detector) addField(doc *dom.Document, form *DetectedForm, el *dom.Element, radioGroups map[string]*DetectedField) {
	if !d.passesValidityFilter(el) {
		return
	}
	d.claimed[el] = true

	if el.Tag == "input" && el.Type() == "radio" && el.Attr("name") != "" {
		key := form.Opid + "/" + el.Attr("name")
		if group, ok := radioGroups[key]; ok {
			group.Metadata.Options = append(group.Metadata.Options, d.radioOption(el))
			if el.HasAttr("checked") {
				group.Metadata.Value = el.Attr("value")
			}
			return
		}
		field := d.newField(doc, form, el)
		field.groupKey = key
		field.Metadata.Options = []domain.OptionPair{d.radioOption(el)}
		if el.HasAttr("checked") {
			field.Metadata.Value = el.Attr("value")
		}
		radioGroups[key] = field
		form.Fields = append(form.Fields, field)
		return
	}

	form.Fields = append(form.Fields, d.newField(doc, form, el))
}

// newField assigns an opid, builds the metadata bundle, stamps the
// recovery attribute, and assigns a highlight index when the field
// qualifies.
func (d *Detector) newField(doc *dom.Document, form *DetectedForm, el *dom.Element) *DetectedField {
	opid := fmt.Sprintf("__%d", d.fieldCounter)
	d.fieldCounter++
	el.SetAttr(OpidAttr, opid)

	meta := d.buildMetadata(doc, el)

	field := &DetectedField{
		Opid:     opid,
		FormOpid: form.Opid,
		Element:  el,
		Metadata: meta,
	}
	if el.HasRect {
		field.Rect = el.Rect
	}

	// Highlight indices annotate only fields that are visible, top-most
	// (layout known in this model), and interactive.
	if meta.Visible && meta.Interactive && el.HasRect {
		idx := d.highlightCounter
		d.highlightCounter++
		field.HighlightIndex = &idx
	}
	return field
}

// passesValidityFilter applies the skip rules: explicit ignore marker,
// buttons, ignored input types, and elements hidden from layout.
func (d *Detector) passesValidityFilter(el *dom.Element) bool {
	if el.HasAttr("data-bwignore") {
		return false
	}
	if el.Tag == "button" {
		return false
	}
	if el.Tag == "input" && ignoredInputTypes[el.Type()] {
		return false
	}
	if !el.Visible() {
		return false
	}
	return true
}

// buildMetadata computes the serializable attribute bundle for el.
func (d *Detector) buildMetadata(doc *dom.Document, el *dom.Element) domain.FieldMetadata {
	meta := domain.FieldMetadata{
		ID:           el.ID(),
		Name:         el.Attr("name"),
		Class:        el.Attr("class"),
		Type:         el.Type(),
		Placeholder:  el.Attr("placeholder"),
		Autocomplete: el.Attr("autocomplete"),
		Required:     el.HasAttr("required"),
		Disabled:     el.HasAttr("disabled"),
		ReadOnly:     el.HasAttr("readonly"),
		Visible:      el.Visible(),
		Interactive:  el.Interactive(),
	}
	if v := el.Attr("maxlength"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			meta.MaxLength = n
		}
	}

	meta.FieldType = classifyFieldType(el)
	meta.Labels = d.buildLabels(doc, el)
	meta.HelperText = findHelperText(doc, el)
	meta.Value = extractValue(el)

	if meta.FieldType == domain.FieldTypeSelect {
		meta.Options = selectOptions(el)
	}

	meta.FieldPurpose = inferPurpose(meta)
	return meta
}

// buildLabels gathers every independently-sourced label candidate.
func (d *Detector) buildLabels(doc *dom.Document, el *dom.Element) domain.FieldLabels {
	var labels domain.FieldLabels

	if id := el.ID(); id != "" {
		if lbl := d.labelFor[id]; lbl != nil {
			labels.Explicit = lbl.TextContent()
		}
	}
	if wrap := el.Closest("label"); wrap != nil {
		labels.Wrapping = wrap.TextContent()
	}
	if aria := strings.TrimSpace(el.Attr("aria-label")); aria != "" {
		labels.Aria = aria
	} else if ref := el.Attr("aria-labelledby"); ref != "" {
		var parts []string
		for _, id := range strings.Fields(ref) {
			if target := doc.ByID(id); target != nil {
				if txt := target.TextContent(); txt != "" {
					parts = append(parts, txt)
				}
			}
		}
		labels.Aria = strings.Join(parts, " ")
	}
	labels.Positional = findPositionalText(el)
	return labels
}

// indexLabels builds the label[for] index over the whole document,
// shadow roots included.
func (d *Detector) indexLabels(doc *dom.Document) {
	dom.WalkAll(doc.Root, func(el *dom.Element, _ bool) bool {
		if el.Tag == "label" {
			if forID := el.Attr("for"); forID != "" {
				if _, taken := d.labelFor[forID]; !taken {
					d.labelFor[forID] = el
				}
			}
		}
		return true
	})
}

// collectShadowFields gathers field-capable elements living in shadow
// roots into the side list consumed by the standalone group.
func (d *Detector) collectShadowFields(doc *dom.Document) {
	dom.WalkAll(doc.Root, func(el *dom.Element, inShadow bool) bool {
		if inShadow && isFieldCapable(el) {
			d.shadowFields = append(d.shadowFields, el)
		}
		return true
	})
}

// isFieldCapable reports whether el can become a field: input (minus the
// ignored types), textarea, or select.
func isFieldCapable(el *dom.Element) bool {
	switch el.Tag {
	case "textarea", "select":
		return true
	case "input":
		return !ignoredInputTypes[el.Type()]
	default:
		return false
	}
}

// collectLight gathers matching elements from the light tree in document
// order.
func collectLight(root *dom.Element, pred func(*dom.Element) bool) []*dom.Element {
	var out []*dom.Element
	dom.Walk(root, func(el *dom.Element) bool {
		if !el.IsText() && pred(el) {
			out = append(out, el)
		}
		return true
	})
	return out
}

// radioOption builds the option entry for one radio input, labeled by
// the radio's own explicit or wrapping label when present.
func (d *Detector) radioOption(el *dom.Element) domain.OptionPair {
	opt := domain.OptionPair{Value: el.Attr("value")}
	if id := el.ID(); id != "" {
		if lbl := d.labelFor[id]; lbl != nil {
			opt.Label = lbl.TextContent()
		}
	}
	if opt.Label == "" {
		if wrap := el.Closest("label"); wrap != nil {
			opt.Label = wrap.TextContent()
		}
	}
	if opt.Label == "" {
		opt.Label = findPositionalText(el)
	}
	if opt.Label == "" {
		opt.Label = opt.Value
	}
	return opt
}

// selectOptions reduces a select's options to plain value/label pairs.
func selectOptions(el *dom.Element) []domain.OptionPair {
	var opts []domain.OptionPair
	dom.Walk(el, func(n *dom.Element) bool {
		if n.Tag == "option" {
			label := n.TextContent()
			value := n.Attr("value")
			if value == "" {
				value = label
			}
			opts = append(opts, domain.OptionPair{Value: value, Label: label})
		}
		return true
	})
	return opts
}

// extractValue reads the current value of a field element.
func extractValue(el *dom.Element) string {
	switch el.Tag {
	case "textarea":
		return el.TextContent()
	case "select":
		var first, selected string
		dom.Walk(el, func(n *dom.Element) bool {
			if n.Tag == "option" {
				v := n.Attr("value")
				if v == "" {
					v = n.TextContent()
				}
				if first == "" {
					first = v
				}
				if n.HasAttr("selected") && selected == "" {
					selected = v
				}
			}
			return true
		})
		if selected != "" {
			return selected
		}
		return first
	default:
		if el.Type() == "checkbox" {
			if el.HasAttr("checked") {
				return "true"
			}
			return "false"
		}
		return el.Attr("value")
	}
}

// findPositionalText finds nearby text preceding the element: the closest
// preceding text node or short text-bearing sibling, with one hop up to
// the parent's preceding sibling when the element starts its container.
func findPositionalText(el *dom.Element) string {
	if txt := precedingSiblingText(el); txt != "" {
		return txt
	}
	parent := el.Parent
	if parent != nil && isTextContainer(parent.Tag) {
		if txt := precedingSiblingText(parent); txt != "" {
			return txt
		}
	}
	return ""
}

func precedingSiblingText(el *dom.Element) string {
	if el.Parent == nil {
		return ""
	}
	idx := -1
	for i, c := range el.Parent.Children {
		if c == el {
			idx = i
			break
		}
	}
	for i := idx - 1; i >= 0; i-- {
		sib := el.Parent.Children[i]
		var txt string
		if sib.IsText() {
			txt = strings.Join(strings.Fields(sib.Text), " ")
		} else if isTextContainer(sib.Tag) {
			txt = sib.TextContent()
		} else {
			continue
		}
		txt = strings.TrimSpace(txt)
		if txt != "" && len(txt) <= 80 {
			return txt
		}
		if txt != "" {
			return "" // long prose is not a label
		}
	}
	return ""
}

func isTextContainer(tag string) bool {
	switch tag {
	case "span", "div", "p", "b", "strong", "td", "th", "label", "legend", "h1", "h2", "h3", "h4":
		return true
	default:
		return false
	}
}

// stripOptionLabels clears any label candidate whose text exactly equals
// one of the field's option values or labels. This avoids mistaking an
// option's own text, attached via the positional heuristic, for the
// field's question. A legitimately short label coinciding with an option
// value (a Yes/No field labeled "Yes") is also cleared; that is the
// accepted behavior.
func stripOptionLabels(meta *domain.FieldMetadata) {
	matches := func(s string) bool {
		t := strings.TrimSpace(s)
		if t == "" {
			return false
		}
		for _, opt := range meta.Options {
			if t == strings.TrimSpace(opt.Value) || t == strings.TrimSpace(opt.Label) {
				return true
			}
		}
		return false
	}
	if matches(meta.Labels.Explicit) {
		meta.Labels.Explicit = ""
	}
	if matches(meta.Labels.Wrapping) {
		meta.Labels.Wrapping = ""
	}
	if matches(meta.Labels.Aria) {
		meta.Labels.Aria = ""
	}
	if matches(meta.Labels.Positional) {
		meta.Labels.Positional = ""
	}
}
