// Package dom provides a lightweight element tree for form detection.
//
// The tree is built either from a live page (the browser loader snapshots
// the frame's markup and layout) or from static HTML in tests. Element
// pointers are live handles owned by the detector; they are never
// serialized; only derived metadata crosses a process or frame boundary.
package dom

import (
	"strconv"
	"strings"

	"github.com/memfill/memfill/internal/domain"
)

// TextTag marks text nodes in the tree.
const TextTag = "#text"

// Element is a node in the document tree. Text nodes use Tag == TextTag
// with Text set and no attributes.
type Element struct {
	Tag      string
	Attrs    map[string]string
	Text     string
	Parent   *Element
	Children []*Element

	// ShadowRoot holds a declarative shadow root attached to this host.
	// It is not part of Children; traversal enters it explicitly.
	ShadowRoot *Element

	// Rect is the layout box, when known. Static fixtures carry it via
	// a data-rect attribute; the browser loader fills it from the page.
	Rect    domain.Rect
	HasRect bool
}

// Document is a parsed frame document.
type Document struct {
	Root  *Element
	URL   string
	Title string

	ids map[string]*Element
}

// IsText reports whether the node is a text node.
func (e *Element) IsText() bool {
	return e.Tag == TextTag
}

// Attr returns the value of the named attribute, or "".
func (e *Element) Attr(name string) string {
	if e.Attrs == nil {
		return ""
	}
	return e.Attrs[strings.ToLower(name)]
}

// HasAttr reports whether the attribute is present, even if empty.
func (e *Element) HasAttr(name string) bool {
	if e.Attrs == nil {
		return false
	}
	_, ok := e.Attrs[strings.ToLower(name)]
	return ok
}

// SetAttr sets an attribute on the element.
func (e *Element) SetAttr(name, value string) {
	if e.Attrs == nil {
		e.Attrs = make(map[string]string)
	}
	e.Attrs[strings.ToLower(name)] = value
}

// ID returns the element's id attribute.
func (e *Element) ID() string { return e.Attr("id") }

// Type returns the element's type attribute, lowercased.
func (e *Element) Type() string { return strings.ToLower(e.Attr("type")) }

// TextContent returns the concatenated text of the subtree, whitespace
// collapsed. Shadow roots are not included.
func (e *Element) TextContent() string {
	var b strings.Builder
	stack := []*Element{e}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n.IsText() {
			b.WriteString(n.Text)
			b.WriteString(" ")
			continue
		}
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Closest returns the nearest ancestor (including self) with the given
// tag, or nil.
func (e *Element) Closest(tag string) *Element {
	for n := e; n != nil; n = n.Parent {
		if n.Tag == tag {
			return n
		}
	}
	return nil
}

// PrevSibling returns the node immediately before this one in its parent.
func (e *Element) PrevSibling() *Element {
	if e.Parent == nil {
		return nil
	}
	var prev *Element
	for _, c := range e.Parent.Children {
		if c == e {
			return prev
		}
		prev = c
	}
	return nil
}

// Hidden reports whether this element itself carries a hidden marker:
// the hidden attribute, aria-hidden, or an inline style hiding it.
func (e *Element) Hidden() bool {
	if e.HasAttr("hidden") {
		return true
	}
	if strings.EqualFold(e.Attr("aria-hidden"), "true") {
		return true
	}
	style := strings.ToLower(e.Attr("style"))
	if strings.Contains(style, "display:none") || strings.Contains(style, "display: none") {
		return true
	}
	if strings.Contains(style, "visibility:hidden") || strings.Contains(style, "visibility: hidden") {
		return true
	}
	return false
}

// Visible is the offsetParent analog: an element is visible when neither
// it nor any ancestor is hidden and, when layout is known, its box has
// non-zero area.
func (e *Element) Visible() bool {
	for n := e; n != nil; n = n.Parent {
		if n.Hidden() {
			return false
		}
	}
	if e.HasRect && (e.Rect.Width <= 0 || e.Rect.Height <= 0) {
		return false
	}
	return true
}

// Interactive reports whether the element accepts input.
func (e *Element) Interactive() bool {
	return !e.HasAttr("disabled") && !e.HasAttr("readonly")
}

// ByID resolves an id anywhere in the document, including shadow roots.
func (d *Document) ByID(id string) *Element {
	if id == "" {
		return nil
	}
	return d.ids[id]
}

// parseRectAttr reads a "x,y,w,h" data-rect attribute.
func parseRectAttr(v string) (domain.Rect, bool) {
	parts := strings.Split(v, ",")
	if len(parts) != 4 {
		return domain.Rect{}, false
	}
	var nums [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return domain.Rect{}, false
		}
		nums[i] = f
	}
	x, y, w, h := nums[0], nums[1], nums[2], nums[3]
	return domain.Rect{
		X: x, Y: y, Width: w, Height: h,
		Top: y, Left: x, Right: x + w, Bottom: y + h,
	}, true
}
