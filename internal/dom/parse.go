package dom

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// Parse builds a Document from HTML markup. Declarative shadow roots
// (<template shadowrootmode="open|closed">) are detached from the light
// tree and attached to their host element.
func Parse(markup, url string) (*Document, error) {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}

	doc := &Document{URL: url, ids: make(map[string]*Element)}
	doc.Root = convert(root, nil, doc)
	return doc, nil
}

// convert maps an x/net/html node into our tree. Uses an explicit
// worklist so deeply nested markup cannot blow the stack.
func convert(src *html.Node, parent *Element, doc *Document) *Element {
	type item struct {
		src    *html.Node
		parent *Element
	}

	var rootEl *Element
	stack := []item{{src: src, parent: parent}}

	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		el := fromNode(it.src)
		if el == nil {
			// Skipped node kinds (comments, doctype): still descend.
			for c := it.src.LastChild; c != nil; c = c.PrevSibling {
				stack = append(stack, item{src: c, parent: it.parent})
			}
			continue
		}

		el.Parent = it.parent
		if it.parent == nil {
			rootEl = el
		} else if host := shadowHost(el, it.parent); host != nil {
			host.ShadowRoot = el
		} else {
			it.parent.Children = append(it.parent.Children, el)
		}

		if id := el.ID(); id != "" {
			if _, taken := doc.ids[id]; !taken {
				doc.ids[id] = el
			}
		}
		if el.Tag == "title" && doc.Title == "" && it.src.FirstChild != nil {
			doc.Title = strings.TrimSpace(it.src.FirstChild.Data)
		}

		// Reverse push keeps document order; children convert before
		// later siblings, matching a pre-order walk.
		for c := it.src.LastChild; c != nil; c = c.PrevSibling {
			stack = append(stack, item{src: c, parent: el})
		}
	}

	return rootEl
}

// fromNode converts one node, or returns nil for kinds we drop.
func fromNode(n *html.Node) *Element {
	switch n.Type {
	case html.DocumentNode:
		return &Element{Tag: "#document"}
	case html.ElementNode:
		el := &Element{Tag: strings.ToLower(n.Data)}
		for _, a := range n.Attr {
			el.SetAttr(a.Key, a.Val)
		}
		if v := el.Attr("data-rect"); v != "" {
			if r, ok := parseRectAttr(v); ok {
				el.Rect = r
				el.HasRect = true
			}
		}
		return el
	case html.TextNode:
		if strings.TrimSpace(n.Data) == "" {
			return nil
		}
		return &Element{Tag: TextTag, Text: n.Data}
	default:
		return nil
	}
}

// shadowHost returns the host element when el is a declarative shadow
// root template, detaching it from the light tree.
func shadowHost(el, parent *Element) *Element {
	if el.Tag != "template" {
		return nil
	}
	mode := strings.ToLower(el.Attr("shadowrootmode"))
	if mode != "open" && mode != "closed" {
		return nil
	}
	return parent
}

