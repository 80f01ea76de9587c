package dom

// Visit is called for each element in document order. Returning false
// stops the walk.
type Visit func(el *Element, inShadow bool) bool

// Walk traverses the light tree under root in document order using an
// explicit stack. Shadow roots are not entered; see WalkAll.
func Walk(root *Element, fn func(el *Element) bool) {
	if root == nil {
		return
	}
	stack := []*Element{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(n) {
			return
		}
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
}

// WalkAll traverses the tree under root in document order, entering
// shadow roots. The traversal is a single worklist, not mutual recursion
// inside a visitor, so order and termination are easy to reason about:
// a host's shadow tree is visited immediately after the host itself.
func WalkAll(root *Element, fn Visit) {
	if root == nil {
		return
	}
	type frame struct {
		el       *Element
		inShadow bool
	}
	stack := []frame{{el: root}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(f.el, f.inShadow) {
			return
		}
		for i := len(f.el.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{el: f.el.Children[i], inShadow: f.inShadow})
		}
		if f.el.ShadowRoot != nil {
			stack = append(stack, frame{el: f.el.ShadowRoot, inShadow: true})
		}
	}
}

// CollectAll returns every element under root (shadow roots included)
// matching the predicate, in document order.
func CollectAll(root *Element, pred func(*Element) bool) []*Element {
	var out []*Element
	WalkAll(root, func(el *Element, _ bool) bool {
		if !el.IsText() && pred(el) {
			out = append(out, el)
		}
		return true
	})
	return out
}
