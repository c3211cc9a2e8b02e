package ax

// Walk visits root and its descendants in pre-order, descending at most
// maxDepth levels below root. visit returns false to stop the walk. The
// elements passed to visit are only valid during the call; Walk closes every
// handle it opens, including on early exit.
func Walk(root Element, maxDepth int, visit func(el Element, depth int) bool) {
	type frame struct {
		el    Element
		depth int
	}

	stack := []frame{{el: root.Retain()}}
	defer func() {
		for _, f := range stack {
			f.el.Close()
		}
	}()

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !visit(f.el, f.depth) {
			f.el.Close()
			return
		}
		if f.depth < maxDepth {
			if kids, err := Children(f.el); err == nil {
				for i := len(kids) - 1; i >= 0; i-- {
					stack = append(stack, frame{el: kids[i], depth: f.depth + 1})
				}
			}
		}
		f.el.Close()
	}
}
