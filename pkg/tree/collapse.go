package tree

// Collapse flattens runs of single-child directories in place: while a
// directory's only child is a directory with children of its own, the child
// is absorbed and its children take its place. A lone file, or a lone empty
// directory, stops the run. It reports whether any node was absorbed.
func Collapse(nodes []*Node) bool {
	changed := false
	for _, n := range nodes {
		if n == nil || !n.IsDir() || len(n.Children) == 0 {
			continue
		}
		for len(n.Children) == 1 {
			child := n.Children[0]
			if child == nil || !child.IsDir() || len(child.Children) == 0 {
				break
			}
			n.inherit(child)
			n.Children = child.Children
			changed = true
		}
		if Collapse(n.Children) {
			changed = true
		}
	}
	return changed
}
