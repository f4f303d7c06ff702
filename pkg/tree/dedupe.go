package tree

// Deduplicate merges every directory child that repeats its parent's name
// into the parent, in place and depth first. The parent inherits the child's
// link, coverage and class where it has none, and the child's children are
// appended after the parent's existing children. It reports whether any node
// was absorbed.
func Deduplicate(nodes []*Node) bool {
	changed := false
	for _, n := range nodes {
		if n == nil || len(n.Children) == 0 {
			continue
		}
		// absorbed grandchildren may repeat the name again
		for absorbSelfNamed(n) {
			changed = true
		}
		if Deduplicate(n.Children) {
			changed = true
		}
	}
	return changed
}

// absorbSelfNamed scans n's children from the end so removal does not shift
// the indexes still to be visited.
func absorbSelfNamed(n *Node) bool {
	absorbed := false
	for j := len(n.Children) - 1; j >= 0; j-- {
		child := n.Children[j]
		if child == nil || child.Name != n.Name || !child.IsDir() {
			continue
		}
		n.Children = append(n.Children[:j], n.Children[j+1:]...)
		n.inherit(child)
		n.Children = append(n.Children, child.Children...)
		absorbed = true
	}
	return absorbed
}
