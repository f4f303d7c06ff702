package tree

import "strings"

// Expand unfolds names that embed path separators into nested single-segment
// nodes. Siblings sharing a first segment are merged into one node, emitted
// at the position where that segment was first seen.
//
// A name without a separator keeps its node; a later node with the same name
// contributes its link, coverage and class only where the first one has none,
// and its children are appended. Two leaves with the same name that link to
// different pages are both kept, side by side. A name "a/rest" adds a copy of the node
// named "rest" under a directory "a", creating the directory if needed.
// Empty segments are kept literally ("/" yields a directory "" holding a
// node "").
//
// Expand does not modify its input; every returned node is a fresh copy.
func Expand(nodes []*Node) []*Node {
	if len(nodes) == 0 {
		return nodes
	}

	// every node sharing a first segment; only distinct leaves add a second
	groups := make(map[string][]*Node, len(nodes))
	order := make([]*Node, 0, len(nodes))

	for _, n := range nodes {
		if n == nil {
			continue
		}
		head, rest, nested := strings.Cut(n.Name, Separator)
		variants := groups[head]

		if !nested {
			target := mergeTarget(variants, n)
			if target == nil {
				c := n.shallowCopy()
				groups[head] = append(variants, c)
				order = append(order, c)
				continue
			}
			target.IsDirectory = target.IsDirectory || n.IsDirectory
			target.inherit(n)
			target.Children = append(target.Children, n.Children...)
			continue
		}

		var group *Node
		if len(variants) == 0 {
			group = &Node{Name: head, IsDirectory: true}
			groups[head] = []*Node{group}
			order = append(order, group)
		} else {
			group = variants[0]
		}
		group.IsDirectory = true
		child := n.shallowCopy()
		child.Name = rest
		group.Children = append(group.Children, child)
	}

	out := make([]*Node, 0, len(order))
	for _, group := range order {
		if len(group.Children) > 0 {
			group.Children = Expand(group.Children)
		}
		out = append(out, group)
	}
	return out
}

// mergeTarget returns the first node n can merge into without losing a link.
func mergeTarget(variants []*Node, n *Node) *Node {
	for _, v := range variants {
		if !distinctLeaves(v, n) {
			return v
		}
	}
	return nil
}

// distinctLeaves reports whether a and b are files pointing at different
// pages. Merging them would lose one of the links.
func distinctLeaves(a, b *Node) bool {
	return !a.IsDir() && !b.IsDir() && a.Link != "" && b.Link != "" && a.Link != b.Link
}
