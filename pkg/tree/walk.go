package tree

// Entry is a node together with its position in the tree.
type Entry struct {
	// Path is the "/"-joined names from the root down to the node; the
	// sidebar keys expanded folders by it.
	Path       string
	ParentPath string
	Depth      int
	Position   int
	Node       *Node
}

// Walk visits every node depth first in sibling order. Returning false from
// fn skips the node's children.
func Walk(nodes []*Node, fn func(Entry) bool) {
	walk(nodes, "", 0, fn)
}

func walk(nodes []*Node, parentPath string, depth int, fn func(Entry) bool) {
	for i, n := range nodes {
		if n == nil {
			continue
		}
		path := n.Name
		if depth > 0 {
			path = parentPath + Separator + n.Name
		}
		if !fn(Entry{Path: path, ParentPath: parentPath, Depth: depth, Position: i, Node: n}) {
			continue
		}
		walk(n.Children, path, depth+1, fn)
	}
}

// Flatten lists every node in Walk order.
func Flatten(nodes []*Node) []Entry {
	var entries []Entry
	Walk(nodes, func(e Entry) bool {
		entries = append(entries, e)
		return true
	})
	return entries
}
