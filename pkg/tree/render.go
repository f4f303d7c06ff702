package tree

import (
	"fmt"
	"strings"

	"github.com/disiqueira/gotree/v3"
)

// Render draws the forest as an indented text tree under rootLabel using
// Label for every node.
func Render(rootLabel string, nodes []*Node) string {
	return RenderFunc(rootLabel, nodes, Label)
}

// RenderFunc is Render with a custom node label.
func RenderFunc(rootLabel string, nodes []*Node, label func(*Node) string) string {
	root := gotree.New(rootLabel)
	addNodes(root, nodes, label)
	return root.Print()
}

func addNodes(parent gotree.Tree, nodes []*Node, label func(*Node) string) {
	for _, n := range nodes {
		if n == nil {
			continue
		}
		addNodes(parent.Add(label(n)), n.Children, label)
	}
}

// Label is the plain text label of a node. Directories end in "/", coverage
// is appended in brackets and the link after an arrow.
func Label(n *Node) string {
	var b strings.Builder
	b.WriteString(n.Name)
	if n.IsDir() {
		b.WriteString(Separator)
	}
	if n.HasCoverage() {
		fmt.Fprintf(&b, " [%s]", n.CoverageText())
	}
	if n.Link != "" {
		fmt.Fprintf(&b, " -> %s", n.Link)
	}
	return b.String()
}
