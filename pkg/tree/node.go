// Package tree turns the raw navigation data emitted by a coverage report
// generator into the canonical tree shown in the report sidebar, and resolves
// root-to-page paths through it for breadcrumbs.
//
// Raw data is tolerated in any shape the generator produces: names holding
// several path segments, directories that repeat their parent's name, and
// long chains of directories with a single subdirectory. Normalize returns a
// tree where every name is one segment, no directory has a child of the same
// name, and pass-through chains are flattened. Link, coverage and coverage
// class values attached anywhere in the raw data survive on the node that
// absorbs them.
package tree

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Separator splits path segments inside a node name.
const Separator = "/"

// Node is one entry of the navigation tree.
type Node struct {
	Name        string `json:"name"`
	IsDirectory bool   `json:"isDirectory"`
	// Link is the page this node navigates to. Empty means unset.
	Link string `json:"link,omitempty"`
	// Coverage is carried through untouched; the generator emits a string
	// percentage but any JSON value is accepted.
	Coverage      json.RawMessage `json:"coverage,omitempty"`
	CoverageClass string          `json:"coverageClass,omitempty"`
	Children      []*Node         `json:"children,omitempty"`
}

// IsDir reports whether n is a directory. Any node with children is one,
// whatever its flag says.
func (n *Node) IsDir() bool {
	return n.IsDirectory || len(n.Children) > 0
}

// HasCoverage reports whether a coverage value is present.
func (n *Node) HasCoverage() bool {
	c := bytes.TrimSpace(n.Coverage)
	return len(c) > 0 && !bytes.Equal(c, []byte("null")) && !bytes.Equal(c, []byte(`""`))
}

// CoverageText returns the coverage value for display: the string itself
// for a JSON string, the raw JSON otherwise, "" when absent.
func (n *Node) CoverageText() string {
	if !n.HasCoverage() {
		return ""
	}
	var s string
	if err := json.Unmarshal(n.Coverage, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(n.Coverage))
}

// inherit copies link, coverage and coverage class from src into fields n
// has not set yet. Values already present on n are never overwritten.
func (n *Node) inherit(src *Node) {
	if n.Link == "" && src.Link != "" {
		n.Link = src.Link
	}
	if !n.HasCoverage() && src.HasCoverage() {
		n.Coverage = src.Coverage
	}
	if n.CoverageClass == "" && src.CoverageClass != "" {
		n.CoverageClass = src.CoverageClass
	}
}

// shallowCopy copies n with a private children slice. The child nodes
// themselves are shared.
func (n *Node) shallowCopy() *Node {
	c := *n
	if n.Children != nil {
		c.Children = append([]*Node(nil), n.Children...)
	}
	return &c
}

// Clone returns a deep copy of n.
func (n *Node) Clone() *Node {
	c := *n
	c.Children = CloneAll(n.Children)
	return &c
}

// CloneAll deep-copies a node list, dropping nil entries.
func CloneAll(nodes []*Node) []*Node {
	if nodes == nil {
		return nil
	}
	out := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		if n == nil {
			continue
		}
		out = append(out, n.Clone())
	}
	return out
}

// Count returns the number of nodes in the forest.
func Count(nodes []*Node) int {
	total := 0
	for _, n := range nodes {
		if n == nil {
			continue
		}
		total += 1 + Count(n.Children)
	}
	return total
}

// Links returns every non-empty link in depth-first, sibling order.
func Links(nodes []*Node) []string {
	var links []string
	for _, n := range nodes {
		if n == nil {
			continue
		}
		if n.Link != "" {
			links = append(links, n.Link)
		}
		links = append(links, Links(n.Children)...)
	}
	return links
}

// Unmarshal decodes a JSON array of nodes. Null entries are dropped.
func Unmarshal(data []byte) ([]*Node, error) {
	var nodes []*Node
	if err := json.Unmarshal(data, &nodes); err != nil {
		return nil, fmt.Errorf("decode tree: %w", err)
	}
	if nodes == nil {
		nodes = []*Node{}
	}
	return CloneAll(nodes), nil
}

// Marshal encodes nodes as an indented JSON array. A nil forest encodes as
// an empty array.
func Marshal(nodes []*Node) ([]byte, error) {
	if nodes == nil {
		nodes = []*Node{}
	}
	data, err := json.MarshalIndent(nodes, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tree: %w", err)
	}
	return data, nil
}
