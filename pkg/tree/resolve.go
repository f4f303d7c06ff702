package tree

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Locate when no node carries the link.
var ErrNotFound = errors.New("link not found in tree")

// ResolvePath returns the nodes from a root down to the node whose link is
// targetLink, searching depth first in sibling order. Links are unique in
// generator output, so the first match is the only one. An empty target
// never matches.
func ResolvePath(nodes []*Node, targetLink string) ([]*Node, bool) {
	if targetLink == "" {
		return nil, false
	}
	for _, n := range nodes {
		if n == nil {
			continue
		}
		if n.Link == targetLink {
			return []*Node{n}, true
		}
		if len(n.Children) > 0 {
			if childPath, ok := ResolvePath(n.Children, targetLink); ok {
				return append([]*Node{n}, childPath...), true
			}
		}
	}
	return nil, false
}

// Crumb is one breadcrumb segment.
type Crumb struct {
	Name string
	Link string
	// Current marks the last segment, the page being viewed.
	Current bool
}

// Navigable reports whether the segment is rendered as a link.
func (c Crumb) Navigable() bool {
	return !c.Current && c.Link != ""
}

// Breadcrumbs turns a resolved path into breadcrumb segments. Only the last
// segment is current.
func Breadcrumbs(path []*Node) []Crumb {
	crumbs := make([]Crumb, 0, len(path))
	for i, n := range path {
		crumbs = append(crumbs, Crumb{
			Name:    n.Name,
			Link:    n.Link,
			Current: i == len(path)-1,
		})
	}
	return crumbs
}

// DisplayPath joins the names along a resolved path with "/". It is the
// file name shown above the source listing.
func DisplayPath(path []*Node) string {
	names := make([]string, 0, len(path))
	for _, n := range path {
		names = append(names, n.Name)
	}
	return strings.Join(names, Separator)
}

// Location bundles everything a page needs about where it sits in the tree.
type Location struct {
	Path        []*Node
	Crumbs      []Crumb
	DisplayPath string
}

// Locate resolves link and derives its breadcrumbs and display path.
func Locate(nodes []*Node, link string) (*Location, error) {
	path, ok := ResolvePath(nodes, link)
	if !ok {
		return nil, fmt.Errorf("%q: %w", link, ErrNotFound)
	}
	return &Location{
		Path:        path,
		Crumbs:      Breadcrumbs(path),
		DisplayPath: DisplayPath(path),
	}, nil
}
