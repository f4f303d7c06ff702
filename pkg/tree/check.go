package tree

import (
	"errors"
	"fmt"
	"strings"
)

// Rule names a structural property of a canonical tree.
type Rule string

const (
	RuleSingleSegment  Rule = "single-segment name"
	RuleNoSelfNamedDir Rule = "no self-named child directory"
	RuleNoPassThrough  Rule = "no pass-through directory chain"
	RuleUniqueSiblings Rule = "unique sibling names"
)

// Violation reports a node that breaks a rule.
type Violation struct {
	Rule Rule
	Path string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Rule)
}

// Check verifies that nodes are canonical and returns every violation
// joined into one error, or nil.
func Check(nodes []*Node) error {
	var errs []error
	errs = append(errs, checkSiblings(nodes, "", 0)...)
	Walk(nodes, func(e Entry) bool {
		n := e.Node
		if strings.Contains(n.Name, Separator) {
			errs = append(errs, &Violation{Rule: RuleSingleSegment, Path: e.Path})
		}
		if !n.IsDir() {
			return true
		}
		for _, c := range n.Children {
			if c != nil && c.Name == n.Name && c.IsDir() {
				errs = append(errs, &Violation{Rule: RuleNoSelfNamedDir, Path: e.Path})
				break
			}
		}
		if len(n.Children) == 1 {
			if c := n.Children[0]; c != nil && c.IsDir() && len(c.Children) > 0 {
				errs = append(errs, &Violation{Rule: RuleNoPassThrough, Path: e.Path})
			}
		}
		errs = append(errs, checkSiblings(n.Children, e.Path, e.Depth+1)...)
		return true
	})
	return errors.Join(errs...)
}

func checkSiblings(nodes []*Node, parentPath string, depth int) []error {
	var errs []error
	seen := make(map[string][]*Node, len(nodes))
	for _, n := range nodes {
		if n == nil {
			continue
		}
		clash := false
		for _, prev := range seen[n.Name] {
			if !distinctLeaves(prev, n) {
				clash = true
				break
			}
		}
		if clash {
			path := n.Name
			if depth > 0 {
				path = parentPath + Separator + n.Name
			}
			errs = append(errs, &Violation{Rule: RuleUniqueSiblings, Path: path})
			continue
		}
		seen[n.Name] = append(seen[n.Name], n)
	}
	return errs
}
