package tree

// Normalize returns the canonical form of a raw forest. The input is not
// modified.
//
// A pass runs Expand, Deduplicate, Collapse and Deduplicate again; the second
// deduplication catches parent/child name clashes that only appear once a
// chain has been collapsed. Passes repeat until one leaves the node count
// unchanged. Every rewrite after the first pass removes a node, so an equal
// count means the tree is a fixed point and normalizing it again is a no-op.
func Normalize(raw []*Node) []*Node {
	nodes := normalizePass(raw)
	for {
		before := Count(nodes)
		nodes = normalizePass(nodes)
		if Count(nodes) == before {
			return nodes
		}
	}
}

func normalizePass(nodes []*Node) []*Node {
	nodes = Expand(nodes)
	Deduplicate(nodes)
	Collapse(nodes)
	Deduplicate(nodes)
	return nodes
}
