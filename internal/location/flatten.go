package location

// FlattenOptions selects what a depth-first walk emits
type FlattenOptions struct {
	// ContainersOnly drops pure items from the output
	ContainersOnly bool
	// Assembled stops at nodes kept assembled instead of listing their content
	Assembled bool
}

// Flatten walks nodes depth first in pre-order. Callers must hold the tree
// lock when nodes belong to a tree.
func Flatten(nodes []*Node, opts FlattenOptions) []*Node {
	var out []*Node
	var visit func(n *Node)
	visit = func(n *Node) {
		if !opts.ContainersOnly || n.IsContainer() {
			out = append(out, n)
		}
		if opts.Assembled && n.Quantity != nil && n.Info.Fields().DoNotUnpack {
			return
		}
		for _, c := range n.Children {
			visit(c)
		}
	}
	for _, n := range nodes {
		visit(n)
	}
	return out
}
