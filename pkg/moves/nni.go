package moves

import (
	"github.com/matzehuels/treesearch/pkg/tree"
)

// NNI is the nearest-neighbour interchange strategy. For every internal
// edge (p, v) it swaps each child of v with each other child of p.
type NNI struct{}

// Name returns "nni".
func (NNI) Name() string { return "nni" }

// MoveCount returns the number of interchanges of t.
func (n NNI) MoveCount(t *tree.Tree) (int, error) {
	return len(n.enumerate(t)), nil
}

// Apply returns the tree produced by interchange index.
func (n NNI) Apply(t *tree.Tree, index int) (*tree.Tree, error) {
	m, err := pick(n.Name(), n.enumerate(t), index)
	if err != nil {
		return nil, err
	}
	return t.Interchange(m.a, m.b)
}

func (NNI) enumerate(t *tree.Tree) []move {
	var out []move
	for id := range t.Len() {
		v := tree.NodeID(id)
		p := t.Parent(v)
		if p == tree.NoNode || t.IsLeaf(v) {
			continue
		}
		for _, c := range t.Children(v) {
			for _, s := range t.Children(p) {
				if s != v {
					out = append(out, move{c, s})
				}
			}
		}
	}
	return out
}
