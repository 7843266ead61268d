package moves

import (
	"github.com/matzehuels/treesearch/pkg/tree"
)

// SPR is the subtree prune and regraft strategy. Every non-root subtree is
// moved onto every edge outside it, including the edge above the root.
// Regrafts that reproduce the input tree (onto the parent, or onto the only
// sibling) are not enumerated.
type SPR struct{}

// Name returns "spr".
func (SPR) Name() string { return "spr" }

// MoveCount returns the number of regrafts of t.
func (s SPR) MoveCount(t *tree.Tree) (int, error) {
	return len(s.enumerate(t)), nil
}

// Apply returns the tree produced by regraft index.
func (s SPR) Apply(t *tree.Tree, index int) (*tree.Tree, error) {
	m, err := pick(s.Name(), s.enumerate(t), index)
	if err != nil {
		return nil, err
	}
	return t.Regraft(m.a, m.b)
}

func (SPR) enumerate(t *tree.Tree) []move {
	var out []move
	n := t.Len()
	root := t.Root()
	for i := range n {
		sub := tree.NodeID(i)
		p := t.Parent(sub)
		if p == tree.NoNode {
			continue
		}
		sibling := tree.NoNode
		if t.NumChildren(p) == 2 {
			for _, c := range t.Children(p) {
				if c != sub {
					sibling = c
				}
			}
		}
		for j := range n {
			target := tree.NodeID(j)
			if target == p || target == sibling || t.IsAncestor(sub, target) {
				continue
			}
			if target == root && !t.Rooted() {
				continue
			}
			out = append(out, move{sub, target})
		}
	}
	return out
}
