package tree

import (
	"math"
	"slices"

	"github.com/matzehuels/treesearch/pkg/errors"
)

func (t *Tree) checkNode(id NodeID) error {
	if id < 0 || int(id) >= len(t.nodes) {
		return errors.New(errors.ErrCodeInvalidInput, "node %d out of range [0,%d)", id, len(t.nodes))
	}
	return nil
}

// Interchange returns a new tree in which the subtrees rooted at a and b have
// swapped places. Neither node may be the root and neither may be an ancestor
// of the other. Swapping a child of an internal node with a sibling of that
// node is a nearest-neighbour interchange.
func (t *Tree) Interchange(a, b NodeID) (*Tree, error) {
	if err := t.checkNode(a); err != nil {
		return nil, err
	}
	if err := t.checkNode(b); err != nil {
		return nil, err
	}
	if a == t.root || b == t.root {
		return nil, errors.New(errors.ErrCodeInvalidInput, "cannot interchange the root")
	}
	if t.IsAncestor(a, b) || t.IsAncestor(b, a) {
		return nil, errors.New(errors.ErrCodeInvalidInput, "nodes %d and %d are nested", a, b)
	}

	nodes := cloneNodes(t.nodes)
	pa, pb := nodes[a].parent, nodes[b].parent
	ia := slices.Index(nodes[pa].children, a)
	ib := slices.Index(nodes[pb].children, b)
	nodes[pa].children[ia] = b
	nodes[pb].children[ib] = a
	nodes[a].parent, nodes[b].parent = pb, pa

	return &Tree{taxa: t.taxa, nodes: nodes, root: t.root, rooted: t.rooted, name: t.name}, nil
}

// Regraft returns a new tree in which the subtree rooted at sub has been
// pruned and reattached on the edge above target. Target must lie outside
// the pruned subtree. Regrafting above the root creates a new root.
func (t *Tree) Regraft(sub, target NodeID) (*Tree, error) {
	if err := t.checkNode(sub); err != nil {
		return nil, err
	}
	if err := t.checkNode(target); err != nil {
		return nil, err
	}
	if sub == t.root {
		return nil, errors.New(errors.ErrCodeInvalidInput, "cannot prune the root")
	}
	if t.IsAncestor(sub, target) {
		return nil, errors.New(errors.ErrCodeInvalidInput, "target %d lies inside subtree %d", target, sub)
	}

	nodes := cloneNodes(t.nodes)
	root := t.root

	// Prune.
	u := nodes[sub].parent
	nodes[u].children = slices.DeleteFunc(nodes[u].children, func(c NodeID) bool { return c == sub })

	var x NodeID
	if len(nodes[u].children) == 1 {
		w := nodes[u].children[0]
		g := nodes[u].parent
		if g == NoNode {
			root = w
			nodes[w].parent = NoNode
			nodes[w].length = math.NaN()
		} else {
			i := slices.Index(nodes[g].children, u)
			nodes[g].children[i] = w
			nodes[w].parent = g
			nodes[w].length = addLengths(nodes[w].length, nodes[u].length)
		}
		if target == u {
			target = w
		}
		x = u
	} else {
		x = NodeID(len(nodes))
		nodes = append(nodes, node{})
	}

	// Regraft on the edge above target.
	p := nodes[target].parent
	nodes[x] = node{parent: p, children: []NodeID{target, sub}, taxon: -1, length: math.NaN()}
	if p == NoNode {
		root = x
	} else {
		i := slices.Index(nodes[p].children, target)
		nodes[p].children[i] = x
	}
	nodes[target].parent = x
	nodes[sub].parent = x

	return assemble(t.taxa, t.rooted, t.name, nodes, root), nil
}
