package tree

import (
	"math"
	"slices"
	"sync"

	"github.com/matzehuels/treesearch/pkg/errors"
)

// NodeID addresses a node inside one tree's arena.
// IDs are dense, start at zero, and are only meaningful for the tree that
// issued them.
type NodeID int32

// NoNode is the parent of the root.
const NoNode NodeID = -1

type node struct {
	parent   NodeID
	children []NodeID
	taxon    int     // taxon index for leaves, -1 for internal nodes
	length   float64 // length of the edge to the parent, NaN when unset
}

// Tree is an immutable phylogenetic tree over a taxa set.
type Tree struct {
	taxa   *Taxa
	nodes  []node
	root   NodeID
	rooted bool
	name   string

	topoOnce sync.Once
	topo     *Topology
}

// Taxa returns the taxa set the tree is defined over.
func (t *Tree) Taxa() *Taxa { return t.taxa }

// Rooted reports whether the root position is part of the topology.
func (t *Tree) Rooted() bool { return t.rooted }

// Name returns the tree's display name, possibly empty.
func (t *Tree) Name() string { return t.name }

// Root returns the root node.
func (t *Tree) Root() NodeID { return t.root }

// Len returns the number of nodes.
func (t *Tree) Len() int { return len(t.nodes) }

// Parent returns the parent of id, or NoNode for the root.
func (t *Tree) Parent(id NodeID) NodeID { return t.nodes[id].parent }

// Children returns a copy of id's children in order.
func (t *Tree) Children(id NodeID) []NodeID { return slices.Clone(t.nodes[id].children) }

// NumChildren returns the number of children of id.
func (t *Tree) NumChildren(id NodeID) int { return len(t.nodes[id].children) }

// IsLeaf reports whether id carries a taxon.
func (t *Tree) IsLeaf(id NodeID) bool { return t.nodes[id].taxon >= 0 }

// Taxon returns the taxon index of a leaf.
func (t *Tree) Taxon(id NodeID) (int, bool) {
	tx := t.nodes[id].taxon
	return tx, tx >= 0
}

// Length returns the length of the edge above id, if set.
func (t *Tree) Length(id NodeID) (float64, bool) {
	l := t.nodes[id].length
	return l, !math.IsNaN(l)
}

// IsAncestor reports whether anc lies on the path from n to the root.
// A node is its own ancestor.
func (t *Tree) IsAncestor(anc, n NodeID) bool {
	for ; n != NoNode; n = t.nodes[n].parent {
		if n == anc {
			return true
		}
	}
	return false
}

// Postorder returns all node IDs with every child before its parent.
func (t *Tree) Postorder() []NodeID {
	order := make([]NodeID, 0, len(t.nodes))
	type frame struct {
		id   NodeID
		next int
	}
	stack := []frame{{id: t.root}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		children := t.nodes[top.id].children
		if top.next < len(children) {
			c := children[top.next]
			top.next++
			stack = append(stack, frame{id: c})
			continue
		}
		order = append(order, top.id)
		stack = stack[:len(stack)-1]
	}
	return order
}

// Topology returns the canonical clade set. It is computed once per tree.
func (t *Tree) Topology() *Topology {
	t.topoOnce.Do(func() {
		if t.topo == nil {
			t.topo = t.computeTopology()
		}
	})
	return t.topo
}

func (t *Tree) computeTopology() *Topology {
	n := t.taxa.Len()
	sets := make([]Clade, len(t.nodes))
	var clades []Clade

	for _, id := range t.Postorder() {
		nd := t.nodes[id]
		c := NewClade(n)
		if nd.taxon >= 0 {
			c.Add(nd.taxon)
		} else {
			for _, ch := range nd.children {
				c.UnionWith(sets[ch])
			}
		}
		sets[id] = c

		if t.rooted {
			if nd.taxon < 0 {
				clades = append(clades, c)
			}
			continue
		}
		if id == t.root {
			continue
		}
		split := c
		if split.Has(0) {
			split = split.Complement(n)
		}
		if k := split.Count(); k >= 2 && k <= n-2 {
			clades = append(clades, split)
		}
	}
	return newTopology(t.rooted, n, clades)
}

// Clone returns a deep copy sharing only the taxa set.
func (t *Tree) Clone() *Tree {
	return t.derive(cloneNodes(t.nodes), t.name)
}

// WithName returns a copy of the tree carrying a different name.
// The arena is shared, which is safe because trees are never mutated.
func (t *Tree) WithName(name string) *Tree {
	return t.derive(t.nodes, name)
}

func (t *Tree) derive(nodes []node, name string) *Tree {
	out := &Tree{taxa: t.taxa, nodes: nodes, root: t.root, rooted: t.rooted, name: name}
	if topo := t.Topology(); topo != nil {
		out.topo = topo
	}
	return out
}

func cloneNodes(nodes []node) []node {
	out := make([]node, len(nodes))
	for i, n := range nodes {
		out[i] = n
		out[i].children = slices.Clone(n.children)
	}
	return out
}

func addLengths(a, b float64) float64 {
	switch {
	case math.IsNaN(a):
		return b
	case math.IsNaN(b):
		return a
	default:
		return a + b
	}
}

// =============================================================================
// Construction and normalisation
// =============================================================================

// assemble compacts an arena into a fresh tree: it drops unreachable slots,
// splices unary internal nodes, renumbers nodes in preorder, and for unrooted
// trees moves a degree-two root into its first internal child.
func assemble(taxa *Taxa, rooted bool, name string, nodes []node, root NodeID) *Tree {
	t := compact(taxa, rooted, name, nodes, root)
	if rooted || t.IsLeaf(t.root) || len(t.nodes[t.root].children) != 2 {
		return t
	}

	nodes, root = t.nodes, t.root
	a, b := nodes[root].children[0], nodes[root].children[1]
	keep, other := a, b
	if nodes[keep].taxon >= 0 {
		keep, other = b, a
	}
	if nodes[keep].taxon >= 0 {
		return t // two-taxon tree
	}
	nodes[other].parent = keep
	nodes[other].length = addLengths(nodes[other].length, nodes[keep].length)
	nodes[keep].children = append(nodes[keep].children, other)
	nodes[keep].parent = NoNode
	nodes[keep].length = math.NaN()
	return compact(taxa, rooted, name, nodes, keep)
}

func compact(taxa *Taxa, rooted bool, name string, nodes []node, root NodeID) *Tree {
	out := &Tree{taxa: taxa, rooted: rooted, name: name, nodes: make([]node, 0, len(nodes))}

	var visit func(id, parent NodeID, length float64) NodeID
	visit = func(id, parent NodeID, length float64) NodeID {
		n := nodes[id]
		for n.taxon < 0 && len(n.children) == 1 {
			id = n.children[0]
			n = nodes[id]
			length = addLengths(length, n.length)
		}
		nid := NodeID(len(out.nodes))
		out.nodes = append(out.nodes, node{parent: parent, taxon: n.taxon, length: length})
		if n.taxon < 0 {
			children := make([]NodeID, 0, len(n.children))
			for _, c := range n.children {
				children = append(children, visit(c, nid, nodes[c].length))
			}
			out.nodes[nid].children = children
		}
		return nid
	}

	out.root = visit(root, NoNode, math.NaN())
	out.nodes[out.root].length = math.NaN()
	return out
}

// validate checks that every taxon appears on exactly one leaf and that
// internal nodes have children.
func (t *Tree) validate() error {
	seen := make([]bool, t.taxa.Len())
	for _, n := range t.nodes {
		if n.taxon < 0 {
			if len(n.children) == 0 {
				return errors.New(errors.ErrCodeInvalidTree, "internal node without children")
			}
			continue
		}
		if seen[n.taxon] {
			return errors.New(errors.ErrCodeInvalidTree, "taxon %q appears more than once", t.taxa.Label(n.taxon))
		}
		seen[n.taxon] = true
	}
	for i, ok := range seen {
		if !ok {
			return errors.New(errors.ErrCodeInvalidTree, "taxon %q missing from tree", t.taxa.Label(i))
		}
	}
	return nil
}

// Leaf returns the leaf carrying label.
func (t *Tree) Leaf(label string) (NodeID, bool) {
	idx, ok := t.taxa.Index(label)
	if !ok {
		return NoNode, false
	}
	for i, n := range t.nodes {
		if n.taxon == idx {
			return NodeID(i), true
		}
	}
	return NoNode, false
}
