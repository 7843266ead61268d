// Package tree provides the phylogenetic tree model used by the search engine.
//
// # Taxa
//
// A [Taxa] is the fixed, ordered set of leaf labels shared by every tree of a
// run. Taxon indices are positions in that set and are used as bit positions
// in [Clade] values.
//
// # Trees
//
// A [Tree] is an arena of nodes addressed by stable [NodeID] integers. Each
// node records its parent, its children in order, and the taxon it carries
// (leaves only). Trees are either rooted or unrooted; unrooted trees are
// stored with an arbitrary internal root of degree three or more.
//
// Trees are never modified in place once built. Rearrangement primitives
// ([Tree.Interchange], [Tree.Regraft]) return a fresh tree, so a tree held by
// a search can be handed to a move generator without being corrupted.
//
// # Topology
//
// [Tree.Topology] returns the canonical clade set of the tree: every internal
// node's clade for rooted trees (root clade included), every non-trivial
// bipartition for unrooted trees. Two trees have the same branching pattern
// iff their topologies are [Topology.Equal], regardless of node numbering or
// child order. Each topology carries a 64-bit signature for hashing.
//
// # Newick
//
// [ParseNewick] reads a tree with the gotree parser and converts it into the
// arena representation; [Tree.Newick] writes it back.
package tree
