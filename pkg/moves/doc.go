// Package moves provides tree rearrangement strategies for the search engine.
//
// A strategy enumerates the neighbours of a tree as a dense index range
// [0, MoveCount). The mapping depends only on the tree's node layout, so a
// given tree and index always yield the same neighbour. Every neighbour is a
// new tree; inputs are never modified.
//
// Two strategies are available:
//   - [NNI]: nearest-neighbour interchange, swapping a subtree with one of
//     its parent's siblings
//   - [SPR]: subtree prune and regraft, moving a subtree onto any edge
//     outside it
//
// SPR explores a strict superset of the NNI neighbourhood at quadratic cost.
package moves

import (
	"sort"
	"strings"

	"github.com/matzehuels/treesearch/pkg/errors"
	"github.com/matzehuels/treesearch/pkg/tree"
)

// Generator enumerates the neighbours of a tree.
type Generator interface {
	Name() string
	MoveCount(t *tree.Tree) (int, error)
	Apply(t *tree.Tree, index int) (*tree.Tree, error)
}

var registry = map[string]Generator{
	NNI{}.Name(): NNI{},
	SPR{}.Name(): SPR{},
}

// ByName returns the strategy registered under name (case-insensitive).
func ByName(name string) (Generator, error) {
	if g, ok := registry[strings.ToLower(strings.TrimSpace(name))]; ok {
		return g, nil
	}
	return nil, errors.New(errors.ErrCodeInvalidMoves, "unknown move strategy %q (must be one of: %s)", name, strings.Join(Names(), ", "))
}

// Names returns the registered strategy names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// move is one enumerated rearrangement: the pair of nodes it acts on.
type move struct{ a, b tree.NodeID }

func pick(name string, moves []move, index int) (move, error) {
	if index < 0 || index >= len(moves) {
		return move{}, errors.New(errors.ErrCodeInvalidInput, "%s move %d out of range [0,%d)", name, index, len(moves))
	}
	return moves[index], nil
}
