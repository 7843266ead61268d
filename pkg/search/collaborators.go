package search

import (
	"context"

	"github.com/matzehuels/treesearch/pkg/score"
	"github.com/matzehuels/treesearch/pkg/tree"
)

// Scorer assigns a score to a tree. Returning an unassigned score rejects
// the tree without failing the run; returning an error aborts the run.
type Scorer interface {
	Name() string
	Score(ctx context.Context, t *tree.Tree) (score.Score, error)
}

// Preferrer is implemented by scorers that know which direction is better.
// It is consulted when [Options.Direction] is left unset.
type Preferrer interface {
	PreferredDirection() score.Direction
}

// MoveGenerator enumerates the neighbours of a tree. For a given tree and
// index, Apply must be deterministic and must not modify its input.
type MoveGenerator interface {
	Name() string
	MoveCount(t *tree.Tree) (int, error)
	Apply(t *tree.Tree, index int) (*tree.Tree, error)
}
