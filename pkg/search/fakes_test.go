package search

import (
	"context"
	"fmt"

	"github.com/matzehuels/treesearch/pkg/score"
	"github.com/matzehuels/treesearch/pkg/tree"
)

var abcd = tree.MustTaxa("A", "B", "C", "D")

func quartet(newick string) *tree.Tree {
	return tree.MustParseNewick(newick, abcd, false)
}

// tableScorer scores trees by topology and reports unknown topologies as
// unassigned.
type tableScorer struct {
	name   string
	dir    score.Direction
	scores map[uint64]score.Score
	calls  int

	// hook runs before each score and may return an error.
	hook func(calls int) error
}

func newTableScorer(dir score.Direction) *tableScorer {
	return &tableScorer{name: "table", dir: dir, scores: make(map[uint64]score.Score)}
}

func (s *tableScorer) set(t *tree.Tree, v float64) *tableScorer {
	s.scores[t.Topology().Signature()] = score.Of(v)
	return s
}

func (s *tableScorer) Name() string { return s.name }

func (s *tableScorer) PreferredDirection() score.Direction { return s.dir }

func (s *tableScorer) Score(_ context.Context, t *tree.Tree) (score.Score, error) {
	s.calls++
	if s.hook != nil {
		if err := s.hook(s.calls); err != nil {
			return score.Unassigned(), err
		}
	}
	return s.scores[t.Topology().Signature()], nil
}

// listMoves maps move index i to targets[i] whatever the input tree.
type listMoves struct {
	targets  []*tree.Tree
	countErr error
	// inspect, if set, is called before every move count and application.
	inspect func()
}

func (g *listMoves) Name() string { return "list" }

func (g *listMoves) MoveCount(*tree.Tree) (int, error) {
	if g.inspect != nil {
		g.inspect()
	}
	if g.countErr != nil {
		return 0, g.countErr
	}
	return len(g.targets), nil
}

func (g *listMoves) Apply(_ *tree.Tree, i int) (*tree.Tree, error) {
	if g.inspect != nil {
		g.inspect()
	}
	if i < 0 || i >= len(g.targets) {
		return nil, fmt.Errorf("move %d out of range", i)
	}
	return g.targets[i], nil
}
