package search

import (
	"fmt"

	"github.com/matzehuels/treesearch/pkg/score"
	"github.com/matzehuels/treesearch/pkg/tree"
)

// state is the retained set of a running search: the best score and every
// distinct topology tied for it, in discovery order. Members are indexed by
// topology signature; signature collisions fall back to a full comparison.
type state struct {
	best     score.Score
	capacity int
	members  []Candidate
	index    map[uint64][]int
}

func newState(capacity int) *state {
	return &state{capacity: capacity, index: make(map[uint64][]int)}
}

func (s *state) len() int { return len(s.members) }

func (s *state) at(i int) Candidate { return s.members[i] }

func (s *state) full() bool { return len(s.members) >= s.capacity }

func (s *state) contains(t *tree.Topology) bool {
	for _, i := range s.index[t.Signature()] {
		if s.members[i].Topology().Equal(t) {
			return true
		}
	}
	return false
}

// reset replaces every member with c and makes its score the best.
func (s *state) reset(c Candidate) {
	clear(s.members)
	s.members = append(s.members[:0], c)
	clear(s.index)
	s.index[c.Topology().Signature()] = []int{0}
	s.best = c.Score
}

// admit appends a tie. It reports false when the set is full. Callers check
// contains first.
func (s *state) admit(c Candidate) bool {
	if s.full() {
		return false
	}
	sig := c.Topology().Signature()
	s.index[sig] = append(s.index[sig], len(s.members))
	s.members = append(s.members, c)
	return true
}

func (s *state) snapshot() []Candidate {
	out := make([]Candidate, len(s.members))
	copy(out, s.members)
	return out
}

// check verifies the retained-set invariants.
func (s *state) check() error {
	if len(s.members) > s.capacity {
		return fmt.Errorf("%d members exceed capacity %d", len(s.members), s.capacity)
	}
	for i, c := range s.members {
		if c.Score != s.best {
			return fmt.Errorf("member %d scores %s, best is %s", i, c.Score, s.best)
		}
		for j := range i {
			if s.members[j].Topology().Equal(c.Topology()) {
				return fmt.Errorf("members %d and %d share a topology", j, i)
			}
		}
	}
	return nil
}
