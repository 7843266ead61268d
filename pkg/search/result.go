package search

import (
	"fmt"
	"time"

	"github.com/matzehuels/treesearch/pkg/score"
	"github.com/matzehuels/treesearch/pkg/tree"
)

// Status is how a search ended.
type Status int

const (
	// StatusConverged means a full pass found no strict improvement.
	StatusConverged Status = iota
	// StatusCancelled means the context was cancelled before convergence.
	// Callers decide whether the retained trees are kept.
	StatusCancelled
	// StatusCancelledKept is a cancelled run whose trees the caller kept.
	StatusCancelledKept
	// StatusCancelledDiscarded is a cancelled run whose trees were thrown away.
	StatusCancelledDiscarded
)

var statusNames = [...]string{
	StatusConverged:          "converged",
	StatusCancelled:          "cancelled",
	StatusCancelledKept:      "cancelled_kept",
	StatusCancelledDiscarded: "cancelled_discarded",
}

func (s Status) String() string {
	if s >= 0 && int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Cancelled reports whether s is one of the cancelled statuses.
func (s Status) Cancelled() bool { return s != StatusConverged }

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	for i, name := range statusNames {
		if name == string(text) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("unknown search status %q", text)
}

// Candidate pairs a tree with its score. Candidates are immutable.
type Candidate struct {
	Tree  *tree.Tree
	Score score.Score
}

// Topology returns the candidate tree's topology.
func (c Candidate) Topology() *tree.Topology { return c.Tree.Topology() }

// Clone returns a candidate holding a copy of the tree.
func (c Candidate) Clone() Candidate {
	return Candidate{Tree: c.Tree.Clone(), Score: c.Score}
}

// Result is the outcome of a search.
type Result struct {
	Trees           []Candidate // retained trees in discovery order
	Best            score.Score
	Status          Status
	Direction       score.Direction
	Criterion       string
	Moves           string
	MaxTrees        int
	MovesExamined   int64
	Elapsed         time.Duration
	CapacityReached bool
}

// Converged reports whether the search reached a local optimum.
func (r *Result) Converged() bool { return r.Status == StatusConverged }
