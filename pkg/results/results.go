// Package results turns a finished search into named output trees and a
// run summary.
//
// A converged search is collected as is. A cancelled search needs a
// [Disposition] from the caller: [Keep] returns its trees, marked as coming
// from an incomplete search, and [Discard] returns none.
package results

import (
	"fmt"
	"strings"
	"time"

	"github.com/matzehuels/treesearch/pkg/errors"
	"github.com/matzehuels/treesearch/pkg/score"
	"github.com/matzehuels/treesearch/pkg/search"
	"github.com/matzehuels/treesearch/pkg/tree"
)

// Disposition is the caller's decision about a cancelled search.
type Disposition int

const (
	// Undecided is the zero value. Collecting a cancelled run with it fails.
	Undecided Disposition = iota
	// Keep returns the trees of a cancelled run.
	Keep
	// Discard drops the trees of a cancelled run.
	Discard
)

// ParseDisposition parses "keep" or "discard".
func ParseDisposition(s string) (Disposition, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "keep":
		return Keep, nil
	case "discard":
		return Discard, nil
	}
	return Undecided, errors.New(errors.ErrCodeInvalidInput, "invalid disposition %q (must be keep or discard)", s)
}

func (d Disposition) String() string {
	switch d {
	case Keep:
		return "keep"
	case Discard:
		return "discard"
	default:
		return "undecided"
	}
}

// Tree is one named output tree.
type Tree struct {
	Name  string
	Tree  *tree.Tree
	Score score.Score
}

// Stats summarises a run.
type Stats struct {
	Status          search.Status   `json:"status"`
	Criterion       string          `json:"criterion"`
	Direction       score.Direction `json:"direction"`
	Moves           string          `json:"moves"`
	MaxTrees        int             `json:"max_trees"`
	Best            score.Score     `json:"best"`
	Trees           int             `json:"trees"`
	MovesExamined   int64           `json:"moves_examined"`
	Elapsed         time.Duration   `json:"elapsed"`
	CapacityReached bool            `json:"capacity_reached"`
	Replicates      int             `json:"replicates,omitempty"`
}

// String renders a one-paragraph summary.
func (s Stats) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Search %s: %d tree(s) with %s %s = %s after %d moves in %s",
		s.Status, s.Trees, s.Direction, s.Criterion, s.Best, s.MovesExamined, s.Elapsed.Round(time.Millisecond))
	if s.Replicates > 1 {
		fmt.Fprintf(&b, " over %d replicate searches", s.Replicates)
	}
	if s.CapacityReached {
		fmt.Fprintf(&b, "; more equally good trees exist than the limit of %d", s.MaxTrees)
	}
	return b.String()
}

// Collection is the collected output of a search.
type Collection struct {
	Trees []Tree
	Stats Stats
}

// Collect names the trees of res and resolves a cancelled status with d.
// The disposition is ignored for converged runs.
func Collect(res *search.Result, d Disposition) (*Collection, error) {
	if res == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "no search result to collect")
	}

	status := res.Status
	trees := res.Trees
	switch status {
	case search.StatusConverged, search.StatusCancelledKept:
	case search.StatusCancelledDiscarded:
		trees = nil
	case search.StatusCancelled:
		switch d {
		case Keep:
			status = search.StatusCancelledKept
		case Discard:
			status = search.StatusCancelledDiscarded
			trees = nil
		default:
			return nil, errors.New(errors.ErrCodeInvalidInput, "cancelled search needs a keep or discard decision")
		}
	default:
		return nil, errors.New(errors.ErrCodeInvalidInput, "unknown search status %s", status)
	}

	c := &Collection{
		Trees: make([]Tree, len(trees)),
		Stats: Stats{
			Status:          status,
			Criterion:       res.Criterion,
			Direction:       res.Direction,
			Moves:           res.Moves,
			MaxTrees:        res.MaxTrees,
			Best:            res.Best,
			Trees:           len(trees),
			MovesExamined:   res.MovesExamined,
			Elapsed:         res.Elapsed,
			CapacityReached: res.CapacityReached,
		},
	}
	for i, cand := range trees {
		name := TreeName(i, status, res.Direction, res.Criterion)
		c.Trees[i] = Tree{Name: name, Tree: cand.Tree.WithName(name), Score: cand.Score}
	}
	return c, nil
}

// ReplicateSource names the searches gathered by [Combine].
const ReplicateSource = "replicate searches"

// Combine gathers the collections of several searches into one block. Each
// tree keeps its own score and has " (i of total source)" appended to its
// name. Trees are not deduplicated across parts.
//
// The combined run is converged only if every part converged; otherwise it
// takes the status of the last cancelled part. Best is the best score of the
// parts under their shared direction; moves and elapsed time are summed.
func Combine(parts []*Collection, total int, source string) (*Collection, error) {
	if len(parts) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "no searches to combine")
	}
	first := parts[0].Stats
	c := &Collection{Stats: Stats{
		Status:     search.StatusConverged,
		Criterion:  first.Criterion,
		Direction:  first.Direction,
		Moves:      first.Moves,
		MaxTrees:   first.MaxTrees,
		Best:       score.Unassigned(),
		Replicates: total,
	}}
	for i, p := range parts {
		if p.Stats.Direction != first.Direction || p.Stats.Criterion != first.Criterion {
			return nil, errors.New(errors.ErrCodeInvalidInput, "search %d has criterion %s %s, want %s %s",
				i+1, p.Stats.Direction, p.Stats.Criterion, first.Direction, first.Criterion)
		}
		if p.Stats.Status.Cancelled() {
			c.Stats.Status = p.Stats.Status
		}
		if len(p.Trees) > 0 && first.Direction.Compare(p.Stats.Best, c.Stats.Best) == score.Better {
			c.Stats.Best = p.Stats.Best
		}
		c.Stats.MovesExamined += p.Stats.MovesExamined
		c.Stats.Elapsed += p.Stats.Elapsed
		c.Stats.CapacityReached = c.Stats.CapacityReached || p.Stats.CapacityReached

		suffix := fmt.Sprintf(" (%d of %d %s)", i+1, total, source)
		for _, t := range p.Trees {
			name := t.Name + suffix
			c.Trees = append(c.Trees, Tree{Name: name, Tree: t.Tree.WithName(name), Score: t.Score})
		}
	}
	c.Stats.Trees = len(c.Trees)
	return c, nil
}

// TreeName returns the display name of output tree i (zero-based).
func TreeName(i int, status search.Status, dir score.Direction, criterion string) string {
	source := "search"
	if status.Cancelled() {
		source = "INCOMPLETE search"
	}
	return fmt.Sprintf("Tree %d from %s (criterion: %s %s)", i+1, source, dir, criterion)
}

// Newick writes the trees as a Newick block, one tree per line, each
// preceded by its name as a bracket comment.
func (c *Collection) Newick() string {
	var b strings.Builder
	for _, t := range c.Trees {
		fmt.Fprintf(&b, "[%s] %s\n", t.Name, t.Tree.Newick())
	}
	return b.String()
}

// Result rebuilds a search result from the collection, for resuming.
func (c *Collection) Result() *search.Result {
	cands := make([]search.Candidate, len(c.Trees))
	for i, t := range c.Trees {
		cands[i] = search.Candidate{Tree: t.Tree, Score: t.Score}
	}
	return &search.Result{
		Trees:           cands,
		Best:            c.Stats.Best,
		Status:          c.Stats.Status,
		Direction:       c.Stats.Direction,
		Criterion:       c.Stats.Criterion,
		Moves:           c.Stats.Moves,
		MaxTrees:        c.Stats.MaxTrees,
		MovesExamined:   c.Stats.MovesExamined,
		Elapsed:         c.Stats.Elapsed,
		CapacityReached: c.Stats.CapacityReached,
	}
}
