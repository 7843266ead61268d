// Package store archives finished search runs.
//
// A [RunRecord] holds everything needed to show a run again or to resume it:
// its configuration, the gene trees it was scored against, the retained
// trees and the run statistics. Two backends implement [Store]:
//   - [FileStore]: one JSON file per run, for the CLI
//   - [MongoStore]: a MongoDB collection, for the API server
//
// Lookups of unknown runs fail with code RUN_NOT_FOUND; backend failures
// carry code STORE_FAILED.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/treesearch/pkg/errors"
	"github.com/matzehuels/treesearch/pkg/results"
	"github.com/matzehuels/treesearch/pkg/score"
	"github.com/matzehuels/treesearch/pkg/search"
	"github.com/matzehuels/treesearch/pkg/tree"
)

// DefaultListLimit caps List when the caller passes no limit.
const DefaultListLimit = 50

// Store is the interface for run archive backends.
type Store interface {
	// Save inserts or replaces a run.
	Save(ctx context.Context, r *RunRecord) error

	// Get retrieves a run by ID.
	Get(ctx context.Context, id string) (*RunRecord, error)

	// List returns up to limit runs, newest first.
	List(ctx context.Context, limit int) ([]*RunRecord, error)

	// Delete removes a run.
	Delete(ctx context.Context, id string) error

	// Close releases the backend's resources.
	Close() error
}

// RecordTree is one retained tree of a run.
type RecordTree struct {
	Name   string   `json:"name" bson:"name"`
	Newick string   `json:"newick" bson:"newick"`
	Score  *float64 `json:"score,omitempty" bson:"score,omitempty"`
}

// RunRecord is an archived run.
type RunRecord struct {
	ID              string       `json:"id" bson:"_id"`
	CreatedAt       time.Time    `json:"created_at" bson:"created_at"`
	Criterion       string       `json:"criterion" bson:"criterion"`
	Direction       string       `json:"direction" bson:"direction"`
	Moves           string       `json:"moves" bson:"moves"`
	MaxTrees        int          `json:"max_trees" bson:"max_trees"`
	Rooted          bool         `json:"rooted" bson:"rooted"`
	Status          string       `json:"status" bson:"status"`
	Best            *float64     `json:"best" bson:"best"`
	Taxa            []string     `json:"taxa" bson:"taxa"`
	GeneTrees       []string     `json:"gene_trees,omitempty" bson:"gene_trees,omitempty"`
	Trees           []RecordTree `json:"trees" bson:"trees"`
	MovesExamined   int64        `json:"moves_examined" bson:"moves_examined"`
	ElapsedMS       int64        `json:"elapsed_ms" bson:"elapsed_ms"`
	CapacityReached bool         `json:"capacity_reached" bson:"capacity_reached"`
	Replicates      int          `json:"replicates,omitempty" bson:"replicates,omitempty"`
}

// NewID returns a fresh run ID.
func NewID() string {
	return uuid.NewString()
}

// NewRecord builds a record from a collected run. Gene trees are kept so
// the run can be resumed with the same criterion.
func NewRecord(c *results.Collection, taxa *tree.Taxa, rooted bool, genes []*tree.Tree) *RunRecord {
	r := &RunRecord{
		ID:              NewID(),
		CreatedAt:       time.Now().UTC(),
		Criterion:       c.Stats.Criterion,
		Direction:       c.Stats.Direction.String(),
		Moves:           c.Stats.Moves,
		MaxTrees:        c.Stats.MaxTrees,
		Rooted:          rooted,
		Status:          c.Stats.Status.String(),
		Best:            c.Stats.Best.Ptr(),
		Taxa:            taxa.Labels(),
		Trees:           make([]RecordTree, len(c.Trees)),
		MovesExamined:   c.Stats.MovesExamined,
		ElapsedMS:       c.Stats.Elapsed.Milliseconds(),
		CapacityReached: c.Stats.CapacityReached,
		Replicates:      c.Stats.Replicates,
	}
	for i, t := range c.Trees {
		r.Trees[i] = RecordTree{Name: t.Name, Newick: t.Tree.Newick(), Score: t.Score.Ptr()}
	}
	for _, g := range genes {
		r.GeneTrees = append(r.GeneTrees, g.Newick())
	}
	return r
}

// Collection rebuilds the collected run, parsing the stored trees over the
// stored taxa.
func (r *RunRecord) Collection() (*results.Collection, *tree.Taxa, error) {
	taxa, err := tree.NewTaxa(r.Taxa)
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeInvalidTree, err, "run %s", r.ID)
	}
	var status search.Status
	if err := status.UnmarshalText([]byte(r.Status)); err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "run %s", r.ID)
	}
	dir, err := score.ParseDirection(r.Direction)
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "run %s", r.ID)
	}

	best := score.FromPtr(r.Best)
	c := &results.Collection{
		Trees: make([]results.Tree, len(r.Trees)),
		Stats: results.Stats{
			Status:          status,
			Criterion:       r.Criterion,
			Direction:       dir,
			Moves:           r.Moves,
			MaxTrees:        r.MaxTrees,
			Best:            best,
			Trees:           len(r.Trees),
			MovesExamined:   r.MovesExamined,
			Elapsed:         time.Duration(r.ElapsedMS) * time.Millisecond,
			CapacityReached: r.CapacityReached,
			Replicates:      r.Replicates,
		},
	}
	for i, rt := range r.Trees {
		t, err := tree.ParseNewick(rt.Newick, taxa, r.Rooted)
		if err != nil {
			return nil, nil, errors.Wrap(errors.GetCode(err), err, "run %s: tree %d", r.ID, i+1)
		}
		s := best
		if rt.Score != nil {
			s = score.FromPtr(rt.Score)
		}
		c.Trees[i] = results.Tree{Name: rt.Name, Tree: t.WithName(rt.Name), Score: s}
	}
	return c, taxa, nil
}

// Genes parses the stored gene trees over taxa.
func (r *RunRecord) Genes(taxa *tree.Taxa) ([]*tree.Tree, error) {
	out := make([]*tree.Tree, len(r.GeneTrees))
	for i, s := range r.GeneTrees {
		t, err := tree.ParseNewick(s, taxa, r.Rooted)
		if err != nil {
			return nil, errors.Wrap(errors.GetCode(err), err, "run %s: gene tree %d", r.ID, i+1)
		}
		out[i] = t
	}
	return out, nil
}

func notFound(id string) error {
	return errors.New(errors.ErrCodeRunNotFound, "run %s not found", id)
}

func listLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
