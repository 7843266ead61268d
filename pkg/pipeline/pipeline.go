// Package pipeline provides the tree search pipeline for treesearch.
//
// This package implements the complete parse → search → collect → persist
// pipeline used by both the CLI and the API server. By centralizing this
// logic, both entry points build criteria, move strategies and caches the
// same way.
//
// # Architecture
//
// The pipeline consists of four stages:
//
//  1. Parse: read the gene trees and the seed tree from Newick
//  2. Search: run the engine with the requested criterion and moves
//  3. Collect: name the retained trees, resolving a cancelled run with a
//     keep/discard decision
//  4. Persist: archive the run in a [store.Store], if one is configured
//
// # Usage
//
// Create a Runner and execute the pipeline:
//
//	runner := pipeline.NewRunner(cache, nil, runs, logger)
//	opts := pipeline.Options{
//	    GeneTrees: "((A,B),(C,D));\n((A,C),(B,D));",
//	    Criterion: "concordance",
//	    Moves:     "spr",
//	}
//	result, err := runner.Execute(ctx, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Print(result.Collection.Newick())
//
// With Replicates > 1 the search is repeated from successive seed trees
// (the seed, then the gene trees in order) and the trees of all searches are
// gathered into one block.
//
// A stored run can be continued from its retained trees:
//
//	result, err := runner.Resume(ctx, runID, pipeline.Options{})
package pipeline

import (
	"context"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/treesearch/pkg/criteria"
	"github.com/matzehuels/treesearch/pkg/errors"
	"github.com/matzehuels/treesearch/pkg/moves"
	"github.com/matzehuels/treesearch/pkg/results"
	"github.com/matzehuels/treesearch/pkg/score"
	"github.com/matzehuels/treesearch/pkg/search"
	"github.com/matzehuels/treesearch/pkg/store"
	"github.com/matzehuels/treesearch/pkg/tree"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and API
// =============================================================================

const (
	// DefaultCriterion is the optimality criterion used when none is given.
	DefaultCriterion = "concordance"

	// DefaultMoves is the rearrangement strategy used when none is given.
	DefaultMoves = "spr"

	// DefaultMaxTrees is the retained-set bound used when none is given.
	DefaultMaxTrees = search.DefaultMaxTrees

	// DefaultOnCancel is applied to cancelled runs when no Decide callback is set.
	DefaultOnCancel = "keep"
)

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for a search run.
// This struct supports JSON serialization for API requests.
type Options struct {
	// Input options
	GeneTrees string `json:"gene_trees,omitempty"` // Newick block, one tree per ';'
	Seed      string `json:"seed,omitempty"`       // Newick seed; defaults to the first gene tree
	Rooted    bool   `json:"rooted,omitempty"`

	// Search options
	Criterion      string `json:"criterion,omitempty"`
	Direction      string `json:"direction,omitempty"` // minimize|maximize; empty uses the criterion's preference
	Moves          string `json:"moves,omitempty"`
	MaxTrees       int    `json:"max_trees,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
	OnCancel       string `json:"on_cancel,omitempty"`  // keep|discard
	Replicates     int    `json:"replicates,omitempty"` // independent searches from successive seeds

	// Runtime options (not serialized)
	Logger        *log.Logger                              `json:"-"`
	Progress      func(search.Progress)                    `json:"-"`
	ProgressEvery int64                                    `json:"-"`
	Decide        func(*search.Result) results.Disposition `json:"-"`
	NoPersist     bool                                     `json:"-"` // skip archiving even when the runner has a store

	direction   score.Direction
	disposition results.Disposition

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool `json:"-"`
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// RunID is the archive ID, empty when the run was not persisted.
	RunID string

	// Collection holds the named output trees and run statistics.
	Collection *results.Collection

	// Taxa is the taxa set shared by all trees of the run.
	Taxa *tree.Taxa

	// Record is the archived run, nil when the run was not persisted.
	Record *store.RunRecord

	// Stats contains timing information.
	Stats Stats
}

// Stats contains pipeline execution statistics.
type Stats struct {
	Taxa        int
	GeneTrees   int
	ParseTime   time.Duration
	SearchTime  time.Duration
	PersistTime time.Duration
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults checks required fields and applies defaults.
// This method is idempotent - calling it multiple times has the same effect as calling it once.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if strings.TrimSpace(o.GeneTrees) == "" && strings.TrimSpace(o.Seed) == "" {
		return errors.New(errors.ErrCodeInvalidInput, "gene trees or a seed tree are required")
	}
	if o.Replicates == 0 {
		o.Replicates = 1
	}
	if o.Replicates < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "replicates must be positive, got %d", o.Replicates)
	}
	if err := o.validateSearch(); err != nil {
		return err
	}
	o.validated = true
	return nil
}

// validateSearch checks the options shared by fresh and resumed runs.
func (o *Options) validateSearch() error {
	if o.Criterion == "" {
		o.Criterion = DefaultCriterion
	}
	o.Criterion = strings.ToLower(strings.TrimSpace(o.Criterion))
	if !slices.Contains(criteria.Names(), o.Criterion) {
		return errors.New(errors.ErrCodeInvalidCriterion, "unknown criterion %q (must be one of: %s)", o.Criterion, strings.Join(criteria.Names(), ", "))
	}

	if o.Moves == "" {
		o.Moves = DefaultMoves
	}
	o.Moves = strings.ToLower(strings.TrimSpace(o.Moves))
	if _, err := moves.ByName(o.Moves); err != nil {
		return err
	}

	if o.Direction != "" {
		d, err := score.ParseDirection(o.Direction)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "direction")
		}
		o.direction = d
	}

	if o.MaxTrees == 0 {
		o.MaxTrees = DefaultMaxTrees
	}
	if err := errors.ValidateMaxTrees(o.MaxTrees); err != nil {
		return err
	}
	if o.TimeoutSeconds < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "timeout must not be negative, got %ds", o.TimeoutSeconds)
	}

	if o.OnCancel == "" {
		o.OnCancel = DefaultOnCancel
	}
	d, err := results.ParseDisposition(o.OnCancel)
	if err != nil {
		return err
	}
	o.disposition = d

	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return nil
}

// Timeout returns the run time limit, zero for none.
func (o *Options) Timeout() time.Duration {
	return time.Duration(o.TimeoutSeconds) * time.Second
}

// withTimeout bounds ctx by the timeout of o, if any.
func (o *Options) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if timeout := o.Timeout(); timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

// searchOptions converts to engine options.
func (o *Options) searchOptions() search.Options {
	return search.Options{
		MaxTrees:      o.MaxTrees,
		Direction:     o.direction,
		Logger:        o.Logger,
		Progress:      o.Progress,
		ProgressEvery: o.ProgressEvery,
	}
}

// decide resolves a cancelled run, asking Decide when set.
func (o *Options) decide(res *search.Result) results.Disposition {
	if res.Status != search.StatusCancelled {
		return results.Undecided
	}
	if o.Decide != nil {
		if d := o.Decide(res); d != results.Undecided {
			return d
		}
	}
	return o.disposition
}
