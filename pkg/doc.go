// Package pkg provides the libraries behind treesearch, a heuristic search
// for optimal phylogenetic trees.
//
// # Overview
//
// A search starts from a seed tree, applies rearrangements to every retained
// tree in turn, and keeps every tree with the best score found so far until no
// rearrangement improves it. The pkg directory is organized into:
//
//  1. [tree] - Rooted and unrooted trees, Newick I/O, topology signatures
//  2. [score] - Scores with an unassigned state, and the optimisation direction
//  3. [search] - The search engine and its retained-tree state
//  4. [moves], [criteria] - NNI/SPR rearrangements and optimality criteria
//  5. [results] - Naming and summarising the trees of a finished search
//  6. [pipeline] - Orchestration (parse → search → collect → persist)
//  7. [cache], [store] - Score cache and run archive backends
//  8. [render] - DOT, SVG, PDF and PNG drawings of trees
//  9. [api] - The HTTP service
//
// # Architecture
//
// The typical data flow:
//
//	Gene trees (Newick) + seed tree
//	         ↓
//	    [tree] package (parse, shared taxa)
//	         ↓
//	    [search] package (+ [moves], [criteria], [cache])
//	         ↓
//	    [results] package (names, keep/discard, stats)
//	         ↓
//	    [store] package (run archive) → [render] package
//
// # Quick Start
//
//	import (
//	    "github.com/matzehuels/treesearch/pkg/cache"
//	    "github.com/matzehuels/treesearch/pkg/pipeline"
//	)
//
//	runner := pipeline.NewRunner(cache.NewNullCache(), nil, nil, logger)
//	result, err := runner.Execute(ctx, pipeline.Options{
//	    GeneTrees: "((A,B),(C,D));\n((A,C),(B,D));",
//	    Moves:     "nni",
//	})
//	fmt.Print(result.Collection.Newick())
//
// # Errors
//
// Errors carry a code from [errors]; use errors.Is(err, code) and
// errors.UserMessage for display.
//
// [tree]: github.com/matzehuels/treesearch/pkg/tree
// [score]: github.com/matzehuels/treesearch/pkg/score
// [search]: github.com/matzehuels/treesearch/pkg/search
// [moves]: github.com/matzehuels/treesearch/pkg/moves
// [criteria]: github.com/matzehuels/treesearch/pkg/criteria
// [results]: github.com/matzehuels/treesearch/pkg/results
// [pipeline]: github.com/matzehuels/treesearch/pkg/pipeline
// [cache]: github.com/matzehuels/treesearch/pkg/cache
// [store]: github.com/matzehuels/treesearch/pkg/store
// [render]: github.com/matzehuels/treesearch/pkg/render
// [api]: github.com/matzehuels/treesearch/pkg/api
// [errors]: github.com/matzehuels/treesearch/pkg/errors
package pkg
