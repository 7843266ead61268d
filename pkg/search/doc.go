// Package search implements a heuristic tree-topology search.
//
// An [Engine] starts from one seed tree, asks a [MoveGenerator] for the
// neighbours of every tree it currently retains, scores each neighbour with a
// [Scorer] and keeps the trees tied for the best score seen so far. The walk
// is a first-improvement local search: the moment a strictly better neighbour
// turns up, every retained tree is discarded in its favour and scanning starts
// over from the beginning. The run ends when a full pass over the retained
// trees produces no improvement.
//
// # Retained trees
//
// The retained set is bounded by [Options.MaxTrees]. Ties are admitted in
// discovery order until the bound is hit; later ties are dropped and the run
// reports [Result.CapacityReached]. Trees are compared by topology, not by
// node layout, so two moves that arrive at the same branching structure never
// produce two entries.
//
// # Cancellation
//
// The context passed to [Engine.Run] is checked before every candidate.
// Cancellation is not an error: the run stops with [StatusCancelled] and the
// trees retained so far. Whether to keep them is up to the caller (see the
// results package).
//
// # Example
//
//	eng, err := search.New(criteria.NewConcordance(genes), moves.SPR{}, search.Options{
//	    MaxTrees: 100,
//	})
//	if err != nil {
//	    return err
//	}
//	res, err := eng.Run(ctx, seed)
package search
