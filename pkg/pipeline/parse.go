package pipeline

import (
	"fmt"
	"strings"

	"github.com/matzehuels/treesearch/pkg/errors"
	"github.com/matzehuels/treesearch/pkg/tree"
)

// Input is the parsed input of a run.
type Input struct {
	Taxa  *tree.Taxa
	Genes []*tree.Tree
	Seed  *tree.Tree

	// seedIsGene is set when Seed was taken from the first gene tree.
	seedIsGene bool
}

// Parse reads the gene trees and the seed tree of opts.
//
// The gene trees define the taxa set. Without gene trees the seed defines it
// and the criterion scores every tree as unassigned. Without a seed, the
// first gene tree is used.
func Parse(opts Options) (*Input, error) {
	in := &Input{}

	if strings.TrimSpace(opts.GeneTrees) != "" {
		genes, taxa, err := tree.ParseNewickBlock(opts.GeneTrees, nil, opts.Rooted)
		if err != nil {
			return nil, errors.Wrap(errors.GetCode(err), err, "gene trees")
		}
		in.Genes, in.Taxa = genes, taxa
	}

	if strings.TrimSpace(opts.Seed) != "" {
		seed, err := tree.ParseNewick(opts.Seed, in.Taxa, opts.Rooted)
		if err != nil {
			return nil, errors.Wrap(errors.GetCode(err), err, "seed tree")
		}
		in.Seed = seed.WithName("seed")
		in.Taxa = seed.Taxa()
	} else if len(in.Genes) > 0 {
		in.Seed = in.Genes[0].WithName("seed")
		in.seedIsGene = true
	}

	if in.Seed == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "no seed tree")
	}
	return in, nil
}

// ReplicateSeeds returns the seed trees of n replicate searches: the seed,
// then the gene trees in order, skipping the one the seed was taken from.
// Seed i is named "seed i".
func (in *Input) ReplicateSeeds(n int) ([]*tree.Tree, error) {
	n = max(n, 1)
	pool := []*tree.Tree{in.Seed}
	if in.seedIsGene {
		pool = append(pool, in.Genes[1:]...)
	} else {
		pool = append(pool, in.Genes...)
	}
	if n > len(pool) {
		return nil, errors.New(errors.ErrCodeInvalidInput, "%d replicates need as many seed trees, have %d (the seed and the gene trees)", n, len(pool))
	}
	seeds := make([]*tree.Tree, n)
	for i := range seeds {
		seeds[i] = pool[i].WithName(fmt.Sprintf("seed %d", i+1))
	}
	return seeds, nil
}
