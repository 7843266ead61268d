// Package criteria provides tree scoring criteria for the search engine.
//
// Each criterion scores a candidate species tree against a fixed set of
// reference gene trees over the same taxa:
//   - [Concordance]: number of gene trees with exactly the candidate's
//     topology (higher is better)
//   - [SplitDistance]: summed Robinson-Foulds distance to the gene trees
//     (lower is better)
//
// [Cached] wraps any criterion with a score cache keyed by topology.
package criteria

import (
	"context"
	"sort"
	"strings"

	"github.com/matzehuels/treesearch/pkg/errors"
	"github.com/matzehuels/treesearch/pkg/score"
	"github.com/matzehuels/treesearch/pkg/tree"
)

// Criterion scores trees and knows its preferred direction.
type Criterion interface {
	Name() string
	Score(ctx context.Context, t *tree.Tree) (score.Score, error)
	PreferredDirection() score.Direction
}

type constructor func(genes []*tree.Tree) (Criterion, error)

var registry = map[string]constructor{
	"concordance": func(g []*tree.Tree) (Criterion, error) { return NewConcordance(g) },
	"split-distance": func(g []*tree.Tree) (Criterion, error) {
		return NewSplitDistance(g)
	},
}

// ByName builds the criterion registered under name from genes.
func ByName(name string, genes []*tree.Tree) (Criterion, error) {
	ctor, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidCriterion, "unknown criterion %q (must be one of: %s)", name, strings.Join(Names(), ", "))
	}
	return ctor(genes)
}

// Names returns the registered criterion names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// reference holds gene tree topologies over one taxa set.
type reference struct {
	taxa   *tree.Taxa
	rooted bool
	topos  []*tree.Topology
}

func newReference(genes []*tree.Tree) (reference, error) {
	var ref reference
	for i, g := range genes {
		if g == nil {
			return ref, errors.New(errors.ErrCodeInvalidTree, "gene tree %d is nil", i+1)
		}
		if ref.taxa == nil {
			ref.taxa, ref.rooted = g.Taxa(), g.Rooted()
		} else if !g.Taxa().Equal(ref.taxa) {
			return ref, errors.New(errors.ErrCodeInvalidTree, "gene tree %d has a different taxa set", i+1)
		}
		ref.topos = append(ref.topos, g.Topology())
	}
	return ref, nil
}

// check reports an error when t cannot be compared with the gene trees.
func (r reference) check(t *tree.Tree) error {
	if r.taxa != nil && !t.Taxa().Equal(r.taxa) {
		return errors.New(errors.ErrCodeInvalidTree, "tree taxa differ from the gene trees")
	}
	if r.taxa != nil && t.Rooted() != r.rooted {
		return errors.New(errors.ErrCodeInvalidTree, "tree rootedness differs from the gene trees")
	}
	return nil
}

// Concordance counts the gene trees that fit into the candidate without
// deep coalescence: every clade of the gene tree is a clade of the candidate.
// An unresolved gene tree is concordant with every resolution of its
// polytomies; a fully resolved one only with an identical topology. With no
// gene trees every score is unassigned.
type Concordance struct {
	ref reference
}

// NewConcordance builds the criterion. All gene trees must share one taxa set.
func NewConcordance(genes []*tree.Tree) (*Concordance, error) {
	ref, err := newReference(genes)
	if err != nil {
		return nil, err
	}
	return &Concordance{ref: ref}, nil
}

// Name returns "concordance".
func (*Concordance) Name() string { return "concordance" }

// PreferredDirection returns [score.Maximize].
func (*Concordance) PreferredDirection() score.Direction { return score.Maximize }

// Score returns the number of concordant gene trees.
func (c *Concordance) Score(_ context.Context, t *tree.Tree) (score.Score, error) {
	if len(c.ref.topos) == 0 {
		return score.Unassigned(), nil
	}
	if err := c.ref.check(t); err != nil {
		return score.Unassigned(), err
	}
	topo := t.Topology()
	n := 0
	for _, g := range c.ref.topos {
		if topo.Refines(g) {
			n++
		}
	}
	return score.Of(float64(n)), nil
}

// SplitDistance sums the Robinson-Foulds distances between the candidate
// and every gene tree. With no gene trees every score is unassigned.
type SplitDistance struct {
	ref reference
}

// NewSplitDistance builds the criterion. All gene trees must share one taxa set.
func NewSplitDistance(genes []*tree.Tree) (*SplitDistance, error) {
	ref, err := newReference(genes)
	if err != nil {
		return nil, err
	}
	return &SplitDistance{ref: ref}, nil
}

// Name returns "split-distance".
func (*SplitDistance) Name() string { return "split-distance" }

// PreferredDirection returns [score.Minimize].
func (*SplitDistance) PreferredDirection() score.Direction { return score.Minimize }

// Score returns the summed distance.
func (d *SplitDistance) Score(_ context.Context, t *tree.Tree) (score.Score, error) {
	if len(d.ref.topos) == 0 {
		return score.Unassigned(), nil
	}
	if err := d.ref.check(t); err != nil {
		return score.Unassigned(), err
	}
	topo := t.Topology()
	sum := 0
	for _, g := range d.ref.topos {
		sum += topo.Distance(g)
	}
	return score.Of(float64(sum)), nil
}
