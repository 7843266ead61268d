package moves

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/treesearch/pkg/errors"
	"github.com/matzehuels/treesearch/pkg/tree"
)

var abcd = tree.MustTaxa("A", "B", "C", "D")

// neighbours applies every move of g to t and returns the distinct
// resulting topologies other than t's own, in move order.
func neighbours(t *testing.T, g Generator, in *tree.Tree) []*tree.Tree {
	t.Helper()
	k, err := g.MoveCount(in)
	require.NoError(t, err)

	var out []*tree.Tree
	seen := map[string]bool{in.Topology().Key(): true}
	for i := range k {
		next, err := g.Apply(in, i)
		require.NoError(t, err)
		require.True(t, next.Taxa().Equal(in.Taxa()))
		if key := next.Topology().Key(); !seen[key] {
			seen[key] = true
			out = append(out, next)
		}
	}
	return out
}

func keys(trees []*tree.Tree) []string {
	out := make([]string, len(trees))
	for i, t := range trees {
		out[i] = t.Topology().Key()
	}
	return out
}

func TestNNIQuartet(t *testing.T) {
	in := tree.MustParseNewick("((A,B),(C,D));", abcd, false)
	before, newick, size := in.Topology().Key(), in.Newick(), in.Len()
	k, err := NNI{}.MoveCount(in)
	require.NoError(t, err)
	assert.Equal(t, 4, k)

	got := keys(neighbours(t, NNI{}, in))
	want := []string{
		tree.MustParseNewick("((A,C),(B,D));", abcd, false).Topology().Key(),
		tree.MustParseNewick("((A,D),(B,C));", abcd, false).Topology().Key(),
	}
	assert.ElementsMatch(t, want, got)
	assert.Equal(t, before, in.Topology().Key(), "input must not change")
	assert.Equal(t, newick, in.Newick())
	assert.Equal(t, size, in.Len())
}

func TestNNIRootedQuartet(t *testing.T) {
	in := tree.MustParseNewick("((A,B),(C,D));", abcd, true)
	k, err := NNI{}.MoveCount(in)
	require.NoError(t, err)
	assert.Equal(t, 4, k)
	assert.Len(t, neighbours(t, NNI{}, in), 4)
}

func TestSPRQuartet(t *testing.T) {
	in := tree.MustParseNewick("((A,B),(C,D));", abcd, false)
	got := keys(neighbours(t, SPR{}, in))
	want := []string{
		tree.MustParseNewick("((A,C),(B,D));", abcd, false).Topology().Key(),
		tree.MustParseNewick("((A,D),(B,C));", abcd, false).Topology().Key(),
	}
	assert.ElementsMatch(t, want, got)
}

func TestSPRContainsNNINeighbourhood(t *testing.T) {
	taxa := tree.MustTaxa("A", "B", "C", "D", "E", "F")
	for _, rooted := range []bool{false, true} {
		in := tree.MustParseNewick("(A,(B,(C,(D,(E,F)))));", taxa, rooted)
		nni := keys(neighbours(t, NNI{}, in))
		spr := keys(neighbours(t, SPR{}, in))
		assert.Subset(t, spr, nni, "rooted=%v", rooted)
		assert.Greater(t, len(spr), len(nni), "rooted=%v", rooted)
	}
}

func TestSPRKeepsTreesBinary(t *testing.T) {
	taxa := tree.MustTaxa("A", "B", "C", "D", "E", "F")
	in := tree.MustParseNewick("((A,B),(C,D),(E,F));", taxa, false)
	k, err := SPR{}.MoveCount(in)
	require.NoError(t, err)
	require.Greater(t, k, 0)
	for i := range k {
		next, err := SPR{}.Apply(in, i)
		require.NoError(t, err)
		assert.Equal(t, 3, next.Topology().Len(), "move %d: %s", i, next.Newick())
	}
}

func TestMovesAreDeterministic(t *testing.T) {
	taxa := tree.MustTaxa("A", "B", "C", "D", "E")
	in := tree.MustParseNewick("((A,B),C,(D,E));", taxa, false)
	for _, g := range []Generator{NNI{}, SPR{}} {
		k, err := g.MoveCount(in)
		require.NoError(t, err)
		for i := range k {
			a, err := g.Apply(in, i)
			require.NoError(t, err)
			b, err := g.Apply(in, i)
			require.NoError(t, err)
			assert.Equal(t, a.Newick(), b.Newick())
		}
	}
}

func TestMoveOutOfRange(t *testing.T) {
	in := tree.MustParseNewick("((A,B),(C,D));", abcd, false)
	for _, g := range []Generator{NNI{}, SPR{}} {
		k, err := g.MoveCount(in)
		require.NoError(t, err)
		_, err = g.Apply(in, k)
		assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput), g.Name())
		_, err = g.Apply(in, -1)
		assert.Error(t, err)
	}
}

func TestByName(t *testing.T) {
	g, err := ByName(" SPR ")
	require.NoError(t, err)
	assert.Equal(t, "spr", g.Name())

	_, err = ByName("tbr")
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidMoves))
	assert.Equal(t, []string{"nni", "spr"}, Names())
}
