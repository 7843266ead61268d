package pipeline

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matzehuels/treesearch/pkg/errors"
	"github.com/matzehuels/treesearch/pkg/observability"
	"github.com/matzehuels/treesearch/pkg/results"
	"github.com/matzehuels/treesearch/pkg/score"
	"github.com/matzehuels/treesearch/pkg/search"
	"github.com/matzehuels/treesearch/pkg/store"
)

// Two gene trees support AB|CD, one supports AC|BD.
const quartetGenes = `
[g1] ((A,B),(C,D));
[g2] ((B,A),(D,C));
[g3] ((A,C),(B,D));
`

func newTestRunner(t *testing.T) (*Runner, *store.FileStore) {
	t.Helper()
	runs, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return NewRunner(nil, nil, runs, nil), runs
}

func TestValidateAndSetDefaults(t *testing.T) {
	opts := Options{GeneTrees: quartetGenes}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("ValidateAndSetDefaults: %v", err)
	}
	if opts.Criterion != DefaultCriterion {
		t.Errorf("Criterion = %q, want %q", opts.Criterion, DefaultCriterion)
	}
	if opts.Moves != DefaultMoves {
		t.Errorf("Moves = %q, want %q", opts.Moves, DefaultMoves)
	}
	if opts.MaxTrees != DefaultMaxTrees {
		t.Errorf("MaxTrees = %d, want %d", opts.MaxTrees, DefaultMaxTrees)
	}
	if opts.OnCancel != DefaultOnCancel {
		t.Errorf("OnCancel = %q, want %q", opts.OnCancel, DefaultOnCancel)
	}
	if opts.Replicates != 1 {
		t.Errorf("Replicates = %d, want 1", opts.Replicates)
	}
	if opts.Logger == nil {
		t.Error("Logger should default to a discard logger")
	}

	// Idempotent
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Errorf("second ValidateAndSetDefaults: %v", err)
	}
}

func TestValidateAndSetDefaultsErrors(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		code errors.Code
	}{
		{"no input", Options{}, errors.ErrCodeInvalidInput},
		{"unknown criterion", Options{GeneTrees: quartetGenes, Criterion: "parsimony"}, errors.ErrCodeInvalidCriterion},
		{"unknown moves", Options{GeneTrees: quartetGenes, Moves: "tbr"}, errors.ErrCodeInvalidMoves},
		{"bad direction", Options{GeneTrees: quartetGenes, Direction: "sideways"}, errors.ErrCodeInvalidConfig},
		{"negative max trees", Options{GeneTrees: quartetGenes, MaxTrees: -1}, errors.ErrCodeInvalidConfig},
		{"negative timeout", Options{GeneTrees: quartetGenes, TimeoutSeconds: -5}, errors.ErrCodeInvalidConfig},
		{"bad on_cancel", Options{GeneTrees: quartetGenes, OnCancel: "maybe"}, errors.ErrCodeInvalidInput},
		{"negative replicates", Options{GeneTrees: quartetGenes, Replicates: -2}, errors.ErrCodeInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.ValidateAndSetDefaults()
			if !errors.Is(err, tt.code) {
				t.Errorf("ValidateAndSetDefaults() error = %v, want code %s", err, tt.code)
			}
		})
	}
}

func TestParse(t *testing.T) {
	t.Run("seed defaults to first gene tree", func(t *testing.T) {
		in, err := Parse(Options{GeneTrees: quartetGenes})
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if len(in.Genes) != 3 {
			t.Errorf("len(Genes) = %d, want 3", len(in.Genes))
		}
		if in.Taxa.Len() != 4 {
			t.Errorf("Taxa.Len() = %d, want 4", in.Taxa.Len())
		}
		if !in.Seed.Topology().Equal(in.Genes[0].Topology()) {
			t.Errorf("seed = %s, want first gene tree", in.Seed.Newick())
		}
	})

	t.Run("explicit seed", func(t *testing.T) {
		in, err := Parse(Options{GeneTrees: quartetGenes, Seed: "((A,D),(B,C));"})
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if in.Seed.Topology().Equal(in.Genes[0].Topology()) {
			t.Error("explicit seed should be used")
		}
	})

	t.Run("seed alone defines taxa", func(t *testing.T) {
		in, err := Parse(Options{Seed: "((X,Y),(Z,W));"})
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if len(in.Genes) != 0 || in.Taxa.Len() != 4 {
			t.Errorf("got %d genes over %d taxa", len(in.Genes), in.Taxa.Len())
		}
	})

	t.Run("seed with foreign taxon", func(t *testing.T) {
		_, err := Parse(Options{GeneTrees: quartetGenes, Seed: "((A,B),(C,E));"})
		if err == nil {
			t.Error("expected error for seed with unknown taxon")
		}
	})

	t.Run("malformed gene trees", func(t *testing.T) {
		_, err := Parse(Options{GeneTrees: "((A,B),(C,D);"})
		if err == nil {
			t.Error("expected error for malformed Newick")
		}
	})
}

func TestExecute(t *testing.T) {
	runner, runs := newTestRunner(t)

	result, err := runner.Execute(context.Background(), Options{GeneTrees: quartetGenes, Moves: "nni"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	c := result.Collection
	if c.Stats.Status != search.StatusConverged {
		t.Errorf("Status = %s, want converged", c.Stats.Status)
	}
	if c.Stats.Direction != score.Maximize {
		t.Errorf("Direction = %s, want maximize", c.Stats.Direction)
	}
	if c.Stats.Best != score.Of(2) {
		t.Errorf("Best = %s, want 2", c.Stats.Best)
	}
	if len(c.Trees) != 1 {
		t.Fatalf("len(Trees) = %d, want 1", len(c.Trees))
	}
	if want := "Tree 1 from search (criterion: maximize concordance)"; c.Trees[0].Name != want {
		t.Errorf("Name = %q, want %q", c.Trees[0].Name, want)
	}
	if result.Stats.GeneTrees != 3 || result.Stats.Taxa != 4 {
		t.Errorf("Stats = %+v", result.Stats)
	}

	if result.RunID == "" {
		t.Fatal("run should be archived")
	}
	rec, err := runs.Get(context.Background(), result.RunID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Status != "converged" || len(rec.Trees) != 1 || len(rec.GeneTrees) != 3 {
		t.Errorf("record = %+v", rec)
	}
}

func TestReplicateSeeds(t *testing.T) {
	in, err := Parse(Options{GeneTrees: quartetGenes})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	seeds, err := in.ReplicateSeeds(3)
	if err != nil {
		t.Fatalf("ReplicateSeeds(3): %v", err)
	}
	// The first gene tree is the seed and is not used twice.
	for i, want := range []int{0, 1, 2} {
		if !seeds[i].Topology().Equal(in.Genes[want].Topology()) {
			t.Errorf("seed %d = %s, want gene tree %d", i+1, seeds[i].Newick(), want+1)
		}
		if name := seeds[i].Name(); name != "seed "+string(rune('1'+i)) {
			t.Errorf("seed %d named %q", i+1, name)
		}
	}
	if _, err := in.ReplicateSeeds(4); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("ReplicateSeeds(4) error = %v, want INVALID_INPUT", err)
	}

	in, err = Parse(Options{GeneTrees: quartetGenes, Seed: "((A,D),(B,C));"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	seeds, err = in.ReplicateSeeds(4)
	if err != nil {
		t.Fatalf("ReplicateSeeds(4) with explicit seed: %v", err)
	}
	if !seeds[0].Topology().Equal(in.Seed.Topology()) || !seeds[3].Topology().Equal(in.Genes[2].Topology()) {
		t.Errorf("seeds = %s ... %s", seeds[0].Newick(), seeds[3].Newick())
	}
}

func TestExecuteReplicates(t *testing.T) {
	runner, runs := newTestRunner(t)

	result, err := runner.Execute(context.Background(), Options{GeneTrees: quartetGenes, Moves: "nni", Replicates: 3})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	c := result.Collection
	if c.Stats.Status != search.StatusConverged || c.Stats.Replicates != 3 {
		t.Errorf("Stats = %+v", c.Stats)
	}
	if c.Stats.Best != score.Of(2) {
		t.Errorf("Best = %s, want 2", c.Stats.Best)
	}
	// Every search climbs to AB|CD; trees are not merged across searches.
	if len(c.Trees) != 3 || c.Stats.Trees != 3 {
		t.Fatalf("len(Trees) = %d, want 3", len(c.Trees))
	}
	for i, tr := range c.Trees {
		want := "Tree 1 from search (criterion: maximize concordance) (" + string(rune('1'+i)) + " of 3 replicate searches)"
		if tr.Name != want {
			t.Errorf("Trees[%d].Name = %q, want %q", i, tr.Name, want)
		}
		if tr.Score != score.Of(2) {
			t.Errorf("Trees[%d].Score = %s, want 2", i, tr.Score)
		}
	}
	if !strings.Contains(c.Stats.String(), "over 3 replicate searches") {
		t.Errorf("String() = %q", c.Stats.String())
	}

	rec, err := runs.Get(context.Background(), result.RunID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	back, _, err := rec.Collection()
	if err != nil {
		t.Fatalf("Collection: %v", err)
	}
	if back.Stats.Replicates != 3 || len(back.Trees) != 3 || back.Trees[2].Name != c.Trees[2].Name {
		t.Errorf("reloaded = %+v", back.Stats)
	}

	if _, err := runner.Execute(context.Background(), Options{GeneTrees: quartetGenes, Replicates: 4, NoPersist: true}); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("too many replicates: err = %v", err)
	}
}

func TestExecuteReplicatesCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	runner, _ := newTestRunner(t)

	result, err := runner.Execute(ctx, Options{GeneTrees: quartetGenes, Replicates: 3, OnCancel: "keep", NoPersist: true})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	c := result.Collection
	if c.Stats.Status != search.StatusCancelledKept {
		t.Errorf("Status = %s, want cancelled_kept", c.Stats.Status)
	}
	// The remaining searches are skipped once one is cancelled.
	if len(c.Trees) != 1 {
		t.Fatalf("len(Trees) = %d, want 1", len(c.Trees))
	}
	if want := "(1 of 3 replicate searches)"; !strings.HasSuffix(c.Trees[0].Name, want) {
		t.Errorf("Name = %q, want suffix %q", c.Trees[0].Name, want)
	}
}

func TestExecuteNoPersist(t *testing.T) {
	runner, runs := newTestRunner(t)

	result, err := runner.Execute(context.Background(), Options{GeneTrees: quartetGenes, NoPersist: true})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.RunID != "" || result.Record != nil {
		t.Error("run should not be archived")
	}
	list, _ := runs.List(context.Background(), 0)
	if len(list) != 0 {
		t.Errorf("store holds %d runs, want 0", len(list))
	}
}

func TestExecuteCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name      string
		opts      Options
		status    search.Status
		wantTrees int
	}{
		{"default keeps", Options{}, search.StatusCancelledKept, 1},
		{"on_cancel discard", Options{OnCancel: "discard"}, search.StatusCancelledDiscarded, 0},
		{
			"decide overrides on_cancel",
			Options{OnCancel: "discard", Decide: func(*search.Result) results.Disposition { return results.Keep }},
			search.StatusCancelledKept, 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner, _ := newTestRunner(t)
			opts := tt.opts
			opts.GeneTrees = quartetGenes

			result, err := runner.Execute(ctx, opts)
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			c := result.Collection
			if c.Stats.Status != tt.status {
				t.Errorf("Status = %s, want %s", c.Stats.Status, tt.status)
			}
			if len(c.Trees) != tt.wantTrees {
				t.Errorf("len(Trees) = %d, want %d", len(c.Trees), tt.wantTrees)
			}
			for _, tr := range c.Trees {
				if !strings.Contains(tr.Name, "INCOMPLETE") {
					t.Errorf("Name = %q, want INCOMPLETE marker", tr.Name)
				}
			}
			if result.RunID == "" {
				t.Error("cancelled runs are archived too")
			}
		})
	}
}

func TestResume(t *testing.T) {
	runner, runs := newTestRunner(t)
	ctx := context.Background()

	first, err := runner.Execute(ctx, Options{GeneTrees: quartetGenes, Seed: "((A,D),(B,C));", MaxTrees: 5})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	second, err := runner.Resume(ctx, first.RunID, Options{})
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if second.RunID == first.RunID {
		t.Error("resumed run should get a new ID")
	}
	if second.Collection.Stats.Status != search.StatusConverged {
		t.Errorf("Status = %s, want converged", second.Collection.Stats.Status)
	}
	if second.Collection.Stats.Best != first.Collection.Stats.Best {
		t.Errorf("Best = %s, want %s", second.Collection.Stats.Best, first.Collection.Stats.Best)
	}
	if second.Collection.Stats.MaxTrees != 5 || second.Collection.Stats.Criterion != "concordance" {
		t.Errorf("resumed run should keep its configuration, got %+v", second.Collection.Stats)
	}
	if len(second.Collection.Trees) != len(first.Collection.Trees) {
		t.Fatalf("len(Trees) = %d, want %d", len(second.Collection.Trees), len(first.Collection.Trees))
	}
	for i := range first.Collection.Trees {
		a := first.Collection.Trees[i].Tree.Topology()
		b := second.Collection.Trees[i].Tree.Topology()
		if !a.Equal(b) {
			t.Errorf("tree %d changed on resume", i+1)
		}
	}

	list, _ := runs.List(ctx, 0)
	if len(list) != 2 {
		t.Errorf("store holds %d runs, want 2", len(list))
	}
}

func TestResumeErrors(t *testing.T) {
	ctx := context.Background()

	noStore := NewRunner(nil, nil, nil, nil)
	if _, err := noStore.Resume(ctx, store.NewID(), Options{}); !errors.Is(err, errors.ErrCodeUnsupported) {
		t.Errorf("Resume without store error = %v, want UNSUPPORTED", err)
	}

	runner, _ := newTestRunner(t)
	if _, err := runner.Resume(ctx, store.NewID(), Options{}); !errors.IsNotFound(err) {
		t.Errorf("Resume unknown run error = %v, want not found", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	discarded, err := runner.Execute(cancelled, Options{GeneTrees: quartetGenes, OnCancel: "discard"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if _, err := runner.Resume(ctx, discarded.RunID, Options{}); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("Resume discarded run error = %v, want INVALID_INPUT", err)
	}
}

func TestScore(t *testing.T) {
	runner := NewRunner(nil, nil, nil, nil)

	scored, dir, err := runner.Score(context.Background(), Options{GeneTrees: quartetGenes},
		"[ab] ((A,B),(C,D));\n[ac] ((A,C),(B,D));\n[ad] ((A,D),(B,C));")
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if dir != score.Maximize {
		t.Errorf("direction = %s, want maximize", dir)
	}
	want := map[string]score.Score{"ab": score.Of(2), "ac": score.Of(1), "ad": score.Of(0)}
	if len(scored) != len(want) {
		t.Fatalf("len(scored) = %d, want %d", len(scored), len(want))
	}
	for _, s := range scored {
		if s.Score != want[s.Name] {
			t.Errorf("score(%s) = %s, want %s", s.Name, s.Score, want[s.Name])
		}
	}
}

type recordingPipelineHooks struct {
	observability.NoopPipelineHooks
	mu       sync.Mutex
	parses   int
	backends []string
}

func (h *recordingPipelineHooks) OnParseComplete(ctx context.Context, taxa, geneTrees int, d time.Duration, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.parses++
}

func (h *recordingPipelineHooks) OnPersist(ctx context.Context, runID, backend string, d time.Duration, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.backends = append(h.backends, backend)
}

func TestPipelineHooks(t *testing.T) {
	hooks := &recordingPipelineHooks{}
	observability.SetPipelineHooks(hooks)
	defer observability.Reset()

	runner, _ := newTestRunner(t)
	if _, err := runner.Execute(context.Background(), Options{GeneTrees: quartetGenes}); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if hooks.parses != 1 {
		t.Errorf("parse events = %d, want 1", hooks.parses)
	}
	if len(hooks.backends) != 1 || hooks.backends[0] != "file" {
		t.Errorf("persist backends = %v, want [file]", hooks.backends)
	}
}
