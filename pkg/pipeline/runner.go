package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/treesearch/pkg/cache"
	"github.com/matzehuels/treesearch/pkg/criteria"
	"github.com/matzehuels/treesearch/pkg/errors"
	"github.com/matzehuels/treesearch/pkg/moves"
	"github.com/matzehuels/treesearch/pkg/observability"
	"github.com/matzehuels/treesearch/pkg/results"
	"github.com/matzehuels/treesearch/pkg/score"
	"github.com/matzehuels/treesearch/pkg/search"
	"github.com/matzehuels/treesearch/pkg/store"
	"github.com/matzehuels/treesearch/pkg/tree"
)

// Runner encapsulates pipeline execution with score caching and run
// archiving. Both CLI and API use it to avoid duplicating that wiring.
//
// The Runner is stateless except for its backends and logger - it doesn't
// keep run results. Multiple goroutines can safely use the same Runner with
// different options.
type Runner struct {
	Cache    cache.Cache
	Keyer    cache.Keyer
	Store    store.Store // nil disables archiving
	Logger   *log.Logger
	CacheTTL time.Duration
}

// NewRunner creates a runner with the given cache, keyer and store.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
// If runs is nil, runs are not archived and cannot be resumed by ID.
func NewRunner(c cache.Cache, keyer cache.Keyer, runs store.Store, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Store:  runs,
		Logger: logger,
	}
}

// Execute runs the complete parse → search → collect → persist pipeline.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}

	result := &Result{}

	// Stage 1: Parse
	parseStart := time.Now()
	in, err := r.Parse(ctx, opts)
	if err != nil {
		return nil, err
	}
	result.Taxa = in.Taxa
	result.Stats.ParseTime = time.Since(parseStart)
	result.Stats.Taxa = in.Taxa.Len()
	result.Stats.GeneTrees = len(in.Genes)

	opts.Logger.Debugf("Parsed %d gene tree(s) over %d taxa", len(in.Genes), in.Taxa.Len())

	seeds, err := in.ReplicateSeeds(opts.Replicates)
	if err != nil {
		return nil, err
	}
	eng, err := r.Engine(in, opts)
	if err != nil {
		return nil, err
	}

	// Stages 2 and 3: Search and collect
	searchStart := time.Now()
	var c *results.Collection
	if len(seeds) == 1 {
		var res *search.Result
		res, err = r.search(ctx, opts, func(ctx context.Context) (*search.Result, error) {
			return eng.Run(ctx, in.Seed)
		})
		if err == nil {
			c, err = r.collect(res, opts)
		}
	} else {
		c, err = r.replicates(ctx, eng, seeds, opts)
	}
	if err != nil {
		return nil, err
	}
	result.Stats.SearchTime = time.Since(searchStart)
	result.Collection = c

	// Stage 4: Persist
	if err := r.persist(ctx, result, in, opts); err != nil {
		return nil, err
	}
	return result, nil
}

// replicates runs one search from each seed, sharing the engine and the
// timeout of opts, and combines their trees. Once a search is cancelled the
// remaining seeds are skipped.
func (r *Runner) replicates(ctx context.Context, eng *search.Engine, seeds []*tree.Tree, opts Options) (*results.Collection, error) {
	ctx, cancel := opts.withTimeout(ctx)
	defer cancel()

	parts := make([]*results.Collection, 0, len(seeds))
	for i, seed := range seeds {
		res, err := eng.Run(ctx, seed)
		if err != nil {
			return nil, errors.Wrap(errors.GetCode(err), err, "replicate %d of %d", i+1, len(seeds))
		}
		c, err := r.collect(res, opts)
		if err != nil {
			return nil, err
		}
		opts.Logger.Debugf("Replicate %d of %d: %d tree(s), best %s", i+1, len(seeds), len(c.Trees), c.Stats.Best)
		parts = append(parts, c)
		if res.Status == search.StatusCancelled {
			if i+1 < len(seeds) {
				opts.Logger.Warnf("Skipping %d remaining replicate(s)", len(seeds)-i-1)
			}
			break
		}
	}
	return results.Combine(parts, len(seeds), results.ReplicateSource)
}

// Resume continues the archived run id from its retained trees, with the
// criterion, moves, direction and capacity it was started with. Only the
// runtime options and timeout of opts are used. The continued run is
// archived under a new ID.
func (r *Runner) Resume(ctx context.Context, id string, opts Options) (*Result, error) {
	if r.Store == nil {
		return nil, errors.New(errors.ErrCodeUnsupported, "resume needs a run store")
	}
	rec, err := r.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	prev, taxa, err := rec.Collection()
	if err != nil {
		return nil, err
	}
	genes, err := rec.Genes(taxa)
	if err != nil {
		return nil, err
	}
	if len(prev.Trees) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "run %s has no trees to resume from", id)
	}

	opts.Criterion = rec.Criterion
	opts.Moves = rec.Moves
	opts.Direction = rec.Direction
	opts.MaxTrees = rec.MaxTrees
	opts.Rooted = rec.Rooted
	r.applyLogger(&opts)
	if err := opts.validateSearch(); err != nil {
		return nil, err
	}
	opts.validated = true

	in := &Input{Taxa: taxa, Genes: genes, Seed: prev.Trees[0].Tree}
	result := &Result{Taxa: taxa, Stats: Stats{Taxa: taxa.Len(), GeneTrees: len(genes)}}

	eng, err := r.Engine(in, opts)
	if err != nil {
		return nil, err
	}

	opts.Logger.Infof("Resuming run %s from %d tree(s)", id, len(prev.Trees))
	searchStart := time.Now()
	res, err := r.search(ctx, opts, func(ctx context.Context) (*search.Result, error) {
		return eng.Resume(ctx, prev.Result())
	})
	if err != nil {
		return nil, err
	}
	result.Stats.SearchTime = time.Since(searchStart)

	if result.Collection, err = r.collect(res, opts); err != nil {
		return nil, err
	}
	if err := r.persist(ctx, result, in, opts); err != nil {
		return nil, err
	}
	return result, nil
}

// Parse reads the input trees of opts and reports the parse to the
// pipeline hooks.
func (r *Runner) Parse(ctx context.Context, opts Options) (*Input, error) {
	start := time.Now()
	in, err := Parse(opts)
	taxa, genes := 0, 0
	if in != nil {
		taxa, genes = in.Taxa.Len(), len(in.Genes)
	}
	observability.Pipeline().OnParseComplete(ctx, taxa, genes, time.Since(start), err)
	return in, err
}

// Engine builds a search engine for in: the criterion named by opts, scored
// through the runner's cache, and the move strategy named by opts.
func (r *Runner) Engine(in *Input, opts Options) (*search.Engine, error) {
	if err := opts.validateSearch(); err != nil {
		return nil, err
	}
	scorer, err := r.Scorer(in, opts)
	if err != nil {
		return nil, err
	}
	gen, err := moves.ByName(opts.Moves)
	if err != nil {
		return nil, err
	}
	return search.New(scorer, gen, opts.searchOptions())
}

// Scorer builds the criterion named by opts over the gene trees of in,
// wrapped in the runner's score cache. Cache keys are scoped to the gene
// tree set so runs against different inputs never share scores.
func (r *Runner) Scorer(in *Input, opts Options) (*criteria.Cached, error) {
	crit, err := criteria.ByName(opts.Criterion, in.Genes)
	if err != nil {
		return nil, err
	}
	return criteria.NewCached(crit, r.Cache, criteria.CachedOptions{
		Keyer:  cache.NewScopedKeyer(r.Keyer, "genes:"+genesHash(in)+":"),
		TTL:    r.CacheTTL,
		Logger: r.Logger,
	}), nil
}

// Score evaluates every tree of the Newick block trees against the gene
// trees of opts. Trees must share the gene trees' taxa.
func (r *Runner) Score(ctx context.Context, opts Options, trees string) ([]results.Tree, score.Direction, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, score.Unset, err
	}
	in, err := r.Parse(ctx, opts)
	if err != nil {
		return nil, score.Unset, err
	}
	scorer, err := r.Scorer(in, opts)
	if err != nil {
		return nil, score.Unset, err
	}

	parsed, _, err := tree.ParseNewickBlock(trees, in.Taxa, opts.Rooted)
	if err != nil {
		return nil, score.Unset, err
	}
	out := make([]results.Tree, len(parsed))
	for i, t := range parsed {
		s, err := scorer.Score(ctx, t)
		if err != nil {
			return nil, score.Unset, errors.Wrap(errors.ErrCodeScorerFailed, err, "tree %d", i+1)
		}
		out[i] = results.Tree{Name: t.Name(), Tree: t, Score: s}
	}
	return out, opts.direction.Or(scorer.PreferredDirection()), nil
}

// search runs fn under the timeout of opts.
func (r *Runner) search(ctx context.Context, opts Options, fn func(context.Context) (*search.Result, error)) (*search.Result, error) {
	ctx, cancel := opts.withTimeout(ctx)
	defer cancel()
	return fn(ctx)
}

// collect names the trees of res, settling a cancelled search by the
// decision of opts.
func (r *Runner) collect(res *search.Result, opts Options) (*results.Collection, error) {
	d := opts.decide(res)
	if res.Status == search.StatusCancelled {
		opts.Logger.Warnf("Search cancelled after %d moves; %s its %d tree(s)", res.MovesExamined, verb(d), len(res.Trees))
	}
	return results.Collect(res, d)
}

// persist archives result.Collection.
func (r *Runner) persist(ctx context.Context, result *Result, in *Input, opts Options) error {
	if r.Store == nil || opts.NoPersist {
		return nil
	}

	rec := store.NewRecord(result.Collection, in.Taxa, opts.Rooted, in.Genes)
	start := time.Now()
	// The run is archived even when ctx was cancelled to stop the search.
	err := r.Store.Save(context.WithoutCancel(ctx), rec)
	result.Stats.PersistTime = time.Since(start)
	observability.Pipeline().OnPersist(ctx, rec.ID, backendName(r.Store), result.Stats.PersistTime, err)
	if err != nil {
		return err
	}
	result.RunID = rec.ID
	result.Record = rec
	opts.Logger.Debugf("Saved run %s", rec.ID)
	return nil
}

// applyLogger uses the runner's logger if opts has none.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

func verb(d results.Disposition) string {
	if d == results.Discard {
		return "discarding"
	}
	return "keeping"
}

func backendName(s store.Store) string {
	switch s.(type) {
	case *store.FileStore:
		return "file"
	case *store.MongoStore:
		return "mongo"
	default:
		return "custom"
	}
}

// genesHash identifies a gene tree set by its canonical topologies, so
// differently formatted inputs with the same trees share a cache scope.
func genesHash(in *Input) string {
	var b strings.Builder
	b.WriteString(strings.Join(in.Taxa.Labels(), ","))
	for _, g := range in.Genes {
		b.WriteByte('\n')
		b.WriteString(g.Topology().Key())
	}
	return cache.Hash([]byte(b.String()))
}
