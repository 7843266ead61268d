package search

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/treesearch/pkg/errors"
	"github.com/matzehuels/treesearch/pkg/observability"
	"github.com/matzehuels/treesearch/pkg/score"
	"github.com/matzehuels/treesearch/pkg/tree"
)

// Engine runs first-improvement local searches with a fixed scorer, move
// generator and configuration. An Engine holds no per-run state and may be
// reused; concurrent runs are safe if the collaborators are.
type Engine struct {
	scorer Scorer
	moves  MoveGenerator
	opts   Options
}

// New validates the configuration and returns an engine.
func New(scorer Scorer, moves MoveGenerator, opts Options) (*Engine, error) {
	if scorer == nil {
		return nil, errors.New(errors.ErrCodeMissingCollaborator, "no scorer configured")
	}
	if moves == nil {
		return nil, errors.New(errors.ErrCodeMissingCollaborator, "no move generator configured")
	}
	if err := opts.validate(scorer); err != nil {
		return nil, err
	}
	return &Engine{scorer: scorer, moves: moves, opts: opts}, nil
}

// Direction returns the resolved score direction.
func (e *Engine) Direction() score.Direction { return e.opts.Direction }

// MaxTrees returns the retained-set bound.
func (e *Engine) MaxTrees() int { return e.opts.MaxTrees }

// Run searches from seed until convergence or cancellation.
//
// On success the result holds the retained trees in discovery order. A
// scorer or move generator failure returns a nil result and an error with
// code SCORER_FAILED or MOVE_FAILED.
func (e *Engine) Run(ctx context.Context, seed *tree.Tree) (*Result, error) {
	if seed == nil {
		return nil, errors.New(errors.ErrCodeInvalidTree, "no seed tree")
	}
	if seed.Taxa() == nil || seed.Taxa().Len() == 0 {
		return nil, errors.New(errors.ErrCodeInvalidTree, "seed tree has no taxa")
	}

	r := e.newRun(ctx, seed.Taxa())
	s, err := e.scorer.Score(ctx, seed)
	if err != nil {
		if ctx.Err() != nil {
			r.st.reset(Candidate{Tree: seed, Score: score.Unassigned()})
			return r.finish(StatusCancelled, nil)
		}
		return r.finish(0, errors.Wrap(errors.ErrCodeScorerFailed, err, "%s: score seed tree", e.scorer.Name()))
	}
	r.st.reset(Candidate{Tree: seed, Score: s})
	if !s.Valid() {
		r.log.Warnf("Seed tree has no %s score; any scored neighbour will replace it", e.scorer.Name())
	}
	return r.search()
}

// Resume continues a search from the trees retained by prev. The trees are
// taken as they are, without rescoring. Resuming a converged result finds
// no improvement and returns the same trees.
func (e *Engine) Resume(ctx context.Context, prev *Result) (*Result, error) {
	if prev == nil || len(prev.Trees) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "nothing to resume: previous result has no trees")
	}
	if prev.Direction != score.Unset && prev.Direction != e.opts.Direction {
		return nil, errors.New(errors.ErrCodeInvalidConfig,
			"cannot resume a %s search with direction %s", prev.Direction, e.opts.Direction)
	}
	first := prev.Trees[0].Tree
	if first == nil || first.Taxa() == nil {
		return nil, errors.New(errors.ErrCodeInvalidTree, "previous result holds no tree")
	}

	r := e.newRun(ctx, first.Taxa())
	r.st.reset(prev.Trees[0])
	for _, c := range prev.Trees[1:] {
		if c.Tree == nil || !c.Tree.Taxa().Equal(r.taxa) || c.Score != r.st.best || r.st.contains(c.Topology()) {
			continue
		}
		if !r.st.admit(c) {
			r.capacityReached()
			break
		}
	}
	return r.search()
}

// run is the per-call state of a search. It is owned by one goroutine.
type run struct {
	*Engine
	ctx      context.Context
	log      *log.Logger
	taxa     *tree.Taxa
	st       *state
	start    time.Time
	examined int64
	capped   bool
}

func (e *Engine) newRun(ctx context.Context, taxa *tree.Taxa) *run {
	return &run{
		Engine: e,
		ctx:    ctx,
		log:    e.opts.Logger,
		taxa:   taxa,
		st:     newState(e.opts.MaxTrees),
		start:  time.Now(),
	}
}

type passOutcome int

const (
	passConverged passOutcome = iota
	passImproved
	passCancelled
)

func (r *run) search() (*Result, error) {
	observability.Search().OnSearchStart(r.ctx, r.scorer.Name(), r.moves.Name(), r.opts.MaxTrees)
	r.log.Infof("Searching with %s moves, %s %s, max %d trees (start %s)",
		r.moves.Name(), r.opts.Direction, r.scorer.Name(), r.opts.MaxTrees, r.st.best)

	for {
		out, err := r.pass()
		if err != nil {
			return r.finish(0, err)
		}
		switch out {
		case passConverged:
			return r.finish(StatusConverged, nil)
		case passCancelled:
			return r.finish(StatusCancelled, nil)
		}
	}
}

// pass scans the retained trees from the first one. It stops at the first
// strict improvement. Trees admitted during the pass are scanned too.
func (r *run) pass() (passOutcome, error) {
	for i := 0; i < r.st.len(); i++ {
		cur := r.st.at(i).Tree
		k, err := r.moves.MoveCount(cur)
		if err != nil {
			return 0, errors.Wrap(errors.ErrCodeMoveFailed, err, "%s: count moves of tree %d", r.moves.Name(), i)
		}
		r.log.Debugf("Scanning tree %d of %d (%d moves)", i+1, r.st.len(), k)
		for m := 0; m < k; m++ {
			if r.ctx.Err() != nil {
				return passCancelled, nil
			}
			ord, err := r.evaluate(cur, i, m, k)
			if err != nil {
				if r.ctx.Err() != nil && errors.Is(err, errors.ErrCodeScorerFailed) {
					return passCancelled, nil
				}
				return 0, err
			}
			if ord == score.Better {
				return passImproved, nil
			}
		}
	}
	return passConverged, nil
}

// evaluate applies move m to cur, scores the result and updates the state.
// Duplicates of retained topologies are skipped without scoring.
func (r *run) evaluate(cur *tree.Tree, i, m, k int) (score.Ordering, error) {
	cand, err := r.moves.Apply(cur, m)
	if err != nil {
		return score.Incomparable, errors.Wrap(errors.ErrCodeMoveFailed, err, "%s: apply move %d of tree %d", r.moves.Name(), m, i)
	}
	if cand == nil {
		return score.Incomparable, errors.New(errors.ErrCodeMoveFailed, "%s: move %d of tree %d produced no tree", r.moves.Name(), m, i)
	}
	if !cand.Taxa().Equal(r.taxa) {
		return score.Incomparable, errors.New(errors.ErrCodeMoveFailed, "%s: move %d of tree %d changed the taxa", r.moves.Name(), m, i)
	}
	if r.st.contains(cand.Topology()) {
		return score.Incomparable, nil
	}

	s, err := r.scorer.Score(r.ctx, cand)
	if err != nil {
		return score.Incomparable, errors.Wrap(errors.ErrCodeScorerFailed, err, "%s: score move %d of tree %d", r.scorer.Name(), m, i)
	}
	r.examined++

	ord := r.opts.Direction.Compare(s, r.st.best)
	switch ord {
	case score.Better:
		r.st.reset(Candidate{Tree: cand, Score: s})
		observability.Search().OnImprovement(r.ctx, r.scorer.Name(), s.Value(), r.examined)
		r.log.Infof("Improved to %s after %d moves", s, r.examined)
		r.report(i, m, k)
	case score.Equal:
		if r.st.admit(Candidate{Tree: cand, Score: s}) {
			r.log.Debugf("Retained tie %d at %s", r.st.len(), s)
			r.report(i, m, k)
		} else {
			r.capacityReached()
		}
	case score.Incomparable:
		r.log.Debugf("Move %d of tree %d has no %s score", m, i, r.scorer.Name())
	}

	if every := r.opts.ProgressEvery; every > 0 && r.examined%every == 0 && ord != score.Better {
		r.log.Infof("Examined %d moves, best %s, tree %d of %d", r.examined, r.st.best, i+1, r.st.len())
		r.report(i, m, k)
	}
	return ord, nil
}

func (r *run) capacityReached() {
	if r.capped {
		return
	}
	r.capped = true
	observability.Search().OnCapacityReached(r.ctx, r.scorer.Name(), r.opts.MaxTrees)
	r.log.Warnf("Reached the limit of %d trees; further equally good trees are dropped", r.opts.MaxTrees)
}

func (r *run) report(i, m, k int) {
	if r.opts.Progress == nil {
		return
	}
	r.opts.Progress(Progress{
		Best:      r.st.best,
		Retained:  r.st.len(),
		TreeIndex: i,
		MoveIndex: m,
		MoveCount: k,
		Examined:  r.examined,
	})
}

func (r *run) finish(status Status, err error) (*Result, error) {
	elapsed := time.Since(r.start)
	name := r.scorer.Name()
	if err != nil {
		observability.Search().OnSearchComplete(r.ctx, name, "failed", 0, r.examined, elapsed, err)
		return nil, err
	}
	res := &Result{
		Trees:           r.st.snapshot(),
		Best:            r.st.best,
		Status:          status,
		Direction:       r.opts.Direction,
		Criterion:       name,
		Moves:           r.moves.Name(),
		MaxTrees:        r.opts.MaxTrees,
		MovesExamined:   r.examined,
		Elapsed:         elapsed,
		CapacityReached: r.capped,
	}
	observability.Search().OnSearchComplete(r.ctx, name, status.String(), len(res.Trees), r.examined, elapsed, nil)
	r.log.Infof("Search %s: %d trees at %s, %d moves examined (%s)",
		status, len(res.Trees), res.Best, r.examined, elapsed.Round(time.Millisecond))
	return res, nil
}
