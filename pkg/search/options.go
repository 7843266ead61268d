package search

import (
	"io"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/treesearch/pkg/errors"
	"github.com/matzehuels/treesearch/pkg/score"
)

// DefaultMaxTrees is the retained-set bound callers use when they have no
// better value.
const DefaultMaxTrees = 100

// Progress is a snapshot of a running search handed to [Options.Progress].
type Progress struct {
	Best      score.Score
	Retained  int
	TreeIndex int   // index of the retained tree being scanned
	MoveIndex int   // move index within that tree
	MoveCount int   // number of moves of that tree
	Examined  int64 // candidates scored so far
}

// Options configures an [Engine].
type Options struct {
	// MaxTrees bounds the number of tied trees retained. Must be positive.
	MaxTrees int

	// Direction says whether lower or higher scores are better. When unset,
	// the scorer's preferred direction is used if it implements [Preferrer],
	// and minimize otherwise.
	Direction score.Direction

	// Logger receives human-readable progress. Nil discards it.
	Logger *log.Logger

	// Progress, if set, is called on every improvement, every admitted tie,
	// and every ProgressEvery scored candidates.
	Progress func(Progress)

	// ProgressEvery is the candidate interval for periodic progress. Zero
	// disables periodic reports.
	ProgressEvery int64
}

func (o *Options) validate(s Scorer) error {
	if err := errors.ValidateMaxTrees(o.MaxTrees); err != nil {
		return err
	}
	if o.ProgressEvery < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "progress interval must not be negative, got %d", o.ProgressEvery)
	}
	if o.Direction == score.Unset {
		if p, ok := s.(Preferrer); ok {
			o.Direction = p.PreferredDirection()
		}
		o.Direction = o.Direction.Or(score.Minimize)
	}
	if o.Direction != score.Minimize && o.Direction != score.Maximize {
		return errors.New(errors.ErrCodeInvalidConfig, "invalid direction %d", int(o.Direction))
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard)
	}
	return nil
}
