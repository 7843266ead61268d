package criteria

import (
	"context"
	"encoding/json"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/treesearch/pkg/cache"
	"github.com/matzehuels/treesearch/pkg/observability"
	"github.com/matzehuels/treesearch/pkg/score"
	"github.com/matzehuels/treesearch/pkg/tree"
)

const cacheKeyType = "score"

// Cached memoises another criterion's scores in a [cache.Cache]. Cache
// failures never fail a score: a broken backend degrades to recomputing.
// Over a [cache.NullCache] every score is computed directly.
type Cached struct {
	inner  Criterion
	cache  cache.Cache
	null   bool
	keyer  cache.Keyer
	ttl    time.Duration
	logger *log.Logger
}

// CachedOptions configures [NewCached].
type CachedOptions struct {
	Keyer  cache.Keyer   // default cache.NewDefaultKeyer()
	TTL    time.Duration // zero keeps entries until removed
	Logger *log.Logger   // receives cache failures; nil discards them
}

// NewCached wraps inner. A nil cache disables caching.
func NewCached(inner Criterion, c cache.Cache, opts CachedOptions) *Cached {
	if c == nil {
		c = cache.NewNullCache()
	}
	if opts.Keyer == nil {
		opts.Keyer = cache.NewDefaultKeyer()
	}
	_, null := cache.IsNull(c)
	return &Cached{inner: inner, cache: c, null: null, keyer: opts.Keyer, ttl: opts.TTL, logger: opts.Logger}
}

// Name returns the wrapped criterion's name.
func (c *Cached) Name() string { return c.inner.Name() }

// PreferredDirection returns the wrapped criterion's direction.
func (c *Cached) PreferredDirection() score.Direction { return c.inner.PreferredDirection() }

// Score returns the cached score of t's topology, computing and storing it
// on a miss.
func (c *Cached) Score(ctx context.Context, t *tree.Tree) (score.Score, error) {
	if c.null {
		return c.inner.Score(ctx, t)
	}
	key := c.keyer.ScoreKey(c.inner.Name(), t.Topology().Key())

	data, hit, err := c.cache.Get(ctx, key)
	if err != nil {
		c.warn("Score cache read failed: %v", err)
	}
	if hit {
		var s score.Score
		if err := json.Unmarshal(data, &s); err == nil {
			observability.Cache().OnCacheHit(ctx, cacheKeyType)
			return s, nil
		}
	}
	observability.Cache().OnCacheMiss(ctx, cacheKeyType)

	s, err := c.inner.Score(ctx, t)
	if err != nil {
		return s, err
	}
	data, err = json.Marshal(s)
	if err == nil {
		err = c.cache.Set(ctx, key, data, c.ttl)
	}
	if err != nil {
		c.warn("Score cache write failed: %v", err)
	} else {
		observability.Cache().OnCacheSet(ctx, cacheKeyType, len(data))
	}
	return s, nil
}

func (c *Cached) warn(format string, args ...any) {
	if c.logger != nil {
		c.logger.Warnf(format, args...)
	}
}
