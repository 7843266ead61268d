package cache

// ScopedKeyer wraps a Keyer with a prefix for namespace isolation.
// Scores computed against different gene tree sets must not share keys, so
// each set gets its own prefix:
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "genes:"+Hash(geneText)+":")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// ScoreKey generates a prefixed score key.
func (k *ScopedKeyer) ScoreKey(criterion, topology string) string {
	return k.prefix + k.inner.ScoreKey(criterion, topology)
}
