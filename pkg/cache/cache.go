// Package cache stores criterion scores so that repeated searches over the
// same gene trees skip trees they have already scored.
//
// Three backends implement [Cache]:
//   - [NullCache]: stores nothing (caching disabled)
//   - [FileCache]: one JSON file per entry under a directory, for the CLI
//   - [RedisCache]: a shared Redis instance, for the API server
//
// Keys come from a [Keyer]. Scores depend on the criterion, the candidate
// topology and the reference data the criterion was built from, so callers
// scope a keyer per reference set with [NewScopedKeyer].
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with optional expiry.
type Cache interface {
	// Get returns the stored value and whether it was found.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A non-positive ttl never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the backend's resources.
	Close() error
}

// Keyer generates cache keys.
type Keyer interface {
	// ScoreKey returns the key of a criterion's score for one topology,
	// identified by its canonical key.
	ScoreKey(criterion, topology string) string
}

// DefaultKeyer generates unscoped keys.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// ScoreKey returns "score:<hash>" over the criterion and topology.
func (DefaultKeyer) ScoreKey(criterion, topology string) string {
	return hashKey("score", criterion, topology)
}
