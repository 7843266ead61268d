package cache

import (
	"context"
	"time"
)

// NullCache stores nothing. A criterion wrapped around it recomputes every
// score and reports no cache traffic to the observability hooks.
type NullCache struct {
	// Reason says why scores are not cached, e.g. "--no-cache".
	Reason string
}

// NewNullCache creates a null cache for caching turned off in configuration.
func NewNullCache() Cache {
	return Disabled("disabled")
}

// Disabled creates a null cache recording why caching is off.
func Disabled(reason string) *NullCache {
	return &NullCache{Reason: reason}
}

// IsNull reports whether c stores nothing, returning the reason if so.
func IsNull(c Cache) (string, bool) {
	n, ok := c.(*NullCache)
	if !ok {
		return "", false
	}
	return n.Reason, true
}

// Get reports a miss for every key.
func (c *NullCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, nil
}

// Set drops data.
func (c *NullCache) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}

func (c *NullCache) Delete(context.Context, string) error { return nil }

func (c *NullCache) Close() error { return nil }

var _ Cache = (*NullCache)(nil)
