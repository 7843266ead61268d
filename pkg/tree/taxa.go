package tree

import (
	"slices"

	"github.com/matzehuels/treesearch/pkg/errors"
)

// Taxa is an immutable, ordered set of taxon labels.
type Taxa struct {
	labels []string
	index  map[string]int
}

// NewTaxa builds a taxa set from labels in the given order.
// Labels must be valid and unique.
func NewTaxa(labels []string) (*Taxa, error) {
	if len(labels) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidTree, "taxa set cannot be empty")
	}
	t := &Taxa{
		labels: slices.Clone(labels),
		index:  make(map[string]int, len(labels)),
	}
	for i, l := range labels {
		if err := errors.ValidateTaxonLabel(l); err != nil {
			return nil, err
		}
		if _, dup := t.index[l]; dup {
			return nil, errors.New(errors.ErrCodeInvalidTree, "duplicate taxon %q", l)
		}
		t.index[l] = i
	}
	return t, nil
}

// MustTaxa is like NewTaxa but panics on error. Intended for tests and
// fixed fixtures.
func MustTaxa(labels ...string) *Taxa {
	t, err := NewTaxa(labels)
	if err != nil {
		panic(err)
	}
	return t
}

// Len returns the number of taxa.
func (t *Taxa) Len() int { return len(t.labels) }

// Label returns the label of taxon i.
func (t *Taxa) Label(i int) string { return t.labels[i] }

// Index returns the position of label, if present.
func (t *Taxa) Index(label string) (int, bool) {
	i, ok := t.index[label]
	return i, ok
}

// Labels returns a copy of the labels in order.
func (t *Taxa) Labels() []string { return slices.Clone(t.labels) }

// Equal reports whether both sets hold the same labels in the same order.
func (t *Taxa) Equal(o *Taxa) bool {
	if t == o {
		return true
	}
	if t == nil || o == nil {
		return false
	}
	return slices.Equal(t.labels, o.labels)
}
