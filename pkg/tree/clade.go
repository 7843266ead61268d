package tree

import (
	"math/bits"
	"strings"
)

// Clade is a set of taxon indices stored as a bit set.
type Clade []uint64

// NewClade returns an empty clade able to hold n taxa.
func NewClade(n int) Clade {
	return make(Clade, (n+63)/64)
}

// Add inserts taxon i.
func (c Clade) Add(i int) { c[i/64] |= 1 << (uint(i) % 64) }

// Has reports whether taxon i is a member.
func (c Clade) Has(i int) bool { return c[i/64]&(1<<(uint(i)%64)) != 0 }

// Count returns the number of members.
func (c Clade) Count() int {
	n := 0
	for _, w := range c {
		n += bits.OnesCount64(w)
	}
	return n
}

// UnionWith adds every member of o to c.
func (c Clade) UnionWith(o Clade) {
	for i := range c {
		c[i] |= o[i]
	}
}

// Complement returns the taxa of an n-taxon universe that are not in c.
func (c Clade) Complement(n int) Clade {
	out := make(Clade, len(c))
	for i, w := range c {
		out[i] = ^w
	}
	if r := uint(n) % 64; r != 0 {
		out[len(out)-1] &= (1 << r) - 1
	}
	return out
}

// Clone returns an independent copy.
func (c Clade) Clone() Clade {
	out := make(Clade, len(c))
	copy(out, c)
	return out
}

// Compare orders clades by their words, most significant word first.
func (c Clade) Compare(o Clade) int {
	for i := len(c) - 1; i >= 0; i-- {
		switch {
		case c[i] < o[i]:
			return -1
		case c[i] > o[i]:
			return 1
		}
	}
	return 0
}

// Equal reports whether both clades hold the same members.
func (c Clade) Equal(o Clade) bool { return c.Compare(o) == 0 }

// Members returns the taxon indices in increasing order.
func (c Clade) Members() []int {
	out := make([]int, 0, c.Count())
	for wi, w := range c {
		for w != 0 {
			b := bits.TrailingZeros64(w)
			out = append(out, wi*64+b)
			w &= w - 1
		}
	}
	return out
}

// Format renders the clade as {A,B,C} using taxa labels.
func (c Clade) Format(taxa *Taxa) string {
	var b strings.Builder
	b.WriteByte('{')
	for i, m := range c.Members() {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(taxa.Label(m))
	}
	b.WriteByte('}')
	return b.String()
}
