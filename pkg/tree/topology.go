package tree

import (
	"encoding/binary"
	"encoding/hex"
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Topology is the canonical clade set of a tree.
//
// Clades are sorted and unique, so two topologies over the same taxa are equal
// iff their clade slices are element-wise equal. The signature is a hash of
// the canonical encoding and is only a shortcut: equal topologies always have
// equal signatures, the converse needs [Topology.Equal].
type Topology struct {
	rooted bool
	ntaxa  int
	clades []Clade
	sig    uint64
}

func newTopology(rooted bool, ntaxa int, clades []Clade) *Topology {
	slices.SortFunc(clades, Clade.Compare)
	clades = slices.CompactFunc(clades, Clade.Equal)

	d := xxhash.New()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(ntaxa))
	if rooted {
		buf[7] |= 0x80
	}
	_, _ = d.Write(buf[:])
	for _, c := range clades {
		for _, w := range c {
			binary.LittleEndian.PutUint64(buf[:], w)
			_, _ = d.Write(buf[:])
		}
	}

	return &Topology{rooted: rooted, ntaxa: ntaxa, clades: clades, sig: d.Sum64()}
}

// Signature returns the 64-bit hash of the canonical clade set.
func (t *Topology) Signature() uint64 { return t.sig }

// Rooted reports whether the clade set includes the root clade.
func (t *Topology) Rooted() bool { return t.rooted }

// Len returns the number of clades.
func (t *Topology) Len() int { return len(t.clades) }

// Clade returns the i-th clade in canonical order. The result must not be
// modified.
func (t *Topology) Clade(i int) Clade { return t.clades[i] }

// Equal reports whether both topologies have the same clade set.
func (t *Topology) Equal(o *Topology) bool {
	if t == o {
		return true
	}
	if t == nil || o == nil {
		return false
	}
	if t.sig != o.sig || t.rooted != o.rooted || t.ntaxa != o.ntaxa || len(t.clades) != len(o.clades) {
		return false
	}
	for i := range t.clades {
		if !t.clades[i].Equal(o.clades[i]) {
			return false
		}
	}
	return true
}

// Contains reports whether c is one of the clades.
func (t *Topology) Contains(c Clade) bool {
	_, found := slices.BinarySearchFunc(t.clades, c, Clade.Compare)
	return found
}

// Refines reports whether every clade of o is also a clade of t, i.e. t is o
// or a resolution of o's polytomies. Equal topologies refine each other.
func (t *Topology) Refines(o *Topology) bool {
	if t == nil || o == nil || t.rooted != o.rooted || t.ntaxa != o.ntaxa || len(o.clades) > len(t.clades) {
		return false
	}
	i := 0
	for _, c := range o.clades {
		for i < len(t.clades) && t.clades[i].Compare(c) < 0 {
			i++
		}
		if i == len(t.clades) || !t.clades[i].Equal(c) {
			return false
		}
		i++
	}
	return true
}

// Distance returns the Robinson-Foulds distance: the number of clades present
// in exactly one of the two topologies.
func (t *Topology) Distance(o *Topology) int {
	i, j, shared := 0, 0, 0
	for i < len(t.clades) && j < len(o.clades) {
		switch t.clades[i].Compare(o.clades[j]) {
		case 0:
			shared++
			i++
			j++
		case -1:
			i++
		default:
			j++
		}
	}
	return len(t.clades) + len(o.clades) - 2*shared
}

// Key returns the canonical encoding as a hex string. It is collision-free
// and suitable as a persistent cache key component.
func (t *Topology) Key() string {
	var b strings.Builder
	if t.rooted {
		b.WriteString("r")
	} else {
		b.WriteString("u")
	}
	var buf [8]byte
	for _, c := range t.clades {
		b.WriteByte('.')
		for _, w := range c {
			binary.BigEndian.PutUint64(buf[:], w)
			b.WriteString(hex.EncodeToString(buf[:]))
		}
	}
	return b.String()
}

// Format renders the clade set using taxa labels, e.g. {A,B} {C,D}.
func (t *Topology) Format(taxa *Taxa) string {
	parts := make([]string, len(t.clades))
	for i, c := range t.clades {
		parts[i] = c.Format(taxa)
	}
	return strings.Join(parts, " ")
}
