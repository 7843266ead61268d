// Package score defines tree scores and the direction they are optimised in.
//
// A [Score] is a float64 that may be unassigned: criteria that cannot be
// computed for a tree (no gene trees, NaN arithmetic) return [Unassigned].
// Unassigned scores never compare as better than, or equal to, anything.
//
// A [Direction] is fixed for the duration of a search. All comparisons go
// through [Direction.Compare] so that minimising and maximising criteria
// share one code path:
//
//	switch score.Minimize.Compare(candidate, best) {
//	case score.Better:
//	    // replace the retained set
//	case score.Equal:
//	    // tie, admit if there is room
//	}
package score

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Score is the value a criterion assigns to a tree.
// The zero value is unassigned.
type Score struct {
	value float64
	valid bool
}

// Of returns a score holding v. NaN and infinities are unassigned.
func Of(v float64) Score {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Score{}
	}
	return Score{value: v, valid: true}
}

// Unassigned returns a score that is not comparable with any other.
func Unassigned() Score { return Score{} }

// Valid reports whether the score holds a comparable value.
func (s Score) Valid() bool { return s.valid }

// Value returns the numeric value, or NaN when the score is unassigned.
func (s Score) Value() float64 {
	if !s.valid {
		return math.NaN()
	}
	return s.value
}

// Ptr returns a pointer to the value, or nil when unassigned.
// Used for serialisation into records with optional fields.
func (s Score) Ptr() *float64 {
	if !s.valid {
		return nil
	}
	v := s.value
	return &v
}

// FromPtr is the inverse of [Score.Ptr].
func FromPtr(v *float64) Score {
	if v == nil {
		return Score{}
	}
	return Of(*v)
}

// String formats the score with the shortest exact representation.
func (s Score) String() string {
	if !s.valid {
		return "unassigned"
	}
	return strconv.FormatFloat(s.value, 'g', -1, 64)
}

// MarshalJSON encodes unassigned scores as null.
func (s Score) MarshalJSON() ([]byte, error) {
	if !s.valid {
		return []byte("null"), nil
	}
	return json.Marshal(s.value)
}

// UnmarshalJSON accepts a number or null.
func (s *Score) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*s = Score{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("decode score: %w", err)
	}
	*s = Of(v)
	return nil
}

// =============================================================================
// Direction
// =============================================================================

// Direction tells whether smaller or larger scores are better.
// The zero value is unset; callers resolve it before a search starts.
type Direction int

const (
	// Unset means no direction was configured.
	Unset Direction = iota
	// Minimize prefers smaller scores.
	Minimize
	// Maximize prefers larger scores.
	Maximize
)

// String returns "minimize", "maximize" or "unset".
func (d Direction) String() string {
	switch d {
	case Minimize:
		return "minimize"
	case Maximize:
		return "maximize"
	default:
		return "unset"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Direction) UnmarshalText(text []byte) error {
	parsed, err := ParseDirection(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDirection parses min/minimize/max/maximize (case-insensitive).
// An empty string or "auto" yields [Unset].
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto", "unset":
		return Unset, nil
	case "min", "minimize", "minimise":
		return Minimize, nil
	case "max", "maximize", "maximise":
		return Maximize, nil
	}
	return Unset, fmt.Errorf("invalid direction %q (must be one of: minimize, maximize, auto)", s)
}

// Or returns d, or fallback when d is unset.
func (d Direction) Or(fallback Direction) Direction {
	if d == Unset {
		return fallback
	}
	return d
}

// Ordering is the outcome of comparing a candidate score with the best one.
type Ordering int

const (
	// Incomparable means at least the candidate is unassigned.
	Incomparable Ordering = iota
	// Worse means the candidate loses under the direction.
	Worse
	// Equal means the candidate ties with the best score.
	Equal
	// Better means the candidate strictly improves on the best score.
	Better
)

// String returns a lower-case name of the ordering.
func (o Ordering) String() string {
	switch o {
	case Worse:
		return "worse"
	case Equal:
		return "equal"
	case Better:
		return "better"
	default:
		return "incomparable"
	}
}

// Compare orders candidate against best under d.
//
// An unassigned candidate is always Incomparable. A valid candidate is Better
// than an unassigned best, so a search seeded with an unscorable tree moves to
// the first tree that can be scored. An unset direction compares as Minimize.
func (d Direction) Compare(candidate, best Score) Ordering {
	if !candidate.valid {
		return Incomparable
	}
	if !best.valid {
		return Better
	}
	switch {
	case candidate.value == best.value:
		return Equal
	case (candidate.value < best.value) == (d != Maximize):
		return Better
	default:
		return Worse
	}
}
