// Package pattern holds the pure templates the engine verifies against:
// scale interval tables, triad shapes with their inversions, and literal
// note sequences for ear training. Patterns are immutable and shared.
package pattern

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jsphweid/keydrill/model"
	"github.com/jsphweid/keydrill/util"
)

// ErrNotFound means the caller asked for a pattern name nobody registered.
// Returned immediately, before any events are consumed.
var ErrNotFound = errors.New("pattern: no such pattern")

// ErrRootOutOfRange means the requested root pushes part of the pattern
// past an end of the MIDI pitch range.
var ErrRootOutOfRange = errors.New("pattern: root out of range")

type Direction uint8

const (
	Ascending Direction = iota
	Descending
	Both
)

// scaleSteps are semitone steps between consecutive degrees, ascending.
var scaleSteps = map[string][]int{
	// whole - whole - half - whole - whole - whole - half
	"major": {2, 2, 1, 2, 2, 2, 1},
	// the raised 7th gives the step-and-a-half near the top
	"harmonic-minor": {2, 1, 2, 2, 1, 3, 1},
}

// triadIntervals are root-position semitone offsets per quality.
var triadIntervals = map[string][]int{
	"major": {0, 4, 7},
	"minor": {0, 3, 7},
}

// Pattern is an immutable expected-sequence template. Relative patterns
// (scales) are matched against whatever root the player establishes with
// the first note; exact patterns (echo) pin absolute pitches.
type Pattern struct {
	Name      string
	Direction Direction

	// offsets from the root, one per expected note, for relative patterns.
	offsets []int
	// pitches for exact patterns; nil otherwise.
	pitches []uint8

	// Tolerances: how late each note may be, and the cap on the whole
	// attempt. Zero means "use the engine defaults".
	PerNote  time.Duration
	MaxTotal time.Duration
}

// For looks up a registered scale by name, ascending, transposed to root.
func For(name string, root uint8) (Pattern, error) {
	return Scale(name, root, Ascending)
}

// Scale builds a scale pattern from a registered template, transposed to
// root. Direction Both plays up then back down without re-striking the top.
func Scale(name string, root uint8, dir Direction) (Pattern, error) {
	steps, ok := scaleSteps[name]
	if !ok {
		return Pattern{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	up := make([]int, 0, len(steps)+1)
	total := 0
	up = append(up, 0)
	for _, s := range steps {
		total += s
		up = append(up, total)
	}

	var offsets []int
	switch dir {
	case Ascending:
		offsets = up
	case Descending:
		for i := len(up) - 1; i >= 0; i-- {
			offsets = append(offsets, up[i])
		}
	case Both:
		offsets = append(offsets, up...)
		for i := len(up) - 2; i >= 0; i-- {
			offsets = append(offsets, up[i])
		}
	}

	lo, hi := offsets[0], offsets[0]
	for _, o := range offsets {
		lo = util.Min(lo, o)
		hi = util.Max(hi, o)
	}
	if int(root)+hi-offsets[0] > 127 || int(root)+lo-offsets[0] < 0 {
		return Pattern{}, fmt.Errorf("%w: %s from %s", ErrRootOutOfRange, name, model.PitchName(root))
	}

	return Pattern{
		Name:      fmt.Sprintf("%s %s", noteName(root), name),
		Direction: dir,
		offsets:   offsets,
	}, nil
}

// Chord enumerates a triad quality as one variant per inversion, each
// normalized so its lowest note is offset zero. Root position first.
func Chord(quality string, root uint8) ([]Pattern, error) {
	base, ok := triadIntervals[quality]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, quality)
	}

	var variants []Pattern
	cur := append([]int(nil), base...)
	names := []string{"root position", "1st inversion", "2nd inversion"}
	for inv := 0; inv < len(base); inv++ {
		offsets := append([]int(nil), cur...)
		if int(root)+offsets[len(offsets)-1] > 127 {
			return nil, fmt.Errorf("%w: %s %s", ErrRootOutOfRange, model.PitchName(root), quality)
		}
		variants = append(variants, Pattern{
			Name:    fmt.Sprintf("%s %s (%s)", noteName(root), quality, names[inv]),
			offsets: offsets,
		})
		// rotate: lowest note moves up an octave, renormalize to zero
		rotated := append(cur[1:len(cur):len(cur)], cur[0]+12)
		low := rotated[0]
		for i := range rotated {
			rotated[i] -= low
		}
		cur = rotated
	}
	return variants, nil
}

// Literal is an exact pitch sequence, used by the ear-training comparator.
func Literal(name string, pitches []uint8) Pattern {
	return Pattern{
		Name:    name,
		pitches: append([]uint8(nil), pitches...),
	}
}

// Len is the number of notes the pattern expects.
func (p Pattern) Len() int {
	if p.pitches != nil {
		return len(p.pitches)
	}
	return len(p.offsets)
}

// Exact reports whether the pattern pins absolute pitches.
func (p Pattern) Exact() bool { return p.pitches != nil }

// ExpectedAt returns the pitch expected at position i given the root the
// player established. Exact patterns ignore the root. A played root near
// an edge of the MIDI range saturates instead of wrapping into a nonsense
// pitch on the far side.
func (p Pattern) ExpectedAt(i int, root uint8) uint8 {
	if p.pitches != nil {
		return p.pitches[i]
	}
	v := int(root) + p.offsets[i] - p.offsets[0]
	if v > 127 {
		return 127
	}
	if v < 0 {
		return 0
	}
	return uint8(v)
}

// RepeatsAt reports whether position i expects the same pitch as i-1, in
// which case the engine must not coalesce the two strikes.
func (p Pattern) RepeatsAt(i int) bool {
	if i == 0 {
		return false
	}
	if p.pitches != nil {
		return p.pitches[i] == p.pitches[i-1]
	}
	return p.offsets[i] == p.offsets[i-1]
}

// Offsets returns the pattern's note offsets relative to its first note.
func (p Pattern) Offsets() []int {
	if p.pitches == nil {
		res := make([]int, len(p.offsets))
		for i, o := range p.offsets {
			res[i] = o - p.offsets[0]
		}
		return res
	}
	res := make([]int, len(p.pitches))
	for i, pt := range p.pitches {
		res[i] = int(pt) - int(p.pitches[0])
	}
	return res
}

// ChordKey normalizes a set of pitches into a canonical lookup key:
// sorted, dash-joined. Identical simultaneous note sets always produce
// identical keys regardless of strike order.
func ChordKey(notes []uint8) string {
	sorted := append([]uint8(nil), notes...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})
	var res string
	for i, n := range sorted {
		res += fmt.Sprintf("%v", n)
		if i < len(sorted)-1 {
			res += "-"
		}
	}
	return res
}

func noteName(pitch uint8) string {
	return model.NoteLetter(pitch)
}
