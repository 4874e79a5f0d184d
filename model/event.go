package model

import "time"

type EventKind uint8

const (
	KindDown EventKind = iota
	KindUp
)

func (k EventKind) String() string {
	if k == KindDown {
		return "Down"
	}
	return "Up"
}

// NoteEvent is one physical key action. Built once by the normalizer,
// never mutated after that.
type NoteEvent struct {
	Pitch    uint8
	Velocity uint8
	Kind     EventKind
	Time     time.Time
	Channel  uint8

	// Seq is assigned by the store on append and breaks timestamp ties
	// in arrival order.
	Seq uint64
}

// HeldInterval is the span a pitch counts as sounding, which outlives the
// physical key-up while the sustain pedal is down.
type HeldInterval struct {
	Pitch    uint8
	Start    time.Time
	End      time.Time
	Released bool
}

// Covers reports whether t falls inside the interval, widened by eps on
// both ends. An unreleased interval has no right edge yet.
func (h HeldInterval) Covers(t time.Time, eps time.Duration) bool {
	if t.Before(h.Start.Add(-eps)) {
		return false
	}
	if !h.Released {
		return true
	}
	return !t.After(h.End.Add(eps))
}

// PedalChange is a sustain-pedal (CC64) transition.
type PedalChange struct {
	Time time.Time
	Down bool
}
