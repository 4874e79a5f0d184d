package model

import "fmt"

type VerdictKind uint8

const (
	// VerdictNone is the zero value: no attempt has settled.
	VerdictNone VerdictKind = iota
	VerdictMatched
	VerdictMismatch
	VerdictTimedOut
	VerdictIncomplete
)

func (k VerdictKind) String() string {
	switch k {
	case VerdictMatched:
		return "Matched"
	case VerdictMismatch:
		return "Mismatch"
	case VerdictTimedOut:
		return "TimedOut"
	case VerdictIncomplete:
		return "Incomplete"
	}
	return "Unknown"
}

type MismatchClass string

const (
	// LikelyAccidental marks a one-semitone miss, almost always a flubbed
	// black/white key rather than a wrong scale degree.
	LikelyAccidental MismatchClass = "likely-accidental"
	WrongNote        MismatchClass = "wrong-note"
)

// Diagnosis describes the first divergence from the expected sequence.
type Diagnosis struct {
	Position int
	Expected uint8
	Observed uint8
	Delta    int
	Class    MismatchClass
}

func (d Diagnosis) String() string {
	return fmt.Sprintf("note %d: expected %v, heard %v (%+d semitones, %s)",
		d.Position+1, PitchName(d.Expected), PitchName(d.Observed), d.Delta, d.Class)
}

// Verdict is the terminal outcome of one verification attempt.
type Verdict struct {
	AttemptID string
	Kind      VerdictKind
	Diagnosis *Diagnosis

	// NotesHeard is how many qualifying notes arrived before the attempt
	// terminated, whatever the outcome.
	NotesHeard int
}

func (v Verdict) OK() bool {
	return v.Kind == VerdictMatched
}
