package model

import "fmt"

// Piano-style names with flats, matching how teachers call the notes out
// loud. Index 0 is C so a plain pitch%12 works.
var pitchNames = [12]string{"C", "C#", "D", "Eb", "E", "F", "F#", "G", "Ab", "A", "Bb", "B"}

// PitchName renders a MIDI pitch as e.g. "C4" or "Bb3". Middle C (60) is C4.
func PitchName(pitch uint8) string {
	return fmt.Sprintf("%s%d", pitchNames[pitch%12], int(pitch)/12-1)
}

// NoteLetter is just the pitch class portion, e.g. "Bb".
func NoteLetter(pitch uint8) string {
	return pitchNames[pitch%12]
}

// LowestA is the bottom key of a standard 88-key piano, used as the
// ear-training replay sentinel.
const LowestA uint8 = 21
