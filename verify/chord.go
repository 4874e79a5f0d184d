package verify

import (
	"sort"
	"time"

	"github.com/jsphweid/keydrill/model"
	"github.com/jsphweid/keydrill/pattern"
)

// MatchChord scans the Down events for any cluster, struck within window
// of its first note, whose shape matches one of the variants (so any
// enumerated inversion passes). Strike order inside the cluster does not
// matter. Clusters are canonicalized through their chord key, so a chord
// the player hammers repeatedly is only evaluated once. Returns the name
// of the variant that matched.
func MatchChord(events []model.NoteEvent, variants []pattern.Pattern, window time.Duration) (string, bool) {
	var downs []model.NoteEvent
	for _, ev := range events {
		if ev.Kind == model.KindDown {
			downs = append(downs, ev)
		}
	}

	tried := make(map[string]bool)
	for start := 0; start < len(downs); start++ {
		end := start + 1
		for end < len(downs) && downs[end].Time.Sub(downs[start].Time) < window {
			end++
		}
		pitches := clusterPitches(downs[start:end])
		key := pattern.ChordKey(pitches)
		if tried[key] {
			continue
		}
		tried[key] = true

		shape := offsetsFrom(pitches)
		for _, v := range variants {
			if sameShape(shape, v.Offsets()) {
				return v.Name, true
			}
		}
	}
	return "", false
}

// clusterPitches reduces a cluster to its distinct pitches, low to high
// (a doubled note is still the chord).
func clusterPitches(downs []model.NoteEvent) []uint8 {
	seen := make(map[uint8]bool)
	var pitches []uint8
	for _, ev := range downs {
		if !seen[ev.Pitch] {
			seen[ev.Pitch] = true
			pitches = append(pitches, ev.Pitch)
		}
	}
	sort.Slice(pitches, func(i, j int) bool { return pitches[i] < pitches[j] })
	return pitches
}

// offsetsFrom turns sorted pitches into semitone offsets from the lowest.
func offsetsFrom(pitches []uint8) []int {
	res := make([]int, len(pitches))
	for i, p := range pitches {
		res[i] = int(p) - int(pitches[0])
	}
	return res
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
