// Package exercise pulls reference note runs out of standard MIDI files so
// practice programs can use snippets as ear-training material.
package exercise

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"

	"gitlab.com/gomidi/midi/v2/smf"
)

// ReadFile parses an SMF file. The parser can panic on truncated files;
// that surfaces as an error here, never a crash.
func ReadFile(path string) (s *smf.SMF, e error) {
	defer func() {
		if r, ok := recover().(string); ok {
			e = errors.New(r)
		}
	}()

	dat, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading midi file: %w", err)
	}
	res, err := smf.ReadFrom(bytes.NewReader(dat))
	if err != nil {
		return nil, fmt.Errorf("parsing midi file: %w", err)
	}
	return res, nil
}

type timedNote struct {
	at    int64
	track int
	pitch uint8
}

// NoteRun flattens the file into its note-on pitches in playback order,
// capped at max (0 = all). Simultaneous notes order low-to-high so the
// same file always yields the same run.
func NoteRun(s *smf.SMF, max int) []uint8 {
	var notes []timedNote
	for ti, events := range s.Tracks {
		var absTicks int64
		for _, event := range events {
			absTicks += int64(event.Delta)
			var channel, key, velocity uint8
			if event.Message.GetNoteOn(&channel, &key, &velocity) {
				notes = append(notes, timedNote{at: absTicks, track: ti, pitch: key})
			}
		}
	}

	sort.Slice(notes, func(i, j int) bool {
		if notes[i].at != notes[j].at {
			return notes[i].at < notes[j].at
		}
		if notes[i].track != notes[j].track {
			return notes[i].track < notes[j].track
		}
		return notes[i].pitch < notes[j].pitch
	})

	var res []uint8
	for _, n := range notes {
		res = append(res, n.pitch)
		if max > 0 && len(res) >= max {
			break
		}
	}
	return res
}
