package exercise

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

func buildSMF(t *testing.T, tracks ...smf.Track) *smf.SMF {
	t.Helper()
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(960)
	for _, tr := range tracks {
		tr.Close(0)
		if err := s.Add(tr); err != nil {
			t.Fatal(err)
		}
	}
	return s
}

func TestNoteRunPlaybackOrder(t *testing.T) {
	var tr smf.Track
	tr.Add(0, midi.NoteOn(0, 60, 90))
	tr.Add(240, midi.NoteOff(0, 60))
	tr.Add(0, midi.NoteOn(0, 64, 90))
	tr.Add(240, midi.NoteOff(0, 64))
	tr.Add(0, midi.NoteOn(0, 67, 90))
	tr.Add(240, midi.NoteOff(0, 67))

	got := NoteRun(buildSMF(t, tr), 0)
	assert.Equal(t, []uint8{60, 64, 67}, got)
}

func TestNoteRunCap(t *testing.T) {
	var tr smf.Track
	for _, p := range []uint8{60, 62, 64, 65, 67} {
		tr.Add(0, midi.NoteOn(0, p, 90))
		tr.Add(240, midi.NoteOff(0, p))
	}

	got := NoteRun(buildSMF(t, tr), 3)
	assert.Equal(t, []uint8{60, 62, 64}, got)
}

func TestNoteRunSimultaneousNotesLowToHigh(t *testing.T) {
	// a chord struck at once, written high-to-low in the file
	var tr smf.Track
	tr.Add(0, midi.NoteOn(0, 67, 90))
	tr.Add(0, midi.NoteOn(0, 60, 90))
	tr.Add(0, midi.NoteOn(0, 64, 90))
	tr.Add(480, midi.NoteOff(0, 60))

	got := NoteRun(buildSMF(t, tr), 0)
	assert.Equal(t, []uint8{60, 64, 67}, got)
}

func TestNoteRunMergesTracks(t *testing.T) {
	var melody smf.Track
	melody.Add(0, midi.NoteOn(0, 72, 90))
	melody.Add(480, midi.NoteOn(0, 74, 90))

	var bass smf.Track
	bass.Add(240, midi.NoteOn(1, 40, 90))

	got := NoteRun(buildSMF(t, melody, bass), 0)
	assert.Equal(t, []uint8{72, 40, 74}, got)
}

func TestNoteRunIgnoresNonNoteEvents(t *testing.T) {
	var tr smf.Track
	tr.Add(0, midi.ProgramChange(0, 5))
	tr.Add(0, midi.NoteOn(0, 60, 90))
	tr.Add(120, midi.ControlChange(0, 64, 127))
	tr.Add(120, midi.NoteOff(0, 60))

	got := NoteRun(buildSMF(t, tr), 0)
	assert.Equal(t, []uint8{60}, got)
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile("/nonexistent/path.mid")
	assert.Error(t, err)
}
