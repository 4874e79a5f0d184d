// Package normalize turns raw MIDI messages into canonical store events,
// applying sustain-pedal semantics: a key lifted while the pedal is down
// keeps sounding until the pedal comes up.
package normalize

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"gitlab.com/gomidi/midi/v2"

	"github.com/jsphweid/keydrill/model"
	"github.com/jsphweid/keydrill/notebuf"
)

// CC64, sustain. Values >= 64 mean down per the MIDI spec.
const sustainController = 64

// Session owns the pedal state and the deferred-release set for one
// practice session. It is the sole writer into the store; the device
// listener goroutine drives Handle and nothing else mutates.
type Session struct {
	store *notebuf.Store

	mu sync.Mutex
	// pedal is the last sustain transition observed.
	pedal model.PedalChange
	// deferred holds pitches whose physical key-up arrived while the
	// pedal was down; their intervals close at pedal-up.
	deferred map[uint8]bool

	malformed uint64
}

func NewSession(store *notebuf.Store) *Session {
	return &Session{
		store:    store,
		deferred: make(map[uint8]bool),
	}
}

// Handle normalizes one raw message stamped with its arrival instant.
// Non-note, non-sustain messages are dropped. Malformed values are counted
// and logged, never fatal. Returns true if the message changed anything.
func (s *Session) Handle(msg midi.Message, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ch, key, vel uint8

	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		if !validNote(ch, key) {
			s.dropMalformed("note-on", ch, key)
			return false
		}
		// A re-strike of a deferred pitch supersedes the pending close;
		// the store reopens the interval at this Down.
		delete(s.deferred, key)
		s.store.Append(model.NoteEvent{
			Pitch:    key,
			Velocity: vel,
			Kind:     model.KindDown,
			Time:     at,
			Channel:  ch,
		})
		return true

	case msg.GetNoteEnd(&ch, &key):
		if !validNote(ch, key) {
			s.dropMalformed("note-off", ch, key)
			return false
		}
		s.store.Append(model.NoteEvent{
			Pitch:   key,
			Kind:    model.KindUp,
			Time:    at,
			Channel: ch,
		})
		if s.pedal.Down {
			s.deferred[key] = true
		} else {
			s.store.CloseHeld(key, at)
		}
		return true

	case msg.GetControlChange(&ch, &key, &vel):
		if key != sustainController {
			return false
		}
		s.setPedal(vel >= 64, at)
		return true
	}

	return false
}

func (s *Session) setPedal(down bool, at time.Time) {
	if down == s.pedal.Down {
		return
	}
	s.pedal = model.PedalChange{Time: at, Down: down}
	if down {
		return
	}
	// Pedal released: every pitch whose key already came up stops
	// sounding now.
	for pitch := range s.deferred {
		s.store.CloseHeld(pitch, at)
	}
	s.deferred = make(map[uint8]bool)
}

// PedalDown reports the current sustain state.
func (s *Session) PedalDown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pedal.Down
}

// Pedal returns the last sustain transition, zero if none happened yet.
func (s *Session) Pedal() model.PedalChange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pedal
}

// Malformed is the count of discarded garbage messages.
func (s *Session) Malformed() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.malformed
}

// End closes every open interval at the given instant, pedal or not. Used
// when the device stream terminates.
func (s *Session) End(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deferred = make(map[uint8]bool)
	s.pedal = model.PedalChange{Time: at}
	s.store.CloseAllOpen(at)
}

func (s *Session) dropMalformed(what string, ch, key uint8) {
	s.malformed++
	log.WithFields(log.Fields{"type": what, "channel": ch, "key": key}).
		Warn("dropping malformed message")
}

func validNote(ch, key uint8) bool {
	return ch <= 15 && key <= 127
}
