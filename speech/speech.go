// Package speech renders prompts as text and pushes them at the system
// text-to-speech command, fire and forget.
package speech

import (
	"fmt"
	"os/exec"

	log "github.com/sirupsen/logrus"

	"github.com/jsphweid/keydrill/model"
)

// Flats read terribly when spoken letter-for-letter.
var pronunciations = map[string]string{
	"Bb": "B Flat",
	"Eb": "E Flat",
	"Ab": "A Flat",
	"C#": "C Sharp",
	"F#": "F Sharp",
}

// Pronounce maps a note letter to how it should be spoken.
func Pronounce(note string) string {
	if special, ok := pronunciations[note]; ok {
		return special
	}
	return note
}

// Speaker is the prompt boundary the core calls into. No return value is
// ever observed beyond fire-and-forget.
type Speaker interface {
	Say(text string)
}

// SaySpeaker shells out to the `say` command.
type SaySpeaker struct {
	Voice string
}

func (s SaySpeaker) Say(text string) {
	voice := s.Voice
	if voice == "" {
		voice = "Moira"
	}
	cmd := exec.Command("say", "--voice="+voice, text)
	if err := cmd.Start(); err != nil {
		log.WithError(err).Warn("tts unavailable")
		return
	}
	go func() {
		_ = cmd.Wait()
	}()
}

// LogSpeaker just prints; the fallback when no TTS is on the box.
type LogSpeaker struct{}

func (LogSpeaker) Say(text string) {
	fmt.Printf("[prompt] %s\n", text)
}

// RenderVerdict turns a verdict into the sentence spoken back at the
// player.
func RenderVerdict(v model.Verdict) string {
	switch v.Kind {
	case model.VerdictMatched:
		return "Nice, that's it."
	case model.VerdictMismatch:
		d := v.Diagnosis
		if d == nil {
			return "Not quite."
		}
		if d.Class == model.LikelyAccidental {
			return fmt.Sprintf("Close. Note %d should be %s, you played %s. Watch the accidental.",
				d.Position+1, pronounceFull(d.Expected), pronounceFull(d.Observed))
		}
		return fmt.Sprintf("Not quite. Note %d should be %s, you played %s.",
			d.Position+1, pronounceFull(d.Expected), pronounceFull(d.Observed))
	case model.VerdictTimedOut:
		return "I didn't hear anything. Try again."
	case model.VerdictIncomplete:
		return fmt.Sprintf("I only heard %d notes. Try again.", v.NotesHeard)
	}
	return "Hmm."
}

func pronounceFull(pitch uint8) string {
	return fmt.Sprintf("%s %d", Pronounce(model.NoteLetter(pitch)), int(pitch)/12-1)
}
