// Package verify runs one listening attempt against a pattern and settles
// on a terminal verdict. It only ever reads the store through a cursor;
// the device side keeps appending, never blocked by us.
package verify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/jsphweid/keydrill/constants"
	"github.com/jsphweid/keydrill/model"
	"github.com/jsphweid/keydrill/notebuf"
	"github.com/jsphweid/keydrill/pattern"
	"github.com/jsphweid/keydrill/util"
)

var ErrEmptyPattern = errors.New("verify: pattern has no notes")

// Budget caps one attempt. Zero values fall back to the pattern's own
// tolerances, then to the configured defaults.
type Budget struct {
	MaxNotes  int
	PerNote   time.Duration
	MaxListen time.Duration
}

type Engine struct {
	store *notebuf.Store
}

func New(store *notebuf.Store) *Engine {
	return &Engine{store: store}
}

// Listen consumes Down events as they arrive and matches them against p.
// Only events appended after the call count toward the attempt. The first
// observed pitch establishes the played root for relative patterns.
// Returns a terminal Verdict, or the context error if the attempt was
// cancelled (the store is left untouched either way).
func (e *Engine) Listen(ctx context.Context, p pattern.Pattern, b Budget) (model.Verdict, error) {
	return e.ListenFrom(ctx, p, b, e.store.LastSeq())
}

// ListenFrom is Listen with an explicit cursor: events with seq > after
// are considered part of the attempt.
func (e *Engine) ListenFrom(ctx context.Context, p pattern.Pattern, b Budget, after uint64) (model.Verdict, error) {
	if p.Len() == 0 {
		return model.Verdict{}, ErrEmptyPattern
	}

	id := uuid.NewString()
	perNote := pick(b.PerNote, p.PerNote, constants.GetPerNoteTimeout())
	maxListen := pick(b.MaxListen, p.MaxTotal, constants.GetListenBudget())
	overall := time.Now().Add(maxListen)

	logger := log.WithFields(log.Fields{"attempt": id, "pattern": p.Name})
	logger.Debug("listening")

	cursor := after
	width := e.store.Width()

	var (
		root      uint8
		lastPitch uint8
		lastTime  time.Time
		heard     int
		pos       int
	)

	for pos < p.Len() {
		deadline := time.Now().Add(perNote)
		if deadline.After(overall) {
			deadline = overall
		}

		ev, err := e.store.Next(ctx, cursor, deadline)
		if errors.Is(err, notebuf.ErrWaitTimeout) {
			return e.expired(id, heard, logger), nil
		}
		if err != nil {
			logger.WithError(err).Debug("attempt cancelled")
			return model.Verdict{}, err
		}
		cursor = ev.Seq

		if ev.Kind != model.KindDown {
			continue
		}

		// A quick re-strike of the note just heard is the same note
		// sounding again, not a new one -- unless the pattern actually
		// wants that pitch twice in a row here.
		if heard > 0 && ev.Pitch == lastPitch &&
			ev.Time.Sub(lastTime) <= width && !p.RepeatsAt(pos) {
			lastTime = ev.Time
			continue
		}

		heard++
		lastPitch, lastTime = ev.Pitch, ev.Time
		if pos == 0 && !p.Exact() {
			root = ev.Pitch
		}

		expected := p.ExpectedAt(pos, root)
		if ev.Pitch != expected {
			d := Diagnose(pos, expected, ev.Pitch)
			logger.WithField("diagnosis", d.String()).Info("mismatch")
			return model.Verdict{
				AttemptID:  id,
				Kind:       model.VerdictMismatch,
				Diagnosis:  &d,
				NotesHeard: heard,
			}, nil
		}
		pos++

		if b.MaxNotes > 0 && heard >= b.MaxNotes && pos < p.Len() {
			return e.expired(id, heard, logger), nil
		}
	}

	logger.Info("matched")
	return model.Verdict{AttemptID: id, Kind: model.VerdictMatched, NotesHeard: heard}, nil
}

func (e *Engine) expired(id string, heard int, logger *log.Entry) model.Verdict {
	kind := model.VerdictIncomplete
	if heard == 0 {
		kind = model.VerdictTimedOut
	}
	logger.WithFields(log.Fields{"heard": heard, "verdict": kind}).Info("budget exhausted")
	return model.Verdict{AttemptID: id, Kind: kind, NotesHeard: heard}
}

// Diagnose classifies the first divergence. One semitone off is almost
// always a missed accidental; anything bigger is a wrong note. Advisory
// only -- the verdict is Mismatch either way.
func Diagnose(pos int, expected, observed uint8) model.Diagnosis {
	delta := int(observed) - int(expected)
	class := model.WrongNote
	if util.Abs(delta) == 1 {
		class = model.LikelyAccidental
	}
	return model.Diagnosis{
		Position: pos,
		Expected: expected,
		Observed: observed,
		Delta:    delta,
		Class:    class,
	}
}

func pick(vals ...time.Duration) time.Duration {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}
