// Package eartrain is the echo drill: the program plays a short reference
// sequence at the student, then listens for it back pitch-exact and in
// order. Striking the lowest A twice means "play it again" instead of an
// attempt.
package eartrain

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/jsphweid/keydrill/constants"
	"github.com/jsphweid/keydrill/model"
	"github.com/jsphweid/keydrill/notebuf"
	"github.com/jsphweid/keydrill/verify"
)

var ErrNoReference = errors.New("eartrain: no reference recorded")

// Result is either a settled verdict or a replay request, never both.
type Result struct {
	Replay  bool
	Verdict model.Verdict
}

type Comparator struct {
	store *notebuf.Store

	mu  sync.Mutex
	ref []uint8
}

func New(store *notebuf.Store) *Comparator {
	return &Comparator{store: store}
}

// Record captures one note as it is emitted toward the device. The
// playback path calls this for every reference note it sends.
func (c *Comparator) Record(pitch uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ref = append(c.ref, pitch)
}

// Reset clears the recorded reference for the next exercise.
func (c *Comparator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ref = nil
}

// Reference returns a copy of the recorded sequence.
func (c *Comparator) Reference() []uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]uint8(nil), c.ref...)
}

// Listen waits for the student to echo the reference. Matching is
// order-sensitive and pitch-exact -- no transposition credit. A double
// strike of the lowest A within one bucket width, with nothing in
// between, aborts the attempt and asks for a replay.
func (c *Comparator) Listen(ctx context.Context, b verify.Budget) (Result, error) {
	return c.ListenFrom(ctx, b, c.store.LastSeq())
}

// ListenFrom is Listen with an explicit cursor: events with seq > after
// count as part of the attempt.
func (c *Comparator) ListenFrom(ctx context.Context, b verify.Budget, after uint64) (Result, error) {
	ref := c.Reference()
	if len(ref) == 0 {
		return Result{}, ErrNoReference
	}

	id := uuid.NewString()
	perNote := b.PerNote
	if perNote == 0 {
		perNote = constants.GetPerNoteTimeout()
	}
	maxListen := b.MaxListen
	if maxListen == 0 {
		maxListen = constants.GetListenBudget()
	}
	overall := time.Now().Add(maxListen)

	logger := log.WithFields(log.Fields{"attempt": id, "mode": "eartrain"})
	cursor := after
	width := c.store.Width()

	var (
		pending   *model.NoteEvent // a lone low-A, maybe half a replay request
		lastPitch uint8
		lastTime  time.Time
		heard     int
		pos       int
	)

	// evaluate scores one observed note against the reference and returns
	// a terminal verdict when it diverges.
	evaluate := func(ev model.NoteEvent) *model.Verdict {
		heard++
		lastPitch, lastTime = ev.Pitch, ev.Time
		if ev.Pitch != ref[pos] {
			d := verify.Diagnose(pos, ref[pos], ev.Pitch)
			logger.WithField("diagnosis", d.String()).Info("echo mismatch")
			return &model.Verdict{
				AttemptID:  id,
				Kind:       model.VerdictMismatch,
				Diagnosis:  &d,
				NotesHeard: heard,
			}
		}
		pos++
		return nil
	}

	for pos < len(ref) {
		deadline := time.Now().Add(perNote)
		if deadline.After(overall) {
			deadline = overall
		}
		// While half a replay request is pending we only wait out the
		// sentinel window before judging the note on its own.
		if pending != nil {
			w := pending.Time.Add(width)
			if w.Before(deadline) {
				deadline = w
			}
		}

		ev, err := c.store.Next(ctx, cursor, deadline)
		if errors.Is(err, notebuf.ErrWaitTimeout) {
			if pending != nil {
				// No second strike came; the lone low A was an attempt
				// note after all.
				p := *pending
				pending = nil
				if v := evaluate(p); v != nil {
					return Result{Verdict: *v}, nil
				}
				continue
			}
			return Result{Verdict: c.expired(id, heard, logger)}, nil
		}
		if err != nil {
			return Result{}, err
		}
		cursor = ev.Seq

		if ev.Kind != model.KindDown {
			continue
		}

		if pending != nil {
			if ev.Pitch == model.LowestA && ev.Time.Sub(pending.Time) <= width {
				logger.Info("replay requested")
				return Result{Replay: true}, nil
			}
			// Some other pitch intervened: judge the buffered A first.
			p := *pending
			pending = nil
			if v := evaluate(p); v != nil {
				return Result{Verdict: *v}, nil
			}
		}

		// Coalesce a quick re-strike unless the reference wants the
		// repeat here.
		if heard > 0 && ev.Pitch == lastPitch && ev.Time.Sub(lastTime) <= width &&
			!(pos > 0 && ref[pos] == ref[pos-1]) {
			lastTime = ev.Time
			continue
		}

		// A low A the reference does not expect could be the start of a
		// replay request; hold it for one bucket width.
		if ev.Pitch == model.LowestA && ref[pos] != model.LowestA {
			held := ev
			pending = &held
			continue
		}

		if v := evaluate(ev); v != nil {
			return Result{Verdict: *v}, nil
		}
	}

	logger.Info("echo matched")
	return Result{Verdict: model.Verdict{
		AttemptID:  id,
		Kind:       model.VerdictMatched,
		NotesHeard: heard,
	}}, nil
}

func (c *Comparator) expired(id string, heard int, logger *log.Entry) model.Verdict {
	kind := model.VerdictIncomplete
	if heard == 0 {
		kind = model.VerdictTimedOut
	}
	logger.WithFields(log.Fields{"heard": heard, "verdict": kind}).Info("echo budget exhausted")
	return model.Verdict{AttemptID: id, Kind: kind, NotesHeard: heard}
}
