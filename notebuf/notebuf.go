// Package notebuf is the live, append-only store of everything the player
// has done this session. Events are indexed into fixed-width time buckets
// so "at the same instant" questions tolerate human jitter, and a blocking
// cursor lets the verification side sleep until the next key lands.
package notebuf

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/bep/debounce"
	log "github.com/sirupsen/logrus"

	"github.com/jsphweid/keydrill/model"
	"github.com/jsphweid/keydrill/util"
)

// ErrWaitTimeout is returned by Next when the deadline passes before a
// qualifying event shows up. Not an error condition for callers so much as
// a normal "the player stopped playing" signal.
var ErrWaitTimeout = errors.New("notebuf: no event before deadline")

// entry is one bucket slot. Every event has exactly one authoritative
// entry (in the bucket its timestamp lands in) plus shadow entries in the
// two neighboring buckets so single-bucket lookups near a boundary still
// see it. Shadows are never counted by range queries by construction.
type entry struct {
	ev            *model.NoteEvent
	authoritative bool
}

type Store struct {
	mu        sync.Mutex
	width     time.Duration
	retention time.Duration
	runBreak  time.Duration

	// log holds the authoritative events in append order, which is also
	// non-decreasing timestamp order since the normalizer is the sole
	// writer and stamps at arrival.
	log []*model.NoteEvent
	seq uint64

	buckets map[int64][]entry

	open   map[uint8]*model.HeldInterval
	closed map[uint8][]model.HeldInterval

	// runStarts are seqs where a new run begins (a silence gap longer
	// than runBreak preceded them).
	runStarts  []uint64
	lastAppend time.Time

	notify chan struct{}

	// sweepEvery throttles the inline eviction sweep on a busy stream;
	// the debounced sweeper catches the tail once appends go quiet.
	sweepEvery time.Duration
	lastSweep  time.Time
	sweeper    func(func())
}

func New(width, retention, runBreak time.Duration) *Store {
	return &Store{
		width:      width,
		retention:  retention,
		runBreak:   runBreak,
		buckets:    make(map[int64][]entry),
		open:       make(map[uint8]*model.HeldInterval),
		closed:     make(map[uint8][]model.HeldInterval),
		notify:     make(chan struct{}),
		sweepEvery: 500 * time.Millisecond,
		sweeper:    debounce.New(500 * time.Millisecond),
	}
}

func (s *Store) Width() time.Duration { return s.width }

func (s *Store) bucketOf(t time.Time) int64 {
	return t.UnixNano() / s.width.Nanoseconds()
}

// Append ingests one normalized event. A Down for a pitch that is already
// open is a re-strike: the old interval closes at the new Down and a fresh
// one opens. Returns the event as stored (with its seq assigned).
func (s *Store) Append(ev model.NoteEvent) model.NoteEvent {
	s.mu.Lock()

	s.seq++
	ev.Seq = s.seq
	stored := &ev

	if !s.lastAppend.IsZero() && ev.Time.Sub(s.lastAppend) > s.runBreak {
		s.runStarts = append(s.runStarts, ev.Seq)
		log.WithField("gap", ev.Time.Sub(s.lastAppend)).Debug("new run")
	}
	if ev.Time.After(s.lastAppend) {
		s.lastAppend = ev.Time
	}

	s.log = append(s.log, stored)

	b := s.bucketOf(ev.Time)
	s.buckets[b] = append(s.buckets[b], entry{ev: stored, authoritative: true})
	s.buckets[b-1] = append(s.buckets[b-1], entry{ev: stored})
	s.buckets[b+1] = append(s.buckets[b+1], entry{ev: stored})

	if ev.Kind == model.KindDown {
		if prev, ok := s.open[ev.Pitch]; ok {
			prev.End = ev.Time
			prev.Released = true
			s.closed[ev.Pitch] = append(s.closed[ev.Pitch], *prev)
		}
		s.open[ev.Pitch] = &model.HeldInterval{Pitch: ev.Pitch, Start: ev.Time}
	}

	due := time.Since(s.lastSweep) >= s.sweepEvery
	close(s.notify)
	s.notify = make(chan struct{})
	s.mu.Unlock()

	// A busy stream sweeps inline at most once per interval; a debounce
	// alone would keep postponing while the player keeps playing. The
	// debounced sweep still catches the tail once the stream goes quiet.
	if due {
		s.evict()
	} else {
		s.sweeper(s.evict)
	}
	return ev
}

// CloseHeld marks a pitch released effective at end. The normalizer calls
// this at physical key-up when the pedal is up, or at pedal-up for every
// pitch whose key-up was deferred.
func (s *Store) CloseHeld(pitch uint8, end time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	iv, ok := s.open[pitch]
	if !ok {
		return
	}
	if end.Before(iv.Start) {
		end = iv.Start
	}
	iv.End = end
	iv.Released = true
	s.closed[pitch] = append(s.closed[pitch], *iv)
	delete(s.open, pitch)
}

// IsHeld answers "is this key sounding at t" with one bucket width of
// tolerance on both edges. The open-interval map is the O(1) fast path for
// the common live query; closed intervals are checked newest-first and the
// scan stops as soon as intervals end before the tolerance window.
func (s *Store) IsHeld(pitch uint8, t time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isHeldLocked(pitch, t)
}

func (s *Store) isHeldLocked(pitch uint8, t time.Time) bool {
	if iv, ok := s.open[pitch]; ok && iv.Covers(t, s.width) {
		return true
	}
	ivs := s.closed[pitch]
	for i := len(ivs) - 1; i >= 0; i-- {
		if ivs[i].Covers(t, s.width) {
			return true
		}
		if ivs[i].End.Add(s.width).Before(t) {
			break
		}
	}
	return false
}

// HeldAt returns every pitch sounding at t, tolerance as in IsHeld.
func (s *Store) HeldAt(t time.Time) []uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[uint8]bool)
	for pitch, iv := range s.open {
		if iv.Covers(t, s.width) {
			seen[pitch] = true
		}
	}
	for pitch, ivs := range s.closed {
		if seen[pitch] {
			continue
		}
		for i := len(ivs) - 1; i >= 0; i-- {
			if ivs[i].Covers(t, s.width) {
				seen[pitch] = true
				break
			}
			if ivs[i].End.Add(s.width).Before(t) {
				break
			}
		}
	}
	return util.GetKeysSorted(seen)
}

// EventsBetween returns the authoritative events with t0 <= t <= t1 in
// timestamp order (arrival order for ties). It reads the ordered log, not
// the buckets, so shadow entries can never double-count.
func (s *Store) EventsBetween(t0, t1 time.Time) []model.NoteEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	lo := sort.Search(len(s.log), func(i int) bool {
		return !s.log[i].Time.Before(t0)
	})
	var res []model.NoteEvent
	for i := lo; i < len(s.log); i++ {
		if s.log[i].Time.After(t1) {
			break
		}
		res = append(res, *s.log[i])
	}
	return res
}

// EventsNear returns every event indexed under t's bucket, shadows
// included, in arrival order. This is the boundary-tolerant point lookup:
// an event up to one bucket away is still visible here.
func (s *Store) EventsNear(t time.Time) []model.NoteEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.buckets[s.bucketOf(t)]
	res := make([]model.NoteEvent, 0, len(entries))
	for _, e := range entries {
		res = append(res, *e.ev)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Seq < res[j].Seq })
	return res
}

// Next blocks until an event with seq > after exists, then returns the
// earliest such event. It wakes immediately on append, deadline, or
// context cancellation, and never mutates the store.
func (s *Store) Next(ctx context.Context, after uint64, deadline time.Time) (model.NoteEvent, error) {
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	for {
		s.mu.Lock()
		if ev, ok := s.nextLocked(after); ok {
			s.mu.Unlock()
			return ev, nil
		}
		ch := s.notify
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return model.NoteEvent{}, ctx.Err()
		case <-timer.C:
			return model.NoteEvent{}, ErrWaitTimeout
		case <-ch:
		}
	}
}

func (s *Store) nextLocked(after uint64) (model.NoteEvent, bool) {
	if len(s.log) == 0 {
		return model.NoteEvent{}, false
	}
	first := s.log[0].Seq
	idx := 0
	if after >= first {
		idx = int(after-first) + 1
	}
	if idx >= len(s.log) {
		return model.NoteEvent{}, false
	}
	return *s.log[idx], true
}

// LastSeq is the seq of the most recent event, 0 when empty. An engine
// that wants to ignore history starts its cursor here.
func (s *Store) LastSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// RunBounds finds a contiguous run (no silence break) containing a Down of
// first followed by a Down of second, searching forward from the first
// occurrence of first. Returns the run span: first Down time through the
// effective end of the second pitch.
func (s *Store) RunBounds(first, second uint8) (time.Time, time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := 0; i < len(s.log); i++ {
		if s.log[i].Kind != model.KindDown || s.log[i].Pitch != first {
			continue
		}
		for j := i + 1; j < len(s.log); j++ {
			if s.runBreakBetween(s.log[i].Seq, s.log[j].Seq) {
				break
			}
			if s.log[j].Kind == model.KindDown && s.log[j].Pitch == second {
				return s.log[i].Time, s.effectiveEnd(s.log[j].Pitch, s.log[j].Time), true
			}
		}
	}
	return time.Time{}, time.Time{}, false
}

func (s *Store) runBreakBetween(a, b uint64) bool {
	for _, rs := range s.runStarts {
		if rs > a && rs <= b {
			return true
		}
	}
	return false
}

func (s *Store) effectiveEnd(pitch uint8, after time.Time) time.Time {
	if iv, ok := s.open[pitch]; ok && !iv.Start.After(after) {
		return s.lastAppend
	}
	for _, iv := range s.closed[pitch] {
		if !iv.Start.After(after) && !iv.End.Before(after) {
			return iv.End
		}
	}
	return after
}

// CloseAllOpen releases every still-open interval at the given instant.
// Used when the session ends (device gone, user quit).
func (s *Store) CloseAllOpen(end time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for pitch, iv := range s.open {
		if end.Before(iv.Start) {
			iv.End = iv.Start
		} else {
			iv.End = end
		}
		iv.Released = true
		s.closed[pitch] = append(s.closed[pitch], *iv)
		delete(s.open, pitch)
	}
}

// Snapshot copies the current authoritative log, oldest first. Console "p".
func (s *Store) Snapshot() []model.NoteEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := make([]model.NoteEvent, len(s.log))
	for i, ev := range s.log {
		res[i] = *ev
	}
	return res
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.log)
}

// Clear drops all history but keeps the seq counter running so existing
// cursors never see an event twice. Console "n" (new run).
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = nil
	s.buckets = make(map[int64][]entry)
	s.open = make(map[uint8]*model.HeldInterval)
	s.closed = make(map[uint8][]model.HeldInterval)
	s.runStarts = nil
	s.lastAppend = time.Time{}
}

// evict drops everything older than the retention window. Runs inline at
// most once per sweep interval while the stream is busy, plus a debounced
// sweep once it goes quiet.
func (s *Store) evict() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastSweep = time.Now()
	if len(s.log) == 0 {
		return
	}
	cutoff := time.Now().Add(-s.retention)

	n := sort.Search(len(s.log), func(i int) bool {
		return !s.log[i].Time.Before(cutoff)
	})
	if n == 0 {
		return
	}
	dropped := s.log[:n]
	s.log = append([]*model.NoteEvent(nil), s.log[n:]...)

	minBucket := s.bucketOf(cutoff) - 1
	for b := range s.buckets {
		if b < minBucket {
			delete(s.buckets, b)
		}
	}
	for pitch, ivs := range s.closed {
		keep := ivs[:0]
		for _, iv := range ivs {
			if !iv.End.Before(cutoff) {
				keep = append(keep, iv)
			}
		}
		if len(keep) == 0 {
			delete(s.closed, pitch)
		} else {
			s.closed[pitch] = keep
		}
	}
	var oldestSeq uint64
	if len(dropped) > 0 {
		oldestSeq = dropped[len(dropped)-1].Seq
	}
	keepRuns := s.runStarts[:0]
	for _, rs := range s.runStarts {
		if rs > oldestSeq {
			keepRuns = append(keepRuns, rs)
		}
	}
	s.runStarts = keepRuns

	log.WithField("dropped", n).Debug("evicted old events")
}
