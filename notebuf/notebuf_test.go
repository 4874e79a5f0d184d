package notebuf

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jsphweid/keydrill/model"
)

const width = 5 * time.Millisecond

func newStore() *Store {
	return New(width, 5*time.Minute, 4*time.Second)
}

func down(pitch uint8, t time.Time) model.NoteEvent {
	return model.NoteEvent{Pitch: pitch, Velocity: 80, Kind: model.KindDown, Time: t}
}

func up(pitch uint8, t time.Time) model.NoteEvent {
	return model.NoteEvent{Pitch: pitch, Kind: model.KindUp, Time: t}
}

func TestHeldTracksPhysicalKeys(t *testing.T) {
	s := newStore()
	t0 := time.Now()

	s.Append(down(60, t0))
	s.Append(down(64, t0.Add(100*time.Millisecond)))
	s.Append(up(60, t0.Add(200*time.Millisecond)))
	s.CloseHeld(60, t0.Add(200*time.Millisecond))

	assert := assert.New(t)
	assert.Equal([]uint8{60, 64}, s.HeldAt(t0.Add(150*time.Millisecond)))
	assert.Equal([]uint8{64}, s.HeldAt(t0.Add(300*time.Millisecond)))
	assert.True(s.IsHeld(64, t0.Add(300*time.Millisecond)))
	assert.False(s.IsHeld(60, t0.Add(300*time.Millisecond)))
}

func TestHeldToleranceAtEdges(t *testing.T) {
	s := newStore()
	t0 := time.Now()

	s.Append(down(60, t0))
	s.Append(up(60, t0.Add(100*time.Millisecond)))
	s.CloseHeld(60, t0.Add(100*time.Millisecond))

	assert := assert.New(t)
	// one bucket width of slack on both ends
	assert.True(s.IsHeld(60, t0.Add(-width/2)))
	assert.True(s.IsHeld(60, t0.Add(100*time.Millisecond).Add(width/2)))
	assert.False(s.IsHeld(60, t0.Add(100*time.Millisecond).Add(2*width)))
	assert.False(s.IsHeld(60, t0.Add(-2*width)))
}

func TestRestrikeReopensInterval(t *testing.T) {
	s := newStore()
	t0 := time.Now()

	s.Append(down(60, t0))
	// re-strike without an Up: old interval closes, new one opens
	s.Append(down(60, t0.Add(50*time.Millisecond)))

	assert := assert.New(t)
	assert.True(s.IsHeld(60, t0.Add(25*time.Millisecond)))
	assert.True(s.IsHeld(60, t0.Add(75*time.Millisecond)))

	s.CloseHeld(60, t0.Add(100*time.Millisecond))
	assert.False(s.IsHeld(60, t0.Add(200*time.Millisecond)))
}

func TestEventsBetweenSpansBuckets(t *testing.T) {
	s := newStore()
	t0 := time.Now()

	// two strikes half a bucket apart, possibly straddling a boundary
	s.Append(down(60, t0))
	s.Append(down(64, t0.Add(width/2)))

	got := s.EventsBetween(t0, t0.Add(width))
	assert := assert.New(t)
	assert.Len(got, 2)
	assert.Equal(uint8(60), got[0].Pitch)
	assert.Equal(uint8(64), got[1].Pitch)
}

func TestEventsBetweenIsIdempotent(t *testing.T) {
	s := newStore()
	t0 := time.Now()
	for i := 0; i < 10; i++ {
		s.Append(down(uint8(60+i), t0.Add(time.Duration(i)*width/3)))
	}

	a := s.EventsBetween(t0.Add(-time.Second), t0.Add(time.Second))
	b := s.EventsBetween(t0.Add(-time.Second), t0.Add(time.Second))

	assert := assert.New(t)
	assert.Len(a, 10)
	assert.Equal(a, b)
}

func TestEventsNearSeesAdjacentBucket(t *testing.T) {
	s := newStore()
	t0 := time.Now()

	ev := s.Append(down(60, t0))

	assert := assert.New(t)
	// visible from the bucket before and after via shadows
	for _, probe := range []time.Time{t0.Add(-width), t0, t0.Add(width)} {
		near := s.EventsNear(probe)
		found := false
		for _, n := range near {
			if n.Seq == ev.Seq {
				found = true
			}
		}
		assert.True(found, "event not visible near %v", probe.Sub(t0))
	}
}

func TestEventsOrderedByTimeThenArrival(t *testing.T) {
	s := newStore()
	t0 := time.Now()

	// exact tie: arrival order must win
	s.Append(down(64, t0))
	s.Append(down(60, t0))

	got := s.EventsBetween(t0, t0)
	assert := assert.New(t)
	assert.Len(got, 2)
	assert.Equal(uint8(64), got[0].Pitch)
	assert.Equal(uint8(60), got[1].Pitch)
}

func TestNextReturnsBufferedEvent(t *testing.T) {
	s := newStore()
	t0 := time.Now()
	s.Append(down(60, t0))

	ev, err := s.Next(context.Background(), 0, time.Now().Add(time.Second))
	assert := assert.New(t)
	assert.NoError(err)
	assert.Equal(uint8(60), ev.Pitch)

	// cursor advanced past everything: deadline applies
	_, err = s.Next(context.Background(), ev.Seq, time.Now().Add(10*time.Millisecond))
	assert.ErrorIs(err, ErrWaitTimeout)
}

func TestNextWakesOnAppend(t *testing.T) {
	s := newStore()

	go func() {
		time.Sleep(20 * time.Millisecond)
		s.Append(down(72, time.Now()))
	}()

	start := time.Now()
	ev, err := s.Next(context.Background(), 0, time.Now().Add(2*time.Second))
	assert := assert.New(t)
	assert.NoError(err)
	assert.Equal(uint8(72), ev.Pitch)
	assert.Less(time.Since(start), time.Second, "should wake on append, not deadline")
}

func TestNextReleasesOnCancel(t *testing.T) {
	s := newStore()
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := s.Next(ctx, 0, time.Now().Add(10*time.Second))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunBounds(t *testing.T) {
	s := newStore()
	t0 := time.Now()

	s.Append(down(60, t0))
	s.Append(up(60, t0.Add(200*time.Millisecond)))
	s.CloseHeld(60, t0.Add(200*time.Millisecond))
	s.Append(down(62, t0.Add(300*time.Millisecond)))
	s.Append(up(62, t0.Add(500*time.Millisecond)))
	s.CloseHeld(62, t0.Add(500*time.Millisecond))

	start, end, ok := s.RunBounds(60, 62)
	assert := assert.New(t)
	assert.True(ok)
	assert.Equal(t0, start)
	assert.Equal(t0.Add(500*time.Millisecond), end)

	_, _, ok = s.RunBounds(62, 60)
	assert.False(ok, "reversed order should not match forward search")
}

func TestRunBoundsRespectsRunBreak(t *testing.T) {
	s := New(width, 5*time.Minute, time.Second)
	t0 := time.Now()

	s.Append(down(60, t0))
	// a long silence starts a new run; 62 is not in 60's run anymore
	s.Append(down(62, t0.Add(3*time.Second)))

	_, _, ok := s.RunBounds(60, 62)
	assert.False(t, ok)
}

func TestEvictDropsExpired(t *testing.T) {
	s := New(width, 100*time.Millisecond, time.Second)
	t0 := time.Now()
	old := t0.Add(-time.Minute)

	s.Append(down(60, old))
	s.Append(up(60, old.Add(10*time.Millisecond)))
	s.CloseHeld(60, old.Add(10*time.Millisecond))
	// a long gap records a run start that should age out with its events
	s.Append(down(62, old.Add(10*time.Second)))
	fresh := s.Append(down(64, t0))

	s.evict()

	assert := assert.New(t)
	got := s.EventsBetween(old.Add(-time.Second), t0.Add(time.Second))
	if assert.Len(got, 1) {
		assert.Equal(fresh.Seq, got[0].Seq)
	}
	assert.False(s.IsHeld(60, old.Add(5*time.Millisecond)), "expired interval must be pruned")
	assert.Empty(s.EventsNear(old), "expired buckets must be pruned")
	// the surviving event still marks a run start; the aged-out one is gone
	assert.Equal([]uint64{fresh.Seq}, s.runStarts)
}

func TestEvictionRunsWhileStreamIsBusy(t *testing.T) {
	s := New(width, 100*time.Millisecond, time.Minute)
	stale := time.Now().Add(-time.Minute)

	// a continuous stream of already-expired events, appends never pausing
	// long enough for a quiet-time sweep
	for i := 0; i < 30; i++ {
		s.Append(down(60, stale.Add(time.Duration(i)*time.Millisecond)))
	}
	// once the sweep interval has elapsed the next append must evict
	// inline, not wait for silence
	s.mu.Lock()
	s.lastSweep = time.Now().Add(-time.Second)
	s.mu.Unlock()
	s.Append(down(60, stale.Add(30*time.Millisecond)))

	assert.Equal(t, 0, s.Len(), "expired events must be dropped while appending continues")
}

func TestClearKeepsSeqMonotonic(t *testing.T) {
	s := newStore()
	t0 := time.Now()

	first := s.Append(down(60, t0))
	s.Clear()
	second := s.Append(down(62, time.Now()))

	assert := assert.New(t)
	assert.Equal(0, len(s.EventsBetween(t0.Add(-time.Hour), t0)))
	assert.Greater(second.Seq, first.Seq)
	assert.Equal(1, s.Len())
}
