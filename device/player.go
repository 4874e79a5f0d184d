package device

import (
	"context"
	"fmt"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// Player sends notes back out, for ear-training playback.
type Player struct {
	drv  *rtmididrv.Driver
	out  drivers.Out
	send func(midi.Message) error
}

// OpenOutput connects to the named output port, or the only one present
// when name is empty.
func OpenOutput(name string) (*Player, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("rtmidi: %w", err)
	}
	outs, err := drv.Outs()
	if err != nil {
		drv.Close()
		return nil, err
	}

	var found drivers.Out
	for _, out := range outs {
		if name == "" || out.String() == name {
			found = out
			break
		}
	}
	if found == nil {
		drv.Close()
		return nil, fmt.Errorf("device: output %q not found", name)
	}
	if err := found.Open(); err != nil {
		drv.Close()
		return nil, fmt.Errorf("device: open %q: %w", found.String(), err)
	}
	send, err := midi.SendTo(found)
	if err != nil {
		drv.Close()
		return nil, err
	}
	return &Player{drv: drv, out: found, send: send}, nil
}

// PlaySequence emits the pitches one at a time, each held for hold and
// followed by gap of silence. onNote fires per note after the NoteOn goes
// out; the ear-training comparator records the reference through it.
func (p *Player) PlaySequence(ctx context.Context, pitches []uint8, hold, gap time.Duration, onNote func(uint8)) error {
	for _, pitch := range pitches {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.send(midi.NoteOn(0, pitch, 90)); err != nil {
			return fmt.Errorf("device: note on: %w", err)
		}
		if onNote != nil {
			onNote(pitch)
		}
		if err := sleep(ctx, hold); err != nil {
			_ = p.send(midi.NoteOff(0, pitch))
			return err
		}
		if err := p.send(midi.NoteOff(0, pitch)); err != nil {
			return fmt.Errorf("device: note off: %w", err)
		}
		if err := sleep(ctx, gap); err != nil {
			return err
		}
	}
	return nil
}

func (p *Player) Close() {
	if p.out != nil {
		_ = p.out.Close()
	}
	if p.drv != nil {
		p.drv.Close()
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
