// Package device is the MIDI transport boundary: one live input stream in,
// optional note playback out. Everything above it works in normalized
// events and never touches the driver.
package device

import (
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// ErrDeviceGone is the terminal stream-closed signal. The core does not
// reconnect; the session is over.
var ErrDeviceGone = errors.New("device: stream closed")

type Listener struct {
	drv  *rtmididrv.Driver
	in   drivers.In
	stop func()
	name string
}

// ListInputs enumerates available input port names.
func ListInputs() ([]string, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("rtmidi: %w", err)
	}
	defer drv.Close()

	ins, err := drv.Ins()
	if err != nil {
		return nil, err
	}
	var names []string
	for _, in := range ins {
		names = append(names, in.String())
	}
	return names, nil
}

// OpenInput connects to the named input port, or to the only one present
// when name is empty.
func OpenInput(name string) (*Listener, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("rtmidi: %w", err)
	}

	ins, err := drv.Ins()
	if err != nil {
		drv.Close()
		return nil, err
	}

	var found drivers.In
	switch {
	case name != "":
		for _, in := range ins {
			if in.String() == name {
				found = in
				break
			}
		}
		if found == nil {
			drv.Close()
			return nil, fmt.Errorf("device: input %q not found", name)
		}
	case len(ins) == 1:
		found = ins[0]
	case len(ins) == 0:
		drv.Close()
		return nil, errors.New("device: no MIDI input found")
	default:
		drv.Close()
		return nil, errors.New("device: multiple inputs found, pick one with --device")
	}

	if err := found.Open(); err != nil {
		drv.Close()
		return nil, fmt.Errorf("device: open %q: %w", found.String(), err)
	}
	return &Listener{drv: drv, in: found, name: found.String()}, nil
}

func (l *Listener) Name() string { return l.name }

// Listen starts delivering (message, arrival instant) pairs to onMsg from
// the driver goroutine. A listener error is treated as a disconnect and
// surfaces once through onClosed.
func (l *Listener) Listen(onMsg func(midi.Message, time.Time), onClosed func(error)) error {
	stop, err := midi.ListenTo(l.in, func(msg midi.Message, _ int32) {
		onMsg(msg, time.Now())
	}, midi.HandleError(func(listenErr error) {
		log.WithError(listenErr).Warn("midi listener error, treating as disconnect")
		onClosed(fmt.Errorf("%w: %v", ErrDeviceGone, listenErr))
	}))
	if err != nil {
		return fmt.Errorf("device: listen on %q: %w", l.name, err)
	}
	l.stop = stop
	log.WithField("device", l.name).Info("listening")
	return nil
}

func (l *Listener) Close() {
	if l.stop != nil {
		l.stop()
		l.stop = nil
	}
	if l.in != nil {
		_ = l.in.Close()
	}
	if l.drv != nil {
		l.drv.Close()
	}
}
