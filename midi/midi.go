// Package midi turns MIDI input into engine operations.
package midi

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	gs "github.com/gridsynth/gridsynth"
	"github.com/gridsynth/gridsynth/engine"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

type (
	// Submitter queues a function to run on the engine goroutine without
	// blocking. engine.Runner is a Submitter.
	Submitter interface {
		Submit(f func(*engine.Engine)) bool
	}

	// Listener receives MIDI messages and forwards them to the engine.
	// Note-on plays the note on TrackID, or on the master bus (and the
	// arpeggiator) if TrackID is empty; note-off releases it. Controller 64
	// is the sustain pedal and controller 123 stops every voice.
	Listener struct {
		TrackID string
		Channel int // -1 listens on every channel

		submit Submitter
		logger *slog.Logger
	}
)

const (
	ccSustain      = 64
	ccAllNotesOff  = 123
	sustainPressed = 64
)

func NewListener(s Submitter, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{Channel: -1, submit: s, logger: logger}
}

// HandleMessage has the signature midi.ListenTo expects. It is called on the
// driver's goroutine and never blocks; messages are dropped if the engine
// queue is full.
func (l *Listener) HandleMessage(msg midi.Message, timestampms int32) {
	var ch, key, vel, cc, val uint8
	var f func(*engine.Engine)
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		freq, track := gs.NoteFrequency(int(key)), l.TrackID
		f = func(e *engine.Engine) { e.PlayNote(freq, track) }
	case msg.GetNoteEnd(&ch, &key):
		freq := gs.NoteFrequency(int(key))
		f = func(e *engine.Engine) { e.ReleaseNote(freq) }
	case msg.GetControlChange(&ch, &cc, &val):
		switch cc {
		case ccSustain:
			on := val >= sustainPressed
			f = func(e *engine.Engine) { e.SetSustain(on) }
		case ccAllNotesOff:
			f = func(e *engine.Engine) { e.StopAllVoices() }
		default:
			return
		}
	default:
		return
	}
	if l.Channel >= 0 && int(ch) != l.Channel {
		return
	}
	if !l.submit.Submit(f) {
		l.logger.Warn("engine busy, dropping MIDI message", slog.String("msg", msg.String()))
	}
}

// Listen opens in and starts forwarding its messages to l. Call the returned
// function to stop listening and close the port.
func Listen(in drivers.In, l *Listener) (stop func(), err error) {
	if !in.IsOpen() {
		if err := in.Open(); err != nil {
			return nil, fmt.Errorf("opening MIDI input %v failed: %w", in, err)
		}
	}
	stopFn, err := midi.ListenTo(in, l.HandleMessage)
	if err != nil {
		in.Close()
		return nil, fmt.Errorf("listening to MIDI input %v failed: %w", in, err)
	}
	l.logger.Info("listening to MIDI input", slog.String("port", in.String()))
	return func() {
		stopFn()
		in.Close()
	}, nil
}

// FindInput returns the first input port of drv whose name starts with
// prefix, or the first port at all if prefix is empty.
func FindInput(drv drivers.Driver, prefix string) (drivers.In, error) {
	ins, err := drv.Ins()
	if err != nil {
		return nil, fmt.Errorf("could not list MIDI inputs: %w", err)
	}
	for _, in := range ins {
		if strings.HasPrefix(in.String(), prefix) {
			return in, nil
		}
	}
	if prefix == "" {
		return nil, errors.New("could not find any MIDI input")
	}
	return nil, fmt.Errorf("could not find a MIDI input starting with %q", prefix)
}
