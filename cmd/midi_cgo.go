//go:build cgo

package cmd

import (
	"fmt"

	"github.com/gridsynth/gridsynth/midi"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// OpenMIDI starts forwarding the first MIDI input whose name starts with
// prefix to l. Call the returned function to stop.
func OpenMIDI(l *midi.Listener, prefix string) (stop func(), err error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("could not open MIDI driver: %w", err)
	}
	in, err := midi.FindInput(drv, prefix)
	if err != nil {
		drv.Close()
		return nil, err
	}
	stopListening, err := midi.Listen(in, l)
	if err != nil {
		drv.Close()
		return nil, err
	}
	return func() {
		stopListening()
		drv.Close()
	}, nil
}
