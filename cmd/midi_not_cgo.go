//go:build !cgo

package cmd

import (
	"errors"

	"github.com/gridsynth/gridsynth/midi"
)

// OpenMIDI always fails: without cgo there is no MIDI driver.
func OpenMIDI(l *midi.Listener, prefix string) (stop func(), err error) {
	return nil, errors.New("MIDI input needs a build with cgo enabled")
}
