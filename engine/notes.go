package engine

// PlayNote plays freq until ReleaseNote. With a track id the note goes
// through that track. Without one, the note sounds on the master bus, or is
// handed to the arpeggiator when it is on.
func (e *Engine) PlayNote(freq float64, trackID string) {
	if trackID == "" && e.arpActive() {
		e.HoldNote(freq)
		return
	}
	e.StartVoice(freq, trackID)
}

// ReleaseNote ends a note started with PlayNote. A note held by the
// arpeggiator leaves the held set; a sounding voice at freq, on any track,
// is released. While the sustain pedal is down the voice release waits
// until the pedal is lifted.
func (e *Engine) ReleaseNote(freq float64) {
	if e.arpActive() {
		e.ReleaseHeldNote(freq)
	}
	if e.sustain {
		e.sustained = append(e.sustained, freq)
		return
	}
	e.StopVoice(freq, "")
}

// SetSustain presses or lifts the sustain pedal. Lifting it releases every
// note whose release was held back.
func (e *Engine) SetSustain(on bool) {
	e.sustain = on
	if on {
		return
	}
	for _, f := range e.sustained {
		e.StopVoice(f, "")
	}
	e.sustained = nil
}
