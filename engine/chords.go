package engine

import (
	"log/slog"
	"math"
	"time"
)

type (
	// Chord is a set of notes given as semitone offsets from a root
	// frequency.
	Chord struct {
		Root      float64 `yaml:"root"`
		Intervals []int   `yaml:"intervals,flow"`
	}

	// Progression is a sequence of chords, each held for Beats beats.
	Progression struct {
		Chords []string `yaml:"chords,flow"`
		Beats  float64  `yaml:"beats"`
	}
)

// chordBeats is how long PlayChordByName holds a chord.
const chordBeats = 2

// Frequencies returns the frequencies of the chord's notes.
func (c Chord) Frequencies() []float64 {
	ret := make([]float64, len(c.Intervals))
	for i, semitones := range c.Intervals {
		ret[i] = c.Root * math.Exp2(float64(semitones)/12)
	}
	return ret
}

// PlayChordByName plays the named chord through PlayNote and releases it
// after two beats.
func (e *Engine) PlayChordByName(name string) {
	c, err := lookup(e.tables().Chords, name)
	if err != nil {
		e.logger.Warn("chord not played", slog.Any("error", err))
		return
	}
	e.playChord(c, e.now, e.beats(chordBeats))
}

// PlayProgressionByName plays the chords of the named progression one after
// another. Starting a progression drops the chords of the previous one that
// have not started yet.
func (e *Engine) PlayProgressionByName(name string) {
	t := e.tables()
	p, err := lookup(t.Progressions, name)
	if err != nil {
		e.logger.Warn("progression not played", slog.Any("error", err))
		return
	}
	for _, id := range e.progression {
		e.sched.cancel(id)
	}
	e.progression = e.progression[:0]
	beats := p.Beats
	if beats <= 0 {
		beats = chordBeats
	}
	dur := e.beats(beats)
	at := e.now
	for _, name := range p.Chords {
		c, err := lookup(t.Chords, name)
		if err != nil {
			e.logger.Warn("progression chord skipped", slog.Any("error", err))
			continue
		}
		if at == e.now {
			e.playChord(c, at, dur)
		} else {
			e.progression = append(e.progression, e.sched.schedule(at, func() { e.playChord(c, e.now, dur) }))
		}
		at += dur
	}
}

func (e *Engine) playChord(c Chord, at, dur time.Duration) {
	freqs := c.Frequencies()
	for _, f := range freqs {
		e.PlayNote(f, "")
	}
	e.sched.schedule(at+dur, func() {
		for _, f := range freqs {
			e.ReleaseNote(f)
		}
	})
}

func (e *Engine) beats(n float64) time.Duration {
	return time.Duration(n * 60 / e.transport.BPM * float64(time.Second))
}
