package engine

import (
	"log/slog"
	"slices"

	gs "github.com/gridsynth/gridsynth"
)

// arpeggiator plays the held notes one at a time. notes is the held set
// sorted at the last (re)start; held is kept in the order the notes were
// pressed.
type arpeggiator struct {
	mode  gs.ArpMode
	rate  float64
	held  []float64
	notes []float64
	index int
	dir   int
	tick  eventID
}

// noteFraction is the part of an arpeggiator tick a note sounds for.
const noteFraction = 0.6

func (e *Engine) SetArpeggiatorMode(mode gs.ArpMode) {
	if !mode.Valid() {
		e.logger.Warn("unknown arpeggiator mode", slog.String("mode", string(mode)))
		return
	}
	if mode == gs.ArpOff {
		e.stopArp()
		e.arp.held = nil
		e.arp.mode = gs.ArpOff
		return
	}
	e.arp.mode = mode
	e.restartArp()
}

// SetArpeggiatorRate sets the number of arpeggiator notes per bar.
func (e *Engine) SetArpeggiatorRate(rate float64) {
	if !(rate > 0) {
		e.logger.Warn("rejected invalid arpeggiator rate", slog.Float64("rate", rate))
		return
	}
	e.arp.rate = gs.Clamp(rate, 1, 32)
}

// HoldNote adds a note to the held set.
func (e *Engine) HoldNote(freq float64) {
	if !gs.ValidFrequency(freq) {
		e.logger.Warn("rejected invalid frequency", slog.Float64("frequency", freq))
		return
	}
	for _, f := range e.arp.held {
		if gs.FrequencyMatches(f, freq) {
			return
		}
	}
	e.arp.held = append(e.arp.held, freq)
	e.restartArp()
}

// ReleaseHeldNote removes a note from the held set.
func (e *Engine) ReleaseHeldNote(freq float64) {
	i := slices.IndexFunc(e.arp.held, func(f float64) bool { return gs.FrequencyMatches(f, freq) })
	if i < 0 {
		return
	}
	e.arp.held = slices.Delete(e.arp.held, i, i+1)
	e.restartArp()
}

func (e *Engine) arpActive() bool {
	return e.arp.mode != gs.ArpOff && !e.closed
}

// restartArp starts the arpeggiator over with the current held set: sorted
// ascending, from the lowest note upwards.
func (e *Engine) restartArp() {
	if !e.arpActive() {
		return
	}
	e.stopArp()
	if len(e.arp.held) == 0 {
		return
	}
	e.arp.notes = slices.Clone(e.arp.held)
	slices.Sort(e.arp.notes)
	e.arp.tick = e.sched.schedule(e.now, e.arpTick)
}

func (e *Engine) stopArp() {
	e.sched.cancel(e.arp.tick)
	e.arp.tick = 0
	e.arp.notes = nil
	e.arp.index = 0
	e.arp.dir = 1
}

func (e *Engine) arpTick() {
	n := len(e.arp.notes)
	if n == 0 {
		return
	}
	period := gs.ArpTickSeconds(e.transport.BPM, e.arp.rate)
	if h := e.StartVoice(e.arp.notes[e.arp.index], ""); h != 0 {
		e.sched.schedule(e.now+gs.Seconds(period*noteFraction), func() { e.releaseHandle(h) })
	}
	e.arp.index, e.arp.dir = nextArpIndex(e.arp.mode, e.arp.index, e.arp.dir, n, e.rand.Intn)
	e.arp.tick = e.sched.schedule(e.now+gs.Seconds(period), e.arpTick)
}

// nextArpIndex advances the arpeggiator. Up-down bounces between the ends
// without playing an end twice in a row.
func nextArpIndex(mode gs.ArpMode, index, dir, n int, intn func(int) int) (int, int) {
	switch mode {
	case gs.ArpDown:
		return (index - 1 + n) % n, dir
	case gs.ArpUpDown:
		if n == 1 {
			return 0, 1
		}
		index += dir
		if index >= n-1 {
			return n - 1, -1
		}
		if index <= 0 {
			return 0, 1
		}
		return index, dir
	case gs.ArpRandom:
		return intn(n), dir
	default:
		return (index + 1) % n, dir
	}
}
