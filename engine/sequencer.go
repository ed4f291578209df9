package engine

import (
	"log/slog"
	"math"

	gs "github.com/gridsynth/gridsynth"
)

// StartSequencer starts the step sequencer. The first tick is due
// immediately and plays step 0. Starting a running sequencer does nothing.
func (e *Engine) StartSequencer() {
	if e.closed || e.transport.Playing {
		return
	}
	e.transport.Playing = true
	e.transport.CurrentStep = e.transport.Steps - 1
	e.seqTick = e.sched.schedule(e.now, e.tick)
	e.logger.Debug("sequencer started", slog.Float64("bpm", e.transport.BPM), slog.Int("steps", e.transport.Steps))
}

// StopSequencer cancels the tick and releases every voice through its
// normal release.
func (e *Engine) StopSequencer() {
	if !e.transport.Playing {
		return
	}
	e.sched.cancel(e.seqTick)
	e.seqTick = 0
	e.transport.Playing = false
	e.transport.CurrentStep = 0
	e.applyPending()
	e.releaseAll()
	e.logger.Debug("sequencer stopped")
}

// SetBPM changes the tempo. While playing, the change waits for the next
// tick so that a step is never cut short.
func (e *Engine) SetBPM(bpm float64) {
	if math.IsNaN(bpm) || math.IsInf(bpm, 0) {
		e.logger.Warn("rejected invalid bpm", slog.Float64("bpm", bpm))
		return
	}
	bpm = gs.Clamp(bpm, gs.MinBPM, gs.MaxBPM)
	if e.transport.Playing {
		e.transport.PendingBPM = &bpm
		return
	}
	e.transport.BPM = bpm
}

// SetSteps changes the number of steps per bar, 1 to MaxSteps, deferred
// like SetBPM.
func (e *Engine) SetSteps(steps int) {
	steps = gs.Clamp(steps, 1, gs.MaxSteps)
	if e.transport.Playing {
		e.transport.PendingSteps = &steps
		return
	}
	e.transport.Steps = steps
}

func (e *Engine) applyPending() {
	if p := e.transport.PendingBPM; p != nil {
		e.transport.BPM = *p
		e.transport.PendingBPM = nil
	}
	if p := e.transport.PendingSteps; p != nil {
		e.transport.Steps = *p
		e.transport.PendingSteps = nil
	}
}

func (e *Engine) tick() {
	e.applyPending()
	steps := e.transport.Steps
	e.transport.CurrentStep = (e.transport.CurrentStep + 1) % steps
	step := e.transport.CurrentStep
	stepSeconds := gs.StepSeconds(e.transport.BPM, steps)
	for _, t := range e.playable() {
		if !t.Sequence[step] {
			continue
		}
		h := e.StartVoice(t.Frequency, t.ID)
		if h == 0 {
			continue
		}
		stop := gs.AutoStopSeconds(t.Envelope, stepSeconds)
		e.sched.schedule(e.now+gs.Seconds(stop), func() { e.releaseHandle(h) })
	}
	e.seqTick = e.sched.schedule(e.now+gs.Seconds(stepSeconds), e.tick)
}

// playable returns the solo tracks if there are any, the unmuted tracks
// otherwise, in registry order.
func (e *Engine) playable() []gs.Track {
	var solo, unmuted []gs.Track
	for _, t := range e.tracks {
		if t.Solo {
			solo = append(solo, t)
		}
		if !t.Muted {
			unmuted = append(unmuted, t)
		}
	}
	if len(solo) > 0 {
		return solo
	}
	return unmuted
}
