package engine

import (
	"log/slog"
	"time"

	gs "github.com/gridsynth/gridsynth"
	"github.com/gridsynth/gridsynth/graph"
)

type voice struct {
	handle  uint64
	freq    float64
	trackID string
	node    *graph.VoiceNode

	// target is the peak gain, from the polyphony table. With an envelope,
	// the voice settles at target*Sustain after the decay.
	target    float64
	env       *gs.Envelope
	attackEnd float64 // context time

	released bool
	destroy  eventID
	endsAt   time.Duration
}

const (
	// renormRamp is how fast sounding voices follow a new polyphony gain.
	renormRamp = 0.02
	// minRelease keeps envelope releases from clicking.
	minRelease = 0.005
)

// StartVoice starts a voice at freq. With a non-empty trackID the voice is
// routed through the track's chain and uses the track's waveform, envelope
// and LFO; otherwise it goes straight to the master bus with the global
// settings. It returns the handle of the voice, or 0 if nothing was
// started.
func (e *Engine) StartVoice(freq float64, trackID string) uint64 {
	if !gs.ValidFrequency(freq) {
		e.logger.Warn("rejected invalid frequency", slog.Float64("frequency", freq))
		return 0
	}
	ctx := e.audio()
	if ctx == nil {
		return 0
	}
	opts := graph.VoiceOptions{Frequency: freq}
	var env *gs.Envelope
	var out graph.Node = e.bus.input
	ti := e.trackIndex(trackID)
	if trackID != "" && ti < 0 {
		e.logger.Warn("note for unknown track goes to the master bus", slog.String("track", trackID))
		trackID = ""
	}
	if ti >= 0 {
		t := e.tracks[ti]
		out = e.ensureSubgraph(t).input()
		opts.Waveform = graphWaveform(t.Waveform)
		if t.LFO.Enabled && t.LFO.Depth > 0 {
			opts.LFO = lfoOptions(t.LFO.Target, t.LFO.Rate, t.LFO.Depth, t.LFO.Waveform)
		}
		env = &t.Envelope
	} else {
		opts.Waveform = graphWaveform(e.globals.Waveform)
		opts.Detune = e.globals.Detune
		if e.globals.LFODepth > 0 {
			opts.LFO = lfoOptions(e.globals.LFOTarget, e.globals.LFORate, e.globals.LFODepth, gs.Sine)
		}
	}

	g := gs.NormalizedGain(e.activeVoices() + 1)
	e.nextHandle++
	v := &voice{
		handle:  e.nextHandle,
		freq:    freq,
		trackID: trackID,
		node:    ctx.NewVoice(opts),
		env:     env,
		target:  g,
	}
	ctx.Connect(v.node, out)
	now := ctx.CurrentTime()
	if env != nil {
		v.attackEnd = now + env.Attack
		v.node.Gain.Automate(
			graph.Point{Time: now, Value: 0},
			graph.Point{Time: v.attackEnd, Value: float32(g)},
			graph.Point{Time: v.attackEnd + env.Decay, Value: float32(g * env.Sustain)},
		)
	} else {
		v.attackEnd = now + gs.AttackSeconds(e.globals.Attack)
		v.node.Gain.RampTo(float32(g), now, v.attackEnd-now)
	}
	e.renormalize(g)
	e.voices[v.handle] = v
	e.notify(NoteEvent{On: true, Frequency: freq, TrackID: trackID, Handle: v.handle})
	return v.handle
}

// StopVoice releases every sounding voice within 0.1 Hz of freq. An empty
// trackID matches voices of any track, including the master bus; otherwise
// only voices of that track are released.
func (e *Engine) StopVoice(freq float64, trackID string) {
	for _, v := range e.voiceList() {
		if v.released || !gs.FrequencyMatches(v.freq, freq) {
			continue
		}
		if trackID != "" && v.trackID != trackID {
			continue
		}
		e.release(v)
	}
}

// StopAll releases every voice through its release ramp if graceful is
// set, and kills them at once otherwise.
func (e *Engine) StopAll(graceful bool) {
	if graceful {
		e.releaseAll()
	} else {
		e.StopAllVoices()
	}
}

// StopAllVoices kills every voice at once, without release.
func (e *Engine) StopAllVoices() {
	for h := range e.voices {
		e.destroyVoice(h)
	}
}

// releaseAll releases every voice through its normal release.
func (e *Engine) releaseAll() {
	for _, v := range e.voiceList() {
		e.release(v)
	}
}

func (e *Engine) releaseTrackVoices(id string) {
	for _, v := range e.voiceList() {
		if v.trackID == id {
			e.release(v)
		}
	}
}

func (e *Engine) releaseHandle(h uint64) {
	if v, ok := e.voices[h]; ok {
		e.release(v)
	}
}

func (e *Engine) release(v *voice) {
	if v.released {
		return
	}
	v.released = true
	rel := gs.ReleaseSeconds(e.globals.Release)
	if v.env != nil {
		rel = max(v.env.Release, minRelease)
	}
	if e.ctx != nil && v.node.Context() == e.ctx {
		v.node.Gain.RampTo(0, e.ctx.CurrentTime(), rel)
	}
	v.endsAt = e.now + gs.Seconds(rel)
	h := v.handle
	v.destroy = e.sched.schedule(v.endsAt, func() { e.destroyVoice(h) })
	e.notify(NoteEvent{Frequency: v.freq, TrackID: v.trackID, Handle: h})
}

func (e *Engine) destroyVoice(h uint64) {
	v, ok := e.voices[h]
	if !ok {
		return
	}
	e.sched.cancel(v.destroy)
	delete(e.voices, h)
	if ctx := v.node.Context(); ctx == e.ctx {
		ctx.Remove(v.node)
	}
	if n := e.activeVoices(); n > 0 {
		e.renormalize(gs.NormalizedGain(n))
	}
}

// activeVoices counts the voices not yet released.
func (e *Engine) activeVoices() int {
	n := 0
	for _, v := range e.voices {
		if !v.released {
			n++
		}
	}
	return n
}

// renormalize moves every sounding voice to the polyphony gain g. A voice
// still in its attack keeps its attack time and heads for the new peak; a
// voice still in its decay keeps the time its decay ends at.
func (e *Engine) renormalize(g float64) {
	if e.ctx == nil {
		return
	}
	now := e.ctx.CurrentTime()
	for _, v := range e.voices {
		if v.released || v.target == g {
			continue
		}
		v.target = g
		cur := v.node.Gain.ValueAt(now)
		switch {
		case v.env != nil && now < v.attackEnd:
			v.node.Gain.Automate(
				graph.Point{Time: now, Value: cur},
				graph.Point{Time: v.attackEnd, Value: float32(g)},
				graph.Point{Time: v.attackEnd + v.env.Decay, Value: float32(g * v.env.Sustain)},
			)
		case v.env != nil && now < v.attackEnd+v.env.Decay:
			v.node.Gain.RampTo(float32(g*v.env.Sustain), now, v.attackEnd+v.env.Decay-now)
		case v.env != nil:
			v.node.Gain.RampTo(float32(g*v.env.Sustain), now, renormRamp)
		case now < v.attackEnd:
			v.node.Gain.RampTo(float32(g), now, v.attackEnd-now)
		default:
			v.node.Gain.RampTo(float32(g), now, renormRamp)
		}
	}
}

func graphWaveform(w gs.Waveform) graph.Waveform {
	switch w {
	case gs.Square:
		return graph.Square
	case gs.Sawtooth:
		return graph.Sawtooth
	case gs.Triangle:
		return graph.Triangle
	default:
		return graph.Sine
	}
}

// lfoOptions maps a 0..100 depth to cents for pitch and to a 0..1 fraction
// for volume and filter.
func lfoOptions(target gs.LFOTarget, rate, depth float64, w gs.Waveform) *graph.LFOOptions {
	o := &graph.LFOOptions{Rate: rate, Waveform: graphWaveform(w)}
	switch target {
	case gs.TargetVolume:
		o.Target, o.Depth = graph.LFOVolume, depth/100
	case gs.TargetFilter:
		o.Target, o.Depth = graph.LFOFilter, depth/100
	default:
		o.Target, o.Depth = graph.LFOPitch, depth
	}
	return o
}
