package graph

import "math"

type (
	// Waveform selects the oscillator shape of a voice or an LFO.
	Waveform int

	// LFOTarget is what the LFO of a voice modulates.
	LFOTarget int

	// VoiceOptions configure a voice. Detune and the pitch LFO depth are in
	// cents; volume and filter depths are fractions 0..1.
	VoiceOptions struct {
		Frequency float64
		Waveform  Waveform
		Detune    float64
		LFO       *LFOOptions
	}

	LFOOptions struct {
		Rate     float64
		Depth    float64
		Target   LFOTarget
		Waveform Waveform
	}

	// VoiceNode is a source: an oscillator with an amplitude envelope driven
	// through Gain and an optional LFO. The output is the same on both
	// channels.
	VoiceNode struct {
		base
		Gain *Param

		opts     VoiceOptions
		phase    float64
		lfoPhase float64
		lowpass  float32
		g        []float32
	}
)

const (
	Sine Waveform = iota
	Square
	Sawtooth
	Triangle
)

const (
	LFOPitch LFOTarget = iota
	LFOVolume
	LFOFilter
)

// voiceFilterCutoff is the cutoff of the voice's own lowpass the filter LFO
// sweeps down from.
const voiceFilterCutoff = 8000.0

// NewVoice returns a silent voice; ramp its Gain to make it sound.
func (c *Context) NewVoice(opts VoiceOptions) *VoiceNode {
	n := &VoiceNode{base: c.newBase(), Gain: newParam(0), opts: opts, g: make([]float32, BlockSize)}
	c.add(n)
	return n
}

func (n *VoiceNode) Frequency() float64 { return n.opts.Frequency }

func (n *VoiceNode) process(t0 float64, in, out Block) {
	sr := float64(n.ctx.sampleRate)
	g := n.g[:len(out[0])]
	n.Gain.fill(g, t0, n.dt())
	f0 := n.opts.Frequency * math.Exp2(n.opts.Detune/1200)
	lfo := n.opts.LFO
	for i := range g {
		freq := f0
		amp := float64(g[i])
		mod := 0.0
		if lfo != nil {
			mod = oscillate(lfo.Waveform, n.lfoPhase)
			n.lfoPhase = wrap(n.lfoPhase + lfo.Rate/sr)
			switch lfo.Target {
			case LFOPitch:
				freq *= math.Exp2(mod * lfo.Depth / 1200)
			case LFOVolume:
				amp *= 1 - lfo.Depth*(mod+1)/2
			}
		}
		v := oscillate(n.opts.Waveform, n.phase)
		n.phase = wrap(n.phase + freq/sr)
		if lfo != nil && lfo.Target == LFOFilter {
			cutoff := voiceFilterCutoff * math.Exp2(-lfo.Depth*4*(mod+1)/2)
			a := float32(1 - math.Exp(-2*math.Pi*cutoff/sr))
			n.lowpass += (float32(v) - n.lowpass) * a
			v = float64(n.lowpass)
		}
		s := float32(v * amp)
		out[0][i], out[1][i] = s, s
	}
}

// oscillate returns the value of a waveform at phase 0..1.
func oscillate(w Waveform, phase float64) float64 {
	switch w {
	case Square:
		if phase < 0.5 {
			return 1
		}
		return -1
	case Sawtooth:
		return 2*phase - 1
	case Triangle:
		if phase < 0.5 {
			return 4*phase - 1
		}
		return 3 - 4*phase
	default:
		return math.Sin(2 * math.Pi * phase)
	}
}

func wrap(phase float64) float64 {
	return phase - math.Floor(phase)
}
