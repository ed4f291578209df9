package graph

import "math"

type (
	// ReverbNode is a Schroeder reverberator: parallel feedback combs into
	// series allpasses, per channel. Its output is the wet signal only.
	// Decay is the time in seconds for the tail to fall by 60 dB.
	ReverbNode struct {
		base
		Decay *Param

		combs     [2][len(combTunings)]comb
		allpasses [2][len(allpassTunings)]allpass
		decay     float32
	}

	comb struct {
		buf      []float32
		pos      int
		feedback float32
		damp     float32
		filter   float32
	}

	allpass struct {
		buf []float32
		pos int
	}
)

// tunings in samples at 44.1 kHz; the right channel is offset by
// stereoSpread.
var (
	combTunings    = [...]int{1116, 1188, 1277, 1356, 1422, 1491, 1557, 1617}
	allpassTunings = [...]int{556, 441, 341, 225}
)

const (
	stereoSpread    = 23
	reverbDamp      = 0.2
	allpassFeedback = 0.5
	reverbInputGain = 0.015
)

func (c *Context) NewReverb(decay float32) *ReverbNode {
	n := &ReverbNode{base: c.newBase(), Decay: newParam(decay), decay: -1}
	scale := float64(c.sampleRate) / 44100
	for ch := range 2 {
		for i, t := range combTunings {
			n.combs[ch][i].buf = make([]float32, int(float64(t+ch*stereoSpread)*scale)+1)
			n.combs[ch][i].damp = reverbDamp
		}
		for i, t := range allpassTunings {
			n.allpasses[ch][i].buf = make([]float32, int(float64(t+ch*stereoSpread)*scale)+1)
		}
	}
	c.add(n)
	return n
}

func (n *ReverbNode) process(t0 float64, in, out Block) {
	if d := max(0.05, n.Decay.ValueAt(t0)); d != n.decay {
		n.decay = d
		sr := float64(n.ctx.sampleRate)
		for ch := range 2 {
			for i := range n.combs[ch] {
				c := &n.combs[ch][i]
				c.feedback = float32(math.Pow(10, -3*float64(len(c.buf))/sr/float64(d)))
			}
		}
	}
	for ch := range 2 {
		for i, x := range in[ch] {
			x *= reverbInputGain
			var y float32
			for j := range n.combs[ch] {
				y += n.combs[ch][j].process(x)
			}
			for j := range n.allpasses[ch] {
				y = n.allpasses[ch][j].process(y)
			}
			out[ch][i] = y
		}
	}
}

func (c *comb) process(x float32) float32 {
	y := c.buf[c.pos]
	c.filter = y*(1-c.damp) + c.filter*c.damp
	c.buf[c.pos] = x + c.filter*c.feedback
	c.pos++
	if c.pos == len(c.buf) {
		c.pos = 0
	}
	return y
}

func (a *allpass) process(x float32) float32 {
	b := a.buf[a.pos]
	y := b - x
	a.buf[a.pos] = x + b*allpassFeedback
	a.pos++
	if a.pos == len(a.buf) {
		a.pos = 0
	}
	return y
}
