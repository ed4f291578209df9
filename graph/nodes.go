package graph

import (
	"math"
	"sync/atomic"

	"github.com/viterin/vek/vek32"
)

type (
	// GainNode multiplies its input by Gain.
	GainNode struct {
		base
		Gain *Param
		g    []float32
	}

	// PannerNode balances its input between the channels. Pan is -1 (left)
	// to 1 (right); at 0 the signal passes unchanged.
	PannerNode struct {
		base
		Pan *Param
	}

	// FilterNode is a resonant biquad lowpass. Cutoff is in Hz, Resonance
	// adds to the Q of a Butterworth response.
	FilterNode struct {
		base
		Cutoff    *Param
		Resonance *Param

		coeff      biquadCoeff
		cutoff     float32
		resonance  float32
		states     [2]biquadState
		coeffValid bool
	}

	// WaveShaperNode maps every sample through a transfer curve.
	WaveShaperNode struct {
		base
		curve atomic.Pointer[Curve]
	}

	// Curve is a transfer curve sampled uniformly over -1..1. Samples
	// outside -1..1 are clamped before lookup. A nil or empty curve passes
	// the signal unchanged.
	Curve []float32

	// CompressorNode is a feed-forward compressor with a power follower.
	// Threshold is in dBFS; Attack and Release are in seconds.
	CompressorNode struct {
		base
		Threshold *Param
		Ratio     *Param
		Attack    *Param
		Release   *Param
		level     float32
	}

	// DelayNode is a feedback delay line. The output is Dry times the input
	// plus Wet times the delayed signal; Feedback is how much of the delayed
	// signal is written back.
	DelayNode struct {
		base
		Time     *Param
		Feedback *Param
		Dry      *Param
		Wet      *Param

		lines     [2][]float32
		pos       int
		dampState [2]float32
	}

	// ChorusNode mixes its input with a copy whose delay is modulated by a
	// sine LFO. Depth is in milliseconds.
	ChorusNode struct {
		base
		Rate  *Param
		Depth *Param
		Dry   *Param
		Wet   *Param

		lines [2][]float32
		pos   int
		phase float64
	}

	// StereoWidthNode scales the side signal. Width 1 passes the signal
	// unchanged, 0 collapses it to mono.
	StereoWidthNode struct {
		base
		Width *Param
	}

	// LimiterNode keeps the peak of its output under Ceiling, a linear
	// amplitude. The gain follows the peak instantly and recovers slowly.
	LimiterNode struct {
		base
		Ceiling *Param
		env     float32
	}

	biquadState struct {
		x1, x2, y1, y2 float32
	}

	biquadCoeff struct {
		b0, b1, b2, a1, a2 float32
	}
)

const (
	maxDelaySeconds   = 2.5
	chorusBaseDelay   = 0.015
	maxChorusSeconds  = 0.05
	delayDamp         = 0.2
	limiterRelease    = 0.05
	butterworthQ      = 0.70710678
	curveResolution   = 1024
	minCompressorTime = 1e-4
)

func (c *Context) NewGain(gain float32) *GainNode {
	n := &GainNode{base: c.newBase(), Gain: newParam(gain), g: make([]float32, BlockSize)}
	c.add(n)
	return n
}

func (n *GainNode) process(t0 float64, in, out Block) {
	g := n.g[:len(out[0])]
	if n.Gain.fill(g, t0, n.dt()) {
		out.copyFrom(in)
		vek32.MulNumber_Inplace(out[0], g[0])
		vek32.MulNumber_Inplace(out[1], g[0])
		return
	}
	out.copyFrom(in)
	vek32.Mul_Inplace(out[0], g)
	vek32.Mul_Inplace(out[1], g)
}

func (c *Context) NewPanner(pan float32) *PannerNode {
	n := &PannerNode{base: c.newBase(), Pan: newParam(pan)}
	c.add(n)
	return n
}

func (n *PannerNode) process(t0 float64, in, out Block) {
	p := max(-1, min(1, n.Pan.ValueAt(t0)))
	out.copyFrom(in)
	switch {
	case p > 0:
		vek32.MulNumber_Inplace(out[0], 1-p)
	case p < 0:
		vek32.MulNumber_Inplace(out[1], 1+p)
	}
}

func (c *Context) NewFilter(cutoff, resonance float32) *FilterNode {
	n := &FilterNode{base: c.newBase(), Cutoff: newParam(cutoff), Resonance: newParam(resonance)}
	c.add(n)
	return n
}

func (n *FilterNode) process(t0 float64, in, out Block) {
	cutoff, res := n.Cutoff.ValueAt(t0), n.Resonance.ValueAt(t0)
	if !n.coeffValid || cutoff != n.cutoff || res != n.resonance {
		n.coeff = lowpassCoeff(float64(cutoff), float64(res), float64(n.ctx.sampleRate))
		n.cutoff, n.resonance, n.coeffValid = cutoff, res, true
	}
	for ch := range 2 {
		n.states[ch].process(n.coeff, in[ch], out[ch])
	}
}

// lowpassCoeff returns RBJ cookbook lowpass coefficients.
func lowpassCoeff(cutoff, resonance, sampleRate float64) biquadCoeff {
	cutoff = max(10, min(cutoff, sampleRate*0.49))
	q := butterworthQ + max(0, resonance)
	omega := 2 * math.Pi * cutoff / sampleRate
	alpha := math.Sin(omega) / (2 * q)
	cos := math.Cos(omega)
	a0 := 1 + alpha
	return biquadCoeff{
		b0: float32((1 - cos) / 2 / a0),
		b1: float32((1 - cos) / a0),
		b2: float32((1 - cos) / 2 / a0),
		a1: float32(-2 * cos / a0),
		a2: float32((1 - alpha) / a0),
	}
}

func (s *biquadState) process(c biquadCoeff, in, out []float32) {
	for i, x := range in {
		y := c.b0*x + c.b1*s.x1 + c.b2*s.x2 - c.a1*s.y1 - c.a2*s.y2
		s.x2, s.x1 = s.x1, x
		s.y2, s.y1 = s.y1, y
		out[i] = y
	}
}

func (c *Context) NewWaveShaper(curve Curve) *WaveShaperNode {
	n := &WaveShaperNode{base: c.newBase()}
	n.SetCurve(curve)
	c.add(n)
	return n
}

// SetCurve replaces the transfer curve. The curve must not be modified
// afterwards.
func (n *WaveShaperNode) SetCurve(c Curve) {
	n.curve.Store(&c)
}

func (n *WaveShaperNode) Curve() Curve {
	return *n.curve.Load()
}

func (n *WaveShaperNode) process(t0 float64, in, out Block) {
	c := n.Curve()
	if len(c) == 0 {
		out.copyFrom(in)
		return
	}
	for ch := range 2 {
		for i, x := range in[ch] {
			out[ch][i] = c.At(x)
		}
	}
}

// At looks x up from the curve, interpolating linearly between samples.
func (c Curve) At(x float32) float32 {
	if len(c) == 0 {
		return x
	}
	if len(c) == 1 {
		return c[0]
	}
	x = max(-1, min(1, x))
	pos := (x + 1) / 2 * float32(len(c)-1)
	i := int(pos)
	if i >= len(c)-1 {
		return c[len(c)-1]
	}
	f := pos - float32(i)
	return c[i] + (c[i+1]-c[i])*f
}

// IdentityCurve is the linear transfer curve.
func IdentityCurve() Curve {
	return shapeCurve(0.5)
}

// DistortionCurve is a soft clipping curve. amount 0 is linear and 1 is
// close to a hard clip.
func DistortionCurve(amount float64) Curve {
	amount = max(0, min(1, amount))
	return shapeCurve(float32(0.5 + amount*0.49))
}

func shapeCurve(amount float32) Curve {
	c := make(Curve, curveResolution)
	for i := range c {
		x := float32(i)/float32(curveResolution-1)*2 - 1
		c[i] = waveshape(x, amount)
	}
	return c
}

// waveshape is linear when amount is 0.5 and bends towards a square as
// amount approaches 1.
func waveshape(value, amount float32) float32 {
	absVal := value
	if absVal < 0 {
		absVal = -absVal
	}
	return value * amount / (1 - amount + (2*amount-1)*absVal)
}

func (c *Context) NewCompressor(threshold, ratio, attack, release float32) *CompressorNode {
	n := &CompressorNode{
		base:      c.newBase(),
		Threshold: newParam(threshold),
		Ratio:     newParam(ratio),
		Attack:    newParam(attack),
		Release:   newParam(release),
	}
	c.add(n)
	return n
}

func (n *CompressorNode) process(t0 float64, in, out Block) {
	threshold := float32(math.Pow(10, float64(n.Threshold.ValueAt(t0))/20))
	threshold2 := threshold * threshold
	ratio := max(1, n.Ratio.ValueAt(t0))
	exponent := float64(1-1/ratio) / 2
	sr := float64(n.ctx.sampleRate)
	attack := smoothing(n.Attack.ValueAt(t0), sr)
	release := smoothing(n.Release.ValueAt(t0), sr)
	for i := range in[0] {
		l, r := in[0][i], in[1][i]
		signalLevel := (l*l + r*r) / 2
		alpha := attack
		if signalLevel < n.level {
			alpha = release
		}
		n.level += (signalLevel - n.level) * alpha
		var gain float32 = 1
		if n.level > threshold2 && exponent > 0 {
			gain = float32(math.Pow(float64(threshold2/n.level), exponent))
		}
		out[0][i], out[1][i] = l*gain, r*gain
	}
}

// smoothing is the one pole coefficient that reaches ~63% of a step in
// seconds.
func smoothing(seconds float32, sampleRate float64) float32 {
	s := max(float64(seconds), minCompressorTime)
	return float32(1 - math.Exp(-1/(s*sampleRate)))
}

func (c *Context) NewDelay(time, feedback, dry, wet float32) *DelayNode {
	size := int(maxDelaySeconds*float64(c.sampleRate)) + 1
	n := &DelayNode{
		base:     c.newBase(),
		Time:     newParam(time),
		Feedback: newParam(feedback),
		Dry:      newParam(dry),
		Wet:      newParam(wet),
		lines:    [2][]float32{make([]float32, size), make([]float32, size)},
	}
	c.add(n)
	return n
}

func (n *DelayNode) process(t0 float64, in, out Block) {
	size := len(n.lines[0])
	d := int(float64(n.Time.ValueAt(t0))*float64(n.ctx.sampleRate) + 0.5)
	d = max(1, min(size-1, d))
	feedback := max(0, min(0.99, n.Feedback.ValueAt(t0)))
	dry, wet := n.Dry.ValueAt(t0), n.Wet.ValueAt(t0)
	pos := n.pos
	for ch := range 2 {
		line := n.lines[ch]
		pos = n.pos
		for i, x := range in[ch] {
			delayed := line[(pos-d+size)%size]
			n.dampState[ch] = delayDamp*n.dampState[ch] + (1-delayDamp)*delayed
			line[pos] = x + feedback*n.dampState[ch]
			out[ch][i] = dry*x + wet*delayed
			pos++
			if pos == size {
				pos = 0
			}
		}
	}
	n.pos = pos
}

func (c *Context) NewChorus(rate, depth, dry, wet float32) *ChorusNode {
	size := int(maxChorusSeconds*float64(c.sampleRate)) + 2
	n := &ChorusNode{
		base:  c.newBase(),
		Rate:  newParam(rate),
		Depth: newParam(depth),
		Dry:   newParam(dry),
		Wet:   newParam(wet),
		lines: [2][]float32{make([]float32, size), make([]float32, size)},
	}
	c.add(n)
	return n
}

func (n *ChorusNode) process(t0 float64, in, out Block) {
	sr := float64(n.ctx.sampleRate)
	size := len(n.lines[0])
	rate := float64(n.Rate.ValueAt(t0))
	depth := max(0, min(float64(n.Depth.ValueAt(t0))/1000, maxChorusSeconds-chorusBaseDelay-0.001))
	dry, wet := n.Dry.ValueAt(t0), n.Wet.ValueAt(t0)
	phase := n.phase
	for i := range in[0] {
		for ch := range 2 {
			// the right channel runs a quarter period behind
			lfo := math.Sin(2*math.Pi*phase - float64(ch)*math.Pi/2)
			delay := (chorusBaseDelay + depth*(lfo+1)/2) * sr
			line := n.lines[ch]
			line[n.pos] = in[ch][i]
			rp := float64(n.pos) - delay
			for rp < 0 {
				rp += float64(size)
			}
			j := int(rp)
			f := float32(rp - float64(j))
			a, b := line[j%size], line[(j+1)%size]
			out[ch][i] = dry*in[ch][i] + wet*(a+(b-a)*f)
		}
		n.pos = (n.pos + 1) % size
		phase += rate / sr
		phase -= math.Floor(phase)
	}
	n.phase = phase
}

func (c *Context) NewStereoWidth(width float32) *StereoWidthNode {
	n := &StereoWidthNode{base: c.newBase(), Width: newParam(width)}
	c.add(n)
	return n
}

func (n *StereoWidthNode) process(t0 float64, in, out Block) {
	w := max(0, n.Width.ValueAt(t0))
	for i := range in[0] {
		mid := (in[0][i] + in[1][i]) / 2
		side := (in[0][i] - in[1][i]) / 2 * w
		out[0][i], out[1][i] = mid+side, mid-side
	}
}

func (c *Context) NewLimiter(ceiling float32) *LimiterNode {
	n := &LimiterNode{base: c.newBase(), Ceiling: newParam(ceiling)}
	c.add(n)
	return n
}

func (n *LimiterNode) process(t0 float64, in, out Block) {
	ceiling := max(1e-6, n.Ceiling.ValueAt(t0))
	release := float32(math.Exp(-1 / (limiterRelease * float64(n.ctx.sampleRate))))
	for i := range in[0] {
		l, r := in[0][i], in[1][i]
		p := max(abs(l), abs(r))
		if p > n.env {
			n.env = p
		} else {
			n.env = p + (n.env-p)*release
		}
		var gain float32 = 1
		if n.env > ceiling {
			gain = ceiling / n.env
		}
		out[0][i], out[1][i] = l*gain, r*gain
	}
}

func abs(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
