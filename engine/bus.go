package engine

import (
	gs "github.com/gridsynth/gridsynth"
	"github.com/gridsynth/gridsynth/graph"
)

// bus is the master bus. It is wired once per graph context and never
// rewired; effects are switched on and off through their parameters only.
//
//	input - filter - distortion - compressor -+- reverbDry ---------------------------+- width - pan - master - limiter - out
//	                                          +- reverb - reverbWet ------------------+
//	                                          +- delaySend - delay ------- delayMix --+
//	                                          +- chorusSend - chorus - chorusMix -+
type bus struct {
	input      *graph.GainNode
	filter     *graph.FilterNode
	distortion *graph.WaveShaperNode
	compressor *graph.CompressorNode
	reverbDry  *graph.GainNode
	reverb     *graph.ReverbNode
	reverbWet  *graph.GainNode
	delaySend  *graph.GainNode
	delay      *graph.DelayNode
	delayMix   *graph.GainNode
	chorusSend *graph.GainNode
	chorus     *graph.ChorusNode
	chorusMix  *graph.GainNode
	width      *graph.StereoWidthNode
	pan        *graph.PannerNode
	master     *graph.GainNode
	limiter    *graph.LimiterNode
}

func newBus(ctx *graph.Context) *bus {
	b := &bus{
		input:      ctx.NewGain(1),
		filter:     ctx.NewFilter(gs.NeutralCutoff, 0),
		distortion: ctx.NewWaveShaper(graph.IdentityCurve()),
		compressor: ctx.NewCompressor(0, 1, 0.001, 0.01),
		reverbDry:  ctx.NewGain(1),
		reverb:     ctx.NewReverb(2),
		reverbWet:  ctx.NewGain(0),
		delaySend:  ctx.NewGain(0),
		delay:      ctx.NewDelay(0.25, 0, 0, 0),
		delayMix:   ctx.NewGain(1),
		chorusSend: ctx.NewGain(0),
		chorus:     ctx.NewChorus(1.5, 3, 0, 0),
		chorusMix:  ctx.NewGain(1),
		width:      ctx.NewStereoWidth(1),
		pan:        ctx.NewPanner(0),
		master:     ctx.NewGain(0.8),
		limiter:    ctx.NewLimiter(1),
	}
	chain(ctx, b.input, b.filter, b.distortion, b.compressor)
	chain(ctx, b.compressor, b.reverbDry, b.width)
	chain(ctx, b.compressor, b.reverb, b.reverbWet, b.width)
	chain(ctx, b.compressor, b.delaySend, b.delay, b.delayMix, b.width)
	chain(ctx, b.compressor, b.chorusSend, b.chorus, b.chorusMix, b.delayMix)
	chain(ctx, b.width, b.pan, b.master, b.limiter, ctx.Destination())
	return b
}

// sync pushes the master effect settings to the node parameters.
func (b *bus) sync(m gs.MasterEffects) {
	applyFilter(b.filter, m.Filter)
	b.distortion.SetCurve(Distortion(m.Distortion))
	applyCompressor(b.compressor, m.Compression)

	dry, wet := Reverb(m.Reverb)
	b.reverbDry.Gain.Set(dry)
	b.reverbWet.Gain.Set(wet)
	b.reverb.Decay.Set(float32(m.Reverb.Decay))

	d := Delay(m.Delay)
	b.delaySend.Gain.Set(d.Send)
	b.delay.Time.Set(d.Time)
	b.delay.Feedback.Set(d.Feedback)
	b.delay.Wet.Set(d.Wet)
	b.delayMix.Gain.Set(d.Mix)

	c := Chorus(m.Chorus)
	b.chorusSend.Gain.Set(c.Send)
	b.chorus.Rate.Set(c.Rate)
	b.chorus.Depth.Set(c.Depth)
	b.chorus.Wet.Set(c.Wet)
	b.chorusMix.Gain.Set(c.Mix)

	b.width.Width.Set(float32(m.Width / 100))
	b.pan.Pan.Set(float32(m.Pan / 100))
	b.master.Gain.Set(float32(m.Volume / 100))
	b.limiter.Ceiling.Set(Limiter(m.Limiter))
}

func (b *bus) nodes() []graph.Node {
	return []graph.Node{
		b.input, b.filter, b.distortion, b.compressor, b.reverbDry, b.reverb,
		b.reverbWet, b.delaySend, b.delay, b.delayMix, b.chorusSend, b.chorus,
		b.chorusMix, b.width, b.pan, b.master, b.limiter,
	}
}

func (b *bus) remove(ctx *graph.Context) {
	ctx.Remove(b.nodes()...)
}

// chain connects each node to the next.
func chain(ctx *graph.Context, nodes ...graph.Node) {
	for i := 1; i < len(nodes); i++ {
		ctx.Connect(nodes[i-1], nodes[i])
	}
}

// UpdateMasterEffects merges p into the master effects and pushes the
// result to the bus.
func (e *Engine) UpdateMasterEffects(p gs.MasterEffectsPatch) {
	e.master = p.Apply(e.master)
	e.syncBus()
}

// UpdateGlobals merges p into the global synthesis settings. Voices already
// sounding keep the settings they were started with.
func (e *Engine) UpdateGlobals(p gs.GlobalsPatch) {
	e.globals = p.Apply(e.globals)
}

func (e *Engine) syncBus() {
	if e.live() != nil {
		e.bus.sync(e.master)
	}
}
