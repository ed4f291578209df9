package engine

import (
	gs "github.com/gridsynth/gridsynth"
	"github.com/gridsynth/gridsynth/graph"
)

// subgraph is the effect chain of one track:
//
//	gain - pan - filter - distortion - compressor - delay - delayMix - chorus - master bus
//
// It is tagged with the generation of the context it was built in.
type subgraph struct {
	gen        uint64
	gain       *graph.GainNode
	pan        *graph.PannerNode
	filter     *graph.FilterNode
	distortion *graph.WaveShaperNode
	compressor *graph.CompressorNode
	delay      *graph.DelayNode
	delayMix   *graph.GainNode
	chorus     *graph.ChorusNode
}

func newSubgraph(ctx *graph.Context, out graph.Node) *subgraph {
	s := &subgraph{
		gen:        ctx.Generation(),
		gain:       ctx.NewGain(0),
		pan:        ctx.NewPanner(0),
		filter:     ctx.NewFilter(gs.NeutralCutoff, 0),
		distortion: ctx.NewWaveShaper(graph.IdentityCurve()),
		compressor: ctx.NewCompressor(0, 1, 0.001, 0.01),
		delay:      ctx.NewDelay(0.25, 0, 1, 0),
		delayMix:   ctx.NewGain(1),
		chorus:     ctx.NewChorus(1.5, 3, 1, 0),
	}
	chain(ctx, s.gain, s.pan, s.filter, s.distortion, s.compressor, s.delay, s.delayMix, s.chorus, out)
	return s
}

// input is where the voices of the track connect to.
func (s *subgraph) input() graph.Node { return s.gain }

// sync pushes the track settings to the node parameters. A muted track
// keeps its chain but its gain is zero.
func (s *subgraph) sync(t gs.Track) {
	vol := float32(t.Volume / 100)
	if t.Muted {
		vol = 0
	}
	s.gain.Gain.Set(vol)
	s.pan.Pan.Set(float32(t.Pan / 100))
	applyFilter(s.filter, t.Effects.Filter)
	s.distortion.SetCurve(Distortion(t.Effects.Distortion))
	applyCompressor(s.compressor, t.Effects.Compression)

	d := Delay(t.Effects.Delay)
	s.delay.Time.Set(d.Time)
	s.delay.Feedback.Set(d.Feedback)
	s.delay.Wet.Set(d.Wet)
	s.delayMix.Gain.Set(d.Mix)

	c := Chorus(t.Effects.Chorus)
	s.chorus.Rate.Set(c.Rate)
	s.chorus.Depth.Set(c.Depth)
	s.chorus.Wet.Set(c.Wet)
}

func (s *subgraph) nodes() []graph.Node {
	return []graph.Node{s.gain, s.pan, s.filter, s.distortion, s.compressor, s.delay, s.delayMix, s.chorus}
}

// remove disconnects the chain. Nodes of a stale generation belong to a
// context that is gone, so there is nothing to do for them.
func (s *subgraph) remove(ctx *graph.Context) {
	if ctx == nil || s.gen != ctx.Generation() {
		return
	}
	ctx.Remove(s.nodes()...)
}

// ensureSubgraph returns the live subgraph of t, building it if it does not
// exist or was built in an older context. It returns nil if the device is
// not ready.
func (e *Engine) ensureSubgraph(t gs.Track) *subgraph {
	if e.ctx == nil || e.bus == nil {
		return nil
	}
	s := e.subgraphs[t.ID]
	if s != nil && s.gen == e.ctx.Generation() {
		return s
	}
	s = newSubgraph(e.ctx, e.bus.input)
	s.sync(t)
	e.subgraphs[t.ID] = s
	return s
}

// resync pushes the current settings of a track to its subgraph.
func (e *Engine) resync(id string) {
	i := e.trackIndex(id)
	if i < 0 || e.live() == nil {
		return
	}
	t := e.tracks[i]
	e.ensureSubgraph(t).sync(t)
}
