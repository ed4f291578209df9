package engine

import (
	"math"

	gs "github.com/gridsynth/gridsynth"
	"github.com/gridsynth/gridsynth/graph"
)

// The functions in this file map effect settings to node parameters. A
// disabled effect maps to neutral values, so toggling an effect only ever
// changes parameters, never the graph.

type (
	FilterParams struct {
		Cutoff    float32
		Resonance float32
	}

	CompressorParams struct {
		Threshold float32 // dBFS
		Ratio     float32
		Attack    float32
		Release   float32
	}

	// DelayParams are the parameters of a delay stage. Send feeds the delay
	// line (master bus only), Wet is the level of the delayed signal and
	// Mix is the level of the stage that also forwards the chorus path.
	DelayParams struct {
		Time     float32
		Feedback float32
		Send     float32
		Wet      float32
		Mix      float32
	}

	ChorusParams struct {
		Rate  float32
		Depth float32
		Send  float32
		Wet   float32
		Mix   float32
	}
)

// bypassCeiling is the limiter ceiling used when the limiter is disabled,
// +24 dBFS.
const bypassCeiling = 16

func Filter(f gs.FilterEffect) FilterParams {
	if !f.Enabled {
		return FilterParams{Cutoff: gs.NeutralCutoff, Resonance: 0}
	}
	return FilterParams{Cutoff: float32(f.Cutoff), Resonance: float32(f.Resonance)}
}

// Distortion returns the transfer curve of the waveshaper; the identity
// curve when disabled.
func Distortion(d gs.DistortionEffect) graph.Curve {
	if !d.Enabled {
		return graph.IdentityCurve()
	}
	return graph.DistortionCurve(gs.Clamp(d.Amount, 0, 100) / 100)
}

func Compressor(c gs.CompressionEffect) CompressorParams {
	if !c.Enabled {
		return CompressorParams{Threshold: 0, Ratio: 1, Attack: 0.001, Release: 0.01}
	}
	return CompressorParams{
		Threshold: float32(c.Threshold),
		Ratio:     float32(c.Ratio),
		Attack:    float32(c.Attack),
		Release:   float32(c.Release),
	}
}

// Delay maps a delay effect. Disabled, the feedback is zero and nothing is
// sent into the line, but the mix stage stays at unity so that whatever else
// flows through it keeps flowing.
func Delay(d gs.DelayEffect) DelayParams {
	if !d.Enabled {
		return DelayParams{Time: float32(d.Time), Feedback: 0, Send: 0, Wet: 0, Mix: 1}
	}
	return DelayParams{Time: float32(d.Time), Feedback: float32(d.Feedback), Send: 1, Wet: float32(d.Mix), Mix: 1}
}

func Chorus(c gs.ChorusEffect) ChorusParams {
	if !c.Enabled {
		return ChorusParams{Rate: float32(c.Rate), Depth: float32(c.Depth), Send: 0, Wet: 0, Mix: 1}
	}
	return ChorusParams{Rate: float32(c.Rate), Depth: float32(c.Depth), Send: 1, Wet: float32(c.Mix), Mix: 1}
}

// Reverb returns the dry and wet levels around the reverb.
func Reverb(r gs.ReverbEffect) (dry, wet float32) {
	d, w := r.ReverbMix()
	return float32(d), float32(w)
}

// Limiter returns the linear ceiling of the limiter.
func Limiter(l gs.LimiterEffect) float32 {
	if !l.Enabled {
		return bypassCeiling
	}
	return float32(math.Pow(10, l.Ceiling/20))
}

func applyFilter(n *graph.FilterNode, f gs.FilterEffect) {
	p := Filter(f)
	n.Cutoff.Set(p.Cutoff)
	n.Resonance.Set(p.Resonance)
}

func applyCompressor(n *graph.CompressorNode, c gs.CompressionEffect) {
	p := Compressor(c)
	n.Threshold.Set(p.Threshold)
	n.Ratio.Set(p.Ratio)
	n.Attack.Set(p.Attack)
	n.Release.Set(p.Release)
}
