// Package offline renders an engine faster than real time, for exporting
// and for tests.
package offline

import (
	"time"

	gs "github.com/gridsynth/gridsynth"
	"github.com/gridsynth/gridsynth/engine"
	"github.com/gridsynth/gridsynth/graph"
)

type (
	// Device is an engine.Device that is always ready. Its graph is rendered
	// by Render instead of an audio output.
	Device struct {
		sampleRate int
		generation uint64
		ctx        *graph.Context
	}
)

const DefaultSampleRate = 44100

// NewDevice returns a device rendering at sampleRate. Non-positive values
// mean DefaultSampleRate.
func NewDevice(sampleRate int) *Device {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &Device{sampleRate: sampleRate}
}

func (d *Device) SampleRate() int { return d.sampleRate }

func (d *Device) Context() *graph.Context { return d.ctx }

func (d *Device) Resume() error {
	if d.ctx == nil {
		d.generation++
		d.ctx = graph.NewContext(d.sampleRate, d.generation)
	}
	return nil
}

// Reset drops the graph. The next Resume starts a new generation, as if the
// audio device had been lost.
func (d *Device) Reset() { d.ctx = nil }

// Render runs the engine for duration and returns the rendered frames. The
// engine clock and the graph clock advance together, one block at a time,
// starting from the engine's current time.
func Render(e *engine.Engine, d *Device, duration time.Duration) [][2]float32 {
	if err := d.Resume(); err != nil {
		return nil
	}
	total := int(duration.Seconds() * float64(d.sampleRate))
	out := make([][2]float32, total)
	start := e.Now()
	for i := 0; i < total; i += graph.BlockSize {
		e.Advance(start + gs.Seconds(float64(i)/float64(d.sampleRate)))
		// the engine may have switched graphs when it advanced
		ctx := d.ctx
		if ctx == nil {
			continue
		}
		ctx.Render(out[i:min(i+graph.BlockSize, total)])
	}
	e.Advance(start + duration)
	return out
}
