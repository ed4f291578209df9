// Package oto plays the audio graph through the system audio output.
package oto

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/gridsynth/gridsynth/graph"
)

type (
	// Device is an engine.Device backed by an oto player. The player pulls
	// audio by calling Read on its own goroutine; Read renders whatever
	// graph is current, or silence while the device is suspended.
	//
	// oto allows a single context per process, so a Device is meant to be
	// created once.
	Device struct {
		sampleRate int
		bufferSize time.Duration
		logger     *slog.Logger

		mu         sync.Mutex
		otoCtx     *oto.Context
		player     *oto.Player
		generation uint64

		graph  atomic.Pointer[graph.Context]
		frames [][2]float32 // only touched by Read
	}
)

// ErrNotReady is returned when the audio output could not be started.
var ErrNotReady = errors.New("audio output is not ready")

const defaultBufferSize = 50 * time.Millisecond

// NewDevice returns a suspended device. Nothing is opened until the first
// Resume. A bufferSize of zero means 50 ms.
func NewDevice(sampleRate int, bufferSize time.Duration, logger *slog.Logger) *Device {
	if logger == nil {
		logger = slog.Default()
	}
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &Device{sampleRate: sampleRate, bufferSize: bufferSize, logger: logger}
}

// Context returns the graph being played, or nil while suspended.
func (d *Device) Context() *graph.Context {
	return d.graph.Load()
}

// Resume opens the audio output if needed and starts playing a fresh graph.
// Resuming a running device does nothing.
func (d *Device) Resume() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.graph.Load() != nil {
		return nil
	}
	if d.otoCtx == nil {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   d.sampleRate,
			ChannelCount: 2,
			Format:       oto.FormatFloat32LE,
			BufferSize:   d.bufferSize,
		})
		if err != nil {
			return fmt.Errorf("%w: cannot create oto context: %w", ErrNotReady, err)
		}
		<-ready
		d.otoCtx = ctx
		d.player = ctx.NewPlayer(d)
		d.logger.Info("audio output opened", slog.Int("sampleRate", d.sampleRate), slog.Duration("buffer", d.bufferSize))
	}
	if err := d.otoCtx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrNotReady, err)
	}
	d.generation++
	d.graph.Store(graph.NewContext(d.sampleRate, d.generation))
	d.player.Play()
	return nil
}

// Suspend pauses the output and drops the current graph. The next Resume
// starts a new generation.
func (d *Device) Suspend() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.player != nil {
		d.player.Pause()
	}
	d.graph.Store(nil)
}

// Close stops the output.
func (d *Device) Close() error {
	d.Suspend()
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.player == nil {
		return nil
	}
	if err := d.player.Close(); err != nil {
		return fmt.Errorf("cannot close oto player: %w", err)
	}
	d.player = nil
	return nil
}

// Read implements io.Reader for the oto player: p is filled with
// interleaved stereo float32 little-endian samples.
func (d *Device) Read(p []byte) (int, error) {
	n := len(p) / frameBytes
	if cap(d.frames) < n {
		d.frames = make([][2]float32, n)
	}
	frames := d.frames[:n]
	if g := d.graph.Load(); g != nil {
		g.Render(frames)
	} else {
		clear(frames)
	}
	return PutFrames(p, frames), nil
}
