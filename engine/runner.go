package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	gs "github.com/gridsynth/gridsynth"
)

type (
	// Runner owns an Engine on a single goroutine. Other goroutines (MIDI
	// input, HTTP handlers, the CLI) talk to the engine by sending closures
	// that get executed on the runner goroutine, so the engine itself needs
	// no locking.
	//
	// Closing works as in the rest of the code base: Close has a capacity of
	// 1, so anyone can request closing without blocking, and Finished is
	// closed once the engine has been closed and Run has returned.
	Runner struct {
		ToEngine chan func(*Engine)
		Close    chan struct{}
		Finished chan struct{}

		engine *Engine
		tick   time.Duration
		logger *slog.Logger
	}
)

// ErrRunnerBusy is returned when the runner queue is full.
var ErrRunnerBusy = errors.New("engine queue is full")

const defaultTick = 5 * time.Millisecond

// NewRunner returns a runner for e that advances the engine clock every
// tick with the wall time elapsed since Run was called. A tick of zero
// means 5 ms.
func NewRunner(e *Engine, tick time.Duration) *Runner {
	if tick <= 0 {
		tick = defaultTick
	}
	return &Runner{
		ToEngine: make(chan func(*Engine), 1024),
		Close:    make(chan struct{}, 1),
		Finished: make(chan struct{}),
		engine:   e,
		tick:     tick,
		logger:   e.logger,
	}
}

// Submit queues f to be run on the engine goroutine. It never blocks and
// returns false if the queue is full.
func (r *Runner) Submit(f func(*Engine)) bool {
	return TrySend(r.ToEngine, f)
}

// Do runs f on the engine goroutine and waits until it has run, the runner
// has finished or ctx is done.
func (r *Runner) Do(ctx context.Context, f func(*Engine)) error {
	done := make(chan struct{})
	if !r.Submit(func(e *Engine) {
		defer close(done)
		f(e)
	}) {
		return ErrRunnerBusy
	}
	select {
	case <-done:
		return nil
	case <-r.Finished:
		return errors.New("engine runner finished")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns a snapshot of the engine state, taken on the engine
// goroutine.
func (r *Runner) Snapshot(ctx context.Context) (gs.Snapshot, error) {
	var s gs.Snapshot
	err := r.Do(ctx, func(e *Engine) { s = e.Snapshot() })
	return s, err
}

// Stop requests closing and waits up to timeout for the runner to finish.
// It reports if the runner finished in time.
func (r *Runner) Stop(timeout time.Duration) bool {
	TrySend(r.Close, struct{}{})
	select {
	case <-r.Finished:
		return true
	case <-time.After(timeout):
		r.logger.Warn("engine runner did not finish", slog.Duration("timeout", timeout))
		return false
	}
}

// Run executes the submitted closures and advances the engine clock until
// ctx is done or closing is requested. The engine is closed when Run
// returns.
func (r *Runner) Run(ctx context.Context) {
	defer close(r.Finished)
	start := time.Now()
	clock := func() time.Duration { return time.Since(start) }
	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()
	r.logger.Debug("engine runner started", slog.Duration("tick", r.tick))
	for {
		select {
		case f := <-r.ToEngine:
			r.engine.Advance(clock())
			f(r.engine)
		case <-ticker.C:
			r.engine.Advance(clock())
		case <-r.Close:
			r.engine.Close()
			return
		case <-ctx.Done():
			r.engine.Close()
			return
		}
	}
}

// TrySend is a helper function to send a value to a channel if it is not full.
// It is guaranteed to be non-blocking. Return true if the value was sent, false
// otherwise.
func TrySend[T any](c chan<- T, v T) bool {
	select {
	case c <- v:
	default:
		return false
	}
	return true
}
