package engine_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	gs "github.com/gridsynth/gridsynth"
	"github.com/gridsynth/gridsynth/engine"
)

func TestRunner(t *testing.T) {
	dev := &testDevice{}
	e := engine.New(dev, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := engine.NewRunner(e, time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	var id string
	if err := r.Do(ctx, func(e *engine.Engine) { id = e.CreateTrack(gs.TrackPatch{}) }); err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if !r.Submit(func(e *engine.Engine) { e.SetBPM(99) }) {
		t.Fatal("Submit failed on an empty queue")
	}
	s, err := r.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(s.Tracks) != 1 || s.Tracks[0].ID != id || s.Transport.BPM != 99 {
		t.Errorf("unexpected snapshot: %+v", s)
	}
	if !r.Stop(3 * time.Second) {
		t.Fatal("runner did not finish")
	}
	if !r.Stop(time.Millisecond) {
		t.Error("stopping a finished runner should return at once")
	}
	if err := r.Do(context.Background(), func(*engine.Engine) {}); err == nil {
		t.Error("Do succeeded on a finished runner")
	}
}

func TestRunnerAdvancesClock(t *testing.T) {
	dev := &testDevice{}
	_ = dev.Resume()
	e := engine.New(dev, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := engine.NewRunner(e, time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	go r.Run(ctx)
	defer func() {
		cancel()
		<-r.Finished
	}()
	if err := r.Do(ctx, func(e *engine.Engine) {
		e.CreateTrack(gs.TrackPatch{Steps: []int{0, 1, 2, 3}})
		e.StartSequencer()
	}); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		s, err := r.Snapshot(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if s.Transport.CurrentStep >= 2 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("sequencer did not advance in real time")
}
