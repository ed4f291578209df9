package offline_test

import (
	"bytes"
	"encoding/binary"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/wav"
	gs "github.com/gridsynth/gridsynth"
	"github.com/gridsynth/gridsynth/engine"
	"github.com/gridsynth/gridsynth/offline"
)

func newEngine() (*engine.Engine, *offline.Device) {
	d := offline.NewDevice(0)
	return engine.New(d, slog.New(slog.NewTextHandler(io.Discard, nil))), d
}

func peak(frames [][2]float32) float32 {
	var p float32
	for _, f := range frames {
		p = max(p, float32(math.Abs(float64(f[0]))), float32(math.Abs(float64(f[1]))))
	}
	return p
}

func TestRenderSilence(t *testing.T) {
	e, d := newEngine()
	out := offline.Render(e, d, 100*time.Millisecond)
	if len(out) != 4410 {
		t.Fatalf("rendered %d frames, want 4410", len(out))
	}
	if p := peak(out); p != 0 {
		t.Errorf("silent engine has peak %v", p)
	}
	if e.Now() != 100*time.Millisecond {
		t.Errorf("engine clock at %v", e.Now())
	}
}

func TestRenderSequencer(t *testing.T) {
	e, d := newEngine()
	e.CreateTrack(gs.TrackPatch{Steps: []int{0, 4, 8, 12}})
	e.StartSequencer()
	out := offline.Render(e, d, 500*time.Millisecond)
	if p := peak(out); p < 0.01 || p > 1.01 {
		t.Errorf("peak %v out of the expected range", p)
	}
	e.StopSequencer()
	tail := offline.Render(e, d, 2*time.Second)
	if p := peak(tail[len(tail)-4410:]); p > 1e-4 {
		t.Errorf("audio still playing after stop: peak %v", p)
	}
	if s := e.Snapshot(); len(s.Voices) != 0 {
		t.Errorf("%d voices left after release", len(s.Voices))
	}
}

func TestResetStartsNewGeneration(t *testing.T) {
	e, d := newEngine()
	e.CreateTrack(gs.TrackPatch{})
	offline.Render(e, d, 10*time.Millisecond)
	g := d.Context().Generation()
	d.Reset()
	e.PlayNote(440, "")
	if d.Context() == nil || d.Context().Generation() != g+1 {
		t.Fatal("device was not resumed with a new generation")
	}
	if p := peak(offline.Render(e, d, 200*time.Millisecond)); p == 0 {
		t.Error("no audio after the graph was rebuilt")
	}
}

func TestWriteWav(t *testing.T) {
	frames := [][2]float32{{0, 0}, {0.5, -0.5}, {2, -2}}
	path := filepath.Join(t.TempDir(), "out.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := offline.WriteWav(f, frames, 44100); err != nil {
		t.Fatalf("WriteWav failed: %v", err)
	}
	f.Close()
	r, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	dec := wav.NewDecoder(r)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("could not decode: %v", err)
	}
	if dec.SampleRate != 44100 || dec.NumChans != 2 || dec.BitDepth != 16 {
		t.Errorf("unexpected format %d Hz %d channels %d bits", dec.SampleRate, dec.NumChans, dec.BitDepth)
	}
	want := []int{0, 0, 16383, -16383, 32767, -32768}
	if len(buf.Data) != len(want) {
		t.Fatalf("decoded %d samples, want %d", len(buf.Data), len(want))
	}
	for i, w := range want {
		if buf.Data[i] != w {
			t.Errorf("sample %d = %d, want %d", i, buf.Data[i], w)
		}
	}
}

func TestRaw(t *testing.T) {
	frames := [][2]float32{{0.25, -1}}
	b, err := offline.Raw(frames, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(b) != 8 || math.Float32frombits(binary.LittleEndian.Uint32(b[4:])) != -1 {
		t.Errorf("unexpected float data %v", b)
	}
	b, err = offline.Raw(frames, true)
	if err != nil {
		t.Fatal(err)
	}
	var got [2]int16
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, &got); err != nil {
		t.Fatal(err)
	}
	if got != [2]int16{8191, -32767} {
		t.Errorf("unexpected pcm data %v", got)
	}
}
