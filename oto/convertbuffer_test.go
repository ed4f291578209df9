package oto_test

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/gridsynth/gridsynth/oto"
)

func TestPutFrames(t *testing.T) {
	frames := [][2]float32{{0.5, -0.25}, {1, -1}, {0, 2}}
	buf := make([]byte, 20) // room for two frames and a half
	if n := oto.PutFrames(buf, frames); n != 16 {
		t.Fatalf("wrote %d bytes, want 16", n)
	}
	want := []float32{0.5, -0.25, 1, -1}
	for i, w := range want {
		if got := math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:])); got != w {
			t.Errorf("sample %d = %v, want %v", i, got, w)
		}
	}
}

func TestSuspendedDeviceIsSilent(t *testing.T) {
	d := oto.NewDevice(44100, 0, nil)
	if d.Context() != nil {
		t.Fatal("new device should be suspended")
	}
	buf := make([]byte, 64)
	for i := range buf {
		buf[i] = 0xff
	}
	n, err := d.Read(buf)
	if err != nil || n != 64 {
		t.Fatalf("Read = %d, %v", n, err)
	}
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("byte %d = %x, want silence", i, b)
		}
	}
}
