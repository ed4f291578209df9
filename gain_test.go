package gridsynth_test

import (
	"math"
	"testing"

	gs "github.com/gridsynth/gridsynth"
)

func TestNormalizedGain(t *testing.T) {
	want := map[int]float64{-3: 0.60, 0: 0.60, 1: 0.60, 2: 0.42, 3: 0.33, 4: 0.27, 5: 0.21, 6: 0.18, 7: 0.15, 8: 0.12, 9: 0.12, 100: 0.12}
	for n, g := range want {
		if got := gs.NormalizedGain(n); got != g {
			t.Errorf("NormalizedGain(%d) = %v, want %v", n, got, g)
		}
	}
	for n := 1; n < 20; n++ {
		if gs.NormalizedGain(n+1) > gs.NormalizedGain(n) {
			t.Errorf("NormalizedGain increases from %d to %d", n, n+1)
		}
	}
	if got := gs.NormalizedGain(5); math.Abs(got-0.60*0.35) > 1e-12 {
		t.Errorf("NormalizedGain(5) = %v, want 0.60*0.35", got)
	}
}

func TestEnvelopeTimes(t *testing.T) {
	for _, tc := range []struct {
		name string
		f    func(float64) float64
		in   float64
		want float64
	}{
		{"attack 0", gs.AttackSeconds, 0, 0},
		{"attack 50", gs.AttackSeconds, 50, 1},
		{"attack 100", gs.AttackSeconds, 100, 2},
		{"attack 150", gs.AttackSeconds, 150, 2},
		{"release 0", gs.ReleaseSeconds, 0, 0.1},
		{"release 1", gs.ReleaseSeconds, 1, 0.1},
		{"release 50", gs.ReleaseSeconds, 50, 1.5},
		{"release 100", gs.ReleaseSeconds, 100, 3},
	} {
		if got := tc.f(tc.in); math.Abs(got-tc.want) > 1e-12 {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestStepSeconds(t *testing.T) {
	if got := gs.StepSeconds(120, 16); got != 0.125 {
		t.Errorf("StepSeconds(120, 16) = %v, want 0.125", got)
	}
	if got := gs.StepSeconds(0, 16); got != 0 {
		t.Errorf("StepSeconds(0, 16) = %v, want 0", got)
	}
	if got := gs.ArpTickSeconds(120, 4); got != 0.5 {
		t.Errorf("ArpTickSeconds(120, 4) = %v, want 0.5", got)
	}
}

func TestAutoStopSeconds(t *testing.T) {
	env := gs.Envelope{Attack: 0.01, Decay: 0.05, Release: 0.02}
	if got := gs.AutoStopSeconds(env, 0.125); math.Abs(got-0.08) > 1e-12 {
		t.Errorf("short envelope stops after %v, want 0.08", got)
	}
	env.Release = 1
	if got := gs.AutoStopSeconds(env, 0.125); math.Abs(got-0.1) > 1e-12 {
		t.Errorf("long envelope stops after %v, want 0.1", got)
	}
}

func TestValidFrequency(t *testing.T) {
	for _, f := range []float64{0, -1, math.NaN(), math.Inf(1), math.Inf(-1)} {
		if gs.ValidFrequency(f) {
			t.Errorf("%v accepted", f)
		}
	}
	if !gs.ValidFrequency(0.5) || !gs.ValidFrequency(gs.NoteFrequency(69)) {
		t.Error("valid frequency rejected")
	}
	if got := gs.NoteFrequency(81); math.Abs(got-880) > 1e-9 {
		t.Errorf("NoteFrequency(81) = %v", got)
	}
}
