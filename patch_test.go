package gridsynth_test

import (
	"slices"
	"testing"

	gs "github.com/gridsynth/gridsynth"
	"gopkg.in/yaml.v3"
)

func TestTrackPatchApply(t *testing.T) {
	orig := gs.DefaultTrack()
	orig.ID = "track-1"
	orig.Order = 3
	p := gs.TrackPatch{
		Name:     gs.Ptr("Bass"),
		Waveform: gs.Ptr(gs.Sawtooth),
		Volume:   gs.Ptr(-5.0),
		Pan:      gs.Ptr(250.0),
		Steps:    []int{0, 4, 31, 32, -1},
	}
	got := p.Apply(orig)
	if got.ID != "track-1" || got.Order != 3 {
		t.Errorf("patch changed identity: %v %d", got.ID, got.Order)
	}
	if got.Name != "Bass" || got.Waveform != gs.Sawtooth || got.Volume != 0 || got.Pan != 100 {
		t.Errorf("unexpected result %+v", got)
	}
	if steps := got.ActiveSteps(gs.MaxSteps); !slices.Equal(steps, []int{0, 4, 31}) {
		t.Errorf("steps %v", steps)
	}
	if orig.Name != "Track" || orig.Sequence[0] {
		t.Error("Apply modified its argument")
	}
	if got.Frequency != orig.Frequency || got.Envelope != orig.Envelope {
		t.Error("fields missing from the patch changed")
	}
}

func TestTrackPatchRejectsInvalid(t *testing.T) {
	orig := gs.DefaultTrack()
	got := gs.TrackPatch{
		Frequency: gs.Ptr(-20.0),
		Waveform:  gs.Ptr(gs.Waveform("noise")),
		LFO:       &gs.LFO{Enabled: true, Rate: 2, Depth: 500, Target: "wobble"},
	}.Apply(orig)
	if got.Frequency != orig.Frequency || got.Waveform != orig.Waveform {
		t.Errorf("invalid values applied: %v %v", got.Frequency, got.Waveform)
	}
	if !got.LFO.Enabled || got.LFO.Depth != 100 || got.LFO.Target != orig.LFO.Target || got.LFO.Waveform != orig.LFO.Waveform {
		t.Errorf("unexpected LFO %+v", got.LFO)
	}
}

func TestMasterEffectsPatch(t *testing.T) {
	m := gs.DefaultMasterEffects()
	got := gs.MasterEffectsPatch{
		Reverb: &gs.ReverbEffect{Enabled: true, Decay: 3},
		Width:  gs.Ptr(500.0),
	}.Apply(m)
	if !got.Reverb.Enabled || got.Width != 200 {
		t.Errorf("unexpected %+v", got)
	}
	if got.Limiter != m.Limiter || got.Delay != m.Delay {
		t.Error("untouched effects changed")
	}
	if dry, wet := got.Reverb.ReverbMix(); dry != 0.7 || wet != 0.3 {
		t.Errorf("reverb mix %v/%v", dry, wet)
	}
}

func TestGlobalsPatch(t *testing.T) {
	g := gs.GlobalsPatch{Attack: gs.Ptr(120.0), LFOTarget: gs.Ptr(gs.TargetFilter)}.Apply(gs.DefaultGlobals())
	if g.Attack != 100 || g.LFOTarget != gs.TargetFilter || g.Release != gs.DefaultGlobals().Release {
		t.Errorf("unexpected globals %+v", g)
	}
}

func TestTrackPatchYAML(t *testing.T) {
	src := `
category: hi_hat
frequency: 1760
envelope: {attack: 0.001, decay: 0.02, sustain: 0, release: 0.02}
effects:
  delay: {enabled: true, time: 0.25, feedback: 0.99, mix: 0.5}
steps: [0, 2, 4]
`
	var p gs.TrackPatch
	if err := yaml.Unmarshal([]byte(src), &p); err != nil {
		t.Fatalf("could not parse: %v", err)
	}
	tr := p.Apply(gs.DefaultTrack())
	if tr.Category != "hi_hat" || tr.Frequency != 1760 || tr.Envelope.Decay != 0.02 {
		t.Errorf("unexpected track %+v", tr)
	}
	if tr.Effects.Delay.Feedback != 0.95 {
		t.Errorf("feedback %v not limited to 0.95", tr.Effects.Delay.Feedback)
	}
	if p.Name != nil || p.Volume != nil {
		t.Error("absent fields decoded as present")
	}
}

func TestDisplayName(t *testing.T) {
	for in, want := range map[string]string{
		"kick":     "Kick",
		"hi_hat":   "Hi Hat",
		" lead ":   "Lead",
		"open hat": "Open Hat",
	} {
		if got := gs.DisplayName(in); got != want {
			t.Errorf("DisplayName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSnapshotCopy(t *testing.T) {
	s := gs.Snapshot{
		Tracks:    []gs.Track{gs.DefaultTrack()},
		Transport: gs.Transport{PendingBPM: gs.Ptr(100.0)},
	}
	c := s.Copy()
	c.Tracks[0].Name = "x"
	*c.Transport.PendingBPM = 5
	if s.Tracks[0].Name == "x" || *s.Transport.PendingBPM != 100 {
		t.Error("copy shares memory with the original")
	}
	if _, ok := s.Track("missing"); ok {
		t.Error("found a missing track")
	}
}
