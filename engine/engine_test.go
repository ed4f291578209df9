package engine_test

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"slices"
	"testing"
	"time"

	gs "github.com/gridsynth/gridsynth"
	"github.com/gridsynth/gridsynth/engine"
	"github.com/gridsynth/gridsynth/graph"
)

type testDevice struct {
	ctx     *graph.Context
	gen     uint64
	fail    bool
	resumes int
}

func (d *testDevice) Context() *graph.Context { return d.ctx }

func (d *testDevice) Resume() error {
	d.resumes++
	if d.fail {
		return errors.New("no audio")
	}
	if d.ctx == nil {
		d.gen++
		d.ctx = graph.NewContext(44100, d.gen)
	}
	return nil
}

// suspend drops the context, like a device that was suspended.
func (d *testDevice) suspend() { d.ctx = nil }

type noteLog []engine.NoteEvent

func (l *noteLog) add(ev engine.NoteEvent) { *l = append(*l, ev) }

func (l noteLog) ons() []engine.NoteEvent {
	var ret []engine.NoteEvent
	for _, ev := range l {
		if ev.On {
			ret = append(ret, ev)
		}
	}
	return ret
}

func newTestEngine(t *testing.T) (*engine.Engine, *testDevice, *noteLog) {
	t.Helper()
	dev := &testDevice{}
	if err := dev.Resume(); err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	e := engine.New(dev, slog.New(slog.NewTextHandler(io.Discard, nil)))
	notes := &noteLog{}
	e.SetNoteObserver(notes.add)
	e.SetRand(rand.New(rand.NewSource(1)))
	return e, dev, notes
}

func TestFiveVoicesShareTheHeadroom(t *testing.T) {
	e, _, _ := newTestEngine(t)
	for i := 1; i <= 5; i++ {
		if e.StartVoice(110*float64(i), "") == 0 {
			t.Fatalf("voice %d was not started", i)
		}
	}
	voices := e.Snapshot().Voices
	if len(voices) != 5 {
		t.Fatalf("got %d voices, want 5", len(voices))
	}
	for _, v := range voices {
		if math.Abs(v.TargetGain-0.21) > 1e-9 {
			t.Errorf("voice %d target gain %v, want 0.21", v.Handle, v.TargetGain)
		}
	}
}

func TestReleasedVoicesDoNotCount(t *testing.T) {
	e, _, _ := newTestEngine(t)
	e.StartVoice(220, "")
	e.StartVoice(330, "")
	e.StopVoice(220, "")
	e.StartVoice(440, "")
	for _, v := range e.Snapshot().Voices {
		if !v.Released && v.TargetGain != gs.NormalizedGain(2) {
			t.Errorf("voice at %v: target %v, want %v", v.Frequency, v.TargetGain, gs.NormalizedGain(2))
		}
	}
	e.Advance(5 * time.Second)
	if n := len(e.Snapshot().Voices); n != 2 {
		t.Errorf("released voice was not destroyed, %d voices left", n)
	}
}

func TestStopAll(t *testing.T) {
	e, _, _ := newTestEngine(t)
	e.StartVoice(220, "")
	e.StartVoice(330, "")
	e.StopAll(true)
	voices := e.Snapshot().Voices
	if len(voices) != 2 || !voices[0].Released || !voices[1].Released {
		t.Fatalf("graceful stop should release, not kill: %+v", voices)
	}
	e.Advance(5 * time.Second)
	if n := len(e.Snapshot().Voices); n != 0 {
		t.Errorf("%d voices left after the release", n)
	}
	e.StartVoice(440, "")
	e.StopAll(false)
	if n := len(e.Snapshot().Voices); n != 0 {
		t.Errorf("hard stop left %d voices", n)
	}
}

func TestInvalidFrequencyIsIgnored(t *testing.T) {
	e, _, notes := newTestEngine(t)
	for _, f := range []float64{0, -10, math.NaN(), math.Inf(1)} {
		if h := e.StartVoice(f, ""); h != 0 {
			t.Errorf("StartVoice(%v) returned handle %d", f, h)
		}
		e.PlayNote(f, "")
	}
	if len(e.Snapshot().Voices) != 0 || len(*notes) != 0 {
		t.Error("invalid frequencies produced voices")
	}
}

func TestStopVoiceMatchesAnyTrack(t *testing.T) {
	e, _, _ := newTestEngine(t)
	a := e.CreateTrack(gs.TrackPatch{})
	b := e.CreateTrack(gs.TrackPatch{})
	e.StartVoice(440, a)
	e.StartVoice(440.05, b)
	e.StartVoice(440, "")
	e.StopVoice(440, b)
	released := 0
	for _, v := range e.Snapshot().Voices {
		if v.Released {
			released++
			if v.TrackID != b {
				t.Errorf("voice of %q released by a scoped stop", v.TrackID)
			}
		}
	}
	if released != 1 {
		t.Fatalf("scoped stop released %d voices, want 1", released)
	}
	e.StopVoice(440, "")
	for _, v := range e.Snapshot().Voices {
		if !v.Released {
			t.Errorf("voice of %q still sounding", v.TrackID)
		}
	}
}

func TestSequencerTickScenario(t *testing.T) {
	e, _, notes := newTestEngine(t)
	var ids []string
	for range 3 {
		ids = append(ids, e.CreateTrack(gs.TrackPatch{Steps: []int{0}}))
	}
	e.StartSequencer()
	e.Advance(0)
	ons := notes.ons()
	if len(ons) != 3 {
		t.Fatalf("got %d note-on events, want 3", len(ons))
	}
	for i, ev := range ons {
		if ev.TrackID != ids[i] {
			t.Errorf("note %d bound to %q, want %q", i, ev.TrackID, ids[i])
		}
	}
	if s := e.Snapshot().Transport.CurrentStep; s != 0 {
		t.Errorf("current step %d, want 0", s)
	}
	e.Advance(125 * time.Millisecond)
	if len(notes.ons()) != 3 {
		t.Error("step 1 should not trigger anything")
	}
	if s := e.Snapshot().Transport.CurrentStep; s != 1 {
		t.Errorf("current step %d, want 1", s)
	}
}

func TestStartSequencerIsIdempotent(t *testing.T) {
	e, _, notes := newTestEngine(t)
	steps := make([]int, 16)
	for i := range steps {
		steps[i] = i
	}
	e.CreateTrack(gs.TrackPatch{Steps: steps})
	e.StartSequencer()
	e.StartSequencer()
	e.Advance(999 * time.Millisecond)
	if n := len(notes.ons()); n != 8 {
		t.Errorf("got %d notes in the first second, want 8", n)
	}
}

func TestSoloAndMuteSelectPlayableTracks(t *testing.T) {
	e, _, notes := newTestEngine(t)
	a := e.CreateTrack(gs.TrackPatch{Steps: []int{0}})
	b := e.CreateTrack(gs.TrackPatch{Steps: []int{0}})
	c := e.CreateTrack(gs.TrackPatch{Steps: []int{0}})
	e.ToggleMute(b)
	e.StartSequencer()
	e.Advance(0)
	if got := trackIDs(notes.ons()); !slices.Equal(got, []string{a, c}) {
		t.Errorf("with %s muted got %v", b, got)
	}
	e.StopSequencer()
	*notes = nil
	e.ToggleSolo(b)
	e.StartSequencer()
	e.Advance(e.Now())
	if got := trackIDs(notes.ons()); !slices.Equal(got, []string{b}) {
		t.Errorf("with %s soloed got %v", b, got)
	}
}

func trackIDs(evs []engine.NoteEvent) []string {
	var ret []string
	for _, ev := range evs {
		ret = append(ret, ev.TrackID)
	}
	return ret
}

func TestStopSequencerReleasesVoices(t *testing.T) {
	e, _, _ := newTestEngine(t)
	e.CreateTrack(gs.TrackPatch{Steps: []int{0}})
	e.StartSequencer()
	e.Advance(0)
	e.StopSequencer()
	s := e.Snapshot()
	if s.Transport.Playing {
		t.Fatal("sequencer still playing")
	}
	if len(s.Voices) == 0 {
		t.Fatal("voices should still be releasing")
	}
	for _, v := range s.Voices {
		if !v.Released {
			t.Error("voice was not released")
		}
	}
	if _, ok := e.NextEvent(); !ok {
		t.Error("release should be scheduled")
	}
	e.Advance(10 * time.Second)
	if n := len(e.Snapshot().Voices); n != 0 {
		t.Errorf("%d voices left after the release", n)
	}
}

func TestBPMChangeWaitsForTick(t *testing.T) {
	e, _, _ := newTestEngine(t)
	e.CreateTrack(gs.TrackPatch{})
	e.StartSequencer()
	e.Advance(0)
	e.SetBPM(90)
	e.SetSteps(8)
	tr := e.Snapshot().Transport
	if tr.BPM != 120 || tr.PendingBPM == nil || *tr.PendingBPM != 90 {
		t.Fatalf("bpm changed mid-step: %+v", tr)
	}
	if tr.Steps != 16 || tr.PendingSteps == nil || *tr.PendingSteps != 8 {
		t.Fatalf("steps changed mid-step: %+v", tr)
	}
	e.Advance(125 * time.Millisecond)
	tr = e.Snapshot().Transport
	if tr.BPM != 90 || tr.PendingBPM != nil || tr.Steps != 8 || tr.PendingSteps != nil {
		t.Fatalf("pending values not applied at the tick: %+v", tr)
	}
	// the next tick comes after a step at the new tempo
	next, _ := e.NextEvent()
	want := 125*time.Millisecond + gs.Seconds(gs.StepSeconds(90, 8))
	for next < want {
		e.Advance(next)
		next, _ = e.NextEvent()
	}
	if next != want {
		t.Errorf("next tick at %v, want %v", next, want)
	}
}

func TestSetBPMWhileStopped(t *testing.T) {
	e, _, _ := newTestEngine(t)
	e.SetBPM(1000)
	if bpm := e.Snapshot().Transport.BPM; bpm != gs.MaxBPM {
		t.Errorf("bpm %v, want clamped to %v", bpm, gs.MaxBPM)
	}
	e.SetBPM(math.NaN())
	if bpm := e.Snapshot().Transport.BPM; bpm != gs.MaxBPM {
		t.Errorf("NaN changed the bpm to %v", bpm)
	}
}

func TestToggleTwiceRestores(t *testing.T) {
	e, _, _ := newTestEngine(t)
	id := e.CreateTrack(gs.TrackPatch{Muted: gs.Ptr(true)})
	before, _ := e.Snapshot().Track(id)
	e.ToggleMute(id)
	e.ToggleSolo(id)
	mid, _ := e.Snapshot().Track(id)
	if mid.Muted == before.Muted || mid.Solo == before.Solo {
		t.Fatal("toggle did not flip")
	}
	e.ToggleMute(id)
	e.ToggleSolo(id)
	after, _ := e.Snapshot().Track(id)
	if after != before {
		t.Errorf("toggling twice changed the track: %v -> %v", before, after)
	}
}

func TestDeleteSelectedTrack(t *testing.T) {
	e, _, _ := newTestEngine(t)
	a := e.CreateTrack(gs.TrackPatch{})
	b := e.CreateTrack(gs.TrackPatch{})
	c := e.CreateTrack(gs.TrackPatch{})
	if sel := e.Snapshot().SelectedTrackID; sel != c {
		t.Fatalf("selected %q, want the new track %q", sel, c)
	}
	e.DeleteTrack(c)
	if sel := e.Snapshot().SelectedTrackID; sel != a {
		t.Errorf("selected %q after deleting the selected track, want %q", sel, a)
	}
	e.DeleteTrack(b)
	if sel := e.Snapshot().SelectedTrackID; sel != a {
		t.Errorf("deleting another track changed the selection to %q", sel)
	}
	e.DeleteTrack(a)
	if sel := e.Snapshot().SelectedTrackID; sel != "" {
		t.Errorf("selected %q with no tracks left", sel)
	}
	e.DeleteTrack("nope")
}

func TestDeleteTrackWaitsForRelease(t *testing.T) {
	e, dev, _ := newTestEngine(t)
	e.UpdateMasterEffects(gs.MasterEffectsPatch{})
	base := dev.ctx.NodeCount()
	id := e.CreateTrack(gs.TrackPatch{Envelope: &gs.Envelope{Attack: 0.01, Decay: 0.1, Sustain: 0.5, Release: 0.5}})
	e.StartVoice(220, id)
	withTrack := dev.ctx.NodeCount()
	if withTrack <= base+1 {
		t.Fatalf("track subgraph not built: %d nodes, %d before", withTrack, base)
	}
	e.DeleteTrack(id)
	if len(e.Snapshot().Tracks) != 0 {
		t.Fatal("track still in the registry")
	}
	if dev.ctx.NodeCount() != withTrack {
		t.Fatal("subgraph torn down while its voice is releasing")
	}
	e.Advance(499 * time.Millisecond)
	if dev.ctx.NodeCount() != withTrack {
		t.Fatal("subgraph torn down before the release ended")
	}
	e.Advance(500 * time.Millisecond)
	if n := dev.ctx.NodeCount(); n != base {
		t.Errorf("%d nodes after teardown, want %d", n, base)
	}
}

func TestReorderTracks(t *testing.T) {
	e, _, _ := newTestEngine(t)
	a := e.CreateTrack(gs.TrackPatch{})
	b := e.CreateTrack(gs.TrackPatch{})
	c := e.CreateTrack(gs.TrackPatch{})
	d := e.CreateTrack(gs.TrackPatch{})
	e.ReorderTracks([]string{c, "nope", a, c})
	var got []string
	for i, tr := range e.Snapshot().Tracks {
		got = append(got, tr.ID)
		if tr.Order != i {
			t.Errorf("track %s has order %d at position %d", tr.ID, tr.Order, i)
		}
	}
	if want := []string{c, a, b, d}; !slices.Equal(got, want) {
		t.Errorf("order %v, want %v", got, want)
	}
}

func TestTrackSteps(t *testing.T) {
	e, _, _ := newTestEngine(t)
	id := e.CreateTrack(gs.TrackPatch{})
	e.SetTrackStep(id, 3, true)
	e.SetTrackStep(id, 31, true)
	e.SetTrackStep(id, 32, true)
	e.SetTrackStep(id, -1, true)
	tr, _ := e.Snapshot().Track(id)
	if got := tr.ActiveSteps(gs.MaxSteps); !slices.Equal(got, []int{3, 31}) {
		t.Errorf("active steps %v", got)
	}
	if got := tr.ActiveSteps(16); !slices.Equal(got, []int{3}) {
		t.Errorf("active steps in the first 16: %v", got)
	}
	e.ClearTrackSequence(id)
	tr, _ = e.Snapshot().Track(id)
	if len(tr.ActiveSteps(gs.MaxSteps)) != 0 {
		t.Error("sequence not cleared")
	}
}

func TestClearAllTracksKeepsTracks(t *testing.T) {
	e, _, _ := newTestEngine(t)
	e.LoadTrackBundle("basic-kit")
	e.ClearAllTracks()
	s := e.Snapshot()
	if len(s.Tracks) != 3 {
		t.Fatalf("got %d tracks, want 3", len(s.Tracks))
	}
	for _, tr := range s.Tracks {
		if len(tr.ActiveSteps(gs.MaxSteps)) != 0 {
			t.Errorf("track %s still has steps", tr.ID)
		}
	}
}

func TestUpdateTrack(t *testing.T) {
	e, _, _ := newTestEngine(t)
	id := e.CreateTrack(gs.TrackPatch{Name: gs.Ptr("Lead")})
	e.UpdateTrack(id, gs.TrackPatch{
		Volume:  gs.Ptr(150.0),
		Pan:     gs.Ptr(-30.0),
		Effects: &gs.EffectsPatch{Delay: &gs.DelayEffect{Enabled: true, Time: 0.3, Feedback: 0.5, Mix: 0.4}},
	})
	tr, _ := e.Snapshot().Track(id)
	if tr.Name != "Lead" || tr.Volume != 100 || tr.Pan != -30 || !tr.Effects.Delay.Enabled {
		t.Errorf("unexpected track after update: %+v", tr)
	}
	if tr.Effects.Chorus != gs.DefaultEffects().Chorus {
		t.Error("update touched an effect it did not mention")
	}
	e.UpdateTrack("nope", gs.TrackPatch{Volume: gs.Ptr(1.0)})
}

func TestLoadTrackBundleReplacesRegistry(t *testing.T) {
	e, _, _ := newTestEngine(t)
	var old []string
	for range 5 {
		old = append(old, e.CreateTrack(gs.TrackPatch{}))
	}
	e.LoadTrackBundle("techno")
	s := e.Snapshot()
	tables, err := engine.LoadTables()
	if err != nil {
		t.Fatalf("LoadTables failed: %v", err)
	}
	bundle := tables.Bundles["techno"]
	if len(s.Tracks) != len(bundle.Tracks) {
		t.Fatalf("got %d tracks, want %d", len(s.Tracks), len(bundle.Tracks))
	}
	for _, tr := range s.Tracks {
		if slices.Contains(old, tr.ID) {
			t.Errorf("old track %s survived", tr.ID)
		}
	}
	if last := s.Tracks[len(s.Tracks)-1].ID; s.SelectedTrackID != last {
		t.Errorf("selected %q, want the last track %q", s.SelectedTrackID, last)
	}
	if s.Transport.BPM != bundle.BPM {
		t.Errorf("bpm %v, want %v", s.Transport.BPM, bundle.BPM)
	}
	if s.Tracks[0].Name != "Kick" {
		t.Errorf("first track named %q", s.Tracks[0].Name)
	}
}

func TestBundleDisplayNames(t *testing.T) {
	e, _, _ := newTestEngine(t)
	e.LoadTrackBundle("basic-kit")
	var names []string
	for _, tr := range e.Snapshot().Tracks {
		names = append(names, tr.Name)
	}
	if want := []string{"Kick", "Snare", "Hi Hat"}; !slices.Equal(names, want) {
		t.Errorf("names %v, want %v", names, want)
	}
}

func TestRhythmDropsStepsBeyondResolution(t *testing.T) {
	e, _, _ := newTestEngine(t)
	e.LoadTrackBundle("basic-kit")
	e.LoadNamedRhythm("triplet-32")
	s := e.Snapshot()
	if s.Transport.Steps != 16 {
		t.Fatalf("steps %d, want 16", s.Transport.Steps)
	}
	for _, tr := range s.Tracks {
		for i := 16; i < gs.MaxSteps; i++ {
			if tr.Sequence[i] {
				t.Errorf("track %s has step %d set", tr.ID, i)
			}
		}
	}
	if got := s.Tracks[0].ActiveSteps(16); !slices.Equal(got, []int{0, 6, 12}) {
		t.Errorf("kick steps %v", got)
	}
	// the rhythm replaces, not merges
	if got := s.Tracks[1].ActiveSteps(16); !slices.Equal(got, []int{8}) {
		t.Errorf("snare steps %v", got)
	}
}

func TestNumericPattern(t *testing.T) {
	e, _, _ := newTestEngine(t)
	e.LoadTrackBundle("basic-kit")
	e.SetSteps(32)
	e.LoadNumericPattern(8)
	s := e.Snapshot()
	if got := s.Tracks[1].ActiveSteps(32); !slices.Equal(got, []int{4, 12, 20, 28}) {
		t.Errorf("pattern 8 track 1 steps %v", got)
	}
	e.LoadNumericPattern(0)
	for _, tr := range e.Snapshot().Tracks {
		if len(tr.ActiveSteps(32)) != 0 {
			t.Error("pattern 0 should clear everything")
		}
	}
	before := e.Snapshot()
	e.LoadNumericPattern(42)
	if after := e.Snapshot(); !slices.Equal(after.Tracks, before.Tracks) {
		t.Error("unknown pattern changed the tracks")
	}
}

func TestGlobalPresetIsNotMerged(t *testing.T) {
	e, _, _ := newTestEngine(t)
	e.UpdateGlobals(gs.GlobalsPatch{Detune: gs.Ptr(50.0), Attack: gs.Ptr(80.0)})
	e.UpdateMasterEffects(gs.MasterEffectsPatch{Pan: gs.Ptr(40.0)})
	e.LoadGlobalPreset("bright-lead")
	s := e.Snapshot()
	if s.Globals.Waveform != gs.Sawtooth || s.Globals.Attack != 2 {
		t.Errorf("preset values not applied: %+v", s.Globals)
	}
	if s.Globals.Detune != gs.DefaultGlobals().Detune {
		t.Errorf("detune %v survived the preset", s.Globals.Detune)
	}
	if s.MasterEffects.Pan != gs.DefaultMasterEffects().Pan {
		t.Errorf("master pan %v survived the preset", s.MasterEffects.Pan)
	}
	e.LoadGlobalPreset("no-such-preset")
	if e.Snapshot().Globals != s.Globals {
		t.Error("unknown preset changed the globals")
	}
}

func TestEffectToggleKeepsTopology(t *testing.T) {
	e, dev, _ := newTestEngine(t)
	id := e.CreateTrack(gs.TrackPatch{})
	ctx := dev.ctx
	nodes, edges := ctx.NodeCount(), ctx.EdgeCount()
	check := func(what string) {
		t.Helper()
		if ctx.NodeCount() != nodes || ctx.EdgeCount() != edges {
			t.Errorf("%s changed the graph: %d/%d nodes, %d/%d edges", what, ctx.NodeCount(), nodes, ctx.EdgeCount(), edges)
		}
	}
	m := gs.DefaultMasterEffects()
	for _, on := range []bool{true, false, true} {
		e.UpdateMasterEffects(gs.MasterEffectsPatch{
			Filter:      &gs.FilterEffect{Enabled: on, Cutoff: m.Filter.Cutoff, Resonance: 3},
			Distortion:  &gs.DistortionEffect{Enabled: on, Amount: 50},
			Compression: &gs.CompressionEffect{Enabled: on, Threshold: -20, Ratio: 4, Attack: 0.01, Release: 0.1},
			Reverb:      &gs.ReverbEffect{Enabled: on, Decay: 2},
			Delay:       &gs.DelayEffect{Enabled: on, Time: 0.3, Feedback: 0.4, Mix: 0.3},
			Chorus:      &gs.ChorusEffect{Enabled: on, Rate: 1, Depth: 3, Mix: 0.5},
			Limiter:     &gs.LimiterEffect{Enabled: on, Ceiling: -3},
		})
		check("master effects")
		e.UpdateTrack(id, gs.TrackPatch{Effects: &gs.EffectsPatch{
			Filter:      &gs.FilterEffect{Enabled: on, Cutoff: 500, Resonance: 2},
			Distortion:  &gs.DistortionEffect{Enabled: on, Amount: 30},
			Compression: &gs.CompressionEffect{Enabled: on, Threshold: -10, Ratio: 2},
			Delay:       &gs.DelayEffect{Enabled: on, Time: 0.2, Feedback: 0.3, Mix: 0.2},
			Chorus:      &gs.ChorusEffect{Enabled: on, Rate: 2, Depth: 2, Mix: 0.3},
		}})
		check("track effects")
		e.ToggleMute(id)
		check("mute")
	}
}

func TestBypassMapping(t *testing.T) {
	if p := engine.Filter(gs.FilterEffect{Cutoff: 300, Resonance: 9}); p.Cutoff != 20000 || p.Resonance != 0 {
		t.Errorf("disabled filter maps to %+v", p)
	}
	if c := engine.Compressor(gs.CompressionEffect{Threshold: -40, Ratio: 10}); c != (engine.CompressorParams{Threshold: 0, Ratio: 1, Attack: 0.001, Release: 0.01}) {
		t.Errorf("disabled compressor maps to %+v", c)
	}
	if d := engine.Delay(gs.DelayEffect{Time: 0.3, Feedback: 0.8, Mix: 0.5}); d.Feedback != 0 || d.Mix != 1 || d.Send != 0 || d.Wet != 0 {
		t.Errorf("disabled delay maps to %+v", d)
	}
	if c := engine.Chorus(gs.ChorusEffect{Mix: 0.5}); c.Mix != 1 || c.Send != 0 || c.Wet != 0 {
		t.Errorf("disabled chorus maps to %+v", c)
	}
	if dry, wet := engine.Reverb(gs.ReverbEffect{Enabled: true}); dry != 0.7 || wet != 0.3 {
		t.Errorf("enabled reverb mix %v/%v", dry, wet)
	}
	if dry, wet := engine.Reverb(gs.ReverbEffect{}); dry != 1 || wet != 0 {
		t.Errorf("disabled reverb mix %v/%v", dry, wet)
	}
	curve := engine.Distortion(gs.DistortionEffect{Amount: 80})
	for _, x := range []float32{-0.7, 0.1, 0.9} {
		if y := curve.At(x); math.Abs(float64(y-x)) > 1e-4 {
			t.Errorf("disabled distortion is not linear at %v: %v", x, y)
		}
	}
	if l := engine.Limiter(gs.LimiterEffect{Enabled: true, Ceiling: -6}); math.Abs(float64(l)-0.5012) > 1e-3 {
		t.Errorf("limiter ceiling %v", l)
	}
}

func TestArpeggiatorUpDown(t *testing.T) {
	e, _, notes := newTestEngine(t)
	e.SetArpeggiatorMode(gs.ArpUpDown)
	e.HoldNote(300)
	e.HoldNote(100)
	e.HoldNote(200)
	period := gs.Seconds(gs.ArpTickSeconds(120, gs.DefaultArpRate))
	e.Advance(6 * period)
	var got []float64
	for _, ev := range notes.ons() {
		got = append(got, ev.Frequency)
	}
	if want := []float64{100, 200, 300, 200, 100, 200, 300}; !slices.Equal(got, want) {
		t.Errorf("up-down played %v, want %v", got, want)
	}
}

func TestArpeggiatorModes(t *testing.T) {
	for _, tc := range []struct {
		mode gs.ArpMode
		want []float64
	}{
		{gs.ArpUp, []float64{100, 200, 300, 100, 200}},
		{gs.ArpDown, []float64{100, 300, 200, 100, 300}},
	} {
		t.Run(string(tc.mode), func(t *testing.T) {
			e, _, notes := newTestEngine(t)
			e.SetArpeggiatorMode(tc.mode)
			for _, f := range []float64{200, 300, 100} {
				e.PlayNote(f, "")
			}
			e.Advance(4 * gs.Seconds(gs.ArpTickSeconds(120, gs.DefaultArpRate)))
			var got []float64
			for _, ev := range notes.ons() {
				got = append(got, ev.Frequency)
			}
			if !slices.Equal(got, tc.want) {
				t.Errorf("played %v, want %v", got, tc.want)
			}
		})
	}
}

func TestArpeggiatorRandomStaysInRange(t *testing.T) {
	e, _, notes := newTestEngine(t)
	e.SetArpeggiatorMode(gs.ArpRandom)
	held := []float64{110, 220, 330, 440}
	for _, f := range held {
		e.HoldNote(f)
	}
	e.Advance(20 * gs.Seconds(gs.ArpTickSeconds(120, gs.DefaultArpRate)))
	ons := notes.ons()
	if len(ons) != 21 {
		t.Fatalf("got %d notes, want 21", len(ons))
	}
	for _, ev := range ons {
		if !slices.Contains(held, ev.Frequency) {
			t.Errorf("played %v, not a held note", ev.Frequency)
		}
	}
}

func TestArpeggiatorOffClearsHeldNotes(t *testing.T) {
	e, _, notes := newTestEngine(t)
	e.SetArpeggiatorMode(gs.ArpUp)
	e.HoldNote(100)
	e.Advance(0)
	e.SetArpeggiatorMode(gs.ArpOff)
	s := e.Snapshot()
	if len(s.Arpeggiator.Held) != 0 || s.Arpeggiator.Mode != gs.ArpOff {
		t.Errorf("arpeggiator state after off: %+v", s.Arpeggiator)
	}
	n := len(notes.ons())
	e.Advance(10 * time.Second)
	if len(notes.ons()) != n {
		t.Error("arpeggiator kept playing after it was turned off")
	}
	e.SetArpeggiatorMode("sideways")
	if e.Snapshot().Arpeggiator.Mode != gs.ArpOff {
		t.Error("invalid mode was accepted")
	}
}

func TestArpeggiatorRestartsOnHeldChange(t *testing.T) {
	e, _, notes := newTestEngine(t)
	period := gs.Seconds(gs.ArpTickSeconds(120, gs.DefaultArpRate))
	e.SetArpeggiatorMode(gs.ArpUp)
	e.HoldNote(100)
	e.HoldNote(200)
	e.Advance(period) // 100, 200
	e.ReleaseNote(100)
	e.HoldNote(50)
	e.Advance(e.Now())
	ons := notes.ons()
	if got := ons[len(ons)-1].Frequency; got != 50 {
		t.Errorf("restart played %v, want the lowest note 50", got)
	}
}

func TestSustainDefersRelease(t *testing.T) {
	e, _, _ := newTestEngine(t)
	e.SetSustain(true)
	e.PlayNote(220, "")
	e.ReleaseNote(220)
	if v := e.Snapshot().Voices; len(v) != 1 || v[0].Released {
		t.Fatal("note released while sustained")
	}
	e.SetSustain(false)
	if v := e.Snapshot().Voices; len(v) != 1 || !v[0].Released {
		t.Fatal("note not released when the pedal was lifted")
	}
}

func TestReleaseNoteWithArpeggiatorOn(t *testing.T) {
	t.Run("track note", func(t *testing.T) {
		e, _, _ := newTestEngine(t)
		id := e.CreateTrack(gs.TrackPatch{})
		e.SetArpeggiatorMode(gs.ArpUp)
		e.PlayNote(330, id)
		e.ReleaseNote(330)
		e.Advance(30 * time.Second)
		if v := e.Snapshot().Voices; len(v) != 0 {
			t.Errorf("track note left sounding: %+v", v)
		}
	})
	t.Run("note played before the arpeggiator", func(t *testing.T) {
		e, _, _ := newTestEngine(t)
		e.PlayNote(440, "")
		e.SetArpeggiatorMode(gs.ArpUp)
		e.ReleaseNote(440)
		e.Advance(30 * time.Second)
		if v := e.Snapshot().Voices; len(v) != 0 {
			t.Errorf("master note left sounding: %+v", v)
		}
	})
}

// renderUntil renders ctx up to time until, advancing the engine clock
// together with the graph one block at a time.
func renderUntil(e *engine.Engine, ctx *graph.Context, until float64) [][2]float32 {
	n := int((until - ctx.CurrentTime()) * float64(ctx.SampleRate()))
	out := make([][2]float32, max(n, 0))
	for i := 0; i < len(out); i += graph.BlockSize {
		e.Advance(gs.Seconds(ctx.CurrentTime()))
		ctx.Render(out[i:min(i+graph.BlockSize, len(out))])
	}
	return out
}

func peakOf(frames [][2]float32) float64 {
	p := 0.0
	for _, f := range frames {
		p = max(p, math.Abs(float64(f[0])), math.Abs(float64(f[1])))
	}
	return p
}

func TestNewVoiceKeepsDecayTime(t *testing.T) {
	e, dev, _ := newTestEngine(t)
	lead := e.CreateTrack(gs.TrackPatch{Envelope: &gs.Envelope{Attack: 0, Decay: 2, Sustain: 0.2, Release: 0.1}})
	silent := e.CreateTrack(gs.TrackPatch{Muted: gs.Ptr(true)})
	e.StartVoice(440, lead)
	renderUntil(e, dev.ctx, 0.1)
	// the second voice is inaudible but halves the headroom of the first
	e.StartVoice(220, silent)
	renderUntil(e, dev.ctx, 0.95)
	decaying := peakOf(renderUntil(e, dev.ctx, 1))
	renderUntil(e, dev.ctx, 2.5)
	sustained := peakOf(renderUntil(e, dev.ctx, 3))
	if sustained == 0 {
		t.Fatal("no audio")
	}
	// halfway through the decay the voice is about 4 times its sustain level
	if r := decaying / sustained; r < 3 || r > 5.5 {
		t.Errorf("decaying/sustained level %.2f, want about 4.2", r)
	}
}

func TestChords(t *testing.T) {
	e, _, notes := newTestEngine(t)
	e.PlayChordByName("Cmaj7")
	if n := len(notes.ons()); n != 4 {
		t.Fatalf("chord played %d notes, want 4", n)
	}
	e.Advance(time.Second)
	for _, v := range e.Snapshot().Voices {
		if !v.Released {
			t.Error("chord note still held after two beats")
		}
	}
	*notes = nil
	e.PlayProgressionByName("pop")
	e.Advance(e.Now() + 8*time.Second)
	if n := len(notes.ons()); n != 12 {
		t.Errorf("progression played %d notes, want 12", n)
	}
	e.PlayChordByName("H#13")
	e.PlayProgressionByName("nope")
}

func TestDeviceNotReady(t *testing.T) {
	dev := &testDevice{fail: true}
	e := engine.New(dev, slog.New(slog.NewTextHandler(io.Discard, nil)))
	id := e.CreateTrack(gs.TrackPatch{Steps: []int{0}})
	if id == "" || len(e.Snapshot().Tracks) != 1 {
		t.Fatal("tracks must work without audio")
	}
	if h := e.StartVoice(440, ""); h != 0 {
		t.Fatal("voice started without a device")
	}
	if dev.resumes == 0 {
		t.Error("device was not resumed lazily")
	}
	dev.fail = false
	if h := e.StartVoice(440, id); h == 0 {
		t.Fatal("voice not started once the device is ready")
	}
}

func TestNewGenerationRebuilds(t *testing.T) {
	e, dev, _ := newTestEngine(t)
	id := e.CreateTrack(gs.TrackPatch{})
	e.StartVoice(440, id)
	old := dev.ctx
	dev.suspend()
	if err := dev.Resume(); err != nil {
		t.Fatal(err)
	}
	if dev.ctx.Generation() == old.Generation() {
		t.Fatal("test device did not move to a new generation")
	}
	if h := e.StartVoice(330, id); h == 0 {
		t.Fatal("voice not started on the new context")
	}
	s := e.Snapshot()
	if len(s.Voices) != 1 || s.Voices[0].Frequency != 330 {
		t.Errorf("voices of the old context survived: %+v", s.Voices)
	}
	if dev.ctx.NodeCount() <= 2 {
		t.Error("bus and subgraph not rebuilt in the new context")
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	e, _, _ := newTestEngine(t)
	id := e.CreateTrack(gs.TrackPatch{})
	s := e.Snapshot()
	s.Tracks[0].Name = "changed"
	s.Tracks[0].Sequence[0] = true
	tr, _ := e.Snapshot().Track(id)
	if tr.Name == "changed" || tr.Sequence[0] {
		t.Error("snapshot aliases the engine")
	}
}

func TestClose(t *testing.T) {
	e, dev, _ := newTestEngine(t)
	e.CreateTrack(gs.TrackPatch{Steps: []int{0}})
	e.StartSequencer()
	e.Advance(0)
	e.Close()
	if dev.ctx.NodeCount() != 1 {
		t.Errorf("%d nodes left after Close", dev.ctx.NodeCount())
	}
	if e.CreateTrack(gs.TrackPatch{}) != "" {
		t.Error("closed engine created a track")
	}
	if _, ok := e.NextEvent(); ok {
		t.Error("closed engine has pending events")
	}
}
