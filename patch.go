package gridsynth

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type (
	// TrackPatch is a partial Track: nil fields are left untouched when the
	// patch is applied. The same type is used for creating tracks (applied on
	// top of DefaultTrack) and for the track bundles loaded from the
	// compiled-in tables.
	TrackPatch struct {
		Name      *string       `yaml:"name,omitempty" json:"name,omitempty"`
		Frequency *float64      `yaml:"frequency,omitempty" json:"frequency,omitempty"`
		Note      *string       `yaml:"note,omitempty" json:"note,omitempty"`
		Category  *string       `yaml:"category,omitempty" json:"category,omitempty"`
		Waveform  *Waveform     `yaml:"waveform,omitempty" json:"waveform,omitempty"`
		Volume    *float64      `yaml:"volume,omitempty" json:"volume,omitempty"`
		Pan       *float64      `yaml:"pan,omitempty" json:"pan,omitempty"`
		Muted     *bool         `yaml:"muted,omitempty" json:"muted,omitempty"`
		Solo      *bool         `yaml:"solo,omitempty" json:"solo,omitempty"`
		Envelope  *Envelope     `yaml:"envelope,omitempty" json:"envelope,omitempty"`
		LFO       *LFO          `yaml:"lfo,omitempty" json:"lfo,omitempty"`
		Effects   *EffectsPatch `yaml:"effects,omitempty" json:"effects,omitempty"`

		// Steps lists the active steps; when non-nil it replaces the whole
		// sequence. Indices outside [0, MaxSteps) are dropped.
		Steps []int `yaml:"steps,omitempty,flow" json:"steps,omitempty"`
	}

	// EffectsPatch replaces individual effects of a chain. Effects are
	// replaced as a whole, not merged field by field.
	EffectsPatch struct {
		Delay       *DelayEffect       `yaml:"delay,omitempty" json:"delay,omitempty"`
		Chorus      *ChorusEffect      `yaml:"chorus,omitempty" json:"chorus,omitempty"`
		Distortion  *DistortionEffect  `yaml:"distortion,omitempty" json:"distortion,omitempty"`
		Filter      *FilterEffect      `yaml:"filter,omitempty" json:"filter,omitempty"`
		Compression *CompressionEffect `yaml:"compression,omitempty" json:"compression,omitempty"`
	}

	GlobalsPatch struct {
		Waveform  *Waveform  `yaml:"waveform,omitempty" json:"waveform,omitempty"`
		Attack    *float64   `yaml:"attack,omitempty" json:"attack,omitempty"`
		Release   *float64   `yaml:"release,omitempty" json:"release,omitempty"`
		Detune    *float64   `yaml:"detune,omitempty" json:"detune,omitempty"`
		LFOTarget *LFOTarget `yaml:"lfoTarget,omitempty" json:"lfoTarget,omitempty"`
		LFORate   *float64   `yaml:"lfoRate,omitempty" json:"lfoRate,omitempty"`
		LFODepth  *float64   `yaml:"lfoDepth,omitempty" json:"lfoDepth,omitempty"`
	}

	MasterEffectsPatch struct {
		Filter      *FilterEffect      `yaml:"filter,omitempty" json:"filter,omitempty"`
		Distortion  *DistortionEffect  `yaml:"distortion,omitempty" json:"distortion,omitempty"`
		Compression *CompressionEffect `yaml:"compression,omitempty" json:"compression,omitempty"`
		Reverb      *ReverbEffect      `yaml:"reverb,omitempty" json:"reverb,omitempty"`
		Delay       *DelayEffect       `yaml:"delay,omitempty" json:"delay,omitempty"`
		Chorus      *ChorusEffect      `yaml:"chorus,omitempty" json:"chorus,omitempty"`
		Width       *float64           `yaml:"width,omitempty" json:"width,omitempty"`
		Pan         *float64           `yaml:"pan,omitempty" json:"pan,omitempty"`
		Volume      *float64           `yaml:"volume,omitempty" json:"volume,omitempty"`
		Limiter     *LimiterEffect     `yaml:"limiter,omitempty" json:"limiter,omitempty"`
	}
)

// Apply returns t with the patch merged in. Values are limited to their
// documented ranges; an invalid waveform or LFO target is ignored. The ID
// and Order of t are never changed by a patch.
func (p TrackPatch) Apply(t Track) Track {
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.Frequency != nil && ValidFrequency(*p.Frequency) {
		t.Frequency = *p.Frequency
	}
	if p.Note != nil {
		t.Note = *p.Note
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Waveform != nil && p.Waveform.Valid() {
		t.Waveform = *p.Waveform
	}
	if p.Volume != nil {
		t.Volume = Clamp(*p.Volume, 0, 100)
	}
	if p.Pan != nil {
		t.Pan = Clamp(*p.Pan, -100, 100)
	}
	if p.Muted != nil {
		t.Muted = *p.Muted
	}
	if p.Solo != nil {
		t.Solo = *p.Solo
	}
	if p.Envelope != nil {
		t.Envelope = p.Envelope.sanitized()
	}
	if p.LFO != nil {
		lfo := *p.LFO
		if !lfo.Target.Valid() {
			lfo.Target = t.LFO.Target
		}
		if !lfo.Waveform.Valid() {
			lfo.Waveform = t.LFO.Waveform
		}
		lfo.Depth = Clamp(lfo.Depth, 0, 100)
		t.LFO = lfo
	}
	if p.Effects != nil {
		t.Effects = p.Effects.Apply(t.Effects)
	}
	if p.Steps != nil {
		t.ClearSequence()
		for _, s := range p.Steps {
			if s >= 0 && s < MaxSteps {
				t.Sequence[s] = true
			}
		}
	}
	return t
}

func (p EffectsPatch) Apply(e Effects) Effects {
	if p.Delay != nil {
		e.Delay = p.Delay.sanitized()
	}
	if p.Chorus != nil {
		e.Chorus = *p.Chorus
	}
	if p.Distortion != nil {
		e.Distortion = DistortionEffect{Enabled: p.Distortion.Enabled, Amount: Clamp(p.Distortion.Amount, 0, 100)}
	}
	if p.Filter != nil {
		e.Filter = p.Filter.sanitized()
	}
	if p.Compression != nil {
		e.Compression = p.Compression.sanitized()
	}
	return e
}

func (p GlobalsPatch) Apply(g Globals) Globals {
	if p.Waveform != nil && p.Waveform.Valid() {
		g.Waveform = *p.Waveform
	}
	if p.Attack != nil {
		g.Attack = Clamp(*p.Attack, 0, 100)
	}
	if p.Release != nil {
		g.Release = Clamp(*p.Release, 0, 100)
	}
	if p.Detune != nil {
		g.Detune = Clamp(*p.Detune, -1200, 1200)
	}
	if p.LFOTarget != nil && p.LFOTarget.Valid() {
		g.LFOTarget = *p.LFOTarget
	}
	if p.LFORate != nil {
		g.LFORate = Clamp(*p.LFORate, 0, 50)
	}
	if p.LFODepth != nil {
		g.LFODepth = Clamp(*p.LFODepth, 0, 100)
	}
	return g
}

func (p MasterEffectsPatch) Apply(m MasterEffects) MasterEffects {
	if p.Filter != nil {
		m.Filter = p.Filter.sanitized()
	}
	if p.Distortion != nil {
		m.Distortion = DistortionEffect{Enabled: p.Distortion.Enabled, Amount: Clamp(p.Distortion.Amount, 0, 100)}
	}
	if p.Compression != nil {
		m.Compression = p.Compression.sanitized()
	}
	if p.Reverb != nil {
		m.Reverb = ReverbEffect{Enabled: p.Reverb.Enabled, Decay: Clamp(p.Reverb.Decay, 0.1, 10)}
	}
	if p.Delay != nil {
		m.Delay = p.Delay.sanitized()
	}
	if p.Chorus != nil {
		m.Chorus = *p.Chorus
	}
	if p.Width != nil {
		m.Width = Clamp(*p.Width, 0, 200)
	}
	if p.Pan != nil {
		m.Pan = Clamp(*p.Pan, -100, 100)
	}
	if p.Volume != nil {
		m.Volume = Clamp(*p.Volume, 0, 100)
	}
	if p.Limiter != nil {
		m.Limiter = LimiterEffect{Enabled: p.Limiter.Enabled, Ceiling: Clamp(p.Limiter.Ceiling, -30, 0)}
	}
	return m
}

func (e Envelope) sanitized() Envelope {
	return Envelope{
		Attack:  Clamp(e.Attack, 0, 10),
		Decay:   Clamp(e.Decay, 0, 10),
		Sustain: Clamp(e.Sustain, 0, 1),
		Release: Clamp(e.Release, 0, 10),
	}
}

func (d DelayEffect) sanitized() DelayEffect {
	d.Time = Clamp(d.Time, 0.001, 2)
	d.Feedback = Clamp(d.Feedback, 0, 0.95)
	d.Mix = Clamp(d.Mix, 0, 1)
	return d
}

func (f FilterEffect) sanitized() FilterEffect {
	f.Cutoff = Clamp(f.Cutoff, 20, NeutralCutoff)
	f.Resonance = Clamp(f.Resonance, 0, 30)
	return f
}

func (c CompressionEffect) sanitized() CompressionEffect {
	c.Threshold = Clamp(c.Threshold, -100, 0)
	c.Ratio = Clamp(c.Ratio, 1, 20)
	c.Attack = Clamp(c.Attack, 0, 1)
	c.Release = Clamp(c.Release, 0, 1)
	return c
}

// DisplayName turns a lowercase identifier such as "hi-hat" or "sub_bass"
// into a title cased display name ("Hi-Hat", "Sub Bass").
func DisplayName(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "_", " "))
	return cases.Title(language.English).String(s)
}

// Ptr returns a pointer to v; handy for building patches.
func Ptr[T any](v T) *T {
	return &v
}
