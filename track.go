package gridsynth

import "fmt"

// MaxSteps is the capacity of a track's step sequence. The transport may use
// fewer steps; the remaining entries are kept but never played.
const MaxSteps = 32

type (
	// Track is a persistent, user-configurable channel: an instrument, an
	// effect chain and a step sequence. Tracks are value types; the engine
	// replaces the whole value when a patch is applied, so a Track obtained
	// from a Snapshot can never be used to mutate the engine.
	Track struct {
		ID        string   `json:"id"`
		Name      string   `json:"name"`
		Frequency float64  `json:"frequency"` // base frequency in Hz, triggered by the sequencer
		Note      string   `json:"note"`      // label for the frequency, e.g. "C3"
		Category  string   `json:"category"`  // free-form, e.g. "drums" or "bass"
		Waveform  Waveform `json:"waveform"`
		Volume    float64  `json:"volume"` // 0..100
		Pan       float64  `json:"pan"`    // -100..100
		Muted     bool     `json:"muted"`
		Solo      bool     `json:"solo"`
		Envelope  Envelope `json:"envelope"`
		LFO       LFO      `json:"lfo"`
		Effects   Effects  `json:"effects"`

		// Sequence is the fixed-capacity step sequence. Only the first
		// Transport.Steps entries are active.
		Sequence [MaxSteps]bool `json:"sequence"`

		// Order is the display order of the track, kept in sync with its
		// position in the registry.
		Order int `json:"order"`
	}

	// Envelope is the amplitude envelope of the voices a track triggers.
	// Attack, Decay and Release are in seconds; Sustain is a level in 0..1
	// relative to the peak.
	Envelope struct {
		Attack  float64 `yaml:"attack" json:"attack"`
		Decay   float64 `yaml:"decay" json:"decay"`
		Sustain float64 `yaml:"sustain" json:"sustain"`
		Release float64 `yaml:"release" json:"release"`
	}

	// LFO modulates every voice a track triggers. Depth is 0..100; its
	// meaning depends on the Target (cents for pitch, percent for volume and
	// filter).
	LFO struct {
		Enabled  bool      `yaml:"enabled" json:"enabled"`
		Rate     float64   `yaml:"rate" json:"rate"` // Hz
		Depth    float64   `yaml:"depth" json:"depth"`
		Target   LFOTarget `yaml:"target" json:"target"`
		Waveform Waveform  `yaml:"waveform" json:"waveform"`
	}

	// Effects is the set of effects of one effect chain. Every effect is
	// always present in the audio graph; Enabled only decides if the effect
	// gets its configured parameters or neutral pass-through values.
	Effects struct {
		Delay       DelayEffect       `yaml:"delay" json:"delay"`
		Chorus      ChorusEffect      `yaml:"chorus" json:"chorus"`
		Distortion  DistortionEffect  `yaml:"distortion" json:"distortion"`
		Filter      FilterEffect      `yaml:"filter" json:"filter"`
		Compression CompressionEffect `yaml:"compression" json:"compression"`
	}

	DelayEffect struct {
		Enabled  bool    `yaml:"enabled" json:"enabled"`
		Time     float64 `yaml:"time" json:"time"`         // seconds
		Feedback float64 `yaml:"feedback" json:"feedback"` // 0..0.95
		Mix      float64 `yaml:"mix" json:"mix"`           // 0..1, level of the delayed signal
	}

	ChorusEffect struct {
		Enabled bool    `yaml:"enabled" json:"enabled"`
		Rate    float64 `yaml:"rate" json:"rate"`   // Hz
		Depth   float64 `yaml:"depth" json:"depth"` // milliseconds of delay modulation
		Mix     float64 `yaml:"mix" json:"mix"`     // 0..1
	}

	DistortionEffect struct {
		Enabled bool    `yaml:"enabled" json:"enabled"`
		Amount  float64 `yaml:"amount" json:"amount"` // 0..100
	}

	FilterEffect struct {
		Enabled   bool    `yaml:"enabled" json:"enabled"`
		Cutoff    float64 `yaml:"cutoff" json:"cutoff"`       // Hz
		Resonance float64 `yaml:"resonance" json:"resonance"` // 0..30
	}

	CompressionEffect struct {
		Enabled   bool    `yaml:"enabled" json:"enabled"`
		Threshold float64 `yaml:"threshold" json:"threshold"` // dBFS, -100..0
		Ratio     float64 `yaml:"ratio" json:"ratio"`         // 1..20
		Attack    float64 `yaml:"attack" json:"attack"`       // seconds
		Release   float64 `yaml:"release" json:"release"`     // seconds
	}

	// Waveform is the shape of an oscillator.
	Waveform string

	// LFOTarget is what an LFO modulates.
	LFOTarget string
)

const (
	Sine     Waveform = "sine"
	Square   Waveform = "square"
	Sawtooth Waveform = "sawtooth"
	Triangle Waveform = "triangle"
)

const (
	TargetPitch  LFOTarget = "pitch"
	TargetVolume LFOTarget = "volume"
	TargetFilter LFOTarget = "filter"
)

// Waveforms lists the supported oscillator shapes.
var Waveforms = []Waveform{Sine, Square, Sawtooth, Triangle}

// Valid reports if w is one of the supported oscillator shapes.
func (w Waveform) Valid() bool {
	switch w {
	case Sine, Square, Sawtooth, Triangle:
		return true
	}
	return false
}

func (t LFOTarget) Valid() bool {
	switch t {
	case TargetPitch, TargetVolume, TargetFilter:
		return true
	}
	return false
}

// DefaultEffects returns an effect chain with every effect disabled but with
// sensible parameters ready for when it gets enabled.
func DefaultEffects() Effects {
	return Effects{
		Delay:       DelayEffect{Time: 0.25, Feedback: 0.3, Mix: 0.3},
		Chorus:      ChorusEffect{Rate: 1.5, Depth: 3, Mix: 0.5},
		Distortion:  DistortionEffect{Amount: 20},
		Filter:      FilterEffect{Cutoff: 2000, Resonance: 1},
		Compression: CompressionEffect{Threshold: -24, Ratio: 4, Attack: 0.003, Release: 0.25},
	}
}

// DefaultTrack returns the track every new track starts from before a patch
// is applied to it.
func DefaultTrack() Track {
	return Track{
		Name:      "Track",
		Frequency: 261.63,
		Note:      "C4",
		Category:  "synth",
		Waveform:  Sine,
		Volume:    80,
		Envelope:  Envelope{Attack: 0.01, Decay: 0.1, Sustain: 0.7, Release: 0.2},
		LFO:       LFO{Rate: 5, Depth: 10, Target: TargetPitch, Waveform: Sine},
		Effects:   DefaultEffects(),
	}
}

// ActiveSteps returns the indices of the enabled steps within the first
// steps entries of the sequence.
func (t Track) ActiveSteps(steps int) []int {
	steps = Clamp(steps, 0, MaxSteps)
	var ret []int
	for i, on := range t.Sequence[:steps] {
		if on {
			ret = append(ret, i)
		}
	}
	return ret
}

// ClearSequence turns every step off, including the inactive tail.
func (t *Track) ClearSequence() {
	t.Sequence = [MaxSteps]bool{}
}

func (t Track) String() string {
	return fmt.Sprintf("%s(%s %.2f Hz)", t.ID, t.Name, t.Frequency)
}
