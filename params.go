package gridsynth

type (
	// Globals are the synthesis defaults used by notes played without a
	// track. Attack and Release are on a 0..100 scale, see AttackSeconds and
	// ReleaseSeconds.
	Globals struct {
		Waveform  Waveform  `yaml:"waveform" json:"waveform"`
		Attack    float64   `yaml:"attack" json:"attack"`
		Release   float64   `yaml:"release" json:"release"`
		Detune    float64   `yaml:"detune" json:"detune"` // cents
		LFOTarget LFOTarget `yaml:"lfoTarget" json:"lfoTarget"`
		LFORate   float64   `yaml:"lfoRate" json:"lfoRate"`   // Hz
		LFODepth  float64   `yaml:"lfoDepth" json:"lfoDepth"` // 0..100, 0 disables the LFO
	}

	// MasterEffects are the parameters of the shared master bus.
	MasterEffects struct {
		Filter      FilterEffect      `yaml:"filter" json:"filter"`
		Distortion  DistortionEffect  `yaml:"distortion" json:"distortion"`
		Compression CompressionEffect `yaml:"compression" json:"compression"`
		Reverb      ReverbEffect      `yaml:"reverb" json:"reverb"`
		Delay       DelayEffect       `yaml:"delay" json:"delay"`
		Chorus      ChorusEffect      `yaml:"chorus" json:"chorus"`
		Width       float64           `yaml:"width" json:"width"`   // stereo width 0..200, 100 is unchanged
		Pan         float64           `yaml:"pan" json:"pan"`       // -100..100
		Volume      float64           `yaml:"volume" json:"volume"` // 0..100
		Limiter     LimiterEffect     `yaml:"limiter" json:"limiter"`
	}

	ReverbEffect struct {
		Enabled bool    `yaml:"enabled" json:"enabled"`
		Decay   float64 `yaml:"decay" json:"decay"` // seconds
	}

	LimiterEffect struct {
		Enabled bool    `yaml:"enabled" json:"enabled"`
		Ceiling float64 `yaml:"ceiling" json:"ceiling"` // dBFS
	}

	// Transport is the state of the sequencer clock. PendingBPM and
	// PendingSteps hold edits made while playing; they are applied at the
	// next tick boundary and then cleared.
	Transport struct {
		BPM          float64  `json:"bpm"`
		Steps        int      `json:"steps"`
		Playing      bool     `json:"playing"`
		CurrentStep  int      `json:"currentStep"`
		PendingBPM   *float64 `json:"pendingBpm,omitempty"`
		PendingSteps *int     `json:"pendingSteps,omitempty"`
	}

	// ArpMode is the playback order of the arpeggiator.
	ArpMode string
)

const (
	ArpOff    ArpMode = "off"
	ArpUp     ArpMode = "up"
	ArpDown   ArpMode = "down"
	ArpUpDown ArpMode = "updown"
	ArpRandom ArpMode = "random"
)

const (
	MinBPM          = 20
	MaxBPM          = 300
	DefaultBPM      = 120
	DefaultSteps    = 16
	DefaultArpRate  = 4
	NeutralCutoff   = 20000
	DefaultCeiling  = -1
	reverbDryOn     = 0.7
	reverbWetOn     = 0.3
	voiceMatchDelta = 0.1
)

func (m ArpMode) Valid() bool {
	switch m {
	case ArpOff, ArpUp, ArpDown, ArpUpDown, ArpRandom:
		return true
	}
	return false
}

// DefaultGlobals is what a global preset falls back to for every field it
// does not mention.
func DefaultGlobals() Globals {
	return Globals{
		Waveform:  Sine,
		Attack:    5,
		Release:   20,
		LFOTarget: TargetPitch,
		LFORate:   5,
	}
}

// DefaultMasterEffects is the master bus with every optional effect off.
func DefaultMasterEffects() MasterEffects {
	e := DefaultEffects()
	return MasterEffects{
		Filter:      e.Filter,
		Distortion:  e.Distortion,
		Compression: e.Compression,
		Reverb:      ReverbEffect{Decay: 2},
		Delay:       e.Delay,
		Chorus:      e.Chorus,
		Width:       100,
		Volume:      80,
		Limiter:     LimiterEffect{Enabled: true, Ceiling: DefaultCeiling},
	}
}

func DefaultTransport() Transport {
	return Transport{BPM: DefaultBPM, Steps: DefaultSteps}
}

// ReverbMix returns the dry and wet weights of the reverb send.
func (r ReverbEffect) ReverbMix() (dry, wet float64) {
	if r.Enabled {
		return reverbDryOn, reverbWetOn
	}
	return 1, 0
}

// FrequencyMatches reports if two frequencies are close enough to be
// considered the same note when releasing voices.
func FrequencyMatches(a, b float64) bool {
	d := a - b
	return d < voiceMatchDelta && d > -voiceMatchDelta
}
