package gridsynth

import (
	"math"
	"time"
)

// polyphonyGains is the per-voice peak gain for 1..8 simultaneous voices.
// The summed peak of N uncorrelated oscillators stays under full scale
// without any true-peak analysis.
var polyphonyGains = [...]float64{0.60, 0.42, 0.33, 0.27, 0.21, 0.18, 0.15, 0.12}

// NormalizedGain returns the target gain of each voice when n voices are
// sounding, counting the one being started. n <= 0 is treated as 1.
func NormalizedGain(n int) float64 {
	n = Clamp(n, 1, len(polyphonyGains))
	return polyphonyGains[n-1]
}

// AttackSeconds maps the global 0..100 attack to 0..2 seconds.
func AttackSeconds(attack float64) float64 {
	return Clamp(attack, 0, 100) / 100 * 2
}

// ReleaseSeconds maps the global 0..100 release to 0.1..3 seconds.
func ReleaseSeconds(release float64) float64 {
	return math.Max(0.1, Clamp(release, 0, 100)/100*3)
}

// StepSeconds is the duration of one sequencer step; steps subdivide one
// 4/4 bar.
func StepSeconds(bpm float64, steps int) float64 {
	if bpm <= 0 || steps <= 0 {
		return 0
	}
	return 240 / (bpm * float64(steps))
}

// ArpTickSeconds is the period of the arpeggiator; rate is the number of
// notes per bar.
func ArpTickSeconds(bpm, rate float64) float64 {
	if bpm <= 0 || rate <= 0 {
		return 0
	}
	return 60 / bpm * 4 / rate
}

// AutoStopSeconds is how long a voice triggered by the sequencer sounds
// before it is released: the whole envelope, but never more than 80% of a
// step.
func AutoStopSeconds(env Envelope, stepSeconds float64) float64 {
	return math.Min(env.Attack+env.Decay+env.Release, 0.8*stepSeconds)
}

// ValidFrequency reports if f can be played.
func ValidFrequency(f float64) bool {
	return f > 0 && !math.IsInf(f, 0) && !math.IsNaN(f)
}

// NoteFrequency returns the equal-tempered frequency of a MIDI note number,
// A4 = 69 = 440 Hz.
func NoteFrequency(note int) float64 {
	return 440 * math.Exp2(float64(note-69)/12)
}

// Seconds converts float seconds to a time.Duration.
func Seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
