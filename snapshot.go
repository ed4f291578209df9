package gridsynth

type (
	// Snapshot is a read-only copy of the engine state, handed to the
	// presentation layer for rendering. Nothing in a Snapshot aliases the
	// engine: changing it has no effect on the engine.
	Snapshot struct {
		Tracks          []Track       `json:"tracks"`
		SelectedTrackID string        `json:"selectedTrackId"`
		Transport       Transport     `json:"transport"`
		Arpeggiator     ArpState      `json:"arpeggiator"`
		Sustain         bool          `json:"sustain"`
		Globals         Globals       `json:"globals"`
		MasterEffects   MasterEffects `json:"masterEffects"`
		Voices          []VoiceInfo   `json:"voices"`
		OutputPeak      float32       `json:"outputPeak"`
	}

	// ArpState is the arpeggiator as seen from the outside: its mode, its
	// rate (ticks per bar) and the notes currently held.
	ArpState struct {
		Mode  ArpMode   `json:"mode"`
		Rate  float64   `json:"rate"`
		Held  []float64 `json:"held"`
		Index int       `json:"index"`
	}

	// VoiceInfo describes one live voice. TrackID is empty for voices routed
	// to the master bus.
	VoiceInfo struct {
		Handle     uint64  `json:"handle"`
		Frequency  float64 `json:"frequency"`
		TrackID    string  `json:"trackId"`
		TargetGain float64 `json:"targetGain"`
		Released   bool    `json:"released"`
	}
)

// Copy makes a deep copy of the snapshot.
func (s Snapshot) Copy() Snapshot {
	s.Tracks = append([]Track(nil), s.Tracks...)
	s.Voices = append([]VoiceInfo(nil), s.Voices...)
	s.Arpeggiator.Held = append([]float64(nil), s.Arpeggiator.Held...)
	s.Transport = s.Transport.Copy()
	return s
}

// Copy makes a deep copy of the transport, so that the pending values are
// not shared.
func (t Transport) Copy() Transport {
	if t.PendingBPM != nil {
		t.PendingBPM = Ptr(*t.PendingBPM)
	}
	if t.PendingSteps != nil {
		t.PendingSteps = Ptr(*t.PendingSteps)
	}
	return t
}

// Track returns the track with the given id and true, or the zero Track
// and false if there is no such track.
func (s Snapshot) Track(id string) (Track, bool) {
	for _, t := range s.Tracks {
		if t.ID == id {
			return t, true
		}
	}
	return Track{}, false
}
