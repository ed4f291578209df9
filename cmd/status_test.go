package cmd_test

import (
	"strings"
	"testing"

	gs "github.com/gridsynth/gridsynth"
	"github.com/gridsynth/gridsynth/cmd"
)

func TestDefaultStatus(t *testing.T) {
	tmpl, err := cmd.StatusTemplate(cmd.DefaultStatus)
	if err != nil {
		t.Fatal(err)
	}
	kick, hat := gs.DefaultTrack(), gs.DefaultTrack()
	kick.Name, hat.Name, hat.Muted = "Kick", "Hat", true
	s := gs.Snapshot{
		Tracks:      []gs.Track{kick, hat},
		Transport:   gs.Transport{BPM: 128, Steps: 16, Playing: true, CurrentStep: 3},
		Arpeggiator: gs.ArpState{Mode: gs.ArpOff},
		Voices:      []gs.VoiceInfo{{Handle: 1}},
		OutputPeak:  0.5,
	}
	var b strings.Builder
	if err := cmd.WriteStatus(&b, tmpl, s); err != nil {
		t.Fatal(err)
	}
	want := "▶ 128 bpm step 4/16 | 2 tracks (Kick, Hat (m)) | 1 voices | arp off | peak -6.0 dB\n"
	if b.String() != want {
		t.Errorf("got  %q\nwant %q", b.String(), want)
	}
}

func TestBadStatusTemplate(t *testing.T) {
	if _, err := cmd.StatusTemplate("{{ .Transport.BPM "); err == nil {
		t.Error("unterminated action accepted")
	}
}
