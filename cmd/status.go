package cmd

import (
	"fmt"
	"io"
	"math"
	"text/template"

	"github.com/Masterminds/sprig"
	gs "github.com/gridsynth/gridsynth"
)

// DefaultStatus is the status line printed by the commands.
const DefaultStatus = `{{ if .Transport.Playing }}▶{{ else }}■{{ end }} ` +
	`{{ .Transport.BPM | printf "%.0f" }} bpm ` +
	`step {{ add1 .Transport.CurrentStep }}/{{ .Transport.Steps }} ` +
	`| {{ len .Tracks }} tracks{{ with .Tracks }} ({{ trackNames . | join ", " | trunc 40 }}){{ end }} ` +
	`| {{ len .Voices }} voices ` +
	`| arp {{ .Arpeggiator.Mode }}{{ if .Sustain }} | sustain{{ end }} ` +
	`| peak {{ peakDB .OutputPeak }}`

// StatusTemplate parses a status line template. Besides the sprig functions,
// templates can use trackNames and peakDB.
func StatusTemplate(text string) (*template.Template, error) {
	t, err := template.New("status").Funcs(sprig.TxtFuncMap()).Funcs(template.FuncMap{
		"trackNames": trackNames,
		"peakDB":     peakDB,
	}).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("could not parse status template: %w", err)
	}
	return t, nil
}

// WriteStatus executes t on the snapshot, followed by a newline.
func WriteStatus(w io.Writer, t *template.Template, s gs.Snapshot) error {
	if err := t.Execute(w, s); err != nil {
		return fmt.Errorf("could not write status: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func trackNames(tracks []gs.Track) []string {
	ret := make([]string, 0, len(tracks))
	for _, t := range tracks {
		name := t.Name
		switch {
		case t.Muted:
			name += " (m)"
		case t.Solo:
			name += " (s)"
		}
		ret = append(ret, name)
	}
	return ret
}

func peakDB(peak float32) string {
	if peak <= 0 {
		return "-inf dB"
	}
	return fmt.Sprintf("%.1f dB", 20*math.Log10(float64(peak)))
}
