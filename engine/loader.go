package engine

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	gs "github.com/gridsynth/gridsynth"
	"gopkg.in/yaml.v3"
)

//go:embed presets/*.yml
var presetFS embed.FS

type (
	// Tables are the compiled-in presets, bundles, rhythms and chords.
	Tables struct {
		Globals      map[string]GlobalPreset `yaml:"globals"`
		Bundles      map[string]TrackBundle  `yaml:"bundles"`
		Rhythms      map[string]Rhythm       `yaml:"rhythms"`
		Patterns     map[int]Rhythm          `yaml:"patterns"`
		Chords       map[string]Chord        `yaml:"chords"`
		Progressions map[string]Progression  `yaml:"progressions"`
	}

	// GlobalPreset sets the global synthesis settings and the master
	// effects. Whatever it leaves out takes the default value.
	GlobalPreset struct {
		Globals gs.GlobalsPatch       `yaml:"globals"`
		Master  gs.MasterEffectsPatch `yaml:"master"`
	}

	// TrackBundle is a set of tracks and the tempo they are meant for.
	TrackBundle struct {
		BPM    float64         `yaml:"bpm"`
		Tracks []gs.TrackPatch `yaml:"tracks"`
	}

	// Rhythm maps a track index (in registry order) to its active steps.
	Rhythm map[int][]int
)

// ErrUnknownPreset is returned when a table has no entry of the given name.
var ErrUnknownPreset = errors.New("unknown preset")

var tableFiles = []string{"globals.yml", "bundles.yml", "rhythms.yml", "patterns.yml", "chords.yml"}

// LoadTables parses the compiled-in tables. They are parsed only once.
var LoadTables = sync.OnceValues(func() (*Tables, error) {
	t := &Tables{}
	for _, name := range tableFiles {
		data, err := presetFS.ReadFile("presets/" + name)
		if err != nil {
			return nil, fmt.Errorf("could not read %v: %w", name, err)
		}
		if err := yaml.Unmarshal(data, t); err != nil {
			return nil, fmt.Errorf("could not parse %v: %w", name, err)
		}
	}
	return t, nil
})

func (e *Engine) tables() *Tables {
	t, err := LoadTables()
	if err != nil {
		e.logger.Error("preset tables unavailable", slog.Any("error", err))
		return &Tables{}
	}
	return t
}

func lookup[K comparable, V any](m map[K]V, key K) (V, error) {
	v, ok := m[key]
	if !ok {
		return v, fmt.Errorf("%w: %v", ErrUnknownPreset, key)
	}
	return v, nil
}

// LoadGlobalPreset replaces the global settings and master effects with
// the named preset.
func (e *Engine) LoadGlobalPreset(name string) {
	p, err := lookup(e.tables().Globals, name)
	if err != nil {
		e.logger.Warn("global preset not loaded", slog.Any("error", err))
		return
	}
	e.globals = p.Globals.Apply(gs.DefaultGlobals())
	e.master = p.Master.Apply(gs.DefaultMasterEffects())
	e.syncBus()
}

// LoadTrackBundle replaces every track with the tracks of the named bundle,
// selects the last of them and takes over the bundle's tempo.
func (e *Engine) LoadTrackBundle(name string) {
	b, err := lookup(e.tables().Bundles, name)
	if err != nil {
		e.logger.Warn("track bundle not loaded", slog.Any("error", err))
		return
	}
	e.clearRegistry()
	for _, p := range b.Tracks {
		e.CreateTrack(p)
	}
	if b.BPM > 0 {
		e.SetBPM(b.BPM)
	}
}

// LoadNamedRhythm clears every sequence and sets the steps of the named
// rhythm.
func (e *Engine) LoadNamedRhythm(name string) {
	r, err := lookup(e.tables().Rhythms, name)
	if err != nil {
		e.logger.Warn("rhythm not loaded", slog.Any("error", err))
		return
	}
	e.applyRhythm(r)
}

// LoadNumericPattern loads one of the patterns 0 to 9.
func (e *Engine) LoadNumericPattern(n int) {
	r, err := lookup(e.tables().Patterns, n)
	if err != nil {
		e.logger.Warn("pattern not loaded", slog.Any("error", err))
		return
	}
	e.applyRhythm(r)
}

// applyRhythm clears every sequence, then sets the steps of the rhythm. Steps
// at or beyond the current step count are dropped, as are indices of
// tracks that do not exist.
func (e *Engine) applyRhythm(r Rhythm) {
	e.ClearAllTracks()
	for ti, steps := range r {
		if ti < 0 || ti >= len(e.tracks) {
			continue
		}
		for _, s := range steps {
			if s >= 0 && s < e.transport.Steps {
				e.tracks[ti].Sequence[s] = true
			}
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	ret := make([]string, 0, len(m))
	for k := range m {
		ret = append(ret, k)
	}
	slices.Sort(ret)
	return ret
}

func GlobalPresetNames() []string { return sortedKeys(tablesOrEmpty().Globals) }
func TrackBundleNames() []string  { return sortedKeys(tablesOrEmpty().Bundles) }
func RhythmNames() []string       { return sortedKeys(tablesOrEmpty().Rhythms) }
func ChordNames() []string        { return sortedKeys(tablesOrEmpty().Chords) }
func ProgressionNames() []string  { return sortedKeys(tablesOrEmpty().Progressions) }

func tablesOrEmpty() *Tables {
	t, err := LoadTables()
	if err != nil {
		return &Tables{}
	}
	return t
}
