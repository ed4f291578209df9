package cmd

import (
	"log/slog"
	"os"

	"github.com/gridsynth/gridsynth/config"
	"github.com/gridsynth/gridsynth/engine"
)

// Logger returns a text logger on stderr at the configured level.
func Logger(c config.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: c.LogLevel}))
}

// Prepare applies the startup settings of c to e: tempo and resolution,
// then the global preset and the track bundle. A bundle brings its own
// tempo, which wins over the configured one.
func Prepare(e *engine.Engine, c config.Config) {
	e.SetBPM(c.BPM)
	e.SetSteps(c.Steps)
	if c.GlobalPreset != "" {
		e.LoadGlobalPreset(c.GlobalPreset)
	}
	if c.Bundle != "" {
		e.LoadTrackBundle(c.Bundle)
	}
}

// LoadConfig loads the config at path, or at config.Path() if path is
// empty.
func LoadConfig(path string) (config.Config, error) {
	if path == "" {
		p, err := config.Path()
		if err != nil {
			return config.Default(), nil
		}
		path = p
	}
	return config.Load(path)
}
