package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gridsynth/gridsynth/config"
)

func write(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	c := config.Default()
	if c.SampleRate != 44100 || c.BufferSize != 50*time.Millisecond || c.BPM != 120 || c.Steps != 16 {
		t.Errorf("unexpected defaults %+v", c)
	}
	if c.LogLevel != slog.LevelInfo {
		t.Errorf("log level %v", c.LogLevel)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	c, err := config.Load(filepath.Join(t.TempDir(), "nope.yml"))
	if err != nil {
		t.Fatalf("missing file is an error: %v", err)
	}
	if c != config.Default() {
		t.Errorf("missing file did not give the defaults: %+v", c)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	c, err := config.Load(write(t, "bpm: 90\nlogLevel: debug\nbundle: techno\ntickInterval: 2ms\n"))
	if err != nil {
		t.Fatal(err)
	}
	if c.BPM != 90 || c.LogLevel != slog.LevelDebug || c.Bundle != "techno" || c.TickInterval != 2*time.Millisecond {
		t.Errorf("unexpected config %+v", c)
	}
	if c.SampleRate != 44100 {
		t.Error("unset field lost its default")
	}
}

func TestLoadErrors(t *testing.T) {
	for _, tc := range []struct{ name, yml, want string }{
		{"unknown field", "tempo: 90\n", "tempo"},
		{"bpm", "bpm: 1000\n", "bpm"},
		{"steps", "steps: 0\n", "steps"},
		{"sample rate", "sampleRate: 100\n", "sample rate"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.Load(write(t, tc.yml))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("got error %v, want one mentioning %q", err, tc.want)
			}
		})
	}
}

func TestEmptyFile(t *testing.T) {
	c, err := config.Load(write(t, ""))
	if err != nil || c != config.Default() {
		t.Errorf("empty file: %+v, %v", c, err)
	}
}
