// Package config loads the settings of the gridsynth commands.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	gs "github.com/gridsynth/gridsynth"
	"gopkg.in/yaml.v3"
)

type (
	Config struct {
		SampleRate   int           `yaml:"sampleRate"`
		BufferSize   time.Duration `yaml:"bufferSize"`
		TickInterval time.Duration `yaml:"tickInterval"`
		BPM          float64       `yaml:"bpm"`
		Steps        int           `yaml:"steps"`
		// Bundle and GlobalPreset name presets loaded at startup. Empty
		// means none.
		Bundle       string     `yaml:"bundle"`
		GlobalPreset string     `yaml:"globalPreset"`
		LogLevel     slog.Level `yaml:"logLevel"`
		HTTPAddr     string     `yaml:"httpAddr"`
	}
)

//go:embed config.yml
var defaultConfigYaml []byte

// Default returns the built-in configuration.
func Default() Config {
	var c Config
	if err := decode(bytes.NewReader(defaultConfigYaml), &c); err != nil {
		panic(fmt.Errorf("failed to unmarshal default config: %w", err))
	}
	return c
}

// Path is where Load looks for the user's configuration.
func Path() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "gridsynth", "config.yml"), nil
}

// Load reads the file at path over the defaults. A missing file is not an
// error: the defaults are returned as they are.
func Load(path string) (Config, error) {
	c := Default()
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return c, fmt.Errorf("could not open config: %w", err)
	}
	defer f.Close()
	if err := decode(f, &c); err != nil {
		return c, fmt.Errorf("could not parse config %v: %w", path, err)
	}
	return c, c.Validate()
}

// Validate reports the first setting that is out of range.
func (c Config) Validate() error {
	switch {
	case c.SampleRate < 8000 || c.SampleRate > 192000:
		return fmt.Errorf("sample rate %d out of range", c.SampleRate)
	case c.BufferSize <= 0:
		return fmt.Errorf("buffer size must be positive, got %v", c.BufferSize)
	case c.TickInterval <= 0:
		return fmt.Errorf("tick interval must be positive, got %v", c.TickInterval)
	case c.BPM < gs.MinBPM || c.BPM > gs.MaxBPM:
		return fmt.Errorf("bpm %v out of range [%v, %v]", c.BPM, gs.MinBPM, gs.MaxBPM)
	case c.Steps < 1 || c.Steps > gs.MaxSteps:
		return fmt.Errorf("steps %d out of range [1, %d]", c.Steps, gs.MaxSteps)
	}
	return nil
}

func decode(r io.Reader, c *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	err := dec.Decode(c)
	if errors.Is(err, io.EOF) {
		return nil // empty file
	}
	return err
}
