package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/pprof"
	"strings"
	"syscall"
	"time"

	"github.com/gridsynth/gridsynth/cmd"
	"github.com/gridsynth/gridsynth/config"
	"github.com/gridsynth/gridsynth/engine"
	"github.com/gridsynth/gridsynth/midi"
	"github.com/gridsynth/gridsynth/offline"
	"github.com/gridsynth/gridsynth/oto"
	"github.com/gridsynth/gridsynth/version"
)

var (
	configFile   = flag.String("config", "", "Read settings from `file`. By default, config.yml in the user config directory is used if it exists.")
	bundle       = flag.String("bundle", "", "Load the track bundle `name`.")
	preset       = flag.String("preset", "", "Load the global preset `name`.")
	rhythm       = flag.String("rhythm", "", "Load the named rhythm `name` onto the tracks.")
	pattern      = flag.Int("pattern", -1, "Load the numeric pattern `n` onto the tracks.")
	bpm          = flag.Float64("bpm", 0, "Tempo in beats per minute.")
	steps        = flag.Int("steps", 0, "Steps per bar.")
	output       = flag.String("o", "", "Render offline to `file` instead of playing. The extension picks the format: .wav, or .raw for stereo float32.")
	pcm          = flag.Bool("c", false, "Convert .raw output to 16-bit signed PCM.")
	duration     = flag.Duration("d", 8*time.Second, "Length of an offline render.")
	midiInput    = flag.String("midi-input", "", "Connect MIDI input to matching device name `prefix`.")
	status       = flag.String("status", cmd.DefaultStatus, "Status line `template`, with sprig functions.")
	statusPeriod = flag.Duration("status-every", time.Second, "Print the status line this often; 0 disables it.")
	cpuprofile   = flag.String("cpuprofile", "", "write cpu profile to `file`")
	versionFlag  = flag.Bool("v", false, "Print version.")
	help         = flag.Bool("h", false, "Show help.")
)

func main() {
	flag.Usage = printUsage
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.VersionOrHash)
		os.Exit(0)
	}
	if *help {
		flag.Usage()
		os.Exit(0)
	}
	cfg, err := cmd.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not load config: %v\n", err)
		os.Exit(1)
	}
	applyFlags(&cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid settings: %v\n", err)
		os.Exit(1)
	}
	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatal("could not create CPU profile: ", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal("could not start CPU profile: ", err)
		}
		defer func() {
			pprof.StopCPUProfile()
			f.Close()
		}()
	}
	if *output != "" {
		err = render(cfg)
	} else {
		err = play(cfg)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func applyFlags(cfg *config.Config) {
	if *bundle != "" {
		cfg.Bundle = *bundle
	}
	if *preset != "" {
		cfg.GlobalPreset = *preset
	}
	if isFlagPassed("bpm") {
		cfg.BPM = *bpm
	}
	if isFlagPassed("steps") {
		cfg.Steps = *steps
	}
}

// setup prepares the engine and starts the sequencer.
func setup(e *engine.Engine, cfg config.Config) {
	cmd.Prepare(e, cfg)
	if *rhythm != "" {
		e.LoadNamedRhythm(*rhythm)
	}
	if *pattern >= 0 {
		e.LoadNumericPattern(*pattern)
	}
	if isFlagPassed("bpm") {
		e.SetBPM(*bpm)
	}
	e.StartSequencer()
}

func render(cfg config.Config) error {
	logger := cmd.Logger(cfg)
	dev := offline.NewDevice(cfg.SampleRate)
	e := engine.New(dev, logger)
	setup(e, cfg)
	frames := offline.Render(e, dev, *duration)
	e.Close()
	f, err := os.Create(*output)
	if err != nil {
		return fmt.Errorf("could not create %v: %w", *output, err)
	}
	defer f.Close()
	switch strings.ToLower(filepath.Ext(*output)) {
	case ".wav":
		err = offline.WriteWav(f, frames, cfg.SampleRate)
	case ".raw":
		var raw []byte
		if raw, err = offline.Raw(frames, *pcm); err == nil {
			_, err = f.Write(raw)
		}
	default:
		return fmt.Errorf("unknown output format %q, use .wav or .raw", filepath.Ext(*output))
	}
	if err != nil {
		return fmt.Errorf("could not write %v: %w", *output, err)
	}
	logger.Info("rendered", "file", *output, "frames", len(frames))
	return nil
}

func play(cfg config.Config) error {
	tmpl, err := cmd.StatusTemplate(*status)
	if err != nil {
		return err
	}
	logger := cmd.Logger(cfg)
	dev := oto.NewDevice(cfg.SampleRate, cfg.BufferSize, logger)
	defer dev.Close()
	if err := dev.Resume(); err != nil {
		return err
	}
	runner := engine.NewRunner(engine.New(dev, logger), cfg.TickInterval)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go runner.Run(ctx)
	if err := runner.Do(ctx, func(e *engine.Engine) { setup(e, cfg) }); err != nil {
		return fmt.Errorf("could not start the sequencer: %w", err)
	}
	if isFlagPassed("midi-input") {
		closeMIDI, err := cmd.OpenMIDI(midi.NewListener(runner, logger), *midiInput)
		if err != nil {
			logger.Warn("no MIDI input", "error", err)
		} else {
			defer closeMIDI()
		}
	}
	if *statusPeriod > 0 {
		ticker := time.NewTicker(*statusPeriod)
		defer ticker.Stop()
	loop:
		for {
			select {
			case <-ticker.C:
				s, err := runner.Snapshot(ctx)
				if err != nil {
					break loop
				}
				if err := cmd.WriteStatus(os.Stdout, tmpl, s); err != nil {
					return err
				}
			case <-runner.Finished:
				break loop
			}
		}
	}
	<-runner.Finished
	return nil
}

func isFlagPassed(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "gridsynth command line player: plays a step sequence, or renders it to a file.\nUsage: %s [flags]\n", os.Args[0])
	flag.PrintDefaults()
}
