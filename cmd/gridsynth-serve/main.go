package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gridsynth/gridsynth/cmd"
	"github.com/gridsynth/gridsynth/engine"
	"github.com/gridsynth/gridsynth/httpapi"
	"github.com/gridsynth/gridsynth/midi"
	"github.com/gridsynth/gridsynth/offline"
	"github.com/gridsynth/gridsynth/oto"
	"github.com/gridsynth/gridsynth/version"
)

var (
	configFile  = flag.String("config", "", "Read settings from `file`. By default, config.yml in the user config directory is used if it exists.")
	addr        = flag.String("addr", "", "Listen on `address`, overriding the config.")
	silent      = flag.Bool("silent", false, "Run without audio output.")
	midiInput   = flag.String("midi-input", "", "Connect MIDI input to matching device name `prefix`.")
	versionFlag = flag.Bool("v", false, "Print version.")
)

func main() {
	flag.Usage = printUsage
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.VersionOrHash)
		os.Exit(0)
	}
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := cmd.LoadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("could not load config: %w", err)
	}
	if *addr != "" {
		cfg.HTTPAddr = *addr
	}
	logger := cmd.Logger(cfg)

	var dev engine.Device
	if *silent {
		dev = offline.NewDevice(cfg.SampleRate)
	} else {
		d := oto.NewDevice(cfg.SampleRate, cfg.BufferSize, logger)
		defer d.Close()
		dev = d
	}
	e := engine.New(dev, logger)
	cmd.Prepare(e, cfg)
	runner := engine.NewRunner(e, cfg.TickInterval)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go runner.Run(ctx)
	defer runner.Stop(5 * time.Second)

	if isFlagPassed("midi-input") {
		closeMIDI, err := cmd.OpenMIDI(midi.NewListener(runner, logger), *midiInput)
		if err != nil {
			logger.Warn("no MIDI input", "error", err)
		} else {
			defer closeMIDI()
		}
	}
	err = httpapi.New(runner, logger).Run(ctx, cfg.HTTPAddr)
	stop()
	return err
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
	fmt.Fprintf(os.Stderr, "gridsynth server: controls the engine through a JSON API.\nUsage: %s [flags]\n", os.Args[0])
	flag.PrintDefaults()
}
