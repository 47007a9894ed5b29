// ABOUTME: Voice changer deployment: capture through the effect chain to render
// ABOUTME: Single-path pipeline with no sound mixing, flags per effect
package main

import (
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sounddeck/sounddeck-go/internal/dsp"
	"github.com/sounddeck/sounddeck-go/internal/engine"
	"github.com/sounddeck/sounddeck-go/pkg/audio"
)

var (
	pitch      = flag.Float64("pitch", 0, "Pitch shift in semitones (±24, 0 disables)")
	formant    = flag.Float64("formant", 0, "Formant shift in semitones (±24, 0 disables)")
	robot      = flag.Bool("robot", false, "Enable robot ring modulation")
	distortion = flag.Float64("distortion", 0, "Distortion amount 0..1 (0 disables)")
	reverb     = flag.Float64("reverb", 0, "Reverb wet mix 0..1 (0 disables)")
	inputDev   = flag.String("input", "", "Input device name (default mic)")
	outputDev  = flag.String("output", "", "Output device name (default: virtual cable if present)")
	logFile    = flag.String("log-file", "voicefx.log", "Log file path")
)

func main() {
	flag.Parse()

	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()
	log.SetOutput(io.MultiWriter(os.Stdout, f))

	format := audio.Canonical()
	chain := dsp.NewChain(format)
	if *pitch != 0 {
		chain.SetPitchShift(*pitch)
	}
	if *formant != 0 {
		chain.SetFormantShift(*formant)
	}
	if *robot {
		chain.EnableRobot()
	}
	if *distortion > 0 {
		chain.SetDistortion(*distortion)
	}
	if *reverb > 0 {
		chain.SetReverb(*reverb)
	}

	if chain.Enabled() {
		latency := format.FramesDuration(chain.Latency())
		log.Printf("Effect chain latency: %d frames (%v)", chain.Latency(), latency)
	} else {
		log.Printf("No effects enabled, passing voice through unchanged")
	}

	eng := engine.New(engine.Config{
		Format:       format,
		InputDevice:  *inputDev,
		OutputDevice: *outputDev,
	}, chain)

	if err := eng.Start(); err != nil {
		log.Fatalf("Failed to start engine: %v", err)
	}
	defer func() { _ = eng.Stop() }()

	go func() {
		for ev := range eng.Events() {
			switch e := ev.(type) {
			case engine.EngineError:
				log.Printf("Engine error: %v", e.Err)
			case engine.DeviceChanged:
				log.Printf("Device changed: %s", e.Name)
			}
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Printf("Shutting down")
}
