// ABOUTME: Entry point for the sounddeck soundboard daemon
// ABOUTME: Wires config, the mixing engine, and a line-based command reader
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/sounddeck/sounddeck-go/internal/config"
	"github.com/sounddeck/sounddeck-go/internal/engine"
	"github.com/sounddeck/sounddeck-go/internal/preview"
	"github.com/sounddeck/sounddeck-go/pkg/audio"
	"github.com/sounddeck/sounddeck-go/pkg/audio/decode"
	"github.com/sounddeck/sounddeck-go/pkg/audio/device"
)

var (
	configPath  = flag.String("config", "", "Config file path (YAML)")
	listDevices = flag.Bool("list-devices", false, "List audio devices and exit")
	inputDev    = flag.String("input", "", "Input device name (overrides config)")
	outputDev   = flag.String("output", "", "Output device name (overrides config)")
	logFile     = flag.String("log-file", "", "Log file path (overrides config)")
)

func main() {
	flag.Parse()

	if err := config.Load(*configPath); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	logPath := config.LogFile()
	if *logFile != "" {
		logPath = *logFile
	}
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			log.Fatalf("error opening log file: %v", err)
		}
		defer func() { _ = f.Close() }()
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	if *listDevices {
		printDevices()
		return
	}

	cfg := config.Engine()
	if *inputDev != "" {
		cfg.InputDevice = *inputDev
	}
	if *outputDev != "" {
		cfg.OutputDevice = *outputDev
	}

	eng := engine.New(cfg, nil)
	eng.SetMicVolume(config.MicVolume())
	eng.SetEffectsVolume(config.EffectsVolume())
	eng.SetMasterVolume(config.MasterVolume())

	if err := eng.Start(); err != nil {
		log.Fatalf("Failed to start engine: %v", err)
	}
	defer func() { _ = eng.Stop() }()

	prev := preview.New(cfg.Format)

	go printEvents(eng, prev)
	go readCommands(eng, prev, cfg.Format)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Printf("Shutting down")
	prev.Close()
}

func printDevices() {
	devices, err := device.List()
	if err != nil {
		log.Fatalf("Failed to list devices: %v", err)
	}
	fmt.Println("Capture devices:")
	for _, d := range devices.Capture {
		marker := " "
		if d.IsDefault {
			marker = "*"
		}
		fmt.Printf("  %s %s\n", marker, d.Name)
	}
	fmt.Println("Playback devices:")
	for _, d := range devices.Playback {
		marker := " "
		if d.IsDefault {
			marker = "*"
		}
		if device.IsVirtualCable(d.Name) {
			marker += " [virtual cable]"
		}
		fmt.Printf("  %s %s\n", marker, d.Name)
	}
}

func printEvents(eng *engine.Engine, prev *preview.Player) {
	for {
		select {
		case ev := <-eng.Events():
			switch e := ev.(type) {
			case engine.SoundStarted:
				log.Printf("Sound started: %s", e.ID)
			case engine.SoundStopped:
				log.Printf("Sound stopped: %s", e.ID)
			case engine.DeviceChanged:
				log.Printf("Device changed: %s (capture=%v)", e.Name, e.Capture)
			case engine.EngineError:
				log.Printf("Engine error: %v", e.Err)
			}
		case ev := <-prev.Events():
			if ev.Started {
				log.Printf("Preview started: %s", ev.Token)
			} else {
				log.Printf("Preview stopped: %s", ev.Token)
			}
		}
	}
}

// readCommands drives the engine from stdin, one command per line:
//
//	play <file> [volume]
//	stop <id> | stopall
//	preview <file> [device]
//	vol mic|effects|master <value>
//	mute on|off
//	input <device> | output <device>
//	restart
func readCommands(eng *engine.Engine, prev *preview.Player, format audio.Format) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "play":
			if len(fields) < 2 {
				log.Printf("usage: play <file> [volume]")
				continue
			}
			vol := audio.VolumeUnity
			if len(fields) > 2 {
				if v, err := strconv.ParseFloat(fields[2], 32); err == nil {
					vol = audio.Volume(v)
				}
			}
			buf, err := decode.File(fields[1], format)
			if err != nil {
				log.Printf("Decode failed: %v", err)
				continue
			}
			id, err := eng.PlaySound("", buf, vol)
			if err != nil {
				log.Printf("Play failed: %v", err)
				continue
			}
			log.Printf("Playing %s as %s", fields[1], id)

		case "stop":
			if len(fields) < 2 {
				log.Printf("usage: stop <id>")
				continue
			}
			if err := eng.StopSound(fields[1]); err != nil {
				log.Printf("Stop failed: %v", err)
			}

		case "stopall":
			if err := eng.StopAllSounds(); err != nil {
				log.Printf("Stop all failed: %v", err)
			}

		case "preview":
			if len(fields) < 2 {
				log.Printf("usage: preview <file> [device]")
				continue
			}
			dev := ""
			if len(fields) > 2 {
				dev = strings.Join(fields[2:], " ")
			}
			if err := prev.Play(fields[1], dev, fields[1]); err != nil {
				log.Printf("Preview failed: %v", err)
			}

		case "vol":
			if len(fields) < 3 {
				log.Printf("usage: vol mic|effects|master <value>")
				continue
			}
			v, err := strconv.ParseFloat(fields[2], 32)
			if err != nil {
				log.Printf("Bad volume: %v", err)
				continue
			}
			switch fields[1] {
			case "mic":
				eng.SetMicVolume(audio.Volume(v))
			case "effects":
				eng.SetEffectsVolume(audio.Volume(v))
			case "master":
				eng.SetMasterVolume(audio.Volume(v))
			default:
				log.Printf("unknown bus: %s", fields[1])
			}

		case "mute":
			eng.SetMicMuted(len(fields) > 1 && fields[1] == "on")

		case "input":
			if err := eng.SelectInputDevice(strings.Join(fields[1:], " ")); err != nil {
				log.Printf("Input select failed: %v", err)
			}

		case "output":
			if err := eng.SelectOutputDevice(strings.Join(fields[1:], " ")); err != nil {
				log.Printf("Output select failed: %v", err)
			}

		case "restart":
			if err := eng.Restart(); err != nil {
				log.Printf("Restart failed: %v", err)
			}

		default:
			log.Printf("unknown command: %s", fields[0])
		}
	}
}
