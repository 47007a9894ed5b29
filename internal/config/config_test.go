// ABOUTME: Tests for configuration defaults and file loading
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func TestDefaults(t *testing.T) {
	viper.Reset()
	if err := Load(""); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	cfg := Engine()
	if cfg.Format.SampleRate != 48000 || cfg.Format.Channels != 2 {
		t.Errorf("format = %+v, want 48000/2", cfg.Format)
	}
	if cfg.BufferFrames != 480 {
		t.Errorf("buffer frames = %d, want 480", cfg.BufferFrames)
	}
	if cfg.MaxSources != 32 {
		t.Errorf("max sources = %d, want 32", cfg.MaxSources)
	}
	if MicVolume() != 1.0 || MasterVolume() != 1.0 {
		t.Error("default volumes should be unity")
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	viper.Reset()
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "sample_rate: 44100\noutput_device: CABLE Input\nmaster_volume: 0.5\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Load(path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	cfg := Engine()
	if cfg.Format.SampleRate != 44100 {
		t.Errorf("sample rate = %d, want 44100", cfg.Format.SampleRate)
	}
	if cfg.OutputDevice != "CABLE Input" {
		t.Errorf("output device = %q", cfg.OutputDevice)
	}
	if MasterVolume() != 0.5 {
		t.Errorf("master volume = %v, want 0.5", MasterVolume())
	}
	// Untouched keys keep their defaults.
	if cfg.MaxSources != 32 {
		t.Errorf("max sources = %d, want 32", cfg.MaxSources)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	viper.Reset()
	if err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if Engine().Format.SampleRate != 48000 {
		t.Error("defaults not applied for missing file")
	}
}
