// ABOUTME: Daemon configuration via viper with sensible defaults
// ABOUTME: Maps config keys onto the engine's startup parameters
package config

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/spf13/viper"

	"github.com/sounddeck/sounddeck-go/internal/engine"
	"github.com/sounddeck/sounddeck-go/pkg/audio"
)

func setDefaults() {
	viper.SetDefault("sample_rate", 48000)
	viper.SetDefault("channels", 2)
	viper.SetDefault("buffer_frames", engine.DefaultBufferFrames)
	viper.SetDefault("max_sources", 32)
	viper.SetDefault("input_device", "")
	viper.SetDefault("output_device", "")
	viper.SetDefault("mic_volume", 1.0)
	viper.SetDefault("effects_volume", 1.0)
	viper.SetDefault("master_volume", 1.0)
	viper.SetDefault("log_file", "sounddeck.log")
}

// Load reads the config file at path, falling back to defaults when the
// file does not exist. An empty path skips the file entirely.
func Load(path string) error {
	setDefaults()

	if path == "" {
		return nil
	}

	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok || errors.Is(err, os.ErrNotExist) {
			log.Printf("No config file at %s, using defaults", path)
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

// Engine builds the engine configuration from the loaded settings.
func Engine() engine.Config {
	return engine.Config{
		Format: audio.Format{
			SampleRate: viper.GetInt("sample_rate"),
			Channels:   viper.GetInt("channels"),
			Layout:     audio.LayoutF32,
		},
		BufferFrames: viper.GetInt("buffer_frames"),
		MaxSources:   viper.GetInt("max_sources"),
		InputDevice:  viper.GetString("input_device"),
		OutputDevice: viper.GetString("output_device"),
	}
}

// MicVolume returns the configured mic gain.
func MicVolume() audio.Volume { return audio.Volume(viper.GetFloat64("mic_volume")) }

// EffectsVolume returns the configured sound-clip bus gain.
func EffectsVolume() audio.Volume { return audio.Volume(viper.GetFloat64("effects_volume")) }

// MasterVolume returns the configured output gain.
func MasterVolume() audio.Volume { return audio.Volume(viper.GetFloat64("master_volume")) }

// LogFile returns the configured log file path.
func LogFile() string { return viper.GetString("log_file") }
