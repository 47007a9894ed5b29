// ABOUTME: Audio type definitions
// ABOUTME: Defines formats, PCM buffers, volumes and level meters
package audio

import (
	"math"
	"sync/atomic"
	"time"
)

// SampleLayout identifies the in-memory representation of a sample.
type SampleLayout int

const (
	// LayoutF32 is 32-bit float, the canonical in-pipeline layout.
	LayoutF32 SampleLayout = iota
	// LayoutI16 is 16-bit signed integer, used at device and file boundaries.
	LayoutI16
)

func (l SampleLayout) String() string {
	switch l {
	case LayoutF32:
		return "f32"
	case LayoutI16:
		return "i16"
	default:
		return "unknown"
	}
}

// Format describes an audio stream format. Two connected pipeline stages
// must agree on the format, or a resampler has to sit between them.
type Format struct {
	SampleRate int
	Channels   int
	Layout     SampleLayout
}

// Canonical returns the pipeline's internal format: 48kHz stereo float32.
func Canonical() Format {
	return Format{SampleRate: 48000, Channels: 2, Layout: LayoutF32}
}

// Equal reports whether two formats are interchangeable without conversion.
func (f Format) Equal(other Format) bool {
	return f.SampleRate == other.SampleRate &&
		f.Channels == other.Channels &&
		f.Layout == other.Layout
}

// FramesToSamples converts a frame count to an interleaved sample count.
func (f Format) FramesToSamples(frames int) int {
	return frames * f.Channels
}

// SamplesToFrames converts an interleaved sample count to a frame count.
func (f Format) SamplesToFrames(samples int) int {
	if f.Channels == 0 {
		return 0
	}
	return samples / f.Channels
}

// FramesDuration returns the wall-clock duration of a frame count.
func (f Format) FramesDuration(frames int) time.Duration {
	if f.SampleRate == 0 {
		return 0
	}
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

// Buffer holds decoded PCM: interleaved float32 samples plus their format.
// A Buffer is an owned value; it never crosses a goroutine boundary by
// reference in the hot path.
type Buffer struct {
	Format Format
	Data   []float32
}

// Zeros creates a silent buffer of the given length in frames.
func Zeros(format Format, frames int) Buffer {
	return Buffer{
		Format: format,
		Data:   make([]float32, format.FramesToSamples(frames)),
	}
}

// Frames returns the buffer length in frames.
func (b Buffer) Frames() int {
	return b.Format.SamplesToFrames(len(b.Data))
}

// Duration returns the playback duration of the buffer.
func (b Buffer) Duration() time.Duration {
	return b.Format.FramesDuration(b.Frames())
}

// Volume is a linear gain factor. 0 is silence, 1 is unity gain.
type Volume float32

const (
	// VolumeUnity passes samples through unchanged.
	VolumeUnity Volume = 1.0
	// MaxMicVolume bounds the microphone gain stage.
	MaxMicVolume Volume = 2.0
	// MaxEffectsVolume bounds the sound-effects gain stage.
	MaxEffectsVolume Volume = 2.0
	// MaxMasterVolume bounds the final output gain stage.
	MaxMasterVolume Volume = 1.0
)

// ClampVolume bounds v to [0, max]. Command handlers clamp before storing so
// the audio callbacks never see an out-of-range gain.
func ClampVolume(v, max Volume) Volume {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}

// DB returns the volume in decibels, floored at -60dB.
func (v Volume) DB() float64 {
	if v <= 0 {
		return -60.0
	}
	db := 20.0 * math.Log10(float64(v))
	if db < -60.0 {
		return -60.0
	}
	return db
}

// VolumeFromDB converts a decibel value to a linear volume.
func VolumeFromDB(db float64) Volume {
	return Volume(math.Pow(10.0, db/20.0))
}

// Apply scales samples in place by the volume. Unity gain is a no-op.
func (v Volume) Apply(samples []float32) {
	if v == VolumeUnity {
		return
	}
	g := float32(v)
	for i := range samples {
		samples[i] *= g
	}
}

// Level is an instantaneous signal measurement used for metering.
type Level struct {
	RMS  float32
	Peak float32
}

// LevelOf measures the RMS and peak magnitude of a sample block.
func LevelOf(samples []float32) Level {
	if len(samples) == 0 {
		return Level{}
	}
	var sumSquares float64
	var peak float32
	for _, s := range samples {
		sumSquares += float64(s) * float64(s)
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	rms := float32(math.Sqrt(sumSquares / float64(len(samples))))
	return Level{RMS: rms, Peak: peak}
}

// RMSDB returns the RMS level in decibels, floored at -60dB.
func (l Level) RMSDB() float64 { return Volume(l.RMS).DB() }

// PeakDB returns the peak level in decibels, floored at -60dB.
func (l Level) PeakDB() float64 { return Volume(l.Peak).DB() }

// AtomicVolume is a Volume readable from audio callbacks without locking.
type AtomicVolume struct {
	bits atomic.Uint32
}

// Store sets the volume.
func (a *AtomicVolume) Store(v Volume) {
	a.bits.Store(math.Float32bits(float32(v)))
}

// Load reads the volume.
func (a *AtomicVolume) Load() Volume {
	return Volume(math.Float32frombits(a.bits.Load()))
}

// AtomicLevel publishes a Level from an audio callback to meter readers.
// Writer and readers never block each other.
type AtomicLevel struct {
	rms  atomic.Uint32
	peak atomic.Uint32
}

// Store publishes a measurement.
func (a *AtomicLevel) Store(l Level) {
	a.rms.Store(math.Float32bits(l.RMS))
	a.peak.Store(math.Float32bits(l.Peak))
}

// Load reads the most recent measurement.
func (a *AtomicLevel) Load() Level {
	return Level{
		RMS:  math.Float32frombits(a.rms.Load()),
		Peak: math.Float32frombits(a.peak.Load()),
	}
}
