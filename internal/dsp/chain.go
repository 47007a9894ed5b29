// ABOUTME: Ordered effect chain applied between capture and render
// ABOUTME: Deinterleaves per channel, runs enabled stages, reinterleaves
package dsp

import (
	"github.com/sounddeck/sounddeck-go/pkg/audio"
)

// MaxShiftSemitones bounds pitch and formant shifts at the config boundary.
const MaxShiftSemitones = 24.0

// stage is one mono in-place transform with resettable state.
type stage interface {
	Process(samples []float32)
	Reset()
}

// Chain runs a fixed sequence of stateful effects over interleaved audio:
// pitch shift, formant shift, robot, distortion, then reverb last. Each
// stage keeps independent state per channel. A disabled stage is skipped
// entirely, not executed with identity parameters.
//
// Chain methods are not safe for concurrent use; the orchestrator mutates
// configuration only between ticks.
type Chain struct {
	format audio.Format

	pitch      []stage
	formant    []stage
	robot      []stage
	distortion []stage
	reverb     []stage

	planes [][]float32
}

// NewChain creates an empty (all-passthrough) chain for the given format.
func NewChain(format audio.Format) *Chain {
	return &Chain{
		format: format,
		planes: make([][]float32, format.Channels),
	}
}

func clampShift(semitones float64) float64 {
	if semitones > MaxShiftSemitones {
		return MaxShiftSemitones
	}
	if semitones < -MaxShiftSemitones {
		return -MaxShiftSemitones
	}
	return semitones
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// SetPitchShift enables pitch shifting by the given semitone offset,
// clamped to ±24.
func (c *Chain) SetPitchShift(semitones float64) {
	semitones = clampShift(semitones)
	c.pitch = c.pitch[:0]
	for i := 0; i < c.format.Channels; i++ {
		c.pitch = append(c.pitch, NewPitchShifter(semitones))
	}
}

// DisablePitchShift removes the pitch stage.
func (c *Chain) DisablePitchShift() { c.pitch = nil }

// SetFormantShift enables formant shifting by the given semitone offset,
// clamped to ±24.
func (c *Chain) SetFormantShift(semitones float64) {
	semitones = clampShift(semitones)
	c.formant = c.formant[:0]
	for i := 0; i < c.format.Channels; i++ {
		c.formant = append(c.formant, NewFormantShifter(semitones))
	}
}

// DisableFormantShift removes the formant stage.
func (c *Chain) DisableFormantShift() { c.formant = nil }

// EnableRobot enables the ring-modulation robot effect.
func (c *Chain) EnableRobot() {
	c.robot = c.robot[:0]
	for i := 0; i < c.format.Channels; i++ {
		c.robot = append(c.robot, NewRobot(c.format.SampleRate))
	}
}

// DisableRobot removes the robot stage.
func (c *Chain) DisableRobot() { c.robot = nil }

// SetDistortion enables distortion with the given amount, clamped to [0, 1].
func (c *Chain) SetDistortion(amount float64) {
	amount = clampUnit(amount)
	c.distortion = c.distortion[:0]
	for i := 0; i < c.format.Channels; i++ {
		c.distortion = append(c.distortion, NewDistortion(amount))
	}
}

// DisableDistortion removes the distortion stage.
func (c *Chain) DisableDistortion() { c.distortion = nil }

// SetReverb enables reverb with the given wet mix, clamped to [0, 1].
func (c *Chain) SetReverb(wet float64) {
	wet = clampUnit(wet)
	c.reverb = c.reverb[:0]
	for i := 0; i < c.format.Channels; i++ {
		c.reverb = append(c.reverb, NewReverb(c.format.SampleRate, wet))
	}
}

// DisableReverb removes the reverb stage.
func (c *Chain) DisableReverb() { c.reverb = nil }

// Enabled reports whether any stage is active.
func (c *Chain) Enabled() bool {
	return c.pitch != nil || c.formant != nil || c.robot != nil ||
		c.distortion != nil || c.reverb != nil
}

// Latency returns the chain's inherent delay in frames. Only the spectral
// stages buffer; the sample-domain stages are delay-free.
func (c *Chain) Latency() int {
	latency := 0
	if c.pitch != nil {
		latency += fftSize
	}
	if c.formant != nil {
		latency += fftSize
	}
	return latency
}

// Process applies all enabled stages in place over interleaved samples.
// With no stage enabled it returns immediately.
func (c *Chain) Process(samples []float32) {
	if !c.Enabled() {
		return
	}

	channels := c.format.Channels
	frames := len(samples) / channels

	for ch := 0; ch < channels; ch++ {
		if cap(c.planes[ch]) < frames {
			c.planes[ch] = make([]float32, frames)
		}
		plane := c.planes[ch][:frames]
		for f := 0; f < frames; f++ {
			plane[f] = samples[f*channels+ch]
		}
		c.planes[ch] = plane
	}

	for _, stages := range [][]stage{c.pitch, c.formant, c.robot, c.distortion, c.reverb} {
		if stages == nil {
			continue
		}
		for ch := 0; ch < channels; ch++ {
			stages[ch].Process(c.planes[ch][:frames])
		}
	}

	for ch := 0; ch < channels; ch++ {
		plane := c.planes[ch][:frames]
		for f := 0; f < frames; f++ {
			samples[f*channels+ch] = plane[f]
		}
	}
}

// Reset clears the state of every enabled stage.
func (c *Chain) Reset() {
	for _, stages := range [][]stage{c.pitch, c.formant, c.robot, c.distortion, c.reverb} {
		for _, s := range stages {
			s.Reset()
		}
	}
}
