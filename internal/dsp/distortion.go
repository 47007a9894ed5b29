// ABOUTME: Distortion effect
// ABOUTME: Hyperbolic-tangent waveshaping with a fixed wet/dry mix
package dsp

import "math"

// distortionMix balances the saturated signal against the dry input.
const distortionMix = 0.5

// Distortion saturates the signal with a tanh waveshaper. The drive gain
// scales from 1x to 10x as amount goes from 0 to 1.
type Distortion struct {
	gain float32
}

// NewDistortion creates a distortion stage. amount is expected to be
// pre-clamped to [0, 1] at the configuration boundary.
func NewDistortion(amount float64) *Distortion {
	return &Distortion{gain: float32(1.0 + amount*9.0)}
}

// Process shapes samples in place.
func (d *Distortion) Process(samples []float32) {
	for i, x := range samples {
		wet := float32(math.Tanh(float64(x * d.gain)))
		samples[i] = x*(1.0-distortionMix) + wet*distortionMix
	}
}

// Reset is a no-op; the waveshaper is stateless.
func (d *Distortion) Reset() {}
