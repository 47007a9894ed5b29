// ABOUTME: Robot voice effect
// ABOUTME: Ring modulation against a fixed-frequency carrier plus hard clip
package dsp

import "math"

// robotCarrierHz is the ring-modulation carrier frequency.
const robotCarrierHz = 30.0

// robotClip bounds the modulated signal for the characteristic buzz.
const robotClip = 0.8

// Robot multiplies the signal by a low-frequency sine carrier and hard-clips
// the result.
type Robot struct {
	phase float64
	inc   float64
}

// NewRobot creates a robot effect for the given sample rate.
func NewRobot(sampleRate int) *Robot {
	return &Robot{
		inc: 2.0 * math.Pi * robotCarrierHz / float64(sampleRate),
	}
}

// Process modulates samples in place.
func (r *Robot) Process(samples []float32) {
	for i, x := range samples {
		carrier := float32(math.Sin(r.phase))
		modulated := x * carrier
		if modulated > robotClip {
			modulated = robotClip
		} else if modulated < -robotClip {
			modulated = -robotClip
		}
		samples[i] = modulated

		r.phase += r.inc
		if r.phase >= 2.0*math.Pi {
			r.phase -= 2.0 * math.Pi
		}
	}
}

// Reset restarts the carrier oscillator.
func (r *Robot) Reset() {
	r.phase = 0
}
