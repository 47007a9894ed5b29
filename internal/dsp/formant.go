// ABOUTME: Formant shifter via spectral envelope warping
// ABOUTME: Re-maps frequency bins by the shift ratio, leaving pitch intact
package dsp

import "math"

// FormantShifter moves the spectral envelope up or down without changing the
// fundamental, by warping the frequency axis of each analysis frame.
type FormantShifter struct {
	stft    *stft
	ratio   float64
	shifted []complex128
}

// NewFormantShifter creates a formant shifter. Semitones are expected to be
// pre-clamped at the configuration boundary.
func NewFormantShifter(semitones float64) *FormantShifter {
	f := &FormantShifter{
		ratio:   math.Pow(2.0, semitones/12.0),
		shifted: make([]complex128, fftSize/2+1),
	}
	f.stft = newSTFT(f.warpSpectrum)
	return f
}

func (f *FormantShifter) warpSpectrum(bins []complex128) {
	for i := range f.shifted {
		src := int(float64(i) / f.ratio)
		if src < len(bins) {
			f.shifted[i] = bins[src]
		} else {
			f.shifted[i] = 0
		}
	}
	copy(bins, f.shifted)
}

// Process shifts samples in place. Output lags input by Latency() samples.
func (f *FormantShifter) Process(samples []float32) {
	f.stft.processBlock(samples)
}

// Latency returns the inherent delay in samples.
func (f *FormantShifter) Latency() int {
	return f.stft.latency()
}

// Reset clears all analysis state.
func (f *FormantShifter) Reset() {
	f.stft.reset()
}
