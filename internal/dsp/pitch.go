// ABOUTME: Phase-vocoder pitch shifter
// ABOUTME: Scales instantaneous bin frequencies and re-accumulates phase
package dsp

import (
	"math"
	"math/cmplx"
)

// PitchShifter shifts pitch by a semitone offset without changing duration.
// It tracks the phase difference of each bin between successive frames to
// recover the true instantaneous frequency, moves magnitudes to bins scaled
// by the pitch ratio and accumulates phase for resynthesis.
type PitchShifter struct {
	stft  *stft
	ratio float64

	lastPhase []float64
	sumPhase  []float64
	synMag    []float64
	synFreq   []float64
}

// NewPitchShifter creates a pitch shifter. Semitones are expected to be
// pre-clamped at the configuration boundary.
func NewPitchShifter(semitones float64) *PitchShifter {
	n := fftSize/2 + 1
	p := &PitchShifter{
		ratio:     math.Pow(2.0, semitones/12.0),
		lastPhase: make([]float64, n),
		sumPhase:  make([]float64, n),
		synMag:    make([]float64, n),
		synFreq:   make([]float64, n),
	}
	p.stft = newSTFT(p.shiftSpectrum)
	return p
}

func (p *PitchShifter) shiftSpectrum(bins []complex128) {
	for i := range p.synMag {
		p.synMag[i] = 0
		p.synFreq[i] = 0
	}

	for i := range bins {
		mag := cmplx.Abs(bins[i])
		phase := cmplx.Phase(bins[i])

		delta := phase - p.lastPhase[i]
		p.lastPhase[i] = phase

		// Expected phase advance for this bin's center frequency over one
		// hop; the deviation from it encodes the true frequency.
		binFreq := 2.0 * math.Pi * float64(i) / float64(fftSize)
		deviation := delta - binFreq*float64(hopSize)
		wrapped := math.Mod(deviation+math.Pi, 2.0*math.Pi)
		if wrapped < 0 {
			wrapped += 2.0 * math.Pi
		}
		wrapped -= math.Pi

		trueFreq := binFreq + wrapped/float64(hopSize)

		dst := int(float64(i)*p.ratio + 0.5)
		if dst >= len(bins) {
			continue
		}
		p.synMag[dst] += mag
		p.synFreq[dst] = trueFreq * p.ratio
	}

	for i := range bins {
		p.sumPhase[i] += p.synFreq[i] * float64(hopSize)
		bins[i] = cmplx.Rect(p.synMag[i], p.sumPhase[i])
	}
}

// Process shifts samples in place. Output lags input by Latency() samples.
func (p *PitchShifter) Process(samples []float32) {
	p.stft.processBlock(samples)
}

// Latency returns the inherent delay in samples.
func (p *PitchShifter) Latency() int {
	return p.stft.latency()
}

// Reset clears all analysis state.
func (p *PitchShifter) Reset() {
	p.stft.reset()
	for i := range p.lastPhase {
		p.lastPhase[i] = 0
		p.sumPhase[i] = 0
	}
}
