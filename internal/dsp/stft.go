// ABOUTME: Streaming STFT analysis-resynthesis helper
// ABOUTME: Shared frame/window/overlap-add machinery for spectral effects
package dsp

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	// fftSize is the analysis window length in samples.
	fftSize = 2048
	// hopSize gives 75% overlap between successive analysis frames.
	hopSize = fftSize / 4
)

// invOverlap compensates the Hann window-squared overlap sum at 75%
// overlap (3/2), restoring unity passthrough gain after overlap-add.
const invOverlap = 2.0 / 3.0

// spectrumFunc transforms one frame's frequency-domain bins in place.
// len(bins) is fftSize/2+1.
type spectrumFunc func(bins []complex128)

// stft accumulates mono samples into hop-sized blocks, runs a windowed FFT
// per block, hands the bins to a spectrum function, and reconstructs the
// signal by overlap-add. Output lags input by exactly fftSize samples.
type stft struct {
	fft     *fourier.FFT
	window  []float64
	process spectrumFunc

	frame    []float64 // sliding analysis buffer
	windowed []float64
	bins     []complex128
	synth    []float64
	ola      []float64

	inHop []float64
	inPos int

	// Ready output samples. Primed with fftSize-hopSize zeros so the
	// total input-to-output delay equals the analysis window length.
	pending []float64
	head    int
}

func newSTFT(process spectrumFunc) *stft {
	window := make([]float64, fftSize)
	for i := range window {
		window[i] = 0.5 * (1.0 - math.Cos(2.0*math.Pi*float64(i)/float64(fftSize)))
	}

	s := &stft{
		fft:      fourier.NewFFT(fftSize),
		window:   window,
		process:  process,
		frame:    make([]float64, fftSize),
		windowed: make([]float64, fftSize),
		bins:     make([]complex128, fftSize/2+1),
		synth:    make([]float64, fftSize),
		ola:      make([]float64, fftSize),
		inHop:    make([]float64, hopSize),
		pending:  make([]float64, 0, fftSize+hopSize),
	}
	s.pending = append(s.pending, make([]float64, fftSize-hopSize)...)
	return s
}

// processBlock filters samples in place through the STFT pipeline.
func (s *stft) processBlock(samples []float32) {
	for i, x := range samples {
		s.inHop[s.inPos] = float64(x)
		s.inPos++
		if s.inPos == hopSize {
			s.analyze()
			s.inPos = 0
		}

		if s.head < len(s.pending) {
			samples[i] = float32(s.pending[s.head])
			s.head++
		} else {
			samples[i] = 0
		}
	}

	// Compact the consumed prefix of the output queue.
	if s.head > 0 {
		s.pending = append(s.pending[:0], s.pending[s.head:]...)
		s.head = 0
	}
}

func (s *stft) analyze() {
	copy(s.frame, s.frame[hopSize:])
	copy(s.frame[fftSize-hopSize:], s.inHop)

	for i := range s.frame {
		s.windowed[i] = s.frame[i] * s.window[i]
	}

	s.fft.Coefficients(s.bins, s.windowed)
	s.process(s.bins)
	s.fft.Sequence(s.synth, s.bins)

	// Sequence is unnormalized; fold the 1/N in with the synthesis window
	// during overlap-add.
	norm := 1.0 / float64(fftSize)
	for i := range s.ola {
		s.ola[i] += s.synth[i] * norm * s.window[i]
	}

	// The first hop of the accumulator is complete.
	for i := 0; i < hopSize; i++ {
		s.pending = append(s.pending, s.ola[i]*invOverlap)
	}
	copy(s.ola, s.ola[hopSize:])
	for i := fftSize - hopSize; i < fftSize; i++ {
		s.ola[i] = 0
	}
}

// latency returns the input-to-output delay in samples.
func (s *stft) latency() int {
	return fftSize
}

func (s *stft) reset() {
	for i := range s.frame {
		s.frame[i] = 0
	}
	for i := range s.ola {
		s.ola[i] = 0
	}
	s.inPos = 0
	s.head = 0
	s.pending = s.pending[:0]
	s.pending = append(s.pending, make([]float64, fftSize-hopSize)...)
}
