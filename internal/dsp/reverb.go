// ABOUTME: Schroeder reverberator
// ABOUTME: Parallel comb filters into series allpass filters with wet/dry mix
package dsp

// Schroeder's recommended delay times and feedback gains.
var (
	combDelayMs    = []float64{29.7, 37.1, 41.1, 43.7}
	allpassDelayMs = []float64{5.0, 1.7}
)

const (
	combGain    = 0.742
	allpassGain = 0.7
	defaultWet  = 0.3
)

// Reverb is a classic Schroeder reverberator: four parallel feedback comb
// filters averaged into two series allpass filters, mixed wet against dry.
// Delay-line lengths are fixed at construction from the sample rate.
type Reverb struct {
	combs    []delayLine
	allpass  []delayLine
	wet, dry float32
}

type delayLine struct {
	buf []float32
	idx int
}

// NewReverb creates a reverb for the given sample rate. wet is expected to
// be pre-clamped to [0, 1] at the configuration boundary.
func NewReverb(sampleRate int, wet float64) *Reverb {
	r := &Reverb{
		wet: float32(wet),
		dry: float32(1.0 - wet),
	}
	for _, ms := range combDelayMs {
		n := int(ms * float64(sampleRate) / 1000.0)
		r.combs = append(r.combs, delayLine{buf: make([]float32, n)})
	}
	for _, ms := range allpassDelayMs {
		n := int(ms * float64(sampleRate) / 1000.0)
		r.allpass = append(r.allpass, delayLine{buf: make([]float32, n)})
	}
	return r
}

// Process filters samples in place.
func (r *Reverb) Process(samples []float32) {
	for i, x := range samples {
		var combSum float32
		for c := range r.combs {
			d := &r.combs[c]
			delayed := d.buf[d.idx]
			combSum += delayed
			d.buf[d.idx] = x + delayed*combGain
			d.idx++
			if d.idx == len(d.buf) {
				d.idx = 0
			}
		}
		processed := combSum / float32(len(r.combs))

		for a := range r.allpass {
			d := &r.allpass[a]
			delayed := d.buf[d.idx]
			out := -processed + delayed
			d.buf[d.idx] = processed + delayed*allpassGain
			d.idx++
			if d.idx == len(d.buf) {
				d.idx = 0
			}
			processed = out
		}

		samples[i] = x*r.dry + processed*r.wet
	}
}

// Reset clears the delay lines.
func (r *Reverb) Reset() {
	for c := range r.combs {
		for i := range r.combs[c].buf {
			r.combs[c].buf[i] = 0
		}
		r.combs[c].idx = 0
	}
	for a := range r.allpass {
		for i := range r.allpass[a].buf {
			r.allpass[a].buf[i] = 0
		}
		r.allpass[a].idx = 0
	}
}
