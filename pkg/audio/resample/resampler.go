// ABOUTME: Linear resampler and channel converter for normalizing decoded clips
// ABOUTME: Converts arbitrary decoded audio to the engine's canonical format
package resample

import "github.com/sounddeck/sounddeck-go/pkg/audio"

// Resampler performs linear interpolation to convert between sample rates.
type Resampler struct {
	inputRate  int
	outputRate int
	channels   int
	ratio      float64
	position   float64
}

// New creates a resampler for interleaved float32 audio.
func New(inputRate, outputRate, channels int) *Resampler {
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		ratio:      float64(inputRate) / float64(outputRate),
	}
}

// Resample converts input samples to the output rate using linear
// interpolation. Both slices hold interleaved samples. It returns the
// number of output samples written.
func (r *Resampler) Resample(input, output []float32) int {
	if len(input) == 0 {
		return 0
	}

	inputFrames := len(input) / r.channels
	outputFrames := len(output) / r.channels

	outIdx := 0
	for outIdx < outputFrames {
		inputPos := r.position
		inputIdx := int(inputPos)

		if inputIdx >= inputFrames-1 {
			break
		}

		frac := float32(inputPos - float64(inputIdx))

		for ch := 0; ch < r.channels; ch++ {
			s1 := input[inputIdx*r.channels+ch]
			s2 := input[(inputIdx+1)*r.channels+ch]
			output[outIdx*r.channels+ch] = s1*(1-frac) + s2*frac
		}

		outIdx++
		r.position += r.ratio
	}

	// Keep only the fractional part for the next chunk.
	r.position -= float64(int(r.position))

	return outIdx * r.channels
}

// Reset clears the interpolation position.
func (r *Resampler) Reset() {
	r.position = 0.0
}

// OutputSamplesNeeded estimates how many output samples the given input
// will produce.
func (r *Resampler) OutputSamplesNeeded(inputSamples int) int {
	inputFrames := inputSamples / r.channels
	outputFrames := int(float64(inputFrames) / r.ratio)
	return outputFrames * r.channels
}

// MonoToStereo duplicates each sample across two channels.
func MonoToStereo(input []float32) []float32 {
	out := make([]float32, len(input)*2)
	for i, s := range input {
		out[i*2] = s
		out[i*2+1] = s
	}
	return out
}

// StereoToMono averages channel pairs into one channel.
func StereoToMono(input []float32) []float32 {
	frames := len(input) / 2
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		out[i] = (input[i*2] + input[i*2+1]) / 2
	}
	return out
}

// Convert turns an arbitrary decoded buffer into the target format,
// converting channel count first and then sample rate. The input buffer
// is not modified.
func Convert(buf audio.Buffer, target audio.Format) audio.Buffer {
	data := buf.Data

	switch {
	case buf.Format.Channels == 1 && target.Channels == 2:
		data = MonoToStereo(data)
	case buf.Format.Channels == 2 && target.Channels == 1:
		data = StereoToMono(data)
	}

	if buf.Format.SampleRate != target.SampleRate {
		r := New(buf.Format.SampleRate, target.SampleRate, target.Channels)
		out := make([]float32, r.OutputSamplesNeeded(len(data)))
		n := r.Resample(data, out)
		data = out[:n]
	} else if buf.Format.Channels == target.Channels {
		// Nothing changed; copy so callers can mutate freely.
		data = append([]float32(nil), data...)
	}

	return audio.Buffer{Format: target, Data: data}
}
