// ABOUTME: Sample representation conversions
// ABOUTME: Converts between float32 pipeline samples, int16 and raw bytes
package audio

import (
	"encoding/binary"
	"math"
)

// SampleToInt16 converts a float32 sample to int16, clamping to full scale.
func SampleToInt16(s float32) int16 {
	if s > 1.0 {
		s = 1.0
	} else if s < -1.0 {
		s = -1.0
	}
	return int16(s * 32767.0)
}

// SampleFromInt16 converts an int16 sample to float32 in [-1, 1].
func SampleFromInt16(s int16) float32 {
	return float32(s) / 32768.0
}

// BytesToFloat32 decodes little-endian float32 PCM bytes into dst and
// returns the number of samples written. Device callbacks hand the engine
// raw bytes; this is the only conversion on the capture hot path.
func BytesToFloat32(dst []float32, src []byte) int {
	n := len(src) / 4
	if n > len(dst) {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
	}
	return n
}

// Float32ToBytes encodes float32 PCM samples as little-endian bytes into dst
// and returns the number of bytes written.
func Float32ToBytes(dst []byte, src []float32) int {
	n := len(src)
	if n*4 > len(dst) {
		n = len(dst) / 4
	}
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(src[i]))
	}
	return n * 4
}
