// ABOUTME: Raw PCM decoder
// ABOUTME: Decodes headerless 16-bit little-endian PCM
package decode

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/sounddeck/sounddeck-go/pkg/audio"
)

// decodePCM decodes raw interleaved 16-bit little-endian samples. Raw files
// carry no header, so the canonical format is assumed.
func decodePCM(r io.Reader) (audio.Buffer, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("failed to read pcm data: %w", err)
	}

	data := make([]float32, len(raw)/2)
	for i := range data {
		data[i] = audio.SampleFromInt16(int16(binary.LittleEndian.Uint16(raw[i*2:])))
	}

	return audio.Buffer{Format: audio.Canonical(), Data: data}, nil
}
