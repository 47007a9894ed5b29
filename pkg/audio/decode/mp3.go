// ABOUTME: MP3 file decoder
// ABOUTME: Decodes MP3 files to float32 samples
package decode

import (
	"encoding/binary"
	"fmt"
	"io"

	mp3 "github.com/hajimehoshi/go-mp3"

	"github.com/sounddeck/sounddeck-go/pkg/audio"
)

func decodeMP3(r io.Reader) (audio.Buffer, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("failed to create mp3 decoder: %w", err)
	}

	raw, err := io.ReadAll(dec)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("mp3 decode error: %w", err)
	}

	// go-mp3 always emits 16-bit little-endian stereo.
	numSamples := len(raw) / 2
	data := make([]float32, numSamples)
	for i := 0; i < numSamples; i++ {
		s := int16(binary.LittleEndian.Uint16(raw[i*2:]))
		data[i] = audio.SampleFromInt16(s)
	}

	return audio.Buffer{
		Format: audio.Format{
			SampleRate: dec.SampleRate(),
			Channels:   2,
			Layout:     audio.LayoutF32,
		},
		Data: data,
	}, nil
}
