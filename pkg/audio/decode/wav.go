// ABOUTME: WAV file decoder
// ABOUTME: Decodes PCM WAV files to float32 samples
package decode

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/wav"

	"github.com/sounddeck/sounddeck-go/pkg/audio"
)

func decodeWAV(r io.Reader) (audio.Buffer, error) {
	rs, ok := r.(io.ReadSeeker)
	if !ok {
		return audio.Buffer{}, errors.New("wav decoding requires a seekable reader")
	}

	dec := wav.NewDecoder(rs)
	if !dec.IsValidFile() {
		return audio.Buffer{}, errors.New("not a valid wav file")
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("failed to read wav pcm: %w", err)
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = int(dec.BitDepth)
	}
	scale := float32(int64(1) << (bitDepth - 1))

	data := make([]float32, len(buf.Data))
	for i, s := range buf.Data {
		data[i] = float32(s) / scale
	}

	return audio.Buffer{
		Format: audio.Format{
			SampleRate: buf.Format.SampleRate,
			Channels:   buf.Format.NumChannels,
			Layout:     audio.LayoutF32,
		},
		Data: data,
	}, nil
}
