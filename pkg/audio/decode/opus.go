// ABOUTME: Ogg Opus file decoder
// ABOUTME: Decodes ogg/opus files to float32 samples at 48 kHz
package decode

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	opus "gopkg.in/hraban/opus.v2"

	"github.com/sounddeck/sounddeck-go/pkg/audio"
)

// opusRate is fixed by the codec; all opus streams decode at 48 kHz.
const opusRate = 48000

var opusHeadMagic = []byte("OpusHead")

// opusChannels reads the channel count from the OpusHead header packet.
// The stream decoder itself does not expose it.
func opusChannels(data []byte) (int, error) {
	idx := bytes.Index(data, opusHeadMagic)
	if idx < 0 || idx+9 >= len(data) {
		return 0, errors.New("missing OpusHead header")
	}
	channels := int(data[idx+9])
	if channels < 1 || channels > 2 {
		return 0, fmt.Errorf("unsupported opus channel count: %d", channels)
	}
	return channels, nil
}

func decodeOpus(r io.Reader) (audio.Buffer, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("failed to read opus stream: %w", err)
	}

	channels, err := opusChannels(raw)
	if err != nil {
		return audio.Buffer{}, err
	}

	stream, err := opus.NewStream(bytes.NewReader(raw))
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("failed to open opus stream: %w", err)
	}
	defer stream.Close()

	var data []float32
	pcm := make([]float32, 5760*channels)
	for {
		n, err := stream.ReadFloat32(pcm)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return audio.Buffer{}, fmt.Errorf("opus decode error: %w", err)
		}
		data = append(data, pcm[:n*channels]...)
	}

	return audio.Buffer{
		Format: audio.Format{
			SampleRate: opusRate,
			Channels:   channels,
			Layout:     audio.LayoutF32,
		},
		Data: data,
	}, nil
}
