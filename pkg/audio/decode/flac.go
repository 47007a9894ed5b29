// ABOUTME: FLAC file decoder
// ABOUTME: Decodes FLAC files to float32 samples frame by frame
package decode

import (
	"errors"
	"fmt"
	"io"

	"github.com/mewkiz/flac"

	"github.com/sounddeck/sounddeck-go/pkg/audio"
)

func decodeFLAC(r io.Reader) (audio.Buffer, error) {
	stream, err := flac.New(r)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("failed to open flac stream: %w", err)
	}
	defer stream.Close()

	channels := int(stream.Info.NChannels)
	scale := float32(int64(1) << (stream.Info.BitsPerSample - 1))

	var data []float32
	for {
		frame, err := stream.ParseNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return audio.Buffer{}, fmt.Errorf("flac decode error: %w", err)
		}

		frames := len(frame.Subframes[0].Samples)
		for i := 0; i < frames; i++ {
			for ch := 0; ch < channels; ch++ {
				data = append(data, float32(frame.Subframes[ch].Samples[i])/scale)
			}
		}
	}

	return audio.Buffer{
		Format: audio.Format{
			SampleRate: int(stream.Info.SampleRate),
			Channels:   channels,
			Layout:     audio.LayoutF32,
		},
		Data: data,
	}, nil
}
