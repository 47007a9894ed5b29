// ABOUTME: Ogg Vorbis file decoder
// ABOUTME: Decodes ogg/vorbis files to float32 samples
package decode

import (
	"fmt"
	"io"

	"github.com/jfreymuth/oggvorbis"

	"github.com/sounddeck/sounddeck-go/pkg/audio"
)

func decodeVorbis(r io.Reader) (audio.Buffer, error) {
	data, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("vorbis decode error: %w", err)
	}

	return audio.Buffer{
		Format: audio.Format{
			SampleRate: format.SampleRate,
			Channels:   format.Channels,
			Layout:     audio.LayoutF32,
		},
		Data: data,
	}, nil
}
